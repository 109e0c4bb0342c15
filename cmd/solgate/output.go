package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// printResult writes v as JSON when --json or --jq is set, and calls human
// otherwise.
func printResult(c *cli.Context, v interface{}, human func(w io.Writer)) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		code, err := compileJQ(filter)
		if err != nil {
			return err
		}
		results, err := runJQ(code, v)
		if err != nil {
			return err
		}
		for _, r := range results {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal jq result: %w", err)
			}
			fmt.Fprintln(w, string(data))
		}
		return nil
	}
	if c.Bool("json") {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	human(w)
	return nil
}

func compileJQ(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// runJQ evaluates code against v after a JSON round trip, so struct tags
// decide the field names the filter sees.
func runJQ(code *gojq.Code, v interface{}) ([]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	var out []interface{}
	iter := code.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := r.(error); isErr {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// matchesAll reports whether every filter yields a truthy first result for v.
func matchesAll(filters []*gojq.Code, v interface{}) bool {
	for _, code := range filters {
		results, err := runJQ(code, v)
		if err != nil || len(results) == 0 || !isTruthy(results[0]) {
			return false
		}
	}
	return true
}

// isTruthy checks if a value is truthy in jq semantics.
// In jq, only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
