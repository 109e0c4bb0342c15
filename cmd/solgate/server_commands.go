package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			health, err := newClient(c).Health(context.Background())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if health.Status != "ok" {
				return fmt.Errorf("server returned unhealthy status: %s", health.Status)
			}

			return printResult(c, health, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Server is healthy\n")
				fmt.Fprintf(w, "  URL:     %s\n", serverURL)
				fmt.Fprintf(w, "  Network: %s\n", health.Network)
				fmt.Fprintf(w, "  RPC:     %s (%s)\n", health.RPC, health.RPCStatus)
				fmt.Fprintf(w, "  Signer:  %v\n", health.Signer)
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			fmt.Fprintf(w, "solgate CLI\n")
			fmt.Fprintf(w, "  Version: %s\n", version)
			fmt.Fprintf(w, "  Commit:  %s\n", commit)
			fmt.Fprintf(w, "  Built:   %s\n", date)
			return nil
		},
	}
}
