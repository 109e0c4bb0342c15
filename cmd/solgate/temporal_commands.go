package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solgate/service/temporal"
	"github.com/urfave/cli/v2"
)

func listTransfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transfers",
		Usage:   "List recent async transfer workflows",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of transfers to list",
				Value: 50,
			},
		},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			transfers, err := temporalClient.ListTransfers(ctx, c.Int("limit"))
			if err != nil {
				return err
			}

			return printResult(c, transfers, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TRANSFER ID\tSTATUS\tSTARTED")
				for _, t := range transfers {
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.TransferID, t.Status, t.StartedAt.Format(time.RFC3339))
				}
				w.Flush()
				fmt.Fprintf(os.Stderr, "\nTotal: %d transfers\n", len(transfers))
			})
		},
	}
}

// getTemporalClient connects to Temporal using the global flags.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		nil,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return tc, nil
}
