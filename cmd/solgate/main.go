package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solgate",
		Usage: "Solana wallet gateway CLI",
		Description: `A command-line tool for the solgate wallet service.

Use this CLI to query balances and send transfers through a running server,
inspect keys, follow transfer events on NATS, and list async transfers in Temporal.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Client commands (HTTP API)
			clientCommands(),
			// Offline key utilities
			{
				Name:  "keys",
				Usage: "Key and address utilities (no network access)",
				Subcommands: []*cli.Command{
					pubkeyCommand(),
					ataCommand(),
				},
			},
			// NATS transfer event commands
			{
				Name:  "nats",
				Usage: "NATS transfer event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Temporal inspection commands
			{
				Name:  "temporal",
				Usage: "Temporal inspection commands",
				Subcommands: []*cli.Command{
					listTransfersCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "solgate server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:7860",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue for transfers",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "solgate-transfers",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output through a jq expression (implies --json)",
			},
		},
	}
}
