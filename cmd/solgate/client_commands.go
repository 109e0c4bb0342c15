package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/solgate/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the solgate server",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 90 * time.Second,
			},
		},
		Subcommands: []*cli.Command{
			balanceCommand(),
			sendSOLCommand(),
			sendTokenCommand(),
			tradeCommand(),
			transferCommand(),
			transferStatusCommand(),
		},
	}
}

// newClient builds an HTTP client for the --server-url server.
func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	httpClient := &http.Client{Timeout: c.Duration("timeout")}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 90 * time.Second
	}
	return client.NewClient(c.String("server-url"), httpClient, logger)
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: must be a number", s)
	}
	return amount, nil
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the SOL balance of an address (default: the server's key)",
		ArgsUsage: "[ADDRESS]",
		Action: func(c *cli.Context) error {
			address := c.Args().First()
			bal, err := newClient(c).Balance(context.Background(), address)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}
			return printResult(c, bal, func(w io.Writer) {
				fmt.Fprintf(w, "%.9f SOL (%d lamports)\n", bal.BalanceSOL, bal.Lamports)
			})
		},
	}
}

func sendSOLCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-sol",
		Usage:     "Send SOL from the server's signer",
		ArgsUsage: "TO AMOUNT_SOL",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: recipient and amount")
			}
			amount, err := parseAmount(c.Args().Get(1))
			if err != nil {
				return err
			}

			out, err := newClient(c).SendSOL(context.Background(), c.Args().Get(0), amount)
			if err != nil {
				return fmt.Errorf("failed to send SOL: %w", err)
			}
			return printResult(c, out, func(w io.Writer) { printTransfer(w, out) })
		},
	}
}

func sendTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-token",
		Usage:     "Send an SPL token from the server's signer",
		ArgsUsage: "TO MINT AMOUNT",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "decimals",
				Aliases:  []string{"d"},
				Usage:    "Token decimals (6 for USDC)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("requires exactly three arguments: recipient, mint and amount")
			}
			amount, err := parseAmount(c.Args().Get(2))
			if err != nil {
				return err
			}

			out, err := newClient(c).SendToken(context.Background(), c.Args().Get(0), c.Args().Get(1), amount, c.Int("decimals"))
			if err != nil {
				return fmt.Errorf("failed to send token: %w", err)
			}
			return printResult(c, out, func(w io.Writer) { printTransfer(w, out) })
		},
	}
}

func tradeCommand() *cli.Command {
	return &cli.Command{
		Name:      "trade",
		Usage:     "Record a simulated trade on-chain",
		ArgsUsage: "FROM_TOKEN TO_TOKEN AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("requires exactly three arguments: from token, to token and amount")
			}
			amount, err := parseAmount(c.Args().Get(2))
			if err != nil {
				return err
			}

			out, err := newClient(c).Trade(context.Background(), c.Args().Get(0), c.Args().Get(1), amount)
			if err != nil {
				return fmt.Errorf("failed to trade: %w", err)
			}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintln(w, out.Message)
				fmt.Fprintf(w, "Signature:   %s\n", out.Signature)
				fmt.Fprintf(w, "Explorer:    %s\n", out.Explorer)
			})
		},
	}
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Start an async transfer (requires Temporal on the server)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Transfer kind: sol or token",
				Value: "sol",
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient address",
				Required: true,
			},
			&cli.Float64Flag{
				Name:     "amount",
				Usage:    "Amount in SOL or whole tokens",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Token mint (token transfers only)",
			},
			&cli.IntFlag{
				Name:  "decimals",
				Usage: "Token decimals (token transfers only)",
			},
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the transfer to finish",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Status poll interval when waiting",
				Value: time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl := newClient(c)
			ctx := context.Background()

			id, err := cl.SubmitTransfer(ctx, client.TransferRequest{
				Kind:     c.String("kind"),
				To:       c.String("to"),
				Amount:   c.Float64("amount"),
				Mint:     c.String("mint"),
				Decimals: c.Int("decimals"),
			})
			if err != nil {
				return fmt.Errorf("failed to submit transfer: %w", err)
			}

			if !c.Bool("wait") {
				out := map[string]string{"transfer_id": id}
				return printResult(c, out, func(w io.Writer) {
					fmt.Fprintf(w, "Transfer started: %s\n", id)
				})
			}

			status, err := cl.AwaitTransfer(ctx, id, c.Duration("poll-interval"))
			if err != nil {
				return fmt.Errorf("failed waiting for transfer %s: %w", id, err)
			}
			return printResult(c, status, func(w io.Writer) { printTransferStatus(w, status) })
		},
	}
}

func transferStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer-status",
		Usage:     "Show the state of an async transfer",
		ArgsUsage: "TRANSFER_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transfer ID")
			}
			status, err := newClient(c).TransferStatus(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get transfer status: %w", err)
			}
			return printResult(c, status, func(w io.Writer) { printTransferStatus(w, status) })
		},
	}
}

func printTransfer(w io.Writer, t *client.Transfer) {
	fmt.Fprintf(w, "Signature:   %s\n", t.TxID)
	fmt.Fprintf(w, "Amount:      %d (decimals %d)\n", t.Amount, t.Decimals)
	if t.CreatedAccount {
		fmt.Fprintf(w, "Created:     recipient token account\n")
	}
	if t.CreateTxID != "" {
		fmt.Fprintf(w, "Create Tx:   %s\n", t.CreateTxID)
	}
	if t.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:    %s\n", t.ExplorerURL)
	}
}

func printTransferStatus(w io.Writer, s *client.TransferStatus) {
	fmt.Fprintf(w, "Transfer:    %s\n", s.TransferID)
	fmt.Fprintf(w, "Status:      %s\n", s.Status)
	if s.TxID != "" {
		fmt.Fprintf(w, "Signature:   %s\n", s.TxID)
	}
	if s.CreateTxID != "" {
		fmt.Fprintf(w, "Create Tx:   %s\n", s.CreateTxID)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", s.Error)
	}
}
