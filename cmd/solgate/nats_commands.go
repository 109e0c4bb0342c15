package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solgate/service/nats"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams transfer events published by the server.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to transfer events",
		ArgsUsage: "[signer_address]",
		Description: `Stream transfer events from NATS JetStream as the server submits them.

Events are published to the subject: transfers.{signer_address}
Without an address, events from every signer are shown.

Example:
  solgate nats subscribe --must-jq '.kind == "token"' --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solgate-cli",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "Only show events for which this jq expression is truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one signer address may be given")
			}

			var filters []*gojq.Code
			for _, expr := range c.StringSlice("must-jq") {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				filters = append(filters, code)
			}

			subject := natspkg.StreamSubjects
			if addr := c.Args().First(); addr != "" {
				subject = natspkg.SubjectPrefix + addr
			}

			return streamTransfers(c, subject, filters)
		},
	}
}

// streamTransfers connects to NATS and prints matching transfer events until interrupted.
func streamTransfers(c *cli.Context, subject string, filters []*gojq.Code) error {
	natsURL := c.String("nats-url")
	durable := c.Bool("durable")
	consumerName := c.String("consumer-name")
	jsonOutput := c.Bool("json")
	w := c.App.Writer

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(w, "Subscribing to: %s\n", subject)
		fmt.Fprintf(w, "   NATS: %s\n", natsURL)
		if durable {
			fmt.Fprintf(w, "   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Fprintf(w, "\nWaiting for transfers... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.TransferEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				_ = msg.Ack()
				continue
			}
			_ = msg.Ack()

			if !matchesAll(filters, &event) {
				continue
			}
			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(w, string(data))
			} else {
				printTransferEvent(w, count, &event)
			}

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(w, "\n\nReceived %d transfers\n", count)
			}
			return nil
		}
	}
}

func printTransferEvent(w io.Writer, n int, event *natspkg.TransferEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Transfer #%d (%s)\n", n, event.Kind)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	fmt.Fprintf(w, "From:         %s\n", event.From)
	fmt.Fprintf(w, "To:           %s\n", event.To)
	if event.Mint != "" {
		fmt.Fprintf(w, "Mint:         %s\n", event.Mint)
	}
	fmt.Fprintf(w, "Amount:       %d (decimals %d)\n", event.Amount, event.Decimals)
	if event.CreatedAccount {
		fmt.Fprintf(w, "Created ATA:  %s\n", event.CreateSignature)
	}
	fmt.Fprintf(w, "Network:      %s\n", event.Network)
	fmt.Fprintf(w, "Submitted:    %s\n", event.SubmittedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\n")
}

// inspectStreamCommand shows information about the TRANSFERS stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the TRANSFERS JetStream stream",
		Description: `Show message counts, consumers and configuration of the stream.

Example:
  solgate nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stream, err := js.Stream(ctx, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			return printResult(c, info, func(w io.Writer) {
				fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
				fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
				fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
				fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
				fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
				fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
				fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
				fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
				fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
				fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
				fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			})
		},
	}
}
