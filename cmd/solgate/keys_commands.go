package main

import (
	"fmt"
	"io"

	"github.com/brojonat/solgate/service/keys"
	"github.com/brojonat/solgate/service/solana"
	"github.com/urfave/cli/v2"
)

// pubkeyCommand prints the public key of a private key without contacting anything.
func pubkeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pubkey",
		Usage: "Print the public key for a private key",
		Description: `Decode a private key (base58 or a solana-keygen JSON array) and print
the address it signs for. Useful for checking PRIVATE_KEY before starting the server.

Example:
  solgate keys pubkey --private-key "$(cat ~/.config/solana/id.json)"`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Private key (base58 or JSON byte array)",
				EnvVars: []string{"PRIVATE_KEY"},
			},
		},
		Action: func(c *cli.Context) error {
			signer, err := keys.Parse(c.String("private-key"))
			if err != nil {
				return fmt.Errorf("failed to parse private key: %w", err)
			}
			pk := signer.PublicKey().String()
			out := map[string]string{"public_key": pk}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintln(w, pk)
			})
		},
	}
}

// ataCommand derives the associated token account for an owner and mint.
func ataCommand() *cli.Command {
	return &cli.Command{
		Name:      "ata",
		Usage:     "Derive the associated token account for an owner and mint",
		ArgsUsage: "OWNER MINT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires exactly two arguments: owner and mint")
			}
			owner, err := solana.ParsePublicKey(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
			mint, err := solana.ParsePublicKey(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			ata, err := solana.AssociatedTokenAddress(owner, mint)
			if err != nil {
				return err
			}

			out := map[string]string{
				"owner":   owner.String(),
				"mint":    mint.String(),
				"address": ata.String(),
			}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintln(w, ata.String())
			})
		},
	}
}
