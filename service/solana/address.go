package solana

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParsePublicKey parses a base58 account address.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("empty address")
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

// AssociatedTokenAddress derives the canonical token account for (owner, mint).
// It is a pure function of its inputs.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return addr, nil
}

// ExplorerURL links a transaction signature on the public explorer for network.
func ExplorerURL(network, signature string) string {
	baseURL := "https://explorer.solana.com/tx/"
	switch network {
	case "devnet":
		return baseURL + signature + "?cluster=devnet"
	case "testnet":
		return baseURL + signature + "?cluster=testnet"
	case "localnet":
		return baseURL + signature + "?cluster=custom&customUrl=http%3A%2F%2F127.0.0.1%3A8899"
	default:
		return baseURL + signature
	}
}
