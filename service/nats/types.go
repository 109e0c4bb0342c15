package nats

import (
	"time"
)

// Transfer kinds carried on TransferEvent.Kind.
const (
	KindSOL   = "sol"
	KindToken = "token"
	KindTrade = "trade"
)

// TransferEvent represents a submitted transfer published to NATS.
// This is published to the subject "transfers.{from}" in JetStream.
type TransferEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Signature string `json:"signature"`

	// Accounts
	From string `json:"from"`
	To   string `json:"to"`
	Mint string `json:"mint,omitempty"` // empty for native SOL

	// Amount in base units (lamports for SOL)
	Amount   uint64 `json:"amount"`
	Decimals int    `json:"decimals"`

	// Set when the recipient token account was created for this transfer.
	CreatedAccount  bool   `json:"created_account"`
	CreateSignature string `json:"create_signature,omitempty"`

	Network     string    `json:"network"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Subject returns the subject the event is published on.
func (e *TransferEvent) Subject() string {
	return SubjectPrefix + e.From
}
