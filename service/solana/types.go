package solana

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// AccountInfo is the subset of on-chain account state the service cares about.
// This is our domain model, independent of the RPC response format.
type AccountInfo struct {
	Owner      solana.PublicKey
	Lamports   uint64
	DataLen    int
	Executable bool
}

// SubmitOptions controls preflight simulation for a submission.
type SubmitOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// NodeError is a JSON-RPC error returned by the node. Message is the node's
// own text, kept verbatim so callers can surface it.
type NodeError struct {
	Method  string
	Code    int
	Message string
	Logs    []string // program logs from a failed preflight simulation
}

func (e *NodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (code %d)", e.Method, e.Message, e.Code)
	if len(e.Logs) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Logs, "; "))
	}
	return b.String()
}
