package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solgate/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetHealth(ctx context.Context) (string, error)
}

// Gateway is the service's only path to the cluster. It is bound to one RPC
// endpoint and safe for concurrent use.
type Gateway struct {
	rpc      RPCClient
	url      string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet")
}

// NewGateway creates a new Gateway.
// The url is reported by health checks; endpoint is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewGateway(rpcClient RPCClient, url, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	return &Gateway{
		rpc:      rpcClient,
		url:      url,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// URL returns the RPC endpoint this gateway talks to.
func (g *Gateway) URL() string {
	return g.url
}

// Balance returns the finalized lamport balance of addr.
func (g *Gateway) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := g.rpc.GetBalance(ctx, addr, rpc.CommitmentFinalized)
	g.record(ctx, "getBalance", start, err, "address", addr.String())
	if err != nil {
		return 0, wrapError("getBalance", err)
	}
	if out == nil {
		return 0, fmt.Errorf("getBalance: empty response")
	}
	return out.Value, nil
}

// AccountInfo returns the account at addr, or (nil, nil) if it does not exist.
func (g *Gateway) AccountInfo(ctx context.Context, addr solana.PublicKey) (*AccountInfo, error) {
	start := time.Now()
	out, err := g.rpc.GetAccountInfo(ctx, addr)
	if errors.Is(err, rpc.ErrNotFound) {
		g.record(ctx, "getAccountInfo", start, nil)
		return nil, nil
	}
	g.record(ctx, "getAccountInfo", start, err, "address", addr.String())
	if err != nil {
		return nil, wrapError("getAccountInfo", err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Owner:      out.Value.Owner,
		Lamports:   out.Value.Lamports,
		Executable: out.Value.Executable,
	}
	if out.Value.Data != nil {
		info.DataLen = len(out.Value.Data.GetBinary())
	}
	return info, nil
}

// LatestBlockhash returns a recent blockhash at finalized commitment.
func (g *Gateway) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	out, err := g.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	g.record(ctx, "getLatestBlockhash", start, err)
	if err != nil {
		return solana.Hash{}, wrapError("getLatestBlockhash", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction. A rejection by the node is
// returned as a *NodeError carrying the node's message.
func (g *Gateway) SendTransaction(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error) {
	start := time.Now()
	sig, err := g.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	g.record(ctx, "sendTransaction", start, err,
		"skip_preflight", opts.SkipPreflight,
		"preflight_commitment", opts.PreflightCommitment,
	)
	if err != nil {
		return solana.Signature{}, wrapError("sendTransaction", err)
	}

	g.logger.DebugContext(ctx, "transaction submitted", "signature", sig.String())
	return sig, nil
}

// Health reports whether the node considers itself healthy.
func (g *Gateway) Health(ctx context.Context) error {
	start := time.Now()
	out, err := g.rpc.GetHealth(ctx)
	g.record(ctx, "getHealth", start, err)
	if err != nil {
		return wrapError("getHealth", err)
	}
	if out != rpc.HealthOk {
		return fmt.Errorf("getHealth: node reported %q", out)
	}
	return nil
}

// record emits the RPC metric and logs failures.
func (g *Gateway) record(ctx context.Context, method string, start time.Time, err error, attrs ...any) {
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		args := append([]any{"method", method, "endpoint", g.endpoint, "error", err}, attrs...)
		g.logger.ErrorContext(ctx, "solana rpc call failed", args...)
	}
	if g.metrics != nil {
		g.metrics.RecordRPCCall(method, status, g.endpoint, duration)
	}
}

func wrapError(method string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return &NodeError{
			Method:  method,
			Code:    rpcErr.Code,
			Message: rpcErr.Message,
			Logs:    simulationLogs(rpcErr.Data),
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}

// simulationLogs pulls program logs out of a preflight failure's data field.
func simulationLogs(data any) []string {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["logs"].([]any)
	if !ok {
		return nil
	}
	logs := make([]string, 0, len(raw))
	for _, l := range raw {
		if s, ok := l.(string); ok {
			logs = append(logs, s)
		}
	}
	return logs
}
