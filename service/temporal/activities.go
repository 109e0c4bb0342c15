package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/nats"
	"github.com/brojonat/solgate/service/solana"
	"github.com/brojonat/solgate/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// ErrInvalidTransfer is returned for transfer requests that can never succeed.
var ErrInvalidTransfer = errors.New("invalid transfer request")

// TransferInput is the input to TransferWorkflow.
type TransferInput struct {
	Kind     string  `json:"kind"` // "sol" or "token"
	To       string  `json:"to"`
	Mint     string  `json:"mint,omitempty"`
	Amount   float64 `json:"amount"`
	Decimals int     `json:"decimals,omitempty"`
}

// Validate rejects requests the wallet would reject before touching the network,
// so they fail at start time instead of inside the workflow.
func (in TransferInput) Validate() error {
	decimals := solana.SOLDecimals
	switch in.Kind {
	case nats.KindSOL:
	case nats.KindToken:
		if strings.TrimSpace(in.Mint) == "" {
			return fmt.Errorf("%w: mint is required for token transfers", ErrInvalidTransfer)
		}
		mint, err := parseAddress("mint", in.Mint)
		if err != nil {
			return err
		}
		if mint.IsZero() {
			return fmt.Errorf("%w: mint must not be the all-zero key", ErrInvalidTransfer)
		}
		decimals = in.Decimals
	default:
		return fmt.Errorf("%w: kind must be %q or %q", ErrInvalidTransfer, nats.KindSOL, nats.KindToken)
	}
	if strings.TrimSpace(in.To) == "" {
		return fmt.Errorf("%w: to is required", ErrInvalidTransfer)
	}
	to, err := parseAddress("to", in.To)
	if err != nil {
		return err
	}
	// no token account can be created for the zero key
	if in.Kind == nats.KindToken && to.IsZero() {
		return fmt.Errorf("%w: to must not be the all-zero key for token transfers", ErrInvalidTransfer)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidTransfer)
	}
	if _, err := solana.ToSmallestUnit(in.Amount, decimals); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}
	return nil
}

func parseAddress(field, s string) (solanago.PublicKey, error) {
	key, err := solana.ParsePublicKey(s)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("%w: %s: %w", ErrInvalidTransfer, field, err)
	}
	return key, nil
}

// TransferOutput is the result of a completed TransferWorkflow.
type TransferOutput struct {
	TxID           string `json:"txid"`
	Amount         uint64 `json:"amount"`
	Decimals       int    `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	CreateTxID     string `json:"create_txid,omitempty"`
	ExplorerURL    string `json:"explorer_url"`
}

// WalletService is the part of wallet.Service the activities need.
// This allows for easy mocking in tests.
type WalletService interface {
	SendSOL(ctx context.Context, req wallet.SendSOLRequest) (*wallet.TransferResult, error)
	SendToken(ctx context.Context, req wallet.SendTokenRequest) (*wallet.TransferResult, error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	wallet  WalletService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(w WalletService, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		wallet:  w,
		metrics: m,
		logger:  logger,
	}
}

// ExecuteTransfer performs one transfer through the wallet service. The
// wallet's submission queue still serializes it with synchronous requests.
func (a *Activities) ExecuteTransfer(ctx context.Context, input TransferInput) (out *TransferOutput, err error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			a.metrics.RecordActivityDuration(input.Kind, status, time.Since(start).Seconds())
		}
	}()

	info := activity.GetInfo(ctx)
	a.logger.InfoContext(ctx, "executing transfer",
		"workflow_id", info.WorkflowExecution.ID,
		"kind", input.Kind,
		"to", input.To,
		"mint", input.Mint,
		"amount", input.Amount,
	)

	if err := input.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), string(wallet.KindInvalidParams), nil)
	}

	var res *wallet.TransferResult
	switch input.Kind {
	case nats.KindSOL:
		res, err = a.wallet.SendSOL(ctx, wallet.SendSOLRequest{To: input.To, AmountSOL: input.Amount})
	case nats.KindToken:
		res, err = a.wallet.SendToken(ctx, wallet.SendTokenRequest{
			To:       input.To,
			Mint:     input.Mint,
			Amount:   input.Amount,
			Decimals: input.Decimals,
		})
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "transfer failed",
			"workflow_id", info.WorkflowExecution.ID,
			"kind", input.Kind,
			"error", err,
		)
		return nil, transferError(err)
	}

	a.logger.InfoContext(ctx, "transfer submitted",
		"workflow_id", info.WorkflowExecution.ID,
		"txid", res.TxID,
		"created_account", res.CreatedAccount,
	)

	return &TransferOutput{
		TxID:           res.TxID,
		Amount:         res.Amount,
		Decimals:       res.Decimals,
		CreatedAccount: res.CreatedAccount,
		CreateTxID:     res.CreateTxID,
		ExplorerURL:    res.ExplorerURL,
	}, nil
}

// transferError converts a wallet error into an application error whose
// type is the wallet error kind. A created-but-unfunded token account is
// carried as the error's details.
func transferError(err error) error {
	kind := wallet.KindOf(err)
	if kind == "" {
		kind = wallet.KindSubmission
	}

	var opts temporal.ApplicationErrorOptions
	switch kind {
	case wallet.KindInvalidParams, wallet.KindInvalidAddress, wallet.KindSignerNotConfigured:
		opts.NonRetryable = true
	}
	if id := wallet.CreateTxIDOf(err); id != "" {
		opts.Details = []interface{}{id}
	}
	return temporal.NewApplicationErrorWithOptions(err.Error(), string(kind), opts)
}
