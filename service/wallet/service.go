// Package wallet orchestrates everything the service signs: native SOL
// transfers, SPL token transfers (creating the recipient's associated token
// account when needed) and the simulated trade.
//
// Requests are validated and their accounts derived on the caller's
// goroutine. The part that reads chain state, builds, signs and submits runs
// on a single-consumer queue, one job at a time, in FIFO order.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/solgate/service/keys"
	"github.com/brojonat/solgate/service/metrics"
	"github.com/brojonat/solgate/service/nats"
	"github.com/brojonat/solgate/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
)

// TransferMode selects how a missing recipient token account is created.
type TransferMode string

const (
	// TransferAtomic creates the account and transfers in one transaction.
	TransferAtomic TransferMode = "atomic"
	// TransferTwoStep submits the creation on its own, then the transfer.
	// If the transfer fails the account stays created.
	TransferTwoStep TransferMode = "two-step"
)

// Gateway is the part of the RPC gateway the service depends on.
type Gateway interface {
	Balance(ctx context.Context, addr solanago.PublicKey) (uint64, error)
	AccountInfo(ctx context.Context, addr solanago.PublicKey) (*solana.AccountInfo, error)
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
	SendTransaction(ctx context.Context, tx *solanago.Transaction, opts solana.SubmitOptions) (solanago.Signature, error)
}

// EventPublisher receives an event for every successful submission.
type EventPublisher interface {
	PublishTransfer(ctx context.Context, event *nats.TransferEvent) error
}

// Config holds the service's tunables.
type Config struct {
	Network string

	// FallbackPublicKey is used for balance lookups when no signer is loaded.
	FallbackPublicKey *solanago.PublicKey

	Submit       solana.SubmitOptions
	TransferMode TransferMode
	QueueSize    int
	RPCTimeout   time.Duration
}

// Service is the transfer orchestrator.
type Service struct {
	gw      Gateway
	signer  *keys.Signer // nil when signing is disabled
	cfg     Config
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	queue   *submitQueue
}

// NewService creates a Service and starts its submission worker.
// signer, events and m may be nil.
func NewService(gw Gateway, signer *keys.Signer, cfg Config, events EventPublisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.TransferMode == "" {
		cfg.TransferMode = TransferAtomic
	}
	if m != nil {
		m.SetSignerConfigured(signer != nil)
	}
	return &Service{
		gw:      gw,
		signer:  signer,
		cfg:     cfg,
		events:  events,
		metrics: m,
		logger:  logger,
		queue:   newSubmitQueue(cfg.QueueSize, m, logger),
	}
}

// Close stops the submission worker. Jobs still queued fail with ErrServiceClosed.
func (s *Service) Close() {
	s.queue.close()
}

// SignerConfigured reports whether state-changing operations are available.
func (s *Service) SignerConfigured() bool {
	return s.signer != nil
}

// PublicKey returns the signer's address, or the configured fallback.
func (s *Service) PublicKey() (solanago.PublicKey, bool) {
	if s.signer != nil {
		return s.signer.PublicKey(), true
	}
	if s.cfg.FallbackPublicKey != nil {
		return *s.cfg.FallbackPublicKey, true
	}
	return solanago.PublicKey{}, false
}

// Network returns the cluster name the service was configured for.
func (s *Service) Network() string {
	return s.cfg.Network
}

// Balance is the lamport balance of an account.
type Balance struct {
	Address  string
	Lamports uint64
	SOL      float64
}

// Balance looks up address, or the service's own key when address is empty.
// Lookups do not go through the submission queue.
func (s *Service) Balance(ctx context.Context, address string) (*Balance, error) {
	const op = "balance"

	var pk solanago.PublicKey
	if strings.TrimSpace(address) == "" {
		own, ok := s.PublicKey()
		if !ok {
			return nil, newError(KindInvalidParams, op, errNoPublicKey)
		}
		pk = own
	} else {
		parsed, err := solana.ParsePublicKey(address)
		if err != nil {
			return nil, invalidAddress(op, "account", err)
		}
		pk = parsed
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lamports, err := s.gw.Balance(ctx, pk)
	if err != nil {
		return nil, newError(KindRPC, op, err)
	}
	return &Balance{
		Address:  pk.String(),
		Lamports: lamports,
		SOL:      solana.LamportsToSOL(lamports),
	}, nil
}

// SendSOLRequest is a native transfer in SOL.
type SendSOLRequest struct {
	To        string
	AmountSOL float64
}

// SendTokenRequest is an SPL token transfer in whole-token units.
type SendTokenRequest struct {
	To       string
	Mint     string
	Amount   float64
	Decimals int
}

// TransferResult describes a submitted transfer.
type TransferResult struct {
	TxID     string `json:"txid"`
	Amount   uint64 `json:"amount"` // base units
	Decimals int    `json:"decimals"`

	CreatedAccount bool   `json:"created_account"`
	CreateTxID     string `json:"create_txid,omitempty"` // two-step mode only

	ExplorerURL string `json:"explorer_url"`
}

// SendSOL transfers lamports from the signer to req.To.
func (s *Service) SendSOL(ctx context.Context, req SendSOLRequest) (res *TransferResult, err error) {
	const op = "send_sol"
	defer s.recordTransfer(nats.KindSOL, time.Now(), &err)

	signer, err := s.requireSigner(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.To) == "" {
		return nil, invalidParams(op, nil)
	}
	to, err := solana.ParsePublicKey(req.To)
	if err != nil {
		return nil, invalidAddress(op, "recipient", err)
	}
	lamports, err := solana.ToSmallestUnit(req.AmountSOL, solana.SOLDecimals)
	if err != nil {
		return nil, invalidParams(op, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sig solanago.Signature
	err = s.queue.do(ctx, func(ctx context.Context) error {
		ix := system.NewTransferInstruction(lamports, signer.PublicKey(), to).Build()
		var err error
		sig, err = s.submit(ctx, op, "transfer", signer, ix)
		return err
	})
	if err != nil {
		return nil, asError(op, err)
	}

	res = &TransferResult{
		TxID:        sig.String(),
		Amount:      lamports,
		Decimals:    solana.SOLDecimals,
		ExplorerURL: solana.ExplorerURL(s.cfg.Network, sig.String()),
	}
	s.publish(ctx, &nats.TransferEvent{
		Kind:      nats.KindSOL,
		Signature: res.TxID,
		From:      signer.PublicKey().String(),
		To:        to.String(),
		Amount:    lamports,
		Decimals:  solana.SOLDecimals,
	})
	return res, nil
}

// tokenTransfer is a validated token transfer with its accounts derived.
type tokenTransfer struct {
	owner        solanago.PublicKey
	to           solanago.PublicKey
	mint         solanago.PublicKey
	senderATA    solanago.PublicKey
	recipientATA solanago.PublicKey
	amount       uint64

	createIx   solanago.Instruction // used only when the recipient account is missing
	transferIx solanago.Instruction
}

// SendToken transfers req.Amount of req.Mint from the signer's associated
// token account to the recipient's, creating the recipient's account first
// when it does not exist.
func (s *Service) SendToken(ctx context.Context, req SendTokenRequest) (res *TransferResult, err error) {
	const op = "send_token"
	defer s.recordTransfer(nats.KindToken, time.Now(), &err)

	signer, err := s.requireSigner(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Mint) == "" {
		return nil, invalidParams(op, nil)
	}
	to, err := solana.ParsePublicKey(req.To)
	if err != nil {
		return nil, invalidAddress(op, "recipient", err)
	}
	if to.IsZero() {
		return nil, invalidAddress(op, "recipient", errZeroAddress)
	}
	mint, err := solana.ParsePublicKey(req.Mint)
	if err != nil {
		return nil, invalidAddress(op, "mint", err)
	}
	if mint.IsZero() {
		return nil, invalidAddress(op, "mint", errZeroAddress)
	}
	amount, err := solana.ToSmallestUnit(req.Amount, req.Decimals)
	if err != nil {
		return nil, invalidParams(op, err)
	}

	p := tokenTransfer{owner: signer.PublicKey(), to: to, mint: mint, amount: amount}
	if p.senderATA, err = solana.AssociatedTokenAddress(p.owner, mint); err != nil {
		return nil, invalidAddress(op, "mint", err)
	}
	if p.recipientATA, err = solana.AssociatedTokenAddress(to, mint); err != nil {
		return nil, invalidAddress(op, "recipient", err)
	}
	if p.transferIx, err = token.NewTransferInstruction(amount, p.senderATA, p.recipientATA, p.owner, nil).ValidateAndBuild(); err != nil {
		return nil, invalidAddress(op, "recipient", err)
	}
	if p.createIx, err = associatedtokenaccount.NewCreateInstruction(p.owner, to, mint).ValidateAndBuild(); err != nil {
		return nil, invalidAddress(op, "recipient", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res = &TransferResult{Amount: amount, Decimals: req.Decimals}
	err = s.queue.do(ctx, func(ctx context.Context) error {
		return s.transferToken(ctx, op, signer, p, res)
	})
	if err != nil {
		return nil, asError(op, err)
	}

	res.ExplorerURL = solana.ExplorerURL(s.cfg.Network, res.TxID)
	s.publish(ctx, &nats.TransferEvent{
		Kind:            nats.KindToken,
		Signature:       res.TxID,
		From:            p.owner.String(),
		To:              to.String(),
		Mint:            mint.String(),
		Amount:          amount,
		Decimals:        req.Decimals,
		CreatedAccount:  res.CreatedAccount,
		CreateSignature: res.CreateTxID,
	})
	return res, nil
}

// transferToken runs on the submission queue.
func (s *Service) transferToken(ctx context.Context, op string, signer *keys.Signer, p tokenTransfer, out *TransferResult) error {
	info, err := s.gw.AccountInfo(ctx, p.recipientATA)
	if err != nil {
		return newError(KindRPC, op, err)
	}

	if info != nil {
		s.logger.DebugContext(ctx, "recipient token account exists", "account", p.recipientATA.String())
		sig, err := s.submit(ctx, op, "transfer", signer, p.transferIx)
		if err != nil {
			return err
		}
		out.TxID = sig.String()
		return nil
	}

	s.logger.InfoContext(ctx, "creating recipient token account",
		"account", p.recipientATA.String(),
		"owner", p.to.String(),
		"mint", p.mint.String(),
		"mode", s.cfg.TransferMode,
	)

	if s.cfg.TransferMode == TransferTwoStep {
		createSig, err := s.submit(ctx, op, "create_account", signer, p.createIx)
		if err != nil {
			return err
		}
		out.CreatedAccount = true
		out.CreateTxID = createSig.String()
		s.recordAccountCreated()

		sig, err := s.submit(ctx, op, "transfer", signer, p.transferIx)
		if err != nil {
			s.logger.ErrorContext(ctx, "transfer failed after recipient token account was created",
				"create_signature", out.CreateTxID,
				"account", p.recipientATA.String(),
				"error", err,
			)
			return &Error{Kind: KindSubmission, Op: op, Err: unwrapError(err), CreateTxID: out.CreateTxID}
		}
		out.TxID = sig.String()
		return nil
	}

	sig, err := s.submit(ctx, op, "create_and_transfer", signer, p.createIx, p.transferIx)
	if err != nil {
		return err
	}
	out.TxID = sig.String()
	out.CreatedAccount = true
	s.recordAccountCreated()
	return nil
}

// TradeRequest names the pair being traded. Only a marker self-transfer is
// submitted; no swap is routed.
type TradeRequest struct {
	FromToken string
	ToToken   string
	Amount    float64
}

// TradeResult is the outcome of a simulated trade.
type TradeResult struct {
	Message   string
	Signature string
	Explorer  string
}

// Trade submits a self-transfer of floor(amount * 1e9) lamports as an
// on-chain record of the requested trade.
func (s *Service) Trade(ctx context.Context, req TradeRequest) (res *TradeResult, err error) {
	const op = "trade"
	defer s.recordTransfer(nats.KindTrade, time.Now(), &err)

	signer, err := s.requireSigner(op)
	if err != nil {
		return nil, err
	}
	from := strings.TrimSpace(req.FromToken)
	to := strings.TrimSpace(req.ToToken)
	if from == "" || to == "" {
		return nil, invalidParams(op, errors.New("from_token and to_token are required"))
	}
	if strings.EqualFold(from, to) {
		return nil, invalidParams(op, errors.New("from_token and to_token must differ"))
	}
	lamports, err := solana.ToSmallestUnit(req.Amount, solana.SOLDecimals)
	if err != nil {
		return nil, invalidParams(op, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	self := signer.PublicKey()
	var sig solanago.Signature
	err = s.queue.do(ctx, func(ctx context.Context) error {
		ix := system.NewTransferInstruction(lamports, self, self).Build()
		var err error
		sig, err = s.submit(ctx, op, "trade_marker", signer, ix)
		return err
	})
	if err != nil {
		return nil, asError(op, err)
	}

	s.publish(ctx, &nats.TransferEvent{
		Kind:      nats.KindTrade,
		Signature: sig.String(),
		From:      self.String(),
		To:        self.String(),
		Amount:    lamports,
		Decimals:  solana.SOLDecimals,
	})
	return &TradeResult{
		Message:   fmt.Sprintf("Simulated trade of %v %s -> %s recorded on-chain", req.Amount, from, to),
		Signature: sig.String(),
		Explorer:  solana.ExplorerURL(s.cfg.Network, sig.String()),
	}, nil
}

// submit builds, signs and sends one transaction. Callers must be running
// on the submission queue.
func (s *Service) submit(ctx context.Context, op, purpose string, signer *keys.Signer, instrs ...solanago.Instruction) (solanago.Signature, error) {
	blockhash, err := s.gw.LatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, newError(KindRPC, op, err)
	}

	tx, err := solanago.NewTransaction(instrs, blockhash, solanago.TransactionPayer(signer.PublicKey()))
	if err != nil {
		return solanago.Signature{}, newError(KindSubmission, op, fmt.Errorf("failed to build transaction: %w", err))
	}
	if err := signer.Sign(tx); err != nil {
		return solanago.Signature{}, newError(KindSubmission, op, err)
	}

	sig, err := s.gw.SendTransaction(ctx, tx, s.cfg.Submit)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordSubmission(purpose, status)
	}
	if err != nil {
		return solanago.Signature{}, newError(KindSubmission, op, err)
	}

	s.logger.InfoContext(ctx, "transaction submitted",
		"op", op,
		"purpose", purpose,
		"signature", sig.String(),
	)
	return sig, nil
}

func (s *Service) requireSigner(op string) (*keys.Signer, error) {
	if s.signer == nil {
		return nil, newError(KindSignerNotConfigured, op, errSignerNotConfigured)
	}
	return s.signer, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RPCTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RPCTimeout)
	}
	return context.WithCancel(ctx)
}

// publish emits event. Failures are logged and never fail the transfer.
func (s *Service) publish(ctx context.Context, event *nats.TransferEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Network = s.cfg.Network
	event.SubmittedAt = time.Now().UTC()

	if err := s.events.PublishTransfer(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish transfer event",
			"signature", event.Signature,
			"kind", event.Kind,
			"error", err,
		)
	}
}

func (s *Service) recordTransfer(kind string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if *errp != nil {
		status = string(KindOf(*errp))
		if status == "" {
			status = "error"
		}
	}
	s.metrics.RecordTransfer(kind, status, time.Since(start).Seconds())
}

func (s *Service) recordAccountCreated() {
	if s.metrics != nil {
		s.metrics.RecordTokenAccountCreated(string(s.cfg.TransferMode))
	}
}

// asError makes sure everything leaving the service is a *Error.
func asError(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindRPC, op, err)
	}
	return newError(KindSubmission, op, err)
}

func unwrapError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}
