package wallet

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindInvalidParams       Kind = "InvalidParams"
	KindSignerNotConfigured Kind = "SignerNotConfigured"
	KindInvalidAddress      Kind = "InvalidAddress"
	KindRPC                 Kind = "RpcError"
	KindSubmission          Kind = "SubmissionError"
)

var (
	// ErrServiceClosed is returned for work submitted to, or pending in, a closed Service.
	ErrServiceClosed = errors.New("wallet service closed")

	errSignerNotConfigured = errors.New("Server signer not configured")
	errNoPublicKey         = errors.New("No public key provided")
	errZeroAddress         = errors.New("address is the all-zero key")
	errInvalidParams       = errors.New("invalid params")
	errPanicked            = errors.New("internal error while submitting transaction")
)

// Error is the error type returned by Service operations.
type Error struct {
	Kind Kind
	Op   string // "send_sol", "send_token", ...
	Err  error

	// CreateTxID is set when the recipient token account was created by a
	// separate transaction before the failure. That transaction is final.
	CreateTxID string
}

func (e *Error) Error() string {
	if e.CreateTxID != "" {
		return fmt.Sprintf("recipient token account created in %s but transfer failed: %v", e.CreateTxID, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// CreateTxIDOf returns the account-creation signature carried by err, if any.
func CreateTxIDOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.CreateTxID
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidParams(op string, reason error) *Error {
	if reason == nil {
		return newError(KindInvalidParams, op, errInvalidParams)
	}
	return newError(KindInvalidParams, op, fmt.Errorf("%w: %w", errInvalidParams, reason))
}

func invalidAddress(op, field string, err error) *Error {
	return newError(KindInvalidAddress, op, fmt.Errorf("invalid %s address: %w", field, err))
}
