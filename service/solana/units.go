package solana

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// SOLDecimals is the number of decimal places between SOL and lamports.
const SOLDecimals = 9

// MaxDecimals is the largest decimals value a token mint can declare.
const MaxDecimals = 255

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrInvalidDecimals   = errors.New("decimals must be between 0 and 255")
	ErrAmountTooSmall    = errors.New("amount is smaller than one base unit")
	ErrAmountOverflow    = errors.New("amount does not fit in 64 bits")
)

// ToSmallestUnit converts a human amount to base units, floor(amount * 10^decimals).
// The float is read through its shortest decimal representation, so 0.01 at 9
// decimals is exactly 10_000_000. The result is always truncated, never rounded up.
func ToSmallestUnit(amount float64, decimals int) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, ErrNonPositiveAmount
	}
	if decimals < 0 || decimals > MaxDecimals {
		return 0, fmt.Errorf("%w, got %d", ErrInvalidDecimals, decimals)
	}

	units := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	if units.Sign() <= 0 {
		return 0, ErrAmountTooSmall
	}

	n := units.BigInt()
	if !n.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return n.Uint64(), nil
}

// LamportsToSOL converts lamports to SOL for display.
func LamportsToSOL(lamports uint64) float64 {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -SOLDecimals).InexactFloat64()
}
