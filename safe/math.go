package safe

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow is returned when a result would exceed the upper bound.
	ErrOverflow = errors.New("overflow")
	// ErrUnderflow is returned when a result would fall below the lower bound.
	ErrUnderflow = errors.New("underflow")
)

// int128Bits is the width of the signed integer range emulated by Int128Bounds.
const int128Bits = 127

// Bounds is an inclusive decimal range.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Int128Bounds returns the range of a signed 128-bit integer scaled by 10^exp.
//
// Example:
//
//	bounds := safe.Int128Bounds(-4) // [-(2^127) / 10^4, (2^127 - 1) / 10^4]
func Int128Bounds(exp int32) Bounds {
	limit := new(big.Int).Lsh(big.NewInt(1), int128Bits)

	upper := new(big.Int).Sub(limit, big.NewInt(1))
	lower := new(big.Int).Neg(limit)

	return Bounds{
		Min: decimal.NewFromBigInt(lower, exp),
		Max: decimal.NewFromBigInt(upper, exp),
	}
}

// Contains reports whether value lies inside the bounds.
func (b Bounds) Contains(value decimal.Decimal) bool {
	return !value.LessThan(b.Min) && !value.GreaterThan(b.Max)
}

// Add returns a+delta, or ErrOverflow/ErrUnderflow if the sum leaves the bounds.
// The inputs are never modified.
//
// Example:
//
//	next, err := bounds.Add(balance, amount)
//	if err != nil {
//	    return fmt.Errorf("credit: %w", err)
//	}
func (b Bounds) Add(a, delta decimal.Decimal) (decimal.Decimal, error) {
	return b.check(a.Add(delta))
}

// Sub returns a-delta, or ErrOverflow/ErrUnderflow if the difference leaves the bounds.
func (b Bounds) Sub(a, delta decimal.Decimal) (decimal.Decimal, error) {
	return b.check(a.Sub(delta))
}

func (b Bounds) check(result decimal.Decimal) (decimal.Decimal, error) {
	if result.GreaterThan(b.Max) {
		return decimal.Zero, ErrOverflow
	}

	if result.LessThan(b.Min) {
		return decimal.Zero, ErrUnderflow
	}

	return result, nil
}
