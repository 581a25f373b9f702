package payment

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// MaxMinorUnits caps a single charge.
const MaxMinorUnits int64 = 1_000_000_000

var (
	decimalRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d{1,3})?$`)
	hundred   = big.NewRat(100, 1)
	half      = big.NewRat(1, 2)
)

// MinorUnits converts a decimal amount to minor units, rounding half up on
// the exact decimal value: "10.005" -> 1001, "45.005" -> 4501.
func MinorUnits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if !decimalRe.MatchString(amount) {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, amount)
	}
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, amount)
	}
	if r.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, amount)
	}

	r.Mul(r, hundred)
	r.Add(r, half)
	// positive, so truncating division is floor
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if !q.IsInt64() || q.Int64() >= MaxMinorUnits {
		return 0, fmt.Errorf("%w: too large, got %s", ErrInvalidAmount, amount)
	}
	if q.Sign() == 0 {
		return 0, fmt.Errorf("%w: rounds to zero, got %s", ErrInvalidAmount, amount)
	}
	return q.Int64(), nil
}
