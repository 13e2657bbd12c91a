package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToAtomic converts a human-readable decimal amount to atomic units at the
// given precision. "0.01" with 9 decimals becomes 10_000_000 lamports.
func ToAtomic(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %q", amount)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromAtomic formats atomic units back to a human-readable decimal string.
func FromAtomic(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseAtomic parses a decimal string of atomic units (no fractional part).
func ParseAtomic(amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid atomic amount %q", amount)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("atomic amount must not be negative, got %q", amount)
	}
	return v, nil
}
