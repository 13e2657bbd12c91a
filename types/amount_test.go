package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAtomic(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     int64
	}{
		{"0.01", 9, 10_000_000},
		{"1", 9, 1_000_000_000},
		{"1.00", 6, 1_000_000},
		{"0.000001", 6, 1},
	}

	for _, tc := range cases {
		got, err := ToAtomic(tc.amount, tc.decimals)
		require.NoError(t, err, tc.amount)
		assert.Equal(t, big.NewInt(tc.want), got, tc.amount)
	}

	// Fractional value below the asset's precision.
	_, err := ToAtomic("2.5", 0)
	assert.Error(t, err)
}

func TestToAtomicRejects(t *testing.T) {
	for _, amount := range []string{"", "abc", "-0.01", "0", "0.0000000001"} {
		_, err := ToAtomic(amount, 9)
		assert.Error(t, err, amount)
	}
}

func TestFromAtomic(t *testing.T) {
	assert.Equal(t, "0.01", FromAtomic(big.NewInt(10_000_000), 9))
	assert.Equal(t, "1", FromAtomic(big.NewInt(1_000_000), 6))
}

func TestParseAtomic(t *testing.T) {
	v, err := ParseAtomic("10000000")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), v)

	for _, amount := range []string{"", "1.5", "-3", "0x10"} {
		_, err := ParseAtomic(amount)
		assert.Error(t, err, amount)
	}
}
