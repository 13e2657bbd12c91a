package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402-solana/facilitator-go/types"
)

func TestDecimalsCacheSeedsUSDC(t *testing.T) {
	c := NewDecimalsCache()

	d, ok := c.Get(types.NetworkMainnet, USDCMainnetMint)
	require.True(t, ok)
	assert.Equal(t, USDCDecimals, d)

	d, ok = c.Get(types.NetworkDevnet, USDCDevnetMint)
	require.True(t, ok)
	assert.Equal(t, USDCDecimals, d)
}

func TestDecimalsCacheKeysByNetwork(t *testing.T) {
	c := NewDecimalsCache()

	// The devnet USDC mint is not pre-seeded on mainnet.
	_, ok := c.Get(types.NetworkMainnet, USDCDevnetMint)
	assert.False(t, ok)
}

func TestDecimalsCachePut(t *testing.T) {
	c := NewDecimalsCache()
	mint := "So11111111111111111111111111111111111111112"

	_, ok := c.Get(types.NetworkDevnet, mint)
	require.False(t, ok)

	c.Put(types.NetworkDevnet, mint, 9)
	d, ok := c.Get(types.NetworkDevnet, mint)
	require.True(t, ok)
	assert.Equal(t, uint8(9), d)
}
