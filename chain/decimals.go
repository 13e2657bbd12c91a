package chain

import (
	"sync"

	"github.com/x402-solana/facilitator-go/types"
)

// USDC mint addresses, pre-seeded so the common stablecoin path never hits
// the chain for a decimals lookup.
const (
	USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDevnetMint  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

	USDCDecimals uint8 = 6
)

// DecimalsCache maps (network, mint) to token decimals. It is write-rarely,
// read-often; entries are never evicted. The cache is advisory only: a
// stale or missing entry costs one RPC, nothing more.
type DecimalsCache struct {
	mu      sync.RWMutex
	entries map[decimalsKey]uint8
}

type decimalsKey struct {
	network types.Network
	mint    string
}

// NewDecimalsCache returns a cache seeded with the known USDC mints.
func NewDecimalsCache() *DecimalsCache {
	return &DecimalsCache{
		entries: map[decimalsKey]uint8{
			{types.NetworkMainnet, USDCMainnetMint}: USDCDecimals,
			{types.NetworkDevnet, USDCDevnetMint}:   USDCDecimals,
		},
	}
}

// Get returns the cached decimals for a mint on a network.
func (c *DecimalsCache) Get(network types.Network, mint string) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[decimalsKey{network, mint}]
	return d, ok
}

// Put records the decimals for a mint on a network.
func (c *DecimalsCache) Put(network types.Network, mint string, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[decimalsKey{network, mint}] = decimals
}
