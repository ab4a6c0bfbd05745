package classifier

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/tree"
)

// TokenPair is the inferred token pair of a dynamic exchange.
type TokenPair struct {
	Token0 common.Address
	Token1 common.Address
}

// DynProtocolCache maps dynamically discovered exchange addresses to
// their token pairs. It is process-wide for the lifetime of the
// service and injected into each Classifier, so tests get isolated
// instances. Entries are only ever added, never evicted.
type DynProtocolCache struct {
	mu    sync.RWMutex
	pairs map[common.Address]TokenPair
}

func NewDynProtocolCache() *DynProtocolCache {
	return &DynProtocolCache{pairs: make(map[common.Address]TokenPair)}
}

// Get returns the cached token pair for an address.
func (c *DynProtocolCache) Get(address common.Address) (TokenPair, bool) {
	c.mu.RLock()
	pair, ok := c.pairs[address]
	c.mu.RUnlock()
	return pair, ok
}

// Snapshot copies the current mappings under a single read
// acquisition. An inference pass does all its lookups against one
// snapshot, so mid-pass discoveries by concurrent passes become
// visible only to later passes.
func (c *DynProtocolCache) Snapshot() map[common.Address]TokenPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make(map[common.Address]TokenPair, len(c.pairs))
	for addr, pair := range c.pairs {
		snapshot[addr] = pair
	}
	return snapshot
}

// InsertBatch registers newly discovered exchanges under a single
// write acquisition.
func (c *DynProtocolCache) InsertBatch(discovered []tree.Discovered) {
	if len(discovered) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range discovered {
		c.pairs[d.Address] = TokenPair{Token0: d.Token0, Token1: d.Token1}
	}
}

// Len returns the number of cached exchanges.
func (c *DynProtocolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pairs)
}

// Records flattens the cache for persistence by a storage collaborator.
func (c *DynProtocolCache) Records() []tree.Discovered {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]tree.Discovered, 0, len(c.pairs))
	for addr, pair := range c.pairs {
		out = append(out, tree.Discovered{Address: addr, Token0: pair.Token0, Token1: pair.Token1})
	}
	return out
}
