package protocol

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol identifiers for the static table.
const (
	UniswapV2 = "uniswap_v2"
	UniswapV3 = "uniswap_v3"
)

// Entry is one statically known contract: its protocol, its token
// pair, and the decoders it dispatches by call signature.
type Entry struct {
	Address  common.Address
	Protocol string
	Token0   common.Address
	Token1   common.Address

	decoders map[[4]byte]Decoder
}

// Decoder returns the decoder registered for a call signature.
func (e *Entry) Decoder(sig [4]byte) (Decoder, bool) {
	dec, ok := e.decoders[sig]
	return dec, ok
}

// Registry is the static protocol address table. It is populated at
// startup by the registry collaborator; the classification core only
// performs lookups.
type Registry struct {
	mu      sync.RWMutex
	entries map[common.Address]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[common.Address]*Entry)}
}

// Register adds a contract with its decoders. Registering the same
// address twice replaces the earlier entry.
func (r *Registry) Register(address common.Address, protocol string, token0, token1 common.Address, decoders ...Decoder) {
	entry := &Entry{
		Address:  address,
		Protocol: protocol,
		Token0:   token0,
		Token1:   token1,
		decoders: make(map[[4]byte]Decoder, len(decoders)),
	}
	for _, dec := range decoders {
		entry.decoders[dec.Signature()] = dec
	}

	r.mu.Lock()
	r.entries[address] = entry
	r.mu.Unlock()
}

// Lookup returns the entry for a contract address.
func (r *Registry) Lookup(address common.Address) (*Entry, bool) {
	r.mu.RLock()
	entry, ok := r.entries[address]
	r.mu.RUnlock()
	return entry, ok
}

// Contains reports whether the address is statically known.
func (r *Registry) Contains(address common.Address) bool {
	r.mu.RLock()
	_, ok := r.entries[address]
	r.mu.RUnlock()
	return ok
}

// Len returns the number of registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Tokens returns every distinct token referenced by the table, for
// metadata pre-warming.
func (r *Registry) Tokens() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[common.Address]struct{}, 2*len(r.entries))
	var tokens []common.Address
	for _, entry := range r.entries {
		for _, tok := range []common.Address{entry.Token0, entry.Token1} {
			if tok == (common.Address{}) {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
