package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Meta is the metadata a decoder needs to scale raw token amounts.
type Meta struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Resolver resolves token metadata from already-materialized state.
// The classification core never performs I/O: implementations backing
// onto the chain pre-warm a StaticResolver before a block is
// classified.
type Resolver interface {
	Meta(address common.Address) (Meta, error)
}

// StaticResolver is an in-memory resolver used by the core and tests.
type StaticResolver struct {
	mu    sync.RWMutex
	metas map[common.Address]Meta
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{metas: make(map[common.Address]Meta)}
}

// Set registers metadata for a token.
func (r *StaticResolver) Set(meta Meta) {
	r.mu.Lock()
	r.metas[meta.Address] = meta
	r.mu.Unlock()
}

// Meta returns metadata for a token, or an error for unknown tokens.
func (r *StaticResolver) Meta(address common.Address) (Meta, error) {
	r.mu.RLock()
	meta, ok := r.metas[address]
	r.mu.RUnlock()
	if !ok {
		return Meta{}, fmt.Errorf("unknown token: %s", address.Hex())
	}
	return meta, nil
}

// Len returns the number of registered tokens.
func (r *StaticResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metas)
}
