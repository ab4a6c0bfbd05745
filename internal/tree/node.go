package tree

import (
	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
)

// Node is one vertex of a call tree. Nodes live in their Root's arena
// and reference children by arena index, so collapsing a subtree never
// invalidates an in-progress walk.
type Node struct {
	// Index is the node's position in the transaction's trace list.
	// The head node is always index 0.
	Index        uint64
	TraceAddress []int
	Address      common.Address
	Action       model.Action
	// Finalized is set once classification is terminal; later passes
	// never overwrite a finalized action.
	Finalized bool
	// Removed marks nodes pruned by deduplication or detached by a
	// subtree collapse. Removed nodes stay in the arena but are
	// excluded from every traversal.
	Removed  bool
	Children []int
}

// isPathPrefix reports whether parent is a strict prefix of child.
func isPathPrefix(parent, child []int) bool {
	if len(parent) >= len(child) {
		return false
	}
	for i, step := range parent {
		if child[i] != step {
			return false
		}
	}
	return true
}
