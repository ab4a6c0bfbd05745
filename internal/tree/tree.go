package tree

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"mevscope/internal/model"
)

// Tree is the forest of classified call trees for one block. It is
// mutated by the inference and deduplication passes, then finalized
// and shared read-only across consumers.
type Tree struct {
	Roots  []*Root
	Header *types.Header

	finalized bool
}

// NewTree assembles the per-transaction roots of one block.
func NewTree(roots []*Root, header *types.Header) *Tree {
	return &Tree{Roots: roots, Header: header}
}

// Finalized reports whether the tree is closed to further passes.
func (t *Tree) Finalized() bool {
	return t.finalized
}

// Finalize marks every live node terminal and closes the tree.
func (t *Tree) Finalize() {
	for _, root := range t.Roots {
		root.finalize()
	}
	t.finalized = true
}

// GetRoot returns the call tree for one transaction hash.
func (t *Tree) GetRoot(txHash common.Hash) *Root {
	for _, root := range t.Roots {
		if root.TxHash == txHash {
			return root
		}
	}
	return nil
}

// GasDetails returns the gas accounting for one transaction hash.
func (t *Tree) GasDetails(txHash common.Hash) *model.GasDetails {
	root := t.GetRoot(txHash)
	if root == nil {
		return nil
	}
	return &root.GasDetails
}

// CollectAll gathers, per transaction, the actions of every live node
// matching the predicate. This is the traversal contract inspectors
// use to query the finalized tree.
func (t *Tree) CollectAll(pred func(n *Node) bool) map[common.Hash][]model.Action {
	collected := make(map[common.Hash][]model.Action)
	for _, root := range t.Roots {
		var actions []model.Action
		root.Inspect(func(n *Node) {
			if pred(n) {
				actions = append(actions, n.Action)
			}
		})
		if len(actions) > 0 {
			collected[root.TxHash] = actions
		}
	}
	return collected
}

// Discovered is one dynamically inferred exchange address with its
// token pair, surfaced by DynClassify for cache registration.
type Discovered struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
}

// DynClassify walks every live node, offering eligible ones to the
// transform for in-place reclassification. find decides eligibility
// from the node's address and its subtree's actions; transform may
// replace the node's action and collapse its children, returning a
// non-nil Discovered when a new exchange was identified. All
// discoveries are returned for a single batched cache insert.
func (t *Tree) DynClassify(find func(address common.Address, subActions []model.Action) bool, transform func(r *Root, idx int) *Discovered) []Discovered {
	var discovered []Discovered
	for _, root := range t.Roots {
		t.dynClassifyNode(root, 0, find, transform, &discovered)
	}
	return discovered
}

func (t *Tree) dynClassifyNode(root *Root, idx int, find func(common.Address, []model.Action) bool, transform func(*Root, int) *Discovered, discovered *[]Discovered) {
	node := &root.Nodes[idx]
	if node.Removed {
		return
	}

	if !node.Finalized && find(node.Address, root.SubtreeActions(idx)) {
		if d := transform(root, idx); d != nil {
			*discovered = append(*discovered, *d)
		}
	}

	// The transform may have collapsed the children; re-read them.
	for _, childIdx := range root.Nodes[idx].Children {
		t.dynClassifyNode(root, childIdx, find, transform, discovered)
	}
}

// Records flattens the live forest into storage records.
func (t *Tree) Records(blockNumber uint64) []model.ActionRecord {
	var records []model.ActionRecord
	for _, root := range t.Roots {
		root.Inspect(func(n *Node) {
			records = append(records, model.NewActionRecord(blockNumber, root.TxHash, n.Index, n.TraceAddress, n.Address, n.Action, n.Finalized))
		})
	}
	return records
}
