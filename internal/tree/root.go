package tree

import (
	"github.com/ethereum/go-ethereum/common"

	"mevscope/internal/model"
)

// Root is the call tree of one transaction. Nodes[0] is the head (the
// outermost call); all tree edges are arena indices into Nodes.
type Root struct {
	TxHash     common.Hash
	Private    bool
	GasDetails model.GasDetails
	Nodes      []Node
}

// NewRoot builds a Root around its head node.
func NewRoot(head Node, txHash common.Hash, private bool, gas model.GasDetails) *Root {
	return &Root{
		TxHash:     txHash,
		Private:    private,
		GasDetails: gas,
		Nodes:      []Node{head},
	}
}

// Head returns the outermost call's node.
func (r *Root) Head() *Node {
	return &r.Nodes[0]
}

// Insert appends a node as a child of the deepest existing node whose
// trace address is a strict prefix of the new node's path. Records
// arrive in execution order, so the parent always precedes the child.
func (r *Root) Insert(node Node) {
	cur := 0
	for {
		descended := false
		for _, childIdx := range r.Nodes[cur].Children {
			child := &r.Nodes[childIdx]
			if child.Removed {
				continue
			}
			if isPathPrefix(child.TraceAddress, node.TraceAddress) {
				cur = childIdx
				descended = true
				break
			}
		}
		if !descended {
			break
		}
	}

	idx := len(r.Nodes)
	r.Nodes = append(r.Nodes, node)
	r.Nodes[cur].Children = append(r.Nodes[cur].Children, idx)
}

// SubtreeActions returns the actions of the subtree rooted at idx,
// including the node's own action, in depth-first order.
func (r *Root) SubtreeActions(idx int) []model.Action {
	var actions []model.Action
	r.walk(idx, func(n *Node) {
		actions = append(actions, n.Action)
	})
	return actions
}

// CollapseChildren detaches the entire subtree below idx. The node's
// descendants are marked removed and its child list cleared; arena
// entries are kept so iteration indices stay stable.
func (r *Root) CollapseChildren(idx int) {
	for _, childIdx := range r.Nodes[idx].Children {
		r.walk(childIdx, func(n *Node) {
			n.Removed = true
		})
	}
	r.Nodes[idx].Children = nil
}

// ActionRef pairs a node's sequence index with its classified action,
// for deduplication searches.
type ActionRef struct {
	Index  uint64
	Action model.Action
}

// RemoveDuplicates prunes nodes whose actions are already subsumed by
// a higher-level classified action. isPrimary selects the subsuming
// nodes; findDupes inspects every other live node's action and returns
// the sequence indices to prune. Running the pass twice is a no-op the
// second time: pruned nodes are no longer offered as candidates.
func (r *Root) RemoveDuplicates(isPrimary func(n *Node) bool, findDupes func(primary *Node, others []ActionRef) []uint64) {
	for i := range r.Nodes {
		primary := &r.Nodes[i]
		if primary.Removed || !isPrimary(primary) {
			continue
		}

		others := make([]ActionRef, 0, len(r.Nodes)-1)
		for j := range r.Nodes {
			if j == i || r.Nodes[j].Removed {
				continue
			}
			others = append(others, ActionRef{Index: r.Nodes[j].Index, Action: r.Nodes[j].Action})
		}

		for _, seq := range findDupes(primary, others) {
			r.removeByIndex(seq)
		}
	}
}

func (r *Root) removeByIndex(seq uint64) {
	for i := range r.Nodes {
		if r.Nodes[i].Index == seq {
			r.Nodes[i].Removed = true
			return
		}
	}
}

// Inspect walks the live tree depth-first from the head.
func (r *Root) Inspect(fn func(n *Node)) {
	r.walk(0, fn)
}

func (r *Root) walk(idx int, fn func(n *Node)) {
	node := &r.Nodes[idx]
	if node.Removed {
		return
	}
	fn(node)
	for _, childIdx := range node.Children {
		r.walk(childIdx, fn)
	}
}

func (r *Root) finalize() {
	for i := range r.Nodes {
		if !r.Nodes[i].Removed {
			r.Nodes[i].Finalized = true
		}
	}
}
