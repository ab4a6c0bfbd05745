package tree

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"mevscope/internal/model"
)

func newTestRoot(paths ...[]int) *Root {
	head := Node{Index: 0, TraceAddress: nil, Action: model.Unclassified{}}
	root := NewRoot(head, common.HexToHash("0x01"), false, model.GasDetails{})
	for i, path := range paths {
		root.Insert(Node{Index: uint64(i + 1), TraceAddress: path, Action: model.Unclassified{}})
	}
	return root
}

func TestInsertBuildsPrefixTree(t *testing.T) {
	root := newTestRoot([]int{0}, []int{0, 0}, []int{0, 1}, []int{1})

	if got := len(root.Nodes); got != 5 {
		t.Fatalf("node count: got %d, want 5", got)
	}

	head := root.Head()
	if len(head.Children) != 2 {
		t.Fatalf("head children: got %v", head.Children)
	}

	first := &root.Nodes[head.Children[0]]
	if len(first.TraceAddress) != 1 || first.TraceAddress[0] != 0 {
		t.Fatalf("first child path: got %v", first.TraceAddress)
	}
	if len(first.Children) != 2 {
		t.Fatalf("nested children: got %v", first.Children)
	}

	// Every child path must extend its parent's path.
	root.Inspect(func(n *Node) {
		for _, childIdx := range n.Children {
			child := &root.Nodes[childIdx]
			if !isPathPrefix(n.TraceAddress, child.TraceAddress) {
				t.Fatalf("parent %v does not prefix child %v", n.TraceAddress, child.TraceAddress)
			}
		}
	})
}

func TestInsertAttachesToDeepestPrefix(t *testing.T) {
	root := newTestRoot([]int{2}, []int{2, 1}, []int{2, 1, 0})

	cur := root.Head()
	for depth := 1; depth <= 3; depth++ {
		if len(cur.Children) != 1 {
			t.Fatalf("depth %d: children %v", depth, cur.Children)
		}
		cur = &root.Nodes[cur.Children[0]]
		if len(cur.TraceAddress) != depth {
			t.Fatalf("depth %d: path %v", depth, cur.TraceAddress)
		}
	}
}

func TestCollapseChildren(t *testing.T) {
	root := newTestRoot([]int{0}, []int{0, 0}, []int{1})

	target := root.Head().Children[0]
	root.CollapseChildren(target)

	if root.Nodes[target].Removed {
		t.Fatalf("collapsed node itself must stay live")
	}
	if len(root.Nodes[target].Children) != 0 {
		t.Fatalf("children not cleared: %v", root.Nodes[target].Children)
	}

	var live int
	root.Inspect(func(n *Node) { live++ })
	if live != 3 {
		t.Fatalf("live nodes after collapse: got %d, want 3", live)
	}
}

func TestRemoveDuplicatesIsIdempotent(t *testing.T) {
	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	swap := model.Swap{TokenIn: tokenA, AmountIn: decimal.NewFromInt(5)}
	transfer := model.Transfer{Token: tokenA, Amount: decimal.NewFromInt(5)}

	head := Node{Index: 0, Action: swap}
	root := NewRoot(head, common.HexToHash("0x02"), false, model.GasDetails{})
	root.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: transfer})
	root.Insert(Node{Index: 2, TraceAddress: []int{1}, Action: model.Unclassified{}})

	prune := func() {
		root.RemoveDuplicates(
			func(n *Node) bool {
				_, ok := n.Action.(model.Swap)
				return ok
			},
			func(primary *Node, others []ActionRef) []uint64 {
				s := primary.Action.(model.Swap)
				var dupes []uint64
				for _, ref := range others {
					tr, ok := ref.Action.(model.Transfer)
					if ok && tr.Token == s.TokenIn && tr.Amount.Equal(s.AmountIn) {
						dupes = append(dupes, ref.Index)
					}
				}
				return dupes
			},
		)
	}

	countLive := func() int {
		var live int
		root.Inspect(func(n *Node) { live++ })
		return live
	}

	prune()
	if got := countLive(); got != 2 {
		t.Fatalf("live after first pass: got %d, want 2", got)
	}
	prune()
	if got := countLive(); got != 2 {
		t.Fatalf("live after second pass: got %d, want 2", got)
	}
}

func TestSubtreeActionsSkipsRemoved(t *testing.T) {
	root := newTestRoot([]int{0}, []int{0, 0}, []int{1})

	if got := len(root.SubtreeActions(0)); got != 4 {
		t.Fatalf("subtree size: got %d, want 4", got)
	}

	root.CollapseChildren(root.Head().Children[0])
	if got := len(root.SubtreeActions(0)); got != 3 {
		t.Fatalf("subtree size after collapse: got %d, want 3", got)
	}
}
