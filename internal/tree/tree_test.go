package tree

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"mevscope/internal/model"
)

func TestDynClassifySkipsFinalizedNodes(t *testing.T) {
	head := Node{Index: 0, Action: model.Unclassified{}, Finalized: true}
	root := NewRoot(head, common.HexToHash("0x01"), false, model.GasDetails{})
	root.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: model.Unclassified{}})

	tr := NewTree([]*Root{root}, &types.Header{})

	var offered []uint64
	tr.DynClassify(
		func(common.Address, []model.Action) bool { return true },
		func(r *Root, idx int) *Discovered {
			offered = append(offered, r.Nodes[idx].Index)
			return nil
		},
	)

	if len(offered) != 1 || offered[0] != 1 {
		t.Fatalf("offered nodes: got %v, want [1]", offered)
	}
}

func TestDynClassifySurvivesCollapse(t *testing.T) {
	head := Node{Index: 0, Action: model.Unclassified{}}
	root := NewRoot(head, common.HexToHash("0x02"), false, model.GasDetails{})
	root.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: model.Unclassified{}})
	root.Insert(Node{Index: 2, TraceAddress: []int{0, 0}, Action: model.Unclassified{}})

	tr := NewTree([]*Root{root}, &types.Header{})

	var offered []uint64
	tr.DynClassify(
		func(common.Address, []model.Action) bool { return true },
		func(r *Root, idx int) *Discovered {
			offered = append(offered, r.Nodes[idx].Index)
			if r.Nodes[idx].Index == 0 {
				r.CollapseChildren(idx)
				r.Nodes[idx].Action = model.Swap{}
			}
			return nil
		},
	)

	// The collapse at the head must stop the walk from descending into
	// detached nodes.
	if len(offered) != 1 || offered[0] != 0 {
		t.Fatalf("offered nodes: got %v, want [0]", offered)
	}
}

func TestFinalizeClosesTree(t *testing.T) {
	head := Node{Index: 0, Action: model.Unclassified{}}
	root := NewRoot(head, common.HexToHash("0x03"), false, model.GasDetails{})
	root.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: model.Transfer{}})

	tr := NewTree([]*Root{root}, &types.Header{})
	if tr.Finalized() {
		t.Fatalf("tree finalized before Finalize")
	}

	tr.Finalize()
	if !tr.Finalized() {
		t.Fatalf("tree not finalized after Finalize")
	}
	tr.Roots[0].Inspect(func(n *Node) {
		if !n.Finalized {
			t.Fatalf("node %d not finalized", n.Index)
		}
	})
}

func TestCollectAllGroupsByTx(t *testing.T) {
	hashA := common.HexToHash("0x0a")
	hashB := common.HexToHash("0x0b")

	rootA := NewRoot(Node{Index: 0, Action: model.Transfer{}}, hashA, false, model.GasDetails{})
	rootB := NewRoot(Node{Index: 0, Action: model.Unclassified{}}, hashB, false, model.GasDetails{})
	rootB.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: model.Transfer{}})

	tr := NewTree([]*Root{rootA, rootB}, &types.Header{})

	collected := tr.CollectAll(func(n *Node) bool {
		return n.Action.Kind() == model.KindTransfer
	})

	if len(collected) != 2 {
		t.Fatalf("tx count: got %d, want 2", len(collected))
	}
	if len(collected[hashA]) != 1 || len(collected[hashB]) != 1 {
		t.Fatalf("per-tx actions: %d / %d", len(collected[hashA]), len(collected[hashB]))
	}
}

func TestRecordsSkipRemovedNodes(t *testing.T) {
	root := NewRoot(Node{Index: 0, Action: model.Unclassified{}}, common.HexToHash("0x0c"), false, model.GasDetails{})
	root.Insert(Node{Index: 1, TraceAddress: []int{0}, Action: model.Transfer{}})
	root.Insert(Node{Index: 2, TraceAddress: []int{1}, Action: model.Transfer{}})
	root.removeByIndex(2)

	tr := NewTree([]*Root{root}, &types.Header{})
	records := tr.Records(77)

	if len(records) != 2 {
		t.Fatalf("record count: got %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.BlockNumber != 77 {
			t.Fatalf("block number: got %d", rec.BlockNumber)
		}
		if rec.NodeIndex == 2 {
			t.Fatalf("removed node surfaced in records")
		}
	}
}
