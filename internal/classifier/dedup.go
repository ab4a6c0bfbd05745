package classifier

import (
	"mevscope/internal/model"
	"mevscope/internal/tree"
)

// dedupSwaps prunes standalone transfers already accounted for by a
// swap's inbound leg, so value flow is never counted twice.
func dedupSwaps(t *tree.Tree) {
	for _, root := range t.Roots {
		root.RemoveDuplicates(
			func(n *tree.Node) bool {
				_, ok := n.Action.(model.Swap)
				return ok
			},
			func(primary *tree.Node, others []tree.ActionRef) []uint64 {
				swap := primary.Action.(model.Swap)
				var dupes []uint64
				for _, ref := range others {
					transfer, ok := ref.Action.(model.Transfer)
					if !ok {
						continue
					}
					if transfer.Token == swap.TokenIn && transfer.Amount.Equal(swap.AmountIn) {
						dupes = append(dupes, ref.Index)
					}
				}
				return dupes
			},
		)
	}
}

// dedupMints prunes standalone transfers matching any of a mint's
// token/amount pairs.
func dedupMints(t *tree.Tree) {
	for _, root := range t.Roots {
		root.RemoveDuplicates(
			func(n *tree.Node) bool {
				_, ok := n.Action.(model.Mint)
				return ok
			},
			func(primary *tree.Node, others []tree.ActionRef) []uint64 {
				mint := primary.Action.(model.Mint)
				var dupes []uint64
				for _, ref := range others {
					transfer, ok := ref.Action.(model.Transfer)
					if !ok {
						continue
					}
					for i, tok := range mint.Tokens {
						if i >= len(mint.Amounts) {
							break
						}
						if transfer.Token == tok && transfer.Amount.Equal(mint.Amounts[i]) {
							dupes = append(dupes, ref.Index)
							break
						}
					}
				}
				return dupes
			},
		)
	}
}
