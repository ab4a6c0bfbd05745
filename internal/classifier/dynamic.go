package classifier

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mevscope/internal/model"
	"mevscope/internal/token"
	"mevscope/internal/tree"
)

// inferDynamicExchanges reclassifies unclassified subtrees whose
// transfer pattern looks like an exchange. All lookups run against one
// snapshot of the cache; discoveries are batched into a single write,
// so a protocol found mid-pass only becomes visible to later passes.
func (c *Classifier) inferDynamicExchanges(t *tree.Tree) {
	known := c.dyn.Snapshot()

	discovered := t.DynClassify(
		func(address common.Address, subActions []model.Action) bool {
			if c.registry.Contains(address) {
				return false
			}
			if _, ok := known[address]; ok {
				return true
			}
			return isPossibleExchange(c.tokens, subActions)
		},
		func(root *tree.Root, idx int) *tree.Discovered {
			node := &root.Nodes[idx]

			if pair, ok := known[node.Address]; ok {
				if action := c.proveDynAction(root, idx, pair); action != nil {
					root.CollapseChildren(idx)
					node.Action = action
				}
				return nil
			}

			if found := c.classifyNewExchange(root, idx); found != nil {
				root.CollapseChildren(idx)
				node.Action = found.action
				return &tree.Discovered{Address: found.address, Token0: found.pair.Token0, Token1: found.pair.Token1}
			}
			return nil
		},
	)

	if len(discovered) > 0 {
		c.dyn.InsertBatch(discovered)
		c.logger.Debug("registered dynamic exchanges", zap.Int("count", len(discovered)))
	}
}

// isPossibleExchange is a cheap necessary condition: some address
// appears as both sender and receiver across the observed transfers.
func isPossibleExchange(tokens token.Resolver, actions []model.Action) bool {
	toAddrs := make(map[common.Address]struct{})
	fromAddrs := make(map[common.Address]struct{})
	for _, transfer := range collectTransfers(tokens, actions) {
		toAddrs[transfer.To] = struct{}{}
		fromAddrs[transfer.From] = struct{}{}
	}
	for addr := range toAddrs {
		if _, ok := fromAddrs[addr]; ok {
			return true
		}
	}
	return false
}

// proveDynAction reclassifies a node whose address is a known dynamic
// protocol: the subtree's transfers in the cached token pair touching
// the node's address decide between swap, mint and burn. Any transfer
// count other than one or two means no reclassification.
func (c *Classifier) proveDynAction(root *tree.Root, idx int, pair TokenPair) model.Action {
	node := &root.Nodes[idx]
	addr := node.Address

	var transfers []transferData
	for _, transfer := range collectTransfers(c.tokens, root.SubtreeActions(idx)) {
		if transfer.Token != pair.Token0 && transfer.Token != pair.Token1 {
			continue
		}
		if transfer.From != addr && transfer.To != addr {
			continue
		}
		transfers = append(transfers, transfer)
	}

	switch len(transfers) {
	case 2:
		t0, t1 := transfers[0], transfers[1]

		if t0.To == t1.To && t0.From == t1.From {
			if t0.To == addr {
				return model.Burn{
					Pool:      addr,
					From:      t0.From,
					Recipient: t1.To,
					Tokens:    []common.Address{t0.Token, t1.Token},
					Amounts:   []decimal.Decimal{t0.Amount, t1.Amount},
				}
			}
			return model.Mint{
				Pool:      addr,
				From:      t0.From,
				Recipient: t0.To,
				Tokens:    []common.Address{t0.Token, t1.Token},
				Amounts:   []decimal.Decimal{t0.Amount, t1.Amount},
			}
		}

		// Crossing pattern: the transfer paying the node's address is
		// the outgoing leg.
		if t0.To == addr {
			return model.Swap{
				Pool:      t0.To,
				From:      t1.To,
				TokenIn:   t1.Token,
				TokenOut:  t0.Token,
				AmountIn:  t1.Amount,
				AmountOut: t0.Amount,
			}
		}
		return model.Swap{
			Pool:      t1.To,
			From:      t0.To,
			TokenIn:   t0.Token,
			TokenOut:  t1.Token,
			AmountIn:  t0.Amount,
			AmountOut: t1.Amount,
		}

	case 1:
		t0 := transfers[0]
		if t0.From == addr {
			return model.Mint{
				Pool:      addr,
				From:      t0.From,
				Recipient: t0.To,
				Tokens:    []common.Address{t0.Token},
				Amounts:   []decimal.Decimal{t0.Amount},
			}
		}
		return model.Burn{
			Pool:      addr,
			From:      t0.From,
			Recipient: t0.To,
			Tokens:    []common.Address{t0.Token},
			Amounts:   []decimal.Decimal{t0.Amount},
		}
	}

	return nil
}

type newExchange struct {
	address common.Address
	pair    TokenPair
	action  model.Action
}

// classifyNewExchange applies the stricter first-discovery heuristic:
// exactly two transfers touching the node's address, distinct tokens,
// distinct counterparties, one inbound and one outbound leg. On
// success the pair is surfaced for cache registration.
func (c *Classifier) classifyNewExchange(root *tree.Root, idx int) *newExchange {
	node := &root.Nodes[idx]
	addr := node.Address

	var transfers []transferData
	for _, transfer := range collectTransfers(c.tokens, root.SubtreeActions(idx)) {
		if transfer.From != addr && transfer.To != addr {
			continue
		}
		transfers = append(transfers, transfer)
	}

	if len(transfers) != 2 {
		return nil
	}

	t0, t1 := transfers[0], transfers[1]
	if t0.Token == t1.Token || t0.From == t1.From {
		return nil
	}

	// One leg must enter the address and the other must leave it;
	// which transfer appears first in the logs is irrelevant.
	inbound, outbound := t0, t1
	if inbound.To != addr {
		inbound, outbound = t1, t0
	}
	if inbound.To != addr || outbound.From != addr {
		return nil
	}

	return &newExchange{
		address: addr,
		pair:    TokenPair{Token0: t0.Token, Token1: t1.Token},
		action: model.Swap{
			Pool:      addr,
			From:      inbound.From,
			TokenIn:   inbound.Token,
			TokenOut:  outbound.Token,
			AmountIn:  inbound.Amount,
			AmountOut: outbound.Amount,
		},
	}
}
