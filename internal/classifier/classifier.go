package classifier

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"mevscope/internal/model"
	"mevscope/internal/protocol"
	"mevscope/internal/token"
	"mevscope/internal/tree"
)

// Classifier turns raw per-transaction traces into a classified call
// forest. Transactions build independently on a bounded worker pool;
// the only cross-transaction state is the injected dynamic-protocol
// cache, touched by the inference pass alone.
type Classifier struct {
	registry *protocol.Registry
	tokens   token.Resolver
	dyn      *DynProtocolCache
	logger   *zap.Logger
	workers  int
}

// New builds a Classifier. A nil dynamic cache gets a private one; a
// nil logger is replaced with a no-op.
func New(registry *protocol.Registry, tokens token.Resolver, dyn *DynProtocolCache, logger *zap.Logger, workers int) *Classifier {
	if dyn == nil {
		dyn = NewDynProtocolCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Classifier{
		registry: registry,
		tokens:   tokens,
		dyn:      dyn,
		logger:   logger,
		workers:  workers,
	}
}

// DynCache exposes the shared dynamic-protocol cache, for persistence
// by a storage collaborator.
func (c *Classifier) DynCache() *DynProtocolCache {
	return c.dyn
}

// BuildTree classifies one block's transactions into a finalized
// forest: per-transaction tree construction, then dynamic exchange
// inference, then deduplication. Transactions with an empty trace
// list are skipped.
func (c *Classifier) BuildTree(txs []model.TxTrace, header *types.Header) *tree.Tree {
	roots := make([]*tree.Root, len(txs))

	builders := pool.New().WithMaxGoroutines(c.workers)
	for i := range txs {
		i := i
		builders.Go(func() {
			roots[i] = c.buildRoot(&txs[i], header)
		})
	}
	builders.Wait()

	live := make([]*tree.Root, 0, len(roots))
	for _, root := range roots {
		if root != nil {
			live = append(live, root)
		}
	}

	t := tree.NewTree(live, header)

	c.inferDynamicExchanges(t)
	dedupSwaps(t)
	dedupMints(t)
	t.Finalize()

	return t
}

// buildRoot constructs and classifies the call tree of one
// transaction. Returns nil for an empty trace list.
func (c *Classifier) buildRoot(tx *model.TxTrace, header *types.Header) *tree.Root {
	if len(tx.Traces) == 0 {
		return nil
	}

	gas := model.GasDetails{
		GasUsed:           tx.GasUsed,
		EffectiveGasPrice: tx.EffectiveGasPrice,
	}
	if header.BaseFee != nil && header.BaseFee.IsUint64() {
		// The effective price can sit below the base fee when the
		// acquisition layer could not fill it in; never wrap below zero.
		if base := header.BaseFee.Uint64(); tx.EffectiveGasPrice >= base {
			gas.PriorityFee = tx.EffectiveGasPrice - base
		}
	} else {
		gas.BaseFeeMissing = true
	}
	gas.CoinbaseTransfer = coinbaseTransfer(header.Coinbase, tx.Traces)

	headRec := &tx.Traces[0]
	headAction := c.classifyNode(headRec)
	head := tree.Node{
		Index:        0,
		TraceAddress: headRec.TraceAddress,
		Address:      headRec.From,
		Action:       headAction,
		Finalized:    headAction.Kind() != model.KindUnclassified,
	}

	root := tree.NewRoot(head, tx.TxHash, tx.Private, gas)

	for i := 1; i < len(tx.Traces); i++ {
		rec := &tx.Traces[i]
		action := c.classifyNode(rec)
		root.Insert(tree.Node{
			Index:        uint64(i),
			TraceAddress: rec.TraceAddress,
			Address:      rec.From,
			Action:       action,
			Finalized:    action.Kind() != model.KindUnclassified,
		})
	}

	return root
}

// coinbaseTransfer returns the value of the first call paying the
// block beneficiary directly.
func coinbaseTransfer(beneficiary common.Address, traces []model.TraceRecord) *big.Int {
	for i := range traces {
		rec := &traces[i]
		if rec.To != beneficiary || rec.Value == nil {
			continue
		}
		if value := rec.Value.ToInt(); value.Sign() > 0 {
			return value
		}
	}
	return nil
}

// classifyNode runs the classification procedure for one record:
// static protocol decoder first, then the generic transfer fallback,
// otherwise unclassified with the residual caller-emitted logs.
func (c *Classifier) classifyNode(rec *model.TraceRecord) model.Action {
	if entry, ok := c.registry.Lookup(rec.To); ok {
		if sig, ok := rec.Selector(); ok {
			if dec, ok := entry.Decoder(sig); ok {
				ctx := protocol.DecodeContext{Tokens: c.tokens, Logger: c.logger}
				action, err := dec.Decode(ctx, entry, rec)
				if err == nil {
					return action
				}
				c.logger.Debug("protocol decode failed",
					zap.String("protocol", entry.Protocol),
					zap.String("target", rec.To.Hex()),
					zap.Error(err),
				)
			}
		}
	}

	var residual []model.LogEvent
	for _, log := range rec.Logs {
		if log.Address == rec.From {
			residual = append(residual, log)
		}
	}

	if len(residual) == 1 {
		if raw, ok := decodeTransferLog(residual[0]); ok {
			return model.Transfer{
				Token:  raw.Token,
				From:   raw.From,
				To:     raw.To,
				Amount: scaleAmount(c.tokens, raw.Token, raw.Amount),
			}
		}
	}

	return model.Unclassified{Trace: rec, Logs: residual}
}
