package inspector

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"mevscope/internal/chain"
	"mevscope/internal/classifier"
	"mevscope/internal/metrics"
	"mevscope/internal/model"
	"mevscope/internal/storage"
	"mevscope/internal/token"
	"mevscope/internal/tree"
)

// RunConfig holds runtime settings for the inspector.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// ActionStore is the optional database sink for classified output.
type ActionStore interface {
	UpsertActions(ctx context.Context, records []model.ActionRecord) error
	UpsertDynProtocols(ctx context.Context, records []model.DynProtocolRecord) error
}

// Runner drives the per-block pipeline: acquire traces, pre-warm token
// metadata, classify, persist. The classification core itself never
// touches the network; everything it needs is materialized first.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	classifier *classifier.Classifier
	resolver   *token.ChainResolver
	static     *token.StaticResolver
	sink       storage.ActionSink
	store      ActionStore
	metrics    *metrics.Metrics
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. sink, store and
// resolver may be nil; mets and logger get no-op defaults.
func NewRunner(cfg RunConfig, chainClient *chain.Client, cls *classifier.Classifier, resolver *token.ChainResolver, static *token.StaticResolver, sink storage.ActionSink, store ActionStore, mets *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mets == nil {
		mets = metrics.New()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		classifier: cls,
		resolver:   resolver,
		static:     static,
		sink:       sink,
		store:      store,
		metrics:    mets,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run classifies the configured block range.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.classifier == nil {
		return fmt.Errorf("classifier is nil")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastBlock >= from {
			from = cp.LastBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_block", cp.LastBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to classify", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	for number := from; number <= to; number++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.processBlock(ctx, number); err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(number); err != nil {
				return err
			}
		}
	}

	return nil
}

// RunFile classifies block traces from a JSONL file produced by the
// trace command instead of a live RPC endpoint.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	if r.classifier == nil {
		return fmt.Errorf("classifier is nil")
	}
	return storage.ReadBlockTraces(path, func(block model.BlockTrace) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.classifyBlock(ctx, &block, block.Header()); err != nil {
			return fmt.Errorf("block %d: %w", block.BlockNumber, err)
		}
		return nil
	})
}

func (r *Runner) processBlock(ctx context.Context, number uint64) error {
	var (
		block  *model.BlockTrace
		header *types.Header
	)
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		block, header, err = r.chain.AcquireBlock(ctx, number)
		return err
	})
	if err != nil {
		return fmt.Errorf("acquire traces: %w", err)
	}

	return r.classifyBlock(ctx, block, header)
}

// classifyBlock runs the pipeline on already-materialized traces and
// persists the result.
func (r *Runner) classifyBlock(ctx context.Context, block *model.BlockTrace, header *types.Header) error {
	r.warmTokens(ctx, block)

	dynBefore := r.classifier.DynCache().Len()
	t := r.classifier.BuildTree(block.Txs, header)

	records := t.Records(block.BlockNumber)
	r.observe(block, t, records, dynBefore)

	if r.sink != nil {
		if err := r.sink.PutActionBatch(records); err != nil {
			return fmt.Errorf("write actions: %w", err)
		}
	}
	if r.store != nil {
		if err := r.store.UpsertActions(ctx, records); err != nil {
			return fmt.Errorf("upsert actions: %w", err)
		}
		if err := r.store.UpsertDynProtocols(ctx, dynRecords(r.classifier)); err != nil {
			return fmt.Errorf("upsert dyn protocols: %w", err)
		}
	}

	r.logger.Info("block classified",
		zap.Uint64("block", block.BlockNumber),
		zap.Int("txs", len(t.Roots)),
		zap.Int("actions", len(records)),
	)
	return nil
}

// warmTokens pre-resolves the metadata every transfer log in the block
// could need, so classification runs without I/O.
func (r *Runner) warmTokens(ctx context.Context, block *model.BlockTrace) {
	if r.resolver == nil || r.static == nil {
		return
	}
	seen := make(map[string]struct{})
	var addrs []common.Address
	for _, tx := range block.Txs {
		for _, rec := range tx.Traces {
			for _, log := range rec.Logs {
				if len(log.Topics) == 0 || log.Topics[0] != classifier.TransferTopic {
					continue
				}
				key := log.Address.Hex()
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				addrs = append(addrs, log.Address)
			}
		}
	}
	r.resolver.Warm(ctx, addrs, r.static)
}

func (r *Runner) observe(block *model.BlockTrace, t *tree.Tree, records []model.ActionRecord, dynBefore int) {
	r.metrics.BlocksClassified.Inc()
	r.metrics.TxsClassified.Add(float64(len(t.Roots)))
	r.metrics.TxsSkipped.Add(float64(len(block.Txs) - len(t.Roots)))
	for _, record := range records {
		r.metrics.NodesByKind.WithLabelValues(record.Kind).Inc()
	}
	var arena int
	for _, root := range t.Roots {
		arena += len(root.Nodes)
	}
	if pruned := arena - len(records); pruned > 0 {
		r.metrics.NodesPruned.Add(float64(pruned))
	}
	if grown := r.classifier.DynCache().Len() - dynBefore; grown > 0 {
		r.metrics.DynDiscovered.Add(float64(grown))
	}
}

func dynRecords(cls *classifier.Classifier) []model.DynProtocolRecord {
	discovered := cls.DynCache().Records()
	out := make([]model.DynProtocolRecord, 0, len(discovered))
	for _, d := range discovered {
		out = append(out, model.DynProtocolRecord{
			Address: d.Address.Hex(),
			Token0:  d.Token0.Hex(),
			Token1:  d.Token1.Hex(),
		})
	}
	return out
}
