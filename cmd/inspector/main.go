package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mevscope/internal/chain"
	"mevscope/internal/classifier"
	"mevscope/internal/config"
	"mevscope/internal/inspector"
	"mevscope/internal/metrics"
	"mevscope/internal/protocol"
	"mevscope/internal/storage"
	"mevscope/internal/storage/postgres"
	"mevscope/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "inspector",
		Short:        "EVM trace classification engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify traces for a block range",
		RunE:  runClassify,
	}

	classifyCmd.Flags().String("rpc", "", "RPC URL (needs trace_block support)")
	classifyCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	classifyCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	classifyCmd.Flags().String("in", "", "classify traces from a JSONL file instead of RPC")
	classifyCmd.Flags().Int("workers", 4, "concurrent trees per block")
	classifyCmd.Flags().String("out", "./data/actions.jsonl", "output JSONL path")
	classifyCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	classifyCmd.Flags().String("metrics-addr", "", "optional metrics listen address")
	classifyCmd.Flags().Duration("token-ttl", time.Hour, "token metadata cache TTL")
	classifyCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	classifyCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	classifyCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	classifyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	classifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(classifyCmd)

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Dump raw block traces without classifying",
		RunE:  runTrace,
	}

	traceCmd.Flags().String("rpc", "", "RPC URL (needs trace_block support)")
	traceCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	traceCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	traceCmd.Flags().String("out", "./data/traces.jsonl", "output JSONL path")
	traceCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(traceCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" && cfg.In == "" {
		return fmt.Errorf("rpc url or input path is required")
	}

	registry, err := buildRegistry(cfg.Pools)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	static := token.NewStaticResolver()

	var (
		chainClient *chain.Client
		resolver    *token.ChainResolver
	)
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		logger.Info("connected", zap.String("chain_id", chainID.String()))

		resolver = token.NewChainResolver(chainClient, cfg.TokenTTL, logger)
		resolver.Warm(ctx, registry.Tokens(), static)
	}

	mets := metrics.New()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mets.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	var store inspector.ActionStore
	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		store = pgStore
	}

	cls := classifier.New(registry, static, classifier.NewDynProtocolCache(), logger, cfg.Workers)
	sink := storage.NewJsonlStorage(cfg.Out)

	runner := inspector.NewRunner(inspector.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, cls, resolver, static, sink, store, mets, logger)

	logger.Info("inspector start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.String("in", cfg.In),
		zap.Int("pools", registry.Len()),
		zap.Int("workers", cfg.Workers),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	if cfg.In != "" {
		return runner.RunFile(ctx, cfg.In)
	}
	return runner.Run(ctx)
}

func runTrace(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	to := cfg.ToBlock
	if to == 0 {
		latest, err := chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	var sink storage.TraceSink = storage.NewJsonlStorage(cfg.Out)
	for number := cfg.FromBlock; number <= to; number++ {
		block, _, err := chainClient.AcquireBlock(ctx, number)
		if err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}
		if err := sink.PutBlockTrace(*block); err != nil {
			return fmt.Errorf("block %d: write traces: %w", number, err)
		}
		logger.Info("block traced", zap.Uint64("block", number), zap.Int("txs", len(block.Txs)))
	}

	return nil
}

// buildRegistry materializes the static protocol table from config.
func buildRegistry(pools []config.PoolConfig) (*protocol.Registry, error) {
	registry := protocol.NewRegistry()
	if len(pools) == 0 {
		return registry, nil
	}

	v2Decoders, err := protocol.NewUniswapV2Decoders()
	if err != nil {
		return nil, fmt.Errorf("build v2 decoders: %w", err)
	}
	v3Decoders, err := protocol.NewUniswapV3Decoders()
	if err != nil {
		return nil, fmt.Errorf("build v3 decoders: %w", err)
	}

	for _, pool := range pools {
		if !common.IsHexAddress(pool.Address) {
			return nil, fmt.Errorf("invalid pool address: %q", pool.Address)
		}
		if !common.IsHexAddress(pool.Token0) || !common.IsHexAddress(pool.Token1) {
			return nil, fmt.Errorf("invalid token address for pool %s", pool.Address)
		}

		var decoders []protocol.Decoder
		switch pool.Protocol {
		case protocol.UniswapV2:
			decoders = v2Decoders
		case protocol.UniswapV3:
			decoders = v3Decoders
		default:
			return nil, fmt.Errorf("unknown protocol %q for pool %s", pool.Protocol, pool.Address)
		}

		registry.Register(
			common.HexToAddress(pool.Address),
			pool.Protocol,
			common.HexToAddress(pool.Token0),
			common.HexToAddress(pool.Token1),
			decoders...,
		)
	}

	return registry, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
