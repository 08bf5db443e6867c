package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pairScope/internal/amm"
	"pairScope/internal/chain"
	"pairScope/internal/config"
	"pairScope/internal/indexer"
	"pairScope/internal/projection"
	"pairScope/internal/projection/memory"
	"pairScope/internal/projection/migrations"
	"pairScope/internal/projection/postgres"
	"pairScope/internal/projector"
	"pairScope/internal/query"
	"pairScope/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "projector",
		Short:        "NFT AMM pool-state projector",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Project pool state from chain logs",
		RunE:  runProjector,
	}

	runCmd.Flags().String("rpc", "", "chain RPC URL")
	runCmd.Flags().String("factory", "", "pair factory address")
	runCmd.Flags().StringSlice("pool", nil, "extra pool addresses to watch (comma-separated)")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().Bool("use-memory", false, "use in-memory projection instead of Postgres")
	runCmd.Flags().String("capture", "", "optional raw log capture JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("resolve-senders", true, "resolve transaction senders for ledger records")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Project pool state from a captured JSONL file",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("rpc", "", "chain RPC URL for pair inspection (optional)")
	replayCmd.Flags().String("in", "", "input raw logs JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	replayCmd.Flags().Bool("use-memory", false, "use in-memory projection instead of Postgres")
	replayCmd.Flags().Int("shards", 4, "parallel apply shards")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runProjector(cmd *cobra.Command, _ []string) error {
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
	if cfg.Factory == "" {
		return fmt.Errorf("factory address is required")
	}

	seed, err := indexer.ParseAddresses(append([]string{cfg.Factory}, cfg.Pools...))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg.PGDSN, cfg.UseMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decoder, err := amm.NewDecoder()
	if err != nil {
		return err
	}

	registry := indexer.NewRegistry(seed...)

	// Pools projected by earlier runs must be watched again after a
	// checkpoint resume.
	known, err := store.PoolAddresses(ctx)
	if err != nil {
		return fmt.Errorf("load known pools: %w", err)
	}
	knownAddresses, err := indexer.ParseAddresses(known)
	if err != nil {
		return fmt.Errorf("parse known pools: %w", err)
	}
	for _, address := range knownAddresses {
		registry.Register(address)
	}

	inspector := amm.NewChainPairInspector(chainClient, logger)
	dispatcher := projector.NewDispatcher(store, inspector, registry.Register, logger)

	var sink storage.LogSink
	if cfg.Capture != "" {
		sink = storage.NewJsonlStorage(cfg.Capture)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		ResolveSenders:    cfg.ResolveSenders,
	}, chainClient, decoder, dispatcher, registry, sink, logger)

	logger.Info("projector start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("factory", cfg.Factory),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.String("capture", cfg.Capture),
	)

	return runner.Run(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg.PGDSN, false)
	if err != nil {
		return err
	}
	defer cleanup()

	server := query.NewServer(store, logger)
	return server.ListenAndServe(ctx, cfg.Listen)
}

// openStore returns the projection store plus its cleanup. Postgres stores
// have their schema applied before use.
func openStore(ctx context.Context, dsn string, useMemory bool) (projection.Store, func(), error) {
	if useMemory {
		return memory.NewStore(), func() {}, nil
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("pg-dsn is required (use --use-memory for in-memory projection)")
	}

	pgStore, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pgStore); err != nil {
		pgStore.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return pgStore, pgStore.Close, nil
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
