package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScope/internal/amm"
	"pairScope/internal/chain"
	"pairScope/internal/config"
	"pairScope/internal/model"
	"pairScope/internal/projector"
	"pairScope/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg.PGDSN, cfg.UseMemory)
	if err != nil {
		return err
	}
	defer cleanup()

	decoder, err := amm.NewDecoder()
	if err != nil {
		return err
	}

	// Without an RPC endpoint, pools are projected from event data alone.
	var inspector amm.PairInspector
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		inspector = amm.NewChainPairInspector(chainClient, logger)
	}

	dispatcher := projector.NewDispatcher(store, inspector, nil, logger)
	applier := projector.NewShardedApplier(dispatcher, cfg.Shards)

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.Int("shards", cfg.Shards),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *model.TypedEvent, 256)
	scanErr := make(chan error, 1)
	go func() {
		defer close(events)
		scanErr <- storage.ScanJsonl(cfg.Input, func(record model.LogRecord) error {
			if record.Removed {
				return nil
			}
			if len(record.Topics) == 0 || !decoder.CanDecode(record.Topics[0]) {
				return nil
			}
			event, err := decoder.Decode(record)
			if err != nil {
				return fmt.Errorf("decode log %s-%d: %w", record.TxHash, record.LogIndex, err)
			}
			select {
			case events <- event:
				return nil
			case <-runCtx.Done():
				return runCtx.Err()
			}
		})
	}()

	applyErr := applier.Run(runCtx, events)
	cancel()
	if err := <-scanErr; err != nil && applyErr == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if applyErr != nil {
		return applyErr
	}

	logger.Info("replay complete")
	return nil
}
