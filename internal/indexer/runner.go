package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"pairScope/internal/amm"
	"pairScope/internal/chain"
	"pairScope/internal/model"
	"pairScope/internal/projector"
	"pairScope/internal/storage"
)

// RunConfig holds runtime settings for the projector run loop.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	ResolveSenders    bool
}

// Runner streams factory and pool logs from the chain, decodes them, and
// applies them to the projection in log order. The watched address set grows
// as pool creations are applied; ranges that created pools are re-scanned so
// no pair event from a freshly created pool is missed.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	decoder    *amm.Decoder
	dispatcher *projector.Dispatcher
	registry   *Registry
	sink       storage.LogSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner. The sink is optional; when set, every processed
// log is also captured as a JSONL record for later replays.
func NewRunner(
	cfg RunConfig,
	chainClient *chain.Client,
	decoder *amm.Decoder,
	dispatcher *projector.Dispatcher,
	registry *Registry,
	sink storage.LogSink,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		decoder:    decoder,
		dispatcher: dispatcher,
		registry:   registry,
		sink:       sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the projection loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil || r.dispatcher == nil {
		return fmt.Errorf("decoder and dispatcher are required")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.registry == nil || r.registry.Len() == 0 {
		return fmt.Errorf("at least one watched address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

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
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	// Clear any registrations left over from a previous run so the first
	// range is not re-scanned needlessly.
	r.registry.DrainNew()

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Int("addresses", r.registry.Len()))

		if err := r.processRange(ctx, chainIDValue, blockRange, r.registry.Addresses()); err != nil {
			return err
		}

		// Pools created inside this range were not in the address filter
		// when it was fetched. Re-scan the range for just those pairs. The
		// pair events applied here land after the factory events from the
		// first pass, which is safe: balance deltas commute and only pair
		// events overwrite parameters. Pools never create pools, so one
		// extra pass per creation wave terminates.
		for added := r.registry.DrainNew(); len(added) > 0; added = r.registry.DrainNew() {
			r.logger.Info("rescan for new pools", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Int("pools", len(added)))
			if err := r.processRange(ctx, chainIDValue, blockRange, added); err != nil {
				return err
			}
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Runner) processRange(ctx context.Context, chainID uint64, blockRange BlockRange, addresses []common.Address) error {
	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, addresses)
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		if r.isDuplicate(log) {
			continue
		}
		if len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0].Hex()) {
			continue
		}

		ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}

		txFrom := ""
		if r.cfg.ResolveSenders {
			sender, err := r.transactionSenderWithRetry(ctx, log)
			if err != nil {
				r.logger.Warn("sender resolution failed", zap.String("tx", log.TxHash.Hex()), zap.Error(err))
			} else {
				txFrom = sender.Hex()
			}
		}

		record := buildLogRecord(chainID, log, ts, txFrom, ingestedAt)
		records = append(records, record)

		event, err := r.decoder.Decode(record)
		if err != nil {
			return fmt.Errorf("decode log %s-%d: %w", record.TxHash, record.LogIndex, err)
		}
		if err := r.dispatcher.Apply(ctx, event); err != nil {
			return err
		}
	}

	if r.sink != nil {
		if err := r.sink.PutLogBatch(records); err != nil {
			return fmt.Errorf("capture logs: %w", err)
		}
	}

	r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, addresses, r.decoder.Topic0Filter())
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) transactionSenderWithRetry(ctx context.Context, log types.Log) (common.Address, error) {
	var sender common.Address
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sender, err = r.chain.TransactionSender(ctx, log.TxHash, log.BlockHash, log.TxIndex)
		return err
	})
	return sender, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
