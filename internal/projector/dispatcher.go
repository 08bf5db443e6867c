package projector

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairScope/internal/amm"
	"pairScope/internal/model"
	"pairScope/internal/projection"
)

// RegisterFunc is called synchronously when a pool creation is applied, so the
// log filter picks the new pair up before its own events arrive.
type RegisterFunc func(pool common.Address)

// Dispatcher routes typed events into the projection store. Errors returned
// from Apply are fatal: the input stream is corrupt and processing must halt.
// Recoverable conditions (unknown pool, replayed event) are logged and
// swallowed here.
type Dispatcher struct {
	store     projection.Store
	inspector amm.PairInspector
	register  RegisterFunc
	logger    *zap.Logger
}

func NewDispatcher(store projection.Store, inspector amm.PairInspector, register RegisterFunc, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:     store,
		inspector: inspector,
		register:  register,
		logger:    logger,
	}
}

// Apply processes one decoded event.
func (d *Dispatcher) Apply(ctx context.Context, event *model.TypedEvent) error {
	switch payload := event.Decoded.(type) {
	case model.PairCreatedEvent:
		return d.applyCreation(ctx, event, payload)

	case model.TokenDepositEvent:
		if payload.Amount == nil {
			return corrupt(event, "token deposit missing amount")
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:        model.ActivityDeposit,
			Type:        model.AssetToken,
			TokenAmount: payload.Amount,
		}, payload.Amount, nil)

	case model.NFTDepositEvent:
		quantity, err := model.QuantityFromIDs(payload.IDs)
		if err != nil {
			return corrupt(event, err.Error())
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:     model.ActivityDeposit,
			Type:     model.AssetNFT,
			Quantity: quantity,
		}, nil, quantity.Count())

	case model.ERC1155DepositEvent:
		if payload.ID == nil || payload.Amount == nil {
			return corrupt(event, "erc1155 deposit missing id or amount")
		}
		quantity, err := model.QuantityFromAmount(payload.Amount)
		if err != nil {
			return corrupt(event, err.Error())
		}
		if err := d.applyActivity(ctx, event, &model.Activity{
			Kind:     model.ActivityDeposit,
			Type:     model.AssetERC1155,
			Quantity: quantity,
		}, nil, quantity.Count()); err != nil {
			return err
		}
		// Backfills the nftId for pools whose creation-time read failed.
		if err := d.store.SetPoolNFTID(ctx, event.PoolAddress, payload.ID); err != nil && !errors.Is(err, projection.ErrUnknownPool) {
			return err
		}
		return nil

	case model.TokenWithdrawalEvent:
		if payload.Amount == nil {
			return corrupt(event, "token withdrawal missing amount")
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:        model.ActivityWithdrawal,
			Type:        model.AssetToken,
			TokenAmount: payload.Amount,
		}, neg(payload.Amount), nil)

	case model.NFTWithdrawalEvent:
		quantity, err := model.QuantityFromIDs(payload.IDs)
		if err != nil {
			return corrupt(event, err.Error())
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:     model.ActivityWithdrawal,
			Type:     model.AssetNFT,
			Quantity: quantity,
		}, nil, neg(quantity.Count()))

	case model.ERC1155WithdrawalEvent:
		if payload.Amount == nil {
			return corrupt(event, "erc1155 withdrawal missing amount")
		}
		quantity, err := model.QuantityFromAmount(payload.Amount)
		if err != nil {
			return corrupt(event, err.Error())
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:     model.ActivityWithdrawal,
			Type:     model.AssetERC1155,
			Quantity: quantity,
		}, nil, neg(quantity.Count()))

	case model.SwapNFTInEvent:
		// NFTs entered the pool, tokens were paid out.
		if payload.AmountOut == nil {
			return corrupt(event, "swap missing amountOut")
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:        model.ActivitySwap,
			Type:        model.SwapBuy,
			TokenAmount: payload.AmountOut,
			Quantity:    payload.Quantity,
		}, neg(payload.AmountOut), payload.Quantity.Count())

	case model.SwapNFTOutEvent:
		// NFTs left the pool, tokens came in.
		if payload.AmountIn == nil {
			return corrupt(event, "swap missing amountIn")
		}
		return d.applyActivity(ctx, event, &model.Activity{
			Kind:        model.ActivitySwap,
			Type:        model.SwapSell,
			TokenAmount: payload.AmountIn,
			Quantity:    payload.Quantity,
		}, payload.AmountIn, neg(payload.Quantity.Count()))

	case model.SpotPriceUpdateEvent:
		if payload.NewSpotPrice == nil {
			return corrupt(event, "spot price update missing value")
		}
		return d.applyFieldUpdate(ctx, event, projection.FieldUpdate{
			Field:    projection.FieldSpotPrice,
			BigValue: payload.NewSpotPrice,
		})

	case model.DeltaUpdateEvent:
		if payload.NewDelta == nil {
			return corrupt(event, "delta update missing value")
		}
		return d.applyFieldUpdate(ctx, event, projection.FieldUpdate{
			Field:    projection.FieldDelta,
			BigValue: payload.NewDelta,
		})

	case model.FeeUpdateEvent:
		if payload.NewFee == nil {
			return corrupt(event, "fee update missing value")
		}
		return d.applyFieldUpdate(ctx, event, projection.FieldUpdate{
			Field:    projection.FieldFee,
			BigValue: payload.NewFee,
		})

	case model.AssetRecipientChangeEvent:
		return d.applyFieldUpdate(ctx, event, projection.FieldUpdate{
			Field:     projection.FieldAssetRecipient,
			AddrValue: payload.Recipient,
		})

	default:
		return corrupt(event, fmt.Sprintf("unsupported payload type %T", event.Decoded))
	}
}

// applyCreation materializes a new pool with zero balances. Initial inventory
// arrives through the factory's companion deposit events, never here.
func (d *Dispatcher) applyCreation(ctx context.Context, event *model.TypedEvent, payload model.PairCreatedEvent) error {
	pool := &model.Pool{
		ChainID:        event.ChainID,
		Address:        event.PoolAddress,
		Variant:        payload.Variant,
		SpotPrice:      new(big.Int),
		Delta:          new(big.Int),
		Fee:            new(big.Int),
		TokenBalance:   new(big.Int),
		NFTBalance:     new(big.Int),
		CreatedAt:      event.Timestamp,
		CreatedAtBlock: event.BlockNumber,
		CreatedAtTx:    event.TxHash,
	}

	if d.inspector != nil {
		cfg, err := d.inspector.InspectPair(ctx, common.HexToAddress(event.PoolAddress), payload.Variant.IsERC1155())
		if err != nil {
			d.logger.Warn("pair inspection failed, projecting with event data only",
				zap.String("pool", event.PoolAddress),
				zap.Error(err))
		} else {
			pool.NFTContract = cfg.NFTContract
			pool.TokenContract = cfg.TokenContract
			pool.PoolType = cfg.PoolType
			pool.BondingCurve = cfg.BondingCurve
			pool.Owner = cfg.Owner
			if cfg.SpotPrice != nil {
				pool.SpotPrice = cfg.SpotPrice
			}
			if cfg.Delta != nil {
				pool.Delta = cfg.Delta
			}
			if cfg.Fee != nil {
				pool.Fee = cfg.Fee
			}
			if cfg.VariantKnown {
				pool.Variant = cfg.Variant
			} else if cfg.TokenContract != "" {
				// token() answered, so this is the ERC20 flavor.
				if payload.Variant == model.VariantERC721ETH {
					pool.Variant = model.VariantERC721ERC20
				} else if payload.Variant == model.VariantERC1155ETH {
					pool.Variant = model.VariantERC1155ERC20
				}
			}
			if cfg.NFTID != nil {
				pool.NFTID = cfg.NFTID
			}
		}
	}

	if err := d.store.CreatePool(ctx, pool); err != nil {
		if errors.Is(err, projection.ErrPoolExists) {
			return fmt.Errorf("duplicate pool creation for %s at %s: %w", event.PoolAddress, event.Key(), err)
		}
		return err
	}

	d.logger.Info("pool created",
		zap.String("pool", event.PoolAddress),
		zap.String("variant", pool.Variant.String()),
		zap.Uint64("block", event.BlockNumber))

	if d.register != nil {
		d.register(common.HexToAddress(event.PoolAddress))
	}
	return nil
}

func (d *Dispatcher) applyActivity(ctx context.Context, event *model.TypedEvent, activity *model.Activity, tokenDelta, nftDelta *big.Int) error {
	activity.Pool = event.PoolAddress
	activity.Timestamp = event.Timestamp
	activity.BlockNumber = event.BlockNumber
	activity.TxHash = event.TxHash
	activity.LogIndex = event.LogIndex
	activity.Sender = event.Sender

	err := d.store.ApplyActivity(ctx, activity, tokenDelta, nftDelta)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, projection.ErrUnknownPool):
		d.logger.Warn("event for unknown pool skipped",
			zap.String("pool", event.PoolAddress),
			zap.String("event", event.EventName),
			zap.String("key", event.Key().String()))
		return nil
	case errors.Is(err, projection.ErrDuplicateActivity):
		d.logger.Debug("replayed event skipped",
			zap.String("key", event.Key().String()))
		return nil
	default:
		return fmt.Errorf("apply %s at %s: %w", event.EventName, event.Key(), err)
	}
}

func (d *Dispatcher) applyFieldUpdate(ctx context.Context, event *model.TypedEvent, update projection.FieldUpdate) error {
	err := d.store.UpdatePoolField(ctx, event.PoolAddress, update)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, projection.ErrUnknownPool):
		d.logger.Warn("update for unknown pool skipped",
			zap.String("pool", event.PoolAddress),
			zap.String("event", event.EventName),
			zap.String("key", event.Key().String()))
		return nil
	default:
		return fmt.Errorf("apply %s at %s: %w", event.EventName, event.Key(), err)
	}
}

func corrupt(event *model.TypedEvent, reason string) error {
	return fmt.Errorf("corrupt event %s (%s): %s", event.Key(), event.EventName, reason)
}

func neg(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Neg(v)
}
