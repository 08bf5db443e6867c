package amm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairScope/internal/chain"
	"pairScope/internal/model"
)

// PairConfig is the pool configuration read from the pair contract when a
// creation event is handled. VariantKnown is false when the pairVariant call
// failed and the caller should keep the event-derived default.
type PairConfig struct {
	NFTContract   string
	TokenContract string
	SpotPrice     *big.Int
	Delta         *big.Int
	Fee           *big.Int
	BondingCurve  string
	Owner         string
	PoolType      uint8
	Variant       model.PoolVariant
	VariantKnown  bool
	NFTID         *big.Int
}

// PairInspector reads pair configuration at pool creation time.
type PairInspector interface {
	InspectPair(ctx context.Context, pool common.Address, erc1155 bool) (PairConfig, error)
}

// ChainPairInspector inspects pairs via eth_call, caching results by address.
// Pair configuration read here is immutable apart from the fields owned by
// update events, which overwrite the stored pool afterwards anyway.
type ChainPairInspector struct {
	chain  *chain.Client
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[common.Address]PairConfig
}

func NewChainPairInspector(chainClient *chain.Client, logger *zap.Logger) *ChainPairInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainPairInspector{
		chain:  chainClient,
		logger: logger,
		cache:  make(map[common.Address]PairConfig),
	}
}

// InspectPair loads pair configuration from chain. The core fields (nft,
// spotPrice, delta, fee, bondingCurve, owner) are required; poolType,
// pairVariant, token, and nftId are best-effort, mirroring the contract
// surface where they only exist on some pair implementations.
func (i *ChainPairInspector) InspectPair(ctx context.Context, pool common.Address, erc1155 bool) (PairConfig, error) {
	if i.chain == nil {
		return PairConfig{}, fmt.Errorf("chain client is nil")
	}

	i.mu.RLock()
	cfg, ok := i.cache[pool]
	i.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	pairABI, err := PairERC721ABI()
	if err != nil {
		return PairConfig{}, fmt.Errorf("parse pair abi: %w", err)
	}

	nft, err := i.callAddress(ctx, pool, pairABI, "nft")
	if err != nil {
		return PairConfig{}, err
	}
	spotPrice, err := i.callBigInt(ctx, pool, pairABI, "spotPrice")
	if err != nil {
		return PairConfig{}, err
	}
	delta, err := i.callBigInt(ctx, pool, pairABI, "delta")
	if err != nil {
		return PairConfig{}, err
	}
	fee, err := i.callBigInt(ctx, pool, pairABI, "fee")
	if err != nil {
		return PairConfig{}, err
	}
	bondingCurve, err := i.callAddress(ctx, pool, pairABI, "bondingCurve")
	if err != nil {
		return PairConfig{}, err
	}
	owner, err := i.callAddress(ctx, pool, pairABI, "owner")
	if err != nil {
		return PairConfig{}, err
	}

	cfg = PairConfig{
		NFTContract:  nft.Hex(),
		SpotPrice:    spotPrice,
		Delta:        delta,
		Fee:          fee,
		BondingCurve: bondingCurve.Hex(),
		Owner:        owner.Hex(),
	}

	if poolType, err := i.callBigInt(ctx, pool, pairABI, "poolType"); err == nil {
		cfg.PoolType = uint8(poolType.Uint64())
	} else {
		i.logger.Debug("poolType call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	if variant, err := i.callBigInt(ctx, pool, pairABI, "pairVariant"); err == nil && variant.IsUint64() && variant.Uint64() <= uint64(model.VariantERC1155ERC20) {
		cfg.Variant = model.PoolVariant(variant.Uint64())
		cfg.VariantKnown = true
	} else if err != nil {
		i.logger.Debug("pairVariant call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	// token() only exists on ERC20-denominated pairs; a revert means ETH.
	if token, err := i.callAddress(ctx, pool, pairABI, "token"); err == nil {
		cfg.TokenContract = token.Hex()
	} else {
		i.logger.Debug("token call failed", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	if erc1155 {
		pair1155ABI, err := PairERC1155ABI()
		if err != nil {
			return PairConfig{}, fmt.Errorf("parse erc1155 pair abi: %w", err)
		}
		if nftID, err := i.callBigInt(ctx, pool, pair1155ABI, "nftId"); err == nil {
			cfg.NFTID = nftID
		} else {
			i.logger.Debug("nftId call failed", zap.String("pool", pool.Hex()), zap.Error(err))
		}
	}

	i.mu.Lock()
	i.cache[pool] = cfg
	i.mu.Unlock()

	return cfg, nil
}

func (i *ChainPairInspector) callAddress(ctx context.Context, pool common.Address, pairABI abi.ABI, method string) (common.Address, error) {
	values, err := i.callMethod(ctx, pool, pairABI, method)
	if err != nil {
		return common.Address{}, err
	}
	return asAddressAt(values, 0)
}

func (i *ChainPairInspector) callBigInt(ctx context.Context, pool common.Address, pairABI abi.ABI, method string) (*big.Int, error) {
	values, err := i.callMethod(ctx, pool, pairABI, method)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	switch v := values[0].(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("%s: unsupported int type %T", method, values[0])
	}
}

func (i *ChainPairInspector) callMethod(ctx context.Context, pool common.Address, pairABI abi.ABI, method string) ([]interface{}, error) {
	data, err := pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := i.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := pairABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
