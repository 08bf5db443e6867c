package amm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"pairScope/internal/model"
)

type eventEntry struct {
	event   abi.Event
	factory bool // pool address carried in topic1 instead of log address
	scalar  bool // ERC1155 flavor of an overloaded pair event
}

// Decoder converts raw log records into typed pair and factory events. Events
// are recognized by topic0 across the factory, ERC721 pair, and ERC1155 pair
// ABIs; the overloaded pair events resolve unambiguously because their
// signatures differ.
type Decoder struct {
	entries map[string]eventEntry
}

// NewDecoder builds a decoder over the full LSSVM event surface.
func NewDecoder() (*Decoder, error) {
	factory, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	pair721, err := PairERC721ABI()
	if err != nil {
		return nil, err
	}
	pair1155, err := PairERC1155ABI()
	if err != nil {
		return nil, err
	}

	entries := make(map[string]eventEntry)
	for _, event := range factory.Events {
		entries[topicKey(event.ID)] = eventEntry{event: event, factory: true}
	}
	for _, event := range pair721.Events {
		entries[topicKey(event.ID)] = eventEntry{event: event}
	}
	for _, event := range pair1155.Events {
		entries[topicKey(event.ID)] = eventEntry{event: event, scalar: true}
	}

	return &Decoder{entries: entries}, nil
}

// Topic0Filter returns every topic0 the decoder recognizes, for log filtering.
func (d *Decoder) Topic0Filter() []common.Hash {
	topics := make([]common.Hash, 0, len(d.entries))
	for _, entry := range d.entries {
		topics = append(topics, entry.event.ID)
	}
	return topics
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.entries[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent. Errors indicate a
// structurally malformed log, which callers must treat as fatal.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	entry, ok := d.entries[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid log address: %s", log.Address)
	}

	poolAddress := common.HexToAddress(log.Address)
	if entry.factory {
		if len(log.Topics) != 2 {
			return nil, fmt.Errorf("%s: expected 2 topics, got %d", entry.event.Name, len(log.Topics))
		}
		topic, err := hexutil.Decode(log.Topics[1])
		if err != nil || len(topic) != 32 {
			return nil, fmt.Errorf("%s: invalid pool topic: %s", entry.event.Name, log.Topics[1])
		}
		poolAddress = common.BytesToAddress(topic)
	}

	values, err := unpackNonIndexed(entry.event, log.Data)
	if err != nil {
		return nil, err
	}

	decoded, err := buildPayload(entry, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.event.Name, err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     common.HexToAddress(log.Address).Hex(),
		PoolAddress: poolAddress.Hex(),
		EventName:   entry.event.Name,
		Timestamp:   log.Timestamp,
		Sender:      log.TxFrom,
		Decoded:     decoded,
	}, nil
}

func buildPayload(entry eventEntry, values []interface{}) (interface{}, error) {
	switch entry.event.Name {
	case "NewERC721Pair":
		ids, err := asBigIntSlice(values, 0)
		if err != nil {
			return nil, err
		}
		return model.PairCreatedEvent{Variant: model.VariantERC721ETH, InitialIDs: ids}, nil

	case "NewERC1155Pair":
		balance, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.PairCreatedEvent{Variant: model.VariantERC1155ETH, InitialBalance: balance}, nil

	case "ERC20Deposit", "TokenDeposit":
		amount, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.TokenDepositEvent{Amount: amount}, nil

	case "NFTDeposit":
		ids, err := asBigIntSlice(values, 0)
		if err != nil {
			return nil, err
		}
		return model.NFTDepositEvent{IDs: ids}, nil

	case "ERC1155Deposit":
		id, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		amount, err := asBigIntAt(values, 1)
		if err != nil {
			return nil, err
		}
		return model.ERC1155DepositEvent{ID: id, Amount: amount}, nil

	case "TokenWithdrawal":
		amount, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.TokenWithdrawalEvent{Amount: amount}, nil

	case "NFTWithdrawal":
		if entry.scalar {
			amount, err := asBigIntAt(values, 0)
			if err != nil {
				return nil, err
			}
			return model.ERC1155WithdrawalEvent{Amount: amount}, nil
		}
		ids, err := asBigIntSlice(values, 0)
		if err != nil {
			return nil, err
		}
		return model.NFTWithdrawalEvent{IDs: ids}, nil

	case "SwapNFTInPair":
		amountOut, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		quantity, err := swapQuantity(entry, values)
		if err != nil {
			return nil, err
		}
		return model.SwapNFTInEvent{AmountOut: amountOut, Quantity: quantity}, nil

	case "SwapNFTOutPair":
		amountIn, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		quantity, err := swapQuantity(entry, values)
		if err != nil {
			return nil, err
		}
		return model.SwapNFTOutEvent{AmountIn: amountIn, Quantity: quantity}, nil

	case "SpotPriceUpdate":
		price, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.SpotPriceUpdateEvent{NewSpotPrice: price}, nil

	case "DeltaUpdate":
		delta, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.DeltaUpdateEvent{NewDelta: delta}, nil

	case "FeeUpdate":
		fee, err := asBigIntAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.FeeUpdateEvent{NewFee: fee}, nil

	case "AssetRecipientChange":
		recipient, err := asAddressAt(values, 0)
		if err != nil {
			return nil, err
		}
		return model.AssetRecipientChangeEvent{Recipient: recipient.Hex()}, nil

	default:
		return nil, fmt.Errorf("unsupported event name: %s", entry.event.Name)
	}
}

func swapQuantity(entry eventEntry, values []interface{}) (model.Quantity, error) {
	if entry.scalar {
		amount, err := asBigIntAt(values, 1)
		if err != nil {
			return model.Quantity{}, err
		}
		return model.QuantityFromAmount(amount)
	}
	ids, err := asBigIntSlice(values, 1)
	if err != nil {
		return model.Quantity{}, err
	}
	return model.QuantityFromIDs(ids)
}

func topicKey(id common.Hash) string {
	return strings.ToLower(id.Hex())
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigIntAt(values []interface{}, index int) (*big.Int, error) {
	if index >= len(values) {
		return nil, fmt.Errorf("missing value at index %d", index)
	}
	switch v := values[index].(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T at index %d", values[index], index)
	}
}

func asBigIntSlice(values []interface{}, index int) ([]*big.Int, error) {
	if index >= len(values) {
		return nil, fmt.Errorf("missing value at index %d", index)
	}
	raw, ok := values[index].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported id list type %T at index %d", values[index], index)
	}
	out := make([]*big.Int, 0, len(raw))
	for _, id := range raw {
		out = append(out, new(big.Int).Set(id))
	}
	return out, nil
}

func asAddressAt(values []interface{}, index int) (common.Address, error) {
	if index >= len(values) {
		return common.Address{}, fmt.Errorf("missing value at index %d", index)
	}
	switch v := values[index].(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T at index %d", values[index], index)
	}
}
