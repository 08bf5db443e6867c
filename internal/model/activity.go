package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ActivityKind distinguishes the three ledger record families.
type ActivityKind string

const (
	ActivityDeposit    ActivityKind = "deposit"
	ActivityWithdrawal ActivityKind = "withdrawal"
	ActivitySwap       ActivityKind = "swap"
)

// Asset type tags for deposits and withdrawals.
const (
	AssetToken   = "token"
	AssetNFT     = "nft"
	AssetERC1155 = "erc1155"
)

// Swap type tags. These follow the pair contract's own orientation: a "buy"
// moves NFTs into the pool and tokens out, a "sell" the reverse. They are
// classification labels only; no user-facing meaning is attached.
const (
	SwapBuy  = "buy"
	SwapSell = "sell"
)

// ActivityKey uniquely identifies one on-chain event. It is the idempotency
// anchor for the ledger: a key is written at most once and never reused.
type ActivityKey struct {
	TxHash   string
	LogIndex uint64
}

func (k ActivityKey) String() string {
	return fmt.Sprintf("%s-%d", k.TxHash, k.LogIndex)
}

// Activity is one immutable Deposit, Withdrawal, or Swap fact derived from a
// single log event. TokenAmount is nil when the record moved no tokens.
type Activity struct {
	Kind        ActivityKind
	Pool        string
	Type        string
	TokenAmount *big.Int
	Quantity    Quantity
	Timestamp   uint64
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Sender      string
}

// Key returns the record's idempotency key.
func (a *Activity) Key() ActivityKey {
	return ActivityKey{TxHash: a.TxHash, LogIndex: a.LogIndex}
}

// Validate checks structural invariants at construction time rather than
// relying on caller discipline.
func (a *Activity) Validate() error {
	switch a.Kind {
	case ActivityDeposit, ActivityWithdrawal:
		switch a.Type {
		case AssetToken, AssetNFT, AssetERC1155:
		default:
			return fmt.Errorf("invalid %s type: %q", a.Kind, a.Type)
		}
	case ActivitySwap:
		if a.Type != SwapBuy && a.Type != SwapSell {
			return fmt.Errorf("invalid swap type: %q", a.Type)
		}
	default:
		return fmt.Errorf("invalid activity kind: %q", a.Kind)
	}
	if a.Pool == "" {
		return fmt.Errorf("activity has no pool")
	}
	if a.TxHash == "" {
		return fmt.Errorf("activity has no tx hash")
	}
	if len(a.Quantity.ids) > 0 && a.Quantity.amount != nil && a.Quantity.amount.Sign() != 0 {
		return fmt.Errorf("activity quantity carries both ids and a scalar amount")
	}
	return nil
}

type activityJSON struct {
	Kind        ActivityKind `json:"kind"`
	Pool        string       `json:"pool"`
	Type        string       `json:"type"`
	TokenAmount string       `json:"token_amount,omitempty"`
	Quantity    Quantity     `json:"quantity"`
	Timestamp   uint64       `json:"timestamp"`
	BlockNumber uint64       `json:"block_number"`
	TxHash      string       `json:"tx_hash"`
	LogIndex    uint64       `json:"log_index"`
	Sender      string       `json:"sender"`
}

// MarshalJSON encodes the token amount as a decimal string.
func (a Activity) MarshalJSON() ([]byte, error) {
	out := activityJSON{
		Kind:        a.Kind,
		Pool:        a.Pool,
		Type:        a.Type,
		Quantity:    a.Quantity,
		Timestamp:   a.Timestamp,
		BlockNumber: a.BlockNumber,
		TxHash:      a.TxHash,
		LogIndex:    a.LogIndex,
		Sender:      a.Sender,
	}
	if a.TokenAmount != nil {
		out.TokenAmount = a.TokenAmount.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an Activity from its string-encoded form.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var in activityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var tokenAmount *big.Int
	if in.TokenAmount != "" {
		parsed, ok := new(big.Int).SetString(in.TokenAmount, 10)
		if !ok {
			return fmt.Errorf("invalid token_amount: %s", in.TokenAmount)
		}
		tokenAmount = parsed
	}

	*a = Activity{
		Kind:        in.Kind,
		Pool:        in.Pool,
		Type:        in.Type,
		TokenAmount: tokenAmount,
		Quantity:    in.Quantity,
		Timestamp:   in.Timestamp,
		BlockNumber: in.BlockNumber,
		TxHash:      in.TxHash,
		LogIndex:    in.LogIndex,
		Sender:      in.Sender,
	}
	return a.Validate()
}
