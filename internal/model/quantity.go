package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Quantity expresses how many NFTs moved in one event. ERC721-style events
// carry a list of distinct token ids; ERC1155-style events carry a scalar
// amount of a single id. A Quantity never carries both.
type Quantity struct {
	ids    []*big.Int
	amount *big.Int
}

// QuantityFromIDs builds an ERC721-style quantity from distinct token ids.
func QuantityFromIDs(ids []*big.Int) (Quantity, error) {
	copied := make([]*big.Int, 0, len(ids))
	for i, id := range ids {
		if id == nil {
			return Quantity{}, fmt.Errorf("nft id at index %d is nil", i)
		}
		if id.Sign() < 0 {
			return Quantity{}, fmt.Errorf("nft id at index %d is negative: %s", i, id)
		}
		copied = append(copied, new(big.Int).Set(id))
	}
	return Quantity{ids: copied}, nil
}

// QuantityFromAmount builds an ERC1155-style quantity from a scalar amount.
func QuantityFromAmount(amount *big.Int) (Quantity, error) {
	if amount == nil {
		return Quantity{}, fmt.Errorf("nft amount is nil")
	}
	if amount.Sign() < 0 {
		return Quantity{}, fmt.Errorf("nft amount is negative: %s", amount)
	}
	return Quantity{amount: new(big.Int).Set(amount)}, nil
}

// IsScalar reports whether the quantity is expressed as a scalar amount.
func (q Quantity) IsScalar() bool {
	return q.amount != nil
}

// IDs returns a copy of the id list. Empty for scalar quantities.
func (q Quantity) IDs() []*big.Int {
	out := make([]*big.Int, 0, len(q.ids))
	for _, id := range q.ids {
		out = append(out, new(big.Int).Set(id))
	}
	return out
}

// Amount returns the scalar amount, or zero for id-list quantities.
func (q Quantity) Amount() *big.Int {
	if q.amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(q.amount)
}

// Count returns the number of NFTs the quantity represents: len(ids) for
// id-list quantities, the amount for scalar quantities.
func (q Quantity) Count() *big.Int {
	if q.amount != nil {
		return new(big.Int).Set(q.amount)
	}
	return big.NewInt(int64(len(q.ids)))
}

type quantityJSON struct {
	NFTIDs    []string `json:"nft_ids"`
	NFTAmount string   `json:"nft_amount,omitempty"`
}

// MarshalJSON encodes ids and amounts as decimal strings.
func (q Quantity) MarshalJSON() ([]byte, error) {
	out := quantityJSON{NFTIDs: make([]string, 0, len(q.ids))}
	for _, id := range q.ids {
		out.NFTIDs = append(out.NFTIDs, id.String())
	}
	if q.amount != nil {
		out.NFTAmount = q.amount.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a Quantity and re-validates mutual exclusivity.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var in quantityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.NFTIDs) > 0 && in.NFTAmount != "" {
		return fmt.Errorf("quantity carries both nft ids and a scalar amount")
	}
	if in.NFTAmount != "" {
		amount, ok := new(big.Int).SetString(in.NFTAmount, 10)
		if !ok {
			return fmt.Errorf("invalid nft amount: %s", in.NFTAmount)
		}
		parsed, err := QuantityFromAmount(amount)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	ids := make([]*big.Int, 0, len(in.NFTIDs))
	for _, raw := range in.NFTIDs {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return fmt.Errorf("invalid nft id: %s", raw)
		}
		ids = append(ids, id)
	}
	parsed, err := QuantityFromIDs(ids)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
