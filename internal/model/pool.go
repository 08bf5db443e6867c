package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// PoolVariant identifies the pair implementation a pool was created from.
// The value is fixed at creation and matches the factory's pairVariant enum.
type PoolVariant uint8

const (
	VariantERC721ETH PoolVariant = iota
	VariantERC721ERC20
	VariantERC1155ETH
	VariantERC1155ERC20
)

// IsERC1155 reports whether the pool holds fungible units of a single id.
func (v PoolVariant) IsERC1155() bool {
	return v == VariantERC1155ETH || v == VariantERC1155ERC20
}

func (v PoolVariant) String() string {
	switch v {
	case VariantERC721ETH:
		return "erc721_eth"
	case VariantERC721ERC20:
		return "erc721_erc20"
	case VariantERC1155ETH:
		return "erc1155_eth"
	case VariantERC1155ERC20:
		return "erc1155_erc20"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// Pool is the materialized view of one pair contract. Balances are the only
// fields mutated after creation; spotPrice/delta/fee/assetRecipient are
// overwritten last-write-wins by their update events.
type Pool struct {
	ChainID        uint64
	Address        string
	NFTContract    string
	TokenContract  string // empty for ETH-denominated pools
	PoolType       uint8
	Variant        PoolVariant
	SpotPrice      *big.Int
	Delta          *big.Int
	Fee            *big.Int
	BondingCurve   string
	AssetRecipient string
	Owner          string
	NFTID          *big.Int // ERC1155 variants only
	TokenBalance   *big.Int
	NFTBalance     *big.Int
	CreatedAt      uint64
	CreatedAtBlock uint64
	CreatedAtTx    string
}

// Clone returns a deep copy so stored pools cannot be mutated by callers.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	out.SpotPrice = copyBig(p.SpotPrice)
	out.Delta = copyBig(p.Delta)
	out.Fee = copyBig(p.Fee)
	out.NFTID = copyBig(p.NFTID)
	out.TokenBalance = copyBig(p.TokenBalance)
	out.NFTBalance = copyBig(p.NFTBalance)
	return &out
}

type poolJSON struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	NFTContract    string `json:"nft_contract"`
	TokenContract  string `json:"token_contract,omitempty"`
	PoolType       uint8  `json:"pool_type"`
	Variant        uint8  `json:"pool_variant"`
	SpotPrice      string `json:"spot_price"`
	Delta          string `json:"delta"`
	Fee            string `json:"fee"`
	BondingCurve   string `json:"bonding_curve"`
	AssetRecipient string `json:"asset_recipient,omitempty"`
	Owner          string `json:"owner"`
	NFTID          string `json:"nft_id,omitempty"`
	TokenBalance   string `json:"current_token_balance"`
	NFTBalance     string `json:"current_nft_balance"`
	CreatedAt      uint64 `json:"created_at"`
	CreatedAtBlock uint64 `json:"created_at_block"`
	CreatedAtTx    string `json:"created_at_tx"`
}

// MarshalJSON encodes all big integers as decimal strings.
func (p Pool) MarshalJSON() ([]byte, error) {
	out := poolJSON{
		ChainID:        p.ChainID,
		Address:        p.Address,
		NFTContract:    p.NFTContract,
		TokenContract:  p.TokenContract,
		PoolType:       p.PoolType,
		Variant:        uint8(p.Variant),
		SpotPrice:      bigString(p.SpotPrice),
		Delta:          bigString(p.Delta),
		Fee:            bigString(p.Fee),
		BondingCurve:   p.BondingCurve,
		AssetRecipient: p.AssetRecipient,
		Owner:          p.Owner,
		TokenBalance:   bigString(p.TokenBalance),
		NFTBalance:     bigString(p.NFTBalance),
		CreatedAt:      p.CreatedAt,
		CreatedAtBlock: p.CreatedAtBlock,
		CreatedAtTx:    p.CreatedAtTx,
	}
	if p.NFTID != nil {
		out.NFTID = p.NFTID.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a Pool from its string-encoded form.
func (p *Pool) UnmarshalJSON(data []byte) error {
	var in poolJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	spot, err := parseBig(in.SpotPrice, "spot_price")
	if err != nil {
		return err
	}
	delta, err := parseBig(in.Delta, "delta")
	if err != nil {
		return err
	}
	fee, err := parseBig(in.Fee, "fee")
	if err != nil {
		return err
	}
	tokenBalance, err := parseBig(in.TokenBalance, "current_token_balance")
	if err != nil {
		return err
	}
	nftBalance, err := parseBig(in.NFTBalance, "current_nft_balance")
	if err != nil {
		return err
	}

	var nftID *big.Int
	if in.NFTID != "" {
		nftID, err = parseBig(in.NFTID, "nft_id")
		if err != nil {
			return err
		}
	}

	*p = Pool{
		ChainID:        in.ChainID,
		Address:        in.Address,
		NFTContract:    in.NFTContract,
		TokenContract:  in.TokenContract,
		PoolType:       in.PoolType,
		Variant:        PoolVariant(in.Variant),
		SpotPrice:      spot,
		Delta:          delta,
		Fee:            fee,
		BondingCurve:   in.BondingCurve,
		AssetRecipient: in.AssetRecipient,
		Owner:          in.Owner,
		NFTID:          nftID,
		TokenBalance:   tokenBalance,
		NFTBalance:     nftBalance,
		CreatedAt:      in.CreatedAt,
		CreatedAtBlock: in.CreatedAtBlock,
		CreatedAtTx:    in.CreatedAtTx,
	}
	return nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(raw, field string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", field, raw)
	}
	return v, nil
}
