package model

import "math/big"

// Decoded payloads for the pair lifecycle events. The dispatcher switches
// exhaustively over these types; anything else is stream corruption.

// PairCreatedEvent is the decoded NewERC721Pair / NewERC1155Pair payload.
// InitialIDs is set for ERC721 pairs, InitialBalance for ERC1155 pairs. The
// initial inventory never affects balances directly; the factory emits
// companion deposit events that carry it through the ledger.
type PairCreatedEvent struct {
	Variant        PoolVariant
	InitialIDs     []*big.Int
	InitialBalance *big.Int
}

// TokenDepositEvent is the decoded ERC20Deposit / TokenDeposit payload.
type TokenDepositEvent struct {
	Amount *big.Int
}

// NFTDepositEvent is the decoded NFTDeposit payload (ERC721 ids).
type NFTDepositEvent struct {
	IDs []*big.Int
}

// ERC1155DepositEvent is the decoded ERC1155Deposit payload.
type ERC1155DepositEvent struct {
	ID     *big.Int
	Amount *big.Int
}

// TokenWithdrawalEvent is the decoded TokenWithdrawal payload.
type TokenWithdrawalEvent struct {
	Amount *big.Int
}

// NFTWithdrawalEvent is the decoded NFTWithdrawal(ids) payload.
type NFTWithdrawalEvent struct {
	IDs []*big.Int
}

// ERC1155WithdrawalEvent is the decoded NFTWithdrawal(numNFTs) payload.
type ERC1155WithdrawalEvent struct {
	Amount *big.Int
}

// SwapNFTInEvent is the decoded SwapNFTInPair payload: NFTs entered the pool
// and AmountOut tokens were paid out.
type SwapNFTInEvent struct {
	AmountOut *big.Int
	Quantity  Quantity
}

// SwapNFTOutEvent is the decoded SwapNFTOutPair payload: NFTs left the pool
// and AmountIn tokens were received.
type SwapNFTOutEvent struct {
	AmountIn *big.Int
	Quantity Quantity
}

// SpotPriceUpdateEvent overwrites the pool's spot price.
type SpotPriceUpdateEvent struct {
	NewSpotPrice *big.Int
}

// DeltaUpdateEvent overwrites the pool's delta.
type DeltaUpdateEvent struct {
	NewDelta *big.Int
}

// FeeUpdateEvent overwrites the pool's fee.
type FeeUpdateEvent struct {
	NewFee *big.Int
}

// AssetRecipientChangeEvent overwrites the pool's asset recipient.
type AssetRecipientChangeEvent struct {
	Recipient string
}
