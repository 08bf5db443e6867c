package projection

import (
	"context"
	"errors"
	"math/big"

	"pairScope/internal/model"
)

// Error taxonomy for projection mutations.
var (
	// ErrPoolExists signals a creation event for an address that is already
	// projected. This means the stream is corrupt and processing must halt.
	ErrPoolExists = errors.New("pool already exists")

	// ErrUnknownPool signals an event referencing a pool the store has never
	// seen. Expected under partial backfills; callers log and skip.
	ErrUnknownPool = errors.New("unknown pool")

	// ErrDuplicateActivity signals a (txHash, logIndex) key already present in
	// the ledger. Replays skip silently; nothing is double-counted.
	ErrDuplicateActivity = errors.New("duplicate activity key")
)

// PoolField names the last-write-wins pool fields owned by update events.
type PoolField string

const (
	FieldSpotPrice      PoolField = "spot_price"
	FieldDelta          PoolField = "delta"
	FieldFee            PoolField = "fee"
	FieldAssetRecipient PoolField = "asset_recipient"
)

// FieldUpdate carries one last-write-wins overwrite. BigValue is set for the
// numeric fields, AddrValue for the asset recipient.
type FieldUpdate struct {
	Field     PoolField
	BigValue  *big.Int
	AddrValue string
}

// Store is the single source of truth for pool state and the activity ledger.
// ApplyActivity is the only balance mutation and is atomic: the ledger append
// and the balance delta land together or not at all.
type Store interface {
	// CreatePool inserts a new pool aggregate. Balances must already be zero.
	// Returns ErrPoolExists if the address is taken.
	CreatePool(ctx context.Context, pool *model.Pool) error

	// ApplyActivity appends one ledger record and adds the signed deltas to
	// the pool's balances in a single atomic step. Returns ErrUnknownPool if
	// the pool is absent and ErrDuplicateActivity if the key is already
	// recorded; in both cases nothing is mutated.
	ApplyActivity(ctx context.Context, activity *model.Activity, tokenDelta, nftDelta *big.Int) error

	// UpdatePoolField overwrites one of the update-event-owned fields.
	// Returns ErrUnknownPool if the pool is absent.
	UpdatePoolField(ctx context.Context, pool string, update FieldUpdate) error

	// SetPoolNFTID fills the pool's nftId when it was not readable at
	// creation. No-op if already set. Returns ErrUnknownPool if absent.
	SetPoolNFTID(ctx context.Context, pool string, id *big.Int) error

	// GetPool fetches one pool. Returns ErrUnknownPool if absent.
	GetPool(ctx context.Context, address string) (*model.Pool, error)

	// PoolAddresses lists every projected pool address. Used to rebuild the
	// watched address set when resuming from a checkpoint.
	PoolAddresses(ctx context.Context) ([]string, error)

	// PoolsByNFTContract lists pools for an NFT contract ordered by spot
	// price ascending.
	PoolsByNFTContract(ctx context.Context, nftContract string, limit, offset int) ([]*model.Pool, error)

	// PoolActivity lists a pool's ledger records newest first.
	PoolActivity(ctx context.Context, pool string, limit, offset int) ([]*model.Activity, error)
}
