package memory

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"

	"pairScope/internal/model"
	"pairScope/internal/projection"
)

// Store is an in-memory implementation of projection.Store. It backs tests
// and small backfills; the Postgres store is the durable twin.
type Store struct {
	mu         sync.RWMutex
	pools      map[string]*model.Pool
	activities map[model.ActivityKey]*model.Activity
	byPool     map[string][]model.ActivityKey // append order per pool
}

func NewStore() *Store {
	return &Store{
		pools:      make(map[string]*model.Pool),
		activities: make(map[model.ActivityKey]*model.Activity),
		byPool:     make(map[string][]model.ActivityKey),
	}
}

var _ projection.Store = (*Store)(nil)

func poolKey(address string) string {
	return strings.ToLower(address)
}

// CreatePool inserts a new pool aggregate.
func (s *Store) CreatePool(_ context.Context, pool *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poolKey(pool.Address)
	if _, exists := s.pools[key]; exists {
		return projection.ErrPoolExists
	}
	s.pools[key] = pool.Clone()
	return nil
}

// ApplyActivity appends one ledger record and applies the balance deltas
// under a single lock, so replays and crashes never leave a half-applied
// event.
func (s *Store) ApplyActivity(_ context.Context, activity *model.Activity, tokenDelta, nftDelta *big.Int) error {
	if err := activity.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, exists := s.pools[poolKey(activity.Pool)]
	if !exists {
		return projection.ErrUnknownPool
	}

	key := activity.Key()
	if _, exists := s.activities[key]; exists {
		return projection.ErrDuplicateActivity
	}

	copied := *activity
	s.activities[key] = &copied
	s.byPool[poolKey(activity.Pool)] = append(s.byPool[poolKey(activity.Pool)], key)

	if tokenDelta != nil {
		pool.TokenBalance = new(big.Int).Add(pool.TokenBalance, tokenDelta)
	}
	if nftDelta != nil {
		pool.NFTBalance = new(big.Int).Add(pool.NFTBalance, nftDelta)
	}
	return nil
}

// UpdatePoolField overwrites one update-event-owned field.
func (s *Store) UpdatePoolField(_ context.Context, poolAddress string, update projection.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, exists := s.pools[poolKey(poolAddress)]
	if !exists {
		return projection.ErrUnknownPool
	}

	switch update.Field {
	case projection.FieldSpotPrice:
		pool.SpotPrice = new(big.Int).Set(update.BigValue)
	case projection.FieldDelta:
		pool.Delta = new(big.Int).Set(update.BigValue)
	case projection.FieldFee:
		pool.Fee = new(big.Int).Set(update.BigValue)
	case projection.FieldAssetRecipient:
		pool.AssetRecipient = update.AddrValue
	}
	return nil
}

// SetPoolNFTID fills the pool's nftId if unset.
func (s *Store) SetPoolNFTID(_ context.Context, poolAddress string, id *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, exists := s.pools[poolKey(poolAddress)]
	if !exists {
		return projection.ErrUnknownPool
	}
	if pool.NFTID == nil {
		pool.NFTID = new(big.Int).Set(id)
	}
	return nil
}

// GetPool fetches one pool.
func (s *Store) GetPool(_ context.Context, address string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, exists := s.pools[poolKey(address)]
	if !exists {
		return nil, projection.ErrUnknownPool
	}
	return pool.Clone(), nil
}

// PoolAddresses lists every projected pool address.
func (s *Store) PoolAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.pools))
	for _, pool := range s.pools {
		out = append(out, pool.Address)
	}
	sort.Strings(out)
	return out, nil
}

// PoolsByNFTContract lists pools for an NFT contract, spot price ascending.
func (s *Store) PoolsByNFTContract(_ context.Context, nftContract string, limit, offset int) ([]*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*model.Pool, 0)
	for _, pool := range s.pools {
		if strings.EqualFold(pool.NFTContract, nftContract) {
			matched = append(matched, pool.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		cmp := matched[i].SpotPrice.Cmp(matched[j].SpotPrice)
		if cmp != 0 {
			return cmp < 0
		}
		return matched[i].Address < matched[j].Address
	})

	return paginate(matched, limit, offset), nil
}

// PoolActivity lists a pool's ledger records newest first.
func (s *Store) PoolActivity(_ context.Context, poolAddress string, limit, offset int) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byPool[poolKey(poolAddress)]
	out := make([]*model.Activity, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		record := *s.activities[keys[i]]
		out = append(out, &record)
	}
	return paginate(out, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
