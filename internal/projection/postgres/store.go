package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairScope/internal/model"
	"pairScope/internal/projection"
)

// unique_violation
const pgErrUniqueViolation = "23505"

// Store provides Postgres persistence for the pool projection and the
// activity ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs raw SQL; used by the migration runner.
func (s *Store) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

var _ projection.Store = (*Store)(nil)

// CreatePool inserts a new pool aggregate.
func (s *Store) CreatePool(ctx context.Context, pool *model.Pool) error {
	var nftID *string
	if pool.NFTID != nil {
		v := pool.NFTID.String()
		nftID = &v
	}
	var tokenContract, assetRecipient *string
	if pool.TokenContract != "" {
		tokenContract = &pool.TokenContract
	}
	if pool.AssetRecipient != "" {
		assetRecipient = &pool.AssetRecipient
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			chain_id, address, nft_contract, token_contract, pool_type, pool_variant,
			spot_price, delta, fee, bonding_curve, asset_recipient, owner, nft_id,
			token_balance, nft_balance, created_at, created_at_block, created_at_tx, updated_at
		) VALUES (
			$1, lower($2), lower($3), lower($4), $5, $6,
			$7::numeric, $8::numeric, $9::numeric, lower($10), lower($11), lower($12), $13::numeric,
			$14::numeric, $15::numeric, $16, $17, $18, now()
		)
	`,
		int64(pool.ChainID),
		pool.Address,
		pool.NFTContract,
		tokenContract,
		int16(pool.PoolType),
		int16(pool.Variant),
		bigText(pool.SpotPrice),
		bigText(pool.Delta),
		bigText(pool.Fee),
		pool.BondingCurve,
		assetRecipient,
		pool.Owner,
		nftID,
		bigText(pool.TokenBalance),
		bigText(pool.NFTBalance),
		int64(pool.CreatedAt),
		int64(pool.CreatedAtBlock),
		pool.CreatedAtTx,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return projection.ErrPoolExists
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// ApplyActivity runs the balance update and the ledger append in one
// transaction so an event is either fully applied or not at all.
func (s *Store) ApplyActivity(ctx context.Context, activity *model.Activity, tokenDelta, nftDelta *big.Int) error {
	if err := activity.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE pools
		SET token_balance = token_balance + $2::numeric,
		    nft_balance = nft_balance + $3::numeric,
		    updated_at = now()
		WHERE address = lower($1)
	`, activity.Pool, bigText(tokenDelta), bigText(nftDelta))
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return projection.ErrUnknownPool
	}

	var tokenAmount *string
	if activity.TokenAmount != nil {
		v := activity.TokenAmount.String()
		tokenAmount = &v
	}
	nftIDs := make([]string, 0)
	for _, id := range activity.Quantity.IDs() {
		nftIDs = append(nftIDs, id.String())
	}
	var nftAmount *string
	if activity.Quantity.IsScalar() {
		v := activity.Quantity.Amount().String()
		nftAmount = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO activities (
			tx_hash, log_index, kind, pool, type, token_amount, nft_ids, nft_amount,
			timestamp, block_number, sender
		) VALUES ($1, $2, $3, lower($4), $5, $6::numeric, $7, $8::numeric, $9, $10, lower($11))
	`,
		activity.TxHash,
		int64(activity.LogIndex),
		string(activity.Kind),
		activity.Pool,
		activity.Type,
		tokenAmount,
		nftIDs,
		nftAmount,
		int64(activity.Timestamp),
		int64(activity.BlockNumber),
		activity.Sender,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return projection.ErrDuplicateActivity
		}
		return fmt.Errorf("insert activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdatePoolField overwrites one update-event-owned field.
func (s *Store) UpdatePoolField(ctx context.Context, pool string, update projection.FieldUpdate) error {
	var tag pgconn.CommandTag
	var err error

	switch update.Field {
	case projection.FieldSpotPrice, projection.FieldDelta, projection.FieldFee:
		query := fmt.Sprintf(`UPDATE pools SET %s = $2::numeric, updated_at = now() WHERE address = lower($1)`, update.Field)
		tag, err = s.pool.Exec(ctx, query, pool, bigText(update.BigValue))
	case projection.FieldAssetRecipient:
		tag, err = s.pool.Exec(ctx, `UPDATE pools SET asset_recipient = lower($2), updated_at = now() WHERE address = lower($1)`, pool, update.AddrValue)
	default:
		return fmt.Errorf("unsupported pool field: %s", update.Field)
	}

	if err != nil {
		return fmt.Errorf("update pool field %s: %w", update.Field, err)
	}
	if tag.RowsAffected() == 0 {
		return projection.ErrUnknownPool
	}
	return nil
}

// SetPoolNFTID fills the pool's nftId if unset.
func (s *Store) SetPoolNFTID(ctx context.Context, pool string, id *big.Int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pools SET nft_id = $2::numeric, updated_at = now()
		WHERE address = lower($1) AND nft_id IS NULL
	`, pool, bigText(id))
	if err != nil {
		return fmt.Errorf("set pool nft id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either already set or unknown; distinguish for the caller.
		var exists bool
		row := s.pool.QueryRow(ctx, `SELECT true FROM pools WHERE address = lower($1)`, pool)
		if err := row.Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return projection.ErrUnknownPool
			}
			return fmt.Errorf("check pool: %w", err)
		}
	}
	return nil
}

const poolColumns = `
	chain_id, address, nft_contract, token_contract, pool_type, pool_variant,
	spot_price::text, delta::text, fee::text, bonding_curve, asset_recipient, owner,
	nft_id::text, token_balance::text, nft_balance::text,
	created_at, created_at_block, created_at_tx
`

// GetPool fetches one pool.
func (s *Store) GetPool(ctx context.Context, address string) (*model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE address = lower($1)`, address)
	pool, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, projection.ErrUnknownPool
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return pool, nil
}

// PoolAddresses lists every projected pool address.
func (s *Store) PoolAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM pools ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("pool addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]string, 0)
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// PoolsByNFTContract lists pools for an NFT contract, spot price ascending.
func (s *Store) PoolsByNFTContract(ctx context.Context, nftContract string, limit, offset int) ([]*model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+poolColumns+`
		FROM pools
		WHERE nft_contract = lower($1)
		ORDER BY spot_price ASC, address ASC
		LIMIT $2 OFFSET $3
	`, nftContract, normalizeLimit(limit), maxInt(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("pools by nft contract: %w", err)
	}
	defer rows.Close()

	pools := make([]*model.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// PoolActivity lists a pool's ledger records newest first.
func (s *Store) PoolActivity(ctx context.Context, pool string, limit, offset int) ([]*model.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, log_index, kind, pool, type, token_amount::text, nft_ids, nft_amount::text,
		       timestamp, block_number, sender
		FROM activities
		WHERE pool = lower($1)
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2 OFFSET $3
	`, pool, normalizeLimit(limit), maxInt(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("pool activity: %w", err)
	}
	defer rows.Close()

	activities := make([]*model.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

func scanPool(row pgx.Row) (*model.Pool, error) {
	var (
		chainID        int64
		address        string
		nftContract    string
		tokenContract  *string
		poolType       int16
		variant        int16
		spotPrice      string
		delta          string
		fee            string
		bondingCurve   string
		assetRecipient *string
		owner          string
		nftID          *string
		tokenBalance   string
		nftBalance     string
		createdAt      int64
		createdAtBlock int64
		createdAtTx    string
	)

	if err := row.Scan(
		&chainID, &address, &nftContract, &tokenContract, &poolType, &variant,
		&spotPrice, &delta, &fee, &bondingCurve, &assetRecipient, &owner,
		&nftID, &tokenBalance, &nftBalance,
		&createdAt, &createdAtBlock, &createdAtTx,
	); err != nil {
		return nil, err
	}

	pool := &model.Pool{
		ChainID:        uint64(chainID),
		Address:        address,
		NFTContract:    nftContract,
		PoolType:       uint8(poolType),
		Variant:        model.PoolVariant(variant),
		BondingCurve:   bondingCurve,
		Owner:          owner,
		CreatedAt:      uint64(createdAt),
		CreatedAtBlock: uint64(createdAtBlock),
		CreatedAtTx:    createdAtTx,
	}
	if tokenContract != nil {
		pool.TokenContract = *tokenContract
	}
	if assetRecipient != nil {
		pool.AssetRecipient = *assetRecipient
	}

	var err error
	if pool.SpotPrice, err = textBig(spotPrice, "spot_price"); err != nil {
		return nil, err
	}
	if pool.Delta, err = textBig(delta, "delta"); err != nil {
		return nil, err
	}
	if pool.Fee, err = textBig(fee, "fee"); err != nil {
		return nil, err
	}
	if pool.TokenBalance, err = textBig(tokenBalance, "token_balance"); err != nil {
		return nil, err
	}
	if pool.NFTBalance, err = textBig(nftBalance, "nft_balance"); err != nil {
		return nil, err
	}
	if nftID != nil {
		if pool.NFTID, err = textBig(*nftID, "nft_id"); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func scanActivity(row pgx.Row) (*model.Activity, error) {
	var (
		txHash      string
		logIndex    int64
		kind        string
		pool        string
		actType     string
		tokenAmount *string
		nftIDs      []string
		nftAmount   *string
		timestamp   int64
		blockNumber int64
		sender      string
	)

	if err := row.Scan(
		&txHash, &logIndex, &kind, &pool, &actType, &tokenAmount, &nftIDs, &nftAmount,
		&timestamp, &blockNumber, &sender,
	); err != nil {
		return nil, err
	}

	activity := &model.Activity{
		Kind:        model.ActivityKind(kind),
		Pool:        pool,
		Type:        actType,
		Timestamp:   uint64(timestamp),
		BlockNumber: uint64(blockNumber),
		TxHash:      txHash,
		LogIndex:    uint64(logIndex),
		Sender:      sender,
	}

	if tokenAmount != nil {
		amount, err := textBig(*tokenAmount, "token_amount")
		if err != nil {
			return nil, err
		}
		activity.TokenAmount = amount
	}

	if nftAmount != nil {
		amount, err := textBig(*nftAmount, "nft_amount")
		if err != nil {
			return nil, err
		}
		quantity, err := model.QuantityFromAmount(amount)
		if err != nil {
			return nil, err
		}
		activity.Quantity = quantity
	} else {
		ids := make([]*big.Int, 0, len(nftIDs))
		for _, raw := range nftIDs {
			id, err := textBig(raw, "nft_ids")
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		quantity, err := model.QuantityFromIDs(ids)
		if err != nil {
			return nil, err
		}
		activity.Quantity = quantity
	}

	return activity, nil
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func textBig(raw, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", field, raw)
	}
	return v, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
