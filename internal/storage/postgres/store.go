package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mevscope/internal/model"
)

// Store provides Postgres persistence for classified actions.
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
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertActions inserts or updates classified action records.
func (s *Store) UpsertActions(ctx context.Context, records []model.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO classified_actions (
				block_number, tx_hash, node_index, kind, address, pool,
				from_address, to_address, recipient, tokens, amounts, finalized,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now(), now())
			ON CONFLICT (tx_hash, node_index)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				address = EXCLUDED.address,
				pool = EXCLUDED.pool,
				from_address = EXCLUDED.from_address,
				to_address = EXCLUDED.to_address,
				recipient = EXCLUDED.recipient,
				tokens = EXCLUDED.tokens,
				amounts = EXCLUDED.amounts,
				finalized = EXCLUDED.finalized,
				updated_at = now()
		`,
			int64(r.BlockNumber),
			r.TxHash,
			int64(r.NodeIndex),
			r.Kind,
			r.Address,
			r.Pool,
			r.From,
			r.To,
			r.Recipient,
			r.Tokens,
			r.Amounts,
			r.Finalized,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDynProtocols inserts or updates dynamically discovered
// exchange addresses.
func (s *Store) UpsertDynProtocols(ctx context.Context, records []model.DynProtocolRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO dyn_protocols (address, token0, token1, discovered_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (address)
			DO UPDATE SET token0 = EXCLUDED.token0, token1 = EXCLUDED.token1
		`,
			r.Address,
			r.Token0,
			r.Token1,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
