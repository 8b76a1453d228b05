package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexsim/internal/amm"
	"dexsim/internal/storage"
)

// Store mirrors pool snapshots into Postgres, one row per pool keyed by
// (chain_id, pool_address). The pool's full state travels as a JSONB payload
// so new pool families need no schema change.
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
	store := &Store{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS amm_pools (
			chain_id BIGINT NOT NULL,
			pool_address TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload JSONB NOT NULL,
			block_number BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (chain_id, pool_address)
		)
	`)
	return err
}

// Save upserts every pool in the snapshot.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	if len(snap.Pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range snap.Pools {
		payload, err := json.Marshal(pool)
		if err != nil {
			return fmt.Errorf("marshal pool %s: %w", pool.Address().Hex(), err)
		}
		batch.Queue(`
			INSERT INTO amm_pools (
				chain_id, pool_address, kind, payload, block_number, updated_at
			) VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				payload = EXCLUDED.payload,
				block_number = EXCLUDED.block_number,
				updated_at = now()
		`,
			int64(snap.ChainID),
			pool.Address().Hex(),
			string(pool.Kind()),
			payload,
			int64(snap.BlockNumber),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snap.Pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Load reassembles a snapshot from the stored rows. Absence of rows reports
// absence, not an error. Rows must all belong to one chain; the snapshot's
// block number is the highest stored one.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, payload, block_number, updated_at
		FROM amm_pools
		ORDER BY pool_address
	`)
	if err != nil {
		return storage.Snapshot{}, false, err
	}
	defer rows.Close()

	var (
		snap    storage.Snapshot
		found   bool
		savedAt time.Time
	)
	for rows.Next() {
		var (
			chainID     int64
			payload     []byte
			blockNumber int64
			updatedAt   time.Time
		)
		if err := rows.Scan(&chainID, &payload, &blockNumber, &updatedAt); err != nil {
			return storage.Snapshot{}, false, err
		}

		if found && snap.ChainID != uint64(chainID) {
			return storage.Snapshot{}, false, fmt.Errorf("mixed chain ids in amm_pools: %d and %d", snap.ChainID, chainID)
		}
		snap.ChainID = uint64(chainID)
		found = true

		var pool amm.AMM
		if err := json.Unmarshal(payload, &pool); err != nil {
			return storage.Snapshot{}, false, fmt.Errorf("parse pool payload: %w", err)
		}
		snap.Pools = append(snap.Pools, pool)

		if uint64(blockNumber) > snap.BlockNumber {
			snap.BlockNumber = uint64(blockNumber)
		}
		if updatedAt.After(savedAt) {
			savedAt = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return storage.Snapshot{}, false, err
	}
	if !found {
		return storage.Snapshot{}, false, nil
	}

	snap.SavedAt = savedAt.UTC().Format(time.RFC3339Nano)
	return snap, true, nil
}
