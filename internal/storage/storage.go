package storage

import (
	"context"

	"dexsim/internal/amm"
)

// Snapshot is a checkpoint of a pool set: every pool's full state at a block
// height, stamped when it was written.
type Snapshot struct {
	ChainID     uint64    `json:"chain_id"`
	BlockNumber uint64    `json:"block_number"`
	SavedAt     string    `json:"saved_at"`
	Pools       []amm.AMM `json:"pools"`
}

// Store persists pool-set snapshots. Load reports absence separately from
// failure so a first run on an empty store is not an error.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
}
