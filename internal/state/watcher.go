package state

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexsim/internal/amm"
	"dexsim/internal/storage"
)

// HeadSource delivers new block headers. chain.Client satisfies it over a
// websocket endpoint.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Watcher keeps a Space fresh by re-running the syncer on every new head,
// checkpointing the refreshed pool set to each store as it goes.
type Watcher struct {
	syncer  *Syncer
	chainID uint64
	stores  []storage.Store
	logger  *zap.Logger
}

// NewWatcher builds a Watcher around an existing Syncer. Stores are optional;
// without them the watcher only refreshes in-memory state.
func NewWatcher(syncer *Syncer, chainID uint64, logger *zap.Logger, stores ...storage.Store) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{syncer: syncer, chainID: chainID, stores: stores, logger: logger}
}

// Watch subscribes to new heads and refreshes all pools once per head until
// the context is canceled. A failed subscription ends the watch with the
// error; per-pool refresh and checkpoint failures are logged and the watch
// continues. Heads arriving while a refresh is running are coalesced into
// one pass.
func (w *Watcher) Watch(ctx context.Context, heads HeadSource, provider amm.Provider) error {
	if heads == nil {
		return fmt.Errorf("head source is nil")
	}

	ch := make(chan *types.Header, 16)
	sub, err := heads.SubscribeNewHead(ctx, ch)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w: %w", amm.ErrNetworkFailure, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err == nil {
				return nil
			}
			return fmt.Errorf("head subscription: %w: %w", amm.ErrNetworkFailure, err)
		case head := <-ch:
			head = drainHeads(ch, head)
			blockNumber := head.Number.Uint64()
			w.logger.Info("new head", zap.Uint64("block_number", blockNumber))

			if err := w.syncer.RefreshAll(ctx, provider); err != nil {
				// Failed pools kept their previous reserves, so the
				// checkpoint below stays valid.
				w.logger.Warn("refresh after head failed",
					zap.Uint64("block_number", blockNumber),
					zap.Error(err),
				)
			}
			w.checkpoint(ctx, blockNumber)
		}
	}
}

func (w *Watcher) checkpoint(ctx context.Context, blockNumber uint64) {
	if len(w.stores) == 0 {
		return
	}
	snap := storage.Snapshot{
		ChainID:     w.chainID,
		BlockNumber: blockNumber,
		Pools:       w.syncer.space.Pools(),
	}
	for _, store := range w.stores {
		if err := store.Save(ctx, snap); err != nil {
			w.logger.Warn("checkpoint failed",
				zap.Uint64("block_number", blockNumber),
				zap.Error(err),
			)
		}
	}
}

// drainHeads empties queued heads and keeps the newest one.
func drainHeads(ch <-chan *types.Header, latest *types.Header) *types.Header {
	for {
		select {
		case head := <-ch:
			latest = head
		default:
			return latest
		}
	}
}
