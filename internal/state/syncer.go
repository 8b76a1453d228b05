package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neilotoole/errgroup"
	"go.uber.org/zap"

	"dexsim/internal/amm"
)

// SyncConfig holds runtime settings for reserve refreshes.
type SyncConfig struct {
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Syncer refreshes the cached reserves of every pool in a Space through a
// provider.
type Syncer struct {
	cfg    SyncConfig
	space  *Space
	logger *zap.Logger
}

// NewSyncer builds a Syncer over the given Space.
func NewSyncer(cfg SyncConfig, space *Space, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{cfg: cfg, space: space, logger: logger}
}

// RefreshAll fetches fresh reserves for every pool with bounded concurrency.
// A pool whose refresh keeps failing after retries keeps its previous
// reserves and does not stop the others; its failure is joined into the
// returned error.
func (s *Syncer) RefreshAll(ctx context.Context, provider amm.Provider) error {
	if s.space == nil {
		return fmt.Errorf("space is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	if s.cfg.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}

	pools := s.space.Pools()
	if len(pools) == 0 {
		s.logger.Info("nothing to refresh")
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	eg, egCtx := errgroup.WithContextN(ctx, s.cfg.Workers, s.cfg.Workers*4)
	for _, pool := range pools {
		pool := pool
		eg.Go(func() error {
			err := s.refreshPool(egCtx, pool, provider)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("pool %s: %w", pool.Address().Hex(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	s.logger.Info("refresh complete",
		zap.Int("pools", len(pools)),
		zap.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}

func (s *Syncer) refreshPool(ctx context.Context, pool amm.AMM, provider amm.Provider) error {
	return withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		_, err := pool.GetReserves(ctx, provider)
		if err != nil {
			s.logger.Warn("reserve refresh failed",
				zap.String("pool", pool.Address().Hex()),
				zap.Error(err),
			)
		}
		return err
	})
}
