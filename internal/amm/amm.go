package amm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKind tags the pool families the simulation layer understands.
type PoolKind string

const (
	KindUniswapV2  PoolKind = "uniswap_v2"
	KindStableSwap PoolKind = "stable_swap"
)

// AutomatedMarketMaker is implemented by every supported pool family.
//
// CalculatePrice and SimulateSwapMut run synchronously on cached state and
// never touch the network. SimulateSwap and GetReserves may go through a
// Provider. GetReserves and SimulateSwapMut are the only methods allowed to
// mutate cached state, and a failed call leaves it unchanged.
//
// The unexported methods keep implementations inside this package; adding a
// family means adding a kind tag, a Wrap constructor, and a codec arm.
type AutomatedMarketMaker interface {
	// Address returns the pool's contract address, which identifies it.
	Address() common.Address

	// Tokens lists the pool's token addresses in canonical order.
	Tokens() []common.Address

	// CalculatePrice returns the marginal rate of base denominated in quote,
	// adjusted for token decimals.
	CalculatePrice(base, quote common.Address) (float64, error)

	// SimulateSwap quotes amountIn of base for quote without changing cached
	// state.
	SimulateSwap(ctx context.Context, base, quote common.Address, amountIn *big.Int, provider Provider) (*big.Int, error)

	// SimulateSwapMut quotes amountIn of base for quote and applies the
	// resulting reserve changes, so chained simulations compound.
	SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (*big.Int, error)

	// GetReserves refreshes cached reserves through the provider and returns
	// the stored values.
	GetReserves(ctx context.Context, provider Provider) (Reserves, error)

	kind() PoolKind
	clone() AutomatedMarketMaker
}

// AMM wraps one concrete pool so heterogeneous pools can travel in a single
// collection and serialize under a kind tag. The zero value wraps nothing and
// every operation on it fails. Copying an AMM copies a handle to the same
// pool state; use Clone for an independent copy.
type AMM struct {
	pool AutomatedMarketMaker
}

var errNoPool = errors.New("no pool wrapped")

// WrapUniswapV2 wraps a constant-product pool.
func WrapUniswapV2(p *UniswapV2Pool) AMM { return AMM{pool: p} }

// WrapStableSwap wraps a stable-swap pool.
func WrapStableSwap(p *StableSwapPool) AMM { return AMM{pool: p} }

// Kind reports the wrapped pool family, or empty for the zero value.
func (a AMM) Kind() PoolKind {
	if a.pool == nil {
		return ""
	}
	return a.pool.kind()
}

func (a AMM) Address() common.Address {
	if a.pool == nil {
		return common.Address{}
	}
	return a.pool.Address()
}

func (a AMM) Tokens() []common.Address {
	if a.pool == nil {
		return nil
	}
	return a.pool.Tokens()
}

func (a AMM) CalculatePrice(base, quote common.Address) (float64, error) {
	if a.pool == nil {
		return 0, errNoPool
	}
	return a.pool.CalculatePrice(base, quote)
}

func (a AMM) SimulateSwap(ctx context.Context, base, quote common.Address, amountIn *big.Int, provider Provider) (*big.Int, error) {
	if a.pool == nil {
		return nil, errNoPool
	}
	return a.pool.SimulateSwap(ctx, base, quote, amountIn, provider)
}

func (a AMM) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (*big.Int, error) {
	if a.pool == nil {
		return nil, errNoPool
	}
	return a.pool.SimulateSwapMut(base, quote, amountIn)
}

func (a AMM) GetReserves(ctx context.Context, provider Provider) (Reserves, error) {
	if a.pool == nil {
		return Reserves{}, errNoPool
	}
	return a.pool.GetReserves(ctx, provider)
}

// Equal reports whether both sides wrap a pool at the same contract address.
// Cached reserves and pool family do not participate: a pool equals itself
// before and after a refresh.
func (a AMM) Equal(other AMM) bool {
	if a.pool == nil || other.pool == nil {
		return a.pool == nil && other.pool == nil
	}
	return a.pool.Address() == other.pool.Address()
}

// Clone returns a deep copy whose simulations leave the original untouched.
func (a AMM) Clone() AMM {
	if a.pool == nil {
		return AMM{}
	}
	return AMM{pool: a.pool.clone()}
}

type ammEnvelope struct {
	Kind PoolKind        `json:"kind"`
	Pool json.RawMessage `json:"pool"`
}

// MarshalJSON encodes the pool under a kind tag so UnmarshalJSON can restore
// the right family.
func (a AMM) MarshalJSON() ([]byte, error) {
	if a.pool == nil {
		return nil, errNoPool
	}
	pool, err := json.Marshal(a.pool)
	if err != nil {
		return nil, fmt.Errorf("marshal %s pool: %w", a.pool.kind(), err)
	}
	return json.Marshal(ammEnvelope{Kind: a.pool.kind(), Pool: pool})
}

// UnmarshalJSON decodes a kind-tagged pool. Unknown kinds fail with
// ErrDecodeFailure rather than falling back to a default family.
func (a *AMM) UnmarshalJSON(data []byte) error {
	var env ammEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parse amm envelope: %w: %w", ErrDecodeFailure, err)
	}
	switch env.Kind {
	case KindUniswapV2:
		var p UniswapV2Pool
		if err := json.Unmarshal(env.Pool, &p); err != nil {
			return fmt.Errorf("parse %s pool: %w: %w", env.Kind, ErrDecodeFailure, err)
		}
		a.pool = &p
	case KindStableSwap:
		var p StableSwapPool
		if err := json.Unmarshal(env.Pool, &p); err != nil {
			return fmt.Errorf("parse %s pool: %w: %w", env.Kind, ErrDecodeFailure, err)
		}
		a.pool = &p
	default:
		return fmt.Errorf("unknown pool kind %q: %w", env.Kind, ErrDecodeFailure)
	}
	return nil
}
