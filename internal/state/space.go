package state

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dexsim/internal/amm"
)

// Space is an address-keyed collection of pools. One entry per contract
// address: pools compare by identity, so a second AMM at a known address is
// ignored rather than replacing cached state. Insertion order is preserved
// so checkpoints serialize deterministically.
type Space struct {
	mu    sync.RWMutex
	pools map[common.Address]amm.AMM
	order []common.Address
}

// NewSpace returns an empty Space.
func NewSpace() *Space {
	return &Space{pools: make(map[common.Address]amm.AMM)}
}

// Add inserts a pool and reports whether it was added. Zero AMMs and
// addresses already present are ignored.
func (s *Space) Add(pool amm.AMM) bool {
	if pool.Kind() == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	address := pool.Address()
	if _, ok := s.pools[address]; ok {
		return false
	}
	s.pools[address] = pool
	s.order = append(s.order, address)
	return true
}

// Get returns the live pool at the address. Mutating simulations on the
// returned value move the Space's cached state; Clone first to explore.
func (s *Space) Get(address common.Address) (amm.AMM, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[address]
	return pool, ok
}

// All returns independent clones of every pool, in insertion order.
func (s *Space) All() []amm.AMM {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clones := make([]amm.AMM, 0, len(s.order))
	for _, address := range s.order {
		clones = append(clones, s.pools[address].Clone())
	}
	return clones
}

// Pools returns the live pools in insertion order. The syncer refreshes
// through these handles so the Space sees new reserves.
func (s *Space) Pools() []amm.AMM {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]amm.AMM, 0, len(s.order))
	for _, address := range s.order {
		pools = append(pools, s.pools[address])
	}
	return pools
}

// Len returns the number of pools.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}
