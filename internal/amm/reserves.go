package amm

import "math/big"

// Reserves is a point-in-time copy of a pool's pair balances in raw token
// units, base first.
type Reserves struct {
	Base  *big.Int `json:"reserve_base"`
	Quote *big.Int `json:"reserve_quote"`
}

// NewReserves copies both amounts. Nil amounts become zero.
func NewReserves(base, quote *big.Int) Reserves {
	return Reserves{Base: copyOrZero(base), Quote: copyOrZero(quote)}
}
