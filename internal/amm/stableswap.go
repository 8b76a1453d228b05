package amm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// maxStableIterations bounds the Newton iterations for the invariant and the
// post-trade balance. Convergence normally takes well under ten rounds.
const maxStableIterations = 255

// StableSwapPool is a two-coin pool on the amplified StableSwap invariant.
// Balances are normalized to 18 decimals before any math runs, so mixed
// decimal pairs price correctly.
type StableSwapPool struct {
	address   common.Address
	token0    common.Address
	token1    common.Address
	decimals0 uint8
	decimals1 uint8
	feeBps    uint16
	amplifier uint64
	reserve0  *big.Int
	reserve1  *big.Int
}

// NewStableSwapPool builds a pool from known state. Token decimals above 18
// and a zero amplifier are rejected because the invariant math cannot
// normalize them.
func NewStableSwapPool(address, token0, token1 common.Address, decimals0, decimals1 uint8, feeBps uint16, amplifier uint64, reserve0, reserve1 *big.Int) (*StableSwapPool, error) {
	if decimals0 > 18 || decimals1 > 18 {
		return nil, fmt.Errorf("stable pool %s: token decimals %d/%d exceed 18", address.Hex(), decimals0, decimals1)
	}
	if amplifier == 0 {
		return nil, fmt.Errorf("stable pool %s: amplifier must be positive", address.Hex())
	}
	return &StableSwapPool{
		address:   address,
		token0:    token0,
		token1:    token1,
		decimals0: decimals0,
		decimals1: decimals1,
		feeBps:    feeBps,
		amplifier: amplifier,
		reserve0:  copyOrZero(reserve0),
		reserve1:  copyOrZero(reserve1),
	}, nil
}

func (p *StableSwapPool) Address() common.Address { return p.address }

func (p *StableSwapPool) Tokens() []common.Address {
	return []common.Address{p.token0, p.token1}
}

// FeeBps returns the swap fee in basis points.
func (p *StableSwapPool) FeeBps() uint16 { return p.feeBps }

// Amplifier returns the amplification coefficient in whitepaper A units.
func (p *StableSwapPool) Amplifier() uint64 { return p.amplifier }

// Reserves returns a copy of the cached balances in token0/token1 order.
func (p *StableSwapPool) Reserves() Reserves {
	return NewReserves(p.reserve0, p.reserve1)
}

func (p *StableSwapPool) orient(base, quote common.Address) (reserveIn, reserveOut *big.Int, decimalsIn, decimalsOut uint8, err error) {
	switch {
	case base == p.token0 && quote == p.token1:
		return p.reserve0, p.reserve1, p.decimals0, p.decimals1, nil
	case base == p.token1 && quote == p.token0:
		return p.reserve1, p.reserve0, p.decimals1, p.decimals0, nil
	default:
		return nil, nil, 0, 0, fmt.Errorf("pair %s/%s not in pool %s: %w", base.Hex(), quote.Hex(), p.address.Hex(), ErrUnknownToken)
	}
}

// CalculatePrice returns the marginal rate of base in quote at the current
// balances, from the closed-form derivative of the invariant. A balanced pool
// prices at 1.0.
func (p *StableSwapPool) CalculatePrice(base, quote common.Address) (float64, error) {
	reserveBase, reserveQuote, decimalsBase, decimalsQuote, err := p.orient(base, quote)
	if err != nil {
		return 0, err
	}
	if reserveBase.Sign() == 0 || reserveQuote.Sign() == 0 {
		return 0, fmt.Errorf("empty pool %s: %w", p.address.Hex(), ErrDivisionByZero)
	}
	x := normalizeTo18(reserveBase, decimalsBase)
	y := normalizeTo18(reserveQuote, decimalsQuote)
	d := invariantD(x, y, p.amplifier)

	// dy/dx = (Ann + D^3/(4x^2y)) / (Ann + D^3/(4xy^2)); both sides scaled
	// by 4x^2y^2 to stay in integers.
	ann := new(big.Int).SetUint64(p.amplifier * 4)
	shared := new(big.Int).Mul(x, y)
	shared.Mul(shared, shared)
	shared.Mul(shared, ann)
	shared.Mul(shared, big.NewInt(4))
	d3 := new(big.Int).Mul(d, d)
	d3.Mul(d3, d)
	num := new(big.Int).Add(shared, new(big.Int).Mul(d3, y))
	den := new(big.Int).Add(shared, new(big.Int).Mul(d3, x))
	return ratioToFloat(num, den, 0, 0), nil
}

// SimulateSwap quotes amountIn of base without touching cached balances. The
// provider is unused for this family.
func (p *StableSwapPool) SimulateSwap(ctx context.Context, base, quote common.Address, amountIn *big.Int, provider Provider) (*big.Int, error) {
	out, _, _, err := p.swapOut(base, quote, amountIn)
	return out, err
}

// SimulateSwapMut quotes amountIn of base and applies the balance changes.
func (p *StableSwapPool) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (*big.Int, error) {
	out, reserveIn, reserveOut, err := p.swapOut(base, quote, amountIn)
	if err != nil || out.Sign() == 0 {
		return out, err
	}
	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, out)
	return out, nil
}

func (p *StableSwapPool) swapOut(base, quote common.Address, amountIn *big.Int) (amountOut, reserveIn, reserveOut *big.Int, err error) {
	reserveIn, reserveOut, decimalsIn, decimalsOut, err := p.orient(base, quote)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkAmountIn(amountIn); err != nil {
		return nil, nil, nil, err
	}
	if amountIn.Sign() == 0 {
		return new(big.Int), nil, nil, nil
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, nil, nil, fmt.Errorf("empty pool %s: %w", p.address.Hex(), ErrDivisionByZero)
	}

	xpIn := normalizeTo18(reserveIn, decimalsIn)
	xpOut := normalizeTo18(reserveOut, decimalsOut)
	d := invariantD(xpIn, xpOut, p.amplifier)

	newIn := new(big.Int).Add(xpIn, normalizeTo18(amountIn, decimalsIn))
	newOut := balanceGivenIn(newIn, d, p.amplifier)

	// The -1 absorbs rounding drift from the iteration, favoring the pool.
	dy := new(big.Int).Sub(xpOut, newOut)
	dy.Sub(dy, big.NewInt(1))
	if dy.Sign() <= 0 {
		return nil, nil, nil, fmt.Errorf("amount in %s yields no output: %w", amountIn.String(), ErrInsufficientLiquidity)
	}
	if p.feeBps > 0 {
		fee := new(big.Int).Mul(dy, new(big.Int).SetUint64(uint64(p.feeBps)))
		fee.Quo(fee, bpsDenominator)
		dy.Sub(dy, fee)
	}

	amountOut = denormalizeFrom18(dy, decimalsOut)
	if amountOut.Sign() <= 0 {
		return nil, nil, nil, fmt.Errorf("amount in %s yields no output: %w", amountIn.String(), ErrInsufficientLiquidity)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, nil, nil, fmt.Errorf("amount out %s would drain reserve %s: %w", amountOut.String(), reserveOut.String(), ErrInsufficientLiquidity)
	}
	return amountOut, reserveIn, reserveOut, nil
}

// GetReserves refreshes cached balances from the pool contract. Both sides
// are fetched before either is stored, so a partial failure leaves the cache
// unchanged.
func (p *StableSwapPool) GetReserves(ctx context.Context, provider Provider) (Reserves, error) {
	if provider == nil {
		return Reserves{}, fmt.Errorf("nil provider: %w", ErrNetworkFailure)
	}
	parsed, err := stablePoolABI()
	if err != nil {
		return Reserves{}, err
	}
	balance0, err := fetchStableBalance(ctx, provider, p.address, parsed, 0)
	if err != nil {
		return Reserves{}, err
	}
	balance1, err := fetchStableBalance(ctx, provider, p.address, parsed, 1)
	if err != nil {
		return Reserves{}, err
	}
	p.reserve0 = balance0
	p.reserve1 = balance1
	return p.Reserves(), nil
}

func (p *StableSwapPool) kind() PoolKind { return KindStableSwap }

func (p *StableSwapPool) clone() AutomatedMarketMaker {
	cp := *p
	cp.reserve0 = copyOrZero(p.reserve0)
	cp.reserve1 = copyOrZero(p.reserve1)
	return &cp
}

func normalizeTo18(value *big.Int, decimals uint8) *big.Int {
	if decimals >= 18 {
		return new(big.Int).Set(value)
	}
	return new(big.Int).Mul(value, pow10(uint(18-decimals)))
}

func denormalizeFrom18(value *big.Int, decimals uint8) *big.Int {
	if decimals >= 18 {
		return new(big.Int).Set(value)
	}
	return new(big.Int).Quo(value, pow10(uint(18-decimals)))
}

// invariantD solves the two-coin StableSwap invariant for D by Newton
// iteration over normalized balances. Both balances must be positive.
func invariantD(xp0, xp1 *big.Int, amplifier uint64) *big.Int {
	sum := new(big.Int).Add(xp0, xp1)
	if sum.Sign() == 0 {
		return new(big.Int)
	}
	two := big.NewInt(2)
	ann := new(big.Int).SetUint64(amplifier * 4)
	d := new(big.Int).Set(sum)
	for i := 0; i < maxStableIterations; i++ {
		dp := new(big.Int).Set(d)
		dp.Mul(dp, d)
		dp.Quo(dp, new(big.Int).Mul(xp0, two))
		dp.Mul(dp, d)
		dp.Quo(dp, new(big.Int).Mul(xp1, two))

		prev := new(big.Int).Set(d)

		num := new(big.Int).Mul(ann, sum)
		num.Add(num, new(big.Int).Mul(dp, two))
		num.Mul(num, d)

		den := new(big.Int).Sub(ann, big.NewInt(1))
		den.Mul(den, d)
		den.Add(den, new(big.Int).Mul(dp, big.NewInt(3)))

		d.Quo(num, den)
		if absDiff(d, prev).Cmp(big.NewInt(1)) <= 0 {
			break
		}
	}
	return d
}

// balanceGivenIn solves for the out-side balance that keeps the invariant at
// d once the in-side balance moves to newIn.
func balanceGivenIn(newIn, d *big.Int, amplifier uint64) *big.Int {
	two := big.NewInt(2)
	ann := new(big.Int).SetUint64(amplifier * 4)

	c := new(big.Int).Set(d)
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(newIn, two))
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, two))

	b := new(big.Int).Quo(d, ann)
	b.Add(b, newIn)

	y := new(big.Int).Set(d)
	for i := 0; i < maxStableIterations; i++ {
		prev := new(big.Int).Set(y)

		num := new(big.Int).Mul(y, y)
		num.Add(num, c)

		den := new(big.Int).Mul(y, two)
		den.Add(den, b)
		den.Sub(den, d)

		y.Quo(num, den)
		if absDiff(y, prev).Cmp(big.NewInt(1)) <= 0 {
			break
		}
	}
	return y
}

func absDiff(a, b *big.Int) *big.Int {
	return new(big.Int).Abs(new(big.Int).Sub(a, b))
}

type stableSwapJSON struct {
	Address   string `json:"address"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Decimals0 uint8  `json:"decimals0"`
	Decimals1 uint8  `json:"decimals1"`
	FeeBps    uint16 `json:"fee_bps"`
	Amplifier uint64 `json:"amplifier"`
	Reserve0  string `json:"reserve0"`
	Reserve1  string `json:"reserve1"`
}

// MarshalJSON encodes addresses as hex and balances as decimal strings.
func (p *StableSwapPool) MarshalJSON() ([]byte, error) {
	return json.Marshal(stableSwapJSON{
		Address:   p.address.Hex(),
		Token0:    p.token0.Hex(),
		Token1:    p.token1.Hex(),
		Decimals0: p.decimals0,
		Decimals1: p.decimals1,
		FeeBps:    p.feeBps,
		Amplifier: p.amplifier,
		Reserve0:  p.reserve0.String(),
		Reserve1:  p.reserve1.String(),
	})
}

func (p *StableSwapPool) UnmarshalJSON(data []byte) error {
	var raw stableSwapJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	address, err := parseHexAddress(raw.Address)
	if err != nil {
		return fmt.Errorf("pool address: %w", err)
	}
	token0, err := parseHexAddress(raw.Token0)
	if err != nil {
		return fmt.Errorf("token0: %w", err)
	}
	token1, err := parseHexAddress(raw.Token1)
	if err != nil {
		return fmt.Errorf("token1: %w", err)
	}
	reserve0, err := parseDecimalAmount(raw.Reserve0)
	if err != nil {
		return fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := parseDecimalAmount(raw.Reserve1)
	if err != nil {
		return fmt.Errorf("reserve1: %w", err)
	}
	pool, err := NewStableSwapPool(address, token0, token1, raw.Decimals0, raw.Decimals1, raw.FeeBps, raw.Amplifier, reserve0, reserve1)
	if err != nil {
		return err
	}
	*p = *pool
	return nil
}
