package amm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UniswapV2Pool is a constant-product x*y=k pair charging a basis-point fee
// on the input amount.
type UniswapV2Pool struct {
	address   common.Address
	token0    common.Address
	token1    common.Address
	decimals0 uint8
	decimals1 uint8
	feeBps    uint16
	reserve0  *big.Int
	reserve1  *big.Int
}

// NewUniswapV2Pool builds a pool from known state. Reserve amounts are
// copied; nil reserves start at zero.
func NewUniswapV2Pool(address, token0, token1 common.Address, decimals0, decimals1 uint8, feeBps uint16, reserve0, reserve1 *big.Int) *UniswapV2Pool {
	return &UniswapV2Pool{
		address:   address,
		token0:    token0,
		token1:    token1,
		decimals0: decimals0,
		decimals1: decimals1,
		feeBps:    feeBps,
		reserve0:  copyOrZero(reserve0),
		reserve1:  copyOrZero(reserve1),
	}
}

func (p *UniswapV2Pool) Address() common.Address { return p.address }

func (p *UniswapV2Pool) Tokens() []common.Address {
	return []common.Address{p.token0, p.token1}
}

// FeeBps returns the swap fee in basis points.
func (p *UniswapV2Pool) FeeBps() uint16 { return p.feeBps }

// Reserves returns a copy of the cached reserves in token0/token1 order.
func (p *UniswapV2Pool) Reserves() Reserves {
	return NewReserves(p.reserve0, p.reserve1)
}

// orient resolves the trade direction. The two addresses must name opposite
// sides of the pair.
func (p *UniswapV2Pool) orient(base, quote common.Address) (reserveIn, reserveOut *big.Int, decimalsIn, decimalsOut uint8, err error) {
	switch {
	case base == p.token0 && quote == p.token1:
		return p.reserve0, p.reserve1, p.decimals0, p.decimals1, nil
	case base == p.token1 && quote == p.token0:
		return p.reserve1, p.reserve0, p.decimals1, p.decimals0, nil
	default:
		return nil, nil, 0, 0, fmt.Errorf("pair %s/%s not in pool %s: %w", base.Hex(), quote.Hex(), p.address.Hex(), ErrUnknownToken)
	}
}

// CalculatePrice returns the mid price of base denominated in quote, adjusted
// for token decimals.
func (p *UniswapV2Pool) CalculatePrice(base, quote common.Address) (float64, error) {
	reserveBase, reserveQuote, decimalsBase, decimalsQuote, err := p.orient(base, quote)
	if err != nil {
		return 0, err
	}
	if reserveBase.Sign() == 0 {
		return 0, fmt.Errorf("zero base reserve in pool %s: %w", p.address.Hex(), ErrDivisionByZero)
	}
	return ratioToFloat(reserveQuote, reserveBase, decimalsQuote, decimalsBase), nil
}

// SimulateSwap quotes amountIn of base without touching cached reserves. The
// provider is unused for this family; quoting runs entirely on cached state.
func (p *UniswapV2Pool) SimulateSwap(ctx context.Context, base, quote common.Address, amountIn *big.Int, provider Provider) (*big.Int, error) {
	out, _, _, err := p.swapOut(base, quote, amountIn)
	return out, err
}

// SimulateSwapMut quotes amountIn of base and applies the reserve changes, so
// a later simulation on the same pool sees the moved price.
func (p *UniswapV2Pool) SimulateSwapMut(base, quote common.Address, amountIn *big.Int) (*big.Int, error) {
	out, reserveIn, reserveOut, err := p.swapOut(base, quote, amountIn)
	if err != nil || out.Sign() == 0 {
		return out, err
	}
	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, out)
	return out, nil
}

// swapOut validates the trade and prices it against cached reserves. It
// returns the live reserve pointers so SimulateSwapMut can apply the result.
func (p *UniswapV2Pool) swapOut(base, quote common.Address, amountIn *big.Int) (amountOut, reserveIn, reserveOut *big.Int, err error) {
	reserveIn, reserveOut, _, _, err = p.orient(base, quote)
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
	amountOut, err = constantProductOut(amountIn, reserveIn, reserveOut, p.feeBps)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountOut, reserveIn, reserveOut, nil
}

// constantProductOut prices amountIn against x*y=k reserves with the fee
// charged on input. Output rounds down, favoring the pool.
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	feeFactor := big.NewInt(10000 - int64(feeBps))
	amountInWithFee := new(big.Int).Mul(amountIn, feeFactor)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, bpsDenominator)
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("zero swap denominator: %w", ErrDivisionByZero)
	}
	amountOut := numerator.Quo(numerator, denominator)
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("amount in %s yields no output: %w", amountIn.String(), ErrInsufficientLiquidity)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("amount out %s would drain reserve %s: %w", amountOut.String(), reserveOut.String(), ErrInsufficientLiquidity)
	}
	return amountOut, nil
}

// GetReserves refreshes cached reserves from the pair contract and returns
// them in token0/token1 order. On failure the cache is left unchanged.
func (p *UniswapV2Pool) GetReserves(ctx context.Context, provider Provider) (Reserves, error) {
	if provider == nil {
		return Reserves{}, fmt.Errorf("nil provider: %w", ErrNetworkFailure)
	}
	parsed, err := pairABI()
	if err != nil {
		return Reserves{}, err
	}
	values, err := callMethod(ctx, provider, p.address, parsed, "getReserves", nil)
	if err != nil {
		return Reserves{}, err
	}
	if len(values) < 2 {
		return Reserves{}, fmt.Errorf("getReserves returned %d values: %w", len(values), ErrDecodeFailure)
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve0: %w: %w", ErrDecodeFailure, err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve1: %w: %w", ErrDecodeFailure, err)
	}
	p.reserve0 = reserve0
	p.reserve1 = reserve1
	return p.Reserves(), nil
}

func (p *UniswapV2Pool) kind() PoolKind { return KindUniswapV2 }

func (p *UniswapV2Pool) clone() AutomatedMarketMaker {
	cp := *p
	cp.reserve0 = copyOrZero(p.reserve0)
	cp.reserve1 = copyOrZero(p.reserve1)
	return &cp
}

type uniswapV2JSON struct {
	Address   string `json:"address"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Decimals0 uint8  `json:"decimals0"`
	Decimals1 uint8  `json:"decimals1"`
	FeeBps    uint16 `json:"fee_bps"`
	Reserve0  string `json:"reserve0"`
	Reserve1  string `json:"reserve1"`
}

// MarshalJSON encodes addresses as hex and reserves as decimal strings.
func (p *UniswapV2Pool) MarshalJSON() ([]byte, error) {
	return json.Marshal(uniswapV2JSON{
		Address:   p.address.Hex(),
		Token0:    p.token0.Hex(),
		Token1:    p.token1.Hex(),
		Decimals0: p.decimals0,
		Decimals1: p.decimals1,
		FeeBps:    p.feeBps,
		Reserve0:  p.reserve0.String(),
		Reserve1:  p.reserve1.String(),
	})
}

func (p *UniswapV2Pool) UnmarshalJSON(data []byte) error {
	var raw uniswapV2JSON
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
	*p = UniswapV2Pool{
		address:   address,
		token0:    token0,
		token1:    token1,
		decimals0: raw.Decimals0,
		decimals1: raw.Decimals1,
		feeBps:    raw.FeeBps,
		reserve0:  reserve0,
		reserve1:  reserve1,
	}
	return nil
}
