package amm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// callMethod packs a view call, executes it through the provider, and unpacks
// the result. Transport failures carry ErrNetworkFailure; responses that
// cannot be interpreted carry ErrDecodeFailure.
func callMethod(ctx context.Context, provider Provider, contract common.Address, parsed abi.ABI, method string, args []interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w: %w", method, ErrDecodeFailure, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := provider.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w: %w", method, contract.Hex(), ErrNetworkFailure, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s on %s returned no data: %w", method, contract.Hex(), ErrDecodeFailure)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w: %w", method, ErrDecodeFailure, err)
	}
	return values, nil
}

func fetchStableBalance(ctx context.Context, provider Provider, pool common.Address, parsed abi.ABI, index uint8) (*big.Int, error) {
	values, err := callMethod(ctx, provider, pool, parsed, "balances", []interface{}{new(big.Int).SetUint64(uint64(index))})
	if err != nil {
		return nil, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balances(%d): %w: %w", index, ErrDecodeFailure, err)
	}
	return balance, nil
}

// FetchUniswapV2Pool builds a constant-product pool from on-chain state:
// token addresses and decimals are resolved once, reserves are the pair's
// current values. The fee is caller-supplied because V2-style pairs do not
// expose it on-chain.
func FetchUniswapV2Pool(ctx context.Context, provider Provider, address common.Address, feeBps uint16) (*UniswapV2Pool, error) {
	if provider == nil {
		return nil, fmt.Errorf("nil provider: %w", ErrNetworkFailure)
	}
	parsed, err := pairABI()
	if err != nil {
		return nil, err
	}

	values, err := callMethod(ctx, provider, address, parsed, "token0", nil)
	if err != nil {
		return nil, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return nil, fmt.Errorf("token0: %w: %w", ErrDecodeFailure, err)
	}

	values, err = callMethod(ctx, provider, address, parsed, "token1", nil)
	if err != nil {
		return nil, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return nil, fmt.Errorf("token1: %w: %w", ErrDecodeFailure, err)
	}

	decimals0, err := FetchTokenDecimals(ctx, provider, token0)
	if err != nil {
		return nil, err
	}
	decimals1, err := FetchTokenDecimals(ctx, provider, token1)
	if err != nil {
		return nil, err
	}

	pool := NewUniswapV2Pool(address, token0, token1, decimals0, decimals1, feeBps, nil, nil)
	if _, err := pool.GetReserves(ctx, provider); err != nil {
		return nil, err
	}
	return pool, nil
}

// FetchStableSwapPool builds a stable-swap pool from on-chain state: coin
// addresses, decimals, the amplification coefficient, and current balances.
// A zero amplifier means "read A() from the pool"; a positive one overrides
// it, for pools that do not expose A under that selector.
func FetchStableSwapPool(ctx context.Context, provider Provider, address common.Address, feeBps uint16, amplifier uint64) (*StableSwapPool, error) {
	if provider == nil {
		return nil, fmt.Errorf("nil provider: %w", ErrNetworkFailure)
	}
	parsed, err := stablePoolABI()
	if err != nil {
		return nil, err
	}

	token0, err := fetchStableCoin(ctx, provider, address, parsed, 0)
	if err != nil {
		return nil, err
	}
	token1, err := fetchStableCoin(ctx, provider, address, parsed, 1)
	if err != nil {
		return nil, err
	}

	decimals0, err := FetchTokenDecimals(ctx, provider, token0)
	if err != nil {
		return nil, err
	}
	decimals1, err := FetchTokenDecimals(ctx, provider, token1)
	if err != nil {
		return nil, err
	}

	if amplifier == 0 {
		values, err := callMethod(ctx, provider, address, parsed, "A", nil)
		if err != nil {
			return nil, err
		}
		amp, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("A: %w: %w", ErrDecodeFailure, err)
		}
		if !amp.IsUint64() || amp.Sign() <= 0 {
			return nil, fmt.Errorf("A out of range: %s: %w", amp.String(), ErrDecodeFailure)
		}
		amplifier = amp.Uint64()
	}

	pool, err := NewStableSwapPool(address, token0, token1, decimals0, decimals1, feeBps, amplifier, nil, nil)
	if err != nil {
		return nil, err
	}
	if _, err := pool.GetReserves(ctx, provider); err != nil {
		return nil, err
	}
	return pool, nil
}

func fetchStableCoin(ctx context.Context, provider Provider, pool common.Address, parsed abi.ABI, index uint8) (common.Address, error) {
	values, err := callMethod(ctx, provider, pool, parsed, "coins", []interface{}{new(big.Int).SetUint64(uint64(index))})
	if err != nil {
		return common.Address{}, err
	}
	coin, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("coins(%d): %w: %w", index, ErrDecodeFailure, err)
	}
	return coin, nil
}

// FetchTokenDecimals reads an ERC20 token's decimals.
func FetchTokenDecimals(ctx context.Context, provider Provider, token common.Address) (uint8, error) {
	if provider == nil {
		return 0, fmt.Errorf("nil provider: %w", ErrNetworkFailure)
	}
	parsed, err := erc20ABI()
	if err != nil {
		return 0, err
	}
	values, err := callMethod(ctx, provider, token, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w: %w", token.Hex(), ErrDecodeFailure, err)
	}
	return decimals, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
