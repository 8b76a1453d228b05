package amm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var bpsDenominator = big.NewInt(10000)

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func pow10(exp uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(uint64(exp)), nil)
}

// checkAmountIn rejects nil and negative trade sizes.
func checkAmountIn(amountIn *big.Int) error {
	if amountIn == nil {
		return fmt.Errorf("nil amount in: %w", ErrUnderflow)
	}
	if amountIn.Sign() < 0 {
		return fmt.Errorf("negative amount in %s: %w", amountIn.String(), ErrUnderflow)
	}
	return nil
}

// ratioToFloat computes (num/10^numDecimals) / (den/10^denDecimals), staying
// in big.Float space until the final rounding.
func ratioToFloat(num, den *big.Int, numDecimals, denDecimals uint8) float64 {
	r := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den))
	switch {
	case denDecimals > numDecimals:
		r.Mul(r, new(big.Float).SetInt(pow10(uint(denDecimals-numDecimals))))
	case numDecimals > denDecimals:
		r.Quo(r, new(big.Float).SetInt(pow10(uint(numDecimals-denDecimals))))
	}
	f, _ := r.Float64()
	return f
}

func parseHexAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseDecimalAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
