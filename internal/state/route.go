package state

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexsim/internal/amm"
)

// Hop is one swap leg: a pool and the trade direction through it.
type Hop struct {
	Pool     common.Address
	TokenIn  common.Address
	TokenOut common.Address
}

// Route is an ordered list of hops. The output token of each hop funds the
// next hop's input.
type Route []Hop

// ParseAddress converts a string address into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseRoute converts hop specs of the form pool:tokenIn:tokenOut into a
// Route, checking that consecutive hops chain on the same token.
func ParseRoute(inputs []string) (Route, error) {
	route := make(Route, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		parts := strings.Split(input, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid hop %q: want pool:tokenIn:tokenOut", input)
		}
		pool, err := ParseAddress(parts[0])
		if err != nil {
			return nil, fmt.Errorf("hop %q pool: %w", input, err)
		}
		tokenIn, err := ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("hop %q token in: %w", input, err)
		}
		tokenOut, err := ParseAddress(parts[2])
		if err != nil {
			return nil, fmt.Errorf("hop %q token out: %w", input, err)
		}
		route = append(route, Hop{Pool: pool, TokenIn: tokenIn, TokenOut: tokenOut})
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("route has no hops")
	}
	for i := 1; i < len(route); i++ {
		if route[i].TokenIn != route[i-1].TokenOut {
			return nil, fmt.Errorf("hop %d input %s does not chain from hop %d output %s",
				i, route[i].TokenIn.Hex(), i-1, route[i-1].TokenOut.Hex())
		}
	}
	return route, nil
}

// SimulateRoute runs amountIn through the route hop by hop, entirely offline,
// and returns the output of every hop; the last entry is the route's final
// amount. Each pool is cloned once, so the Space keeps its cached state and a
// route crossing the same pool twice sees its own earlier price impact.
func SimulateRoute(space *Space, route Route, amountIn *big.Int) ([]*big.Int, error) {
	if space == nil {
		return nil, fmt.Errorf("space is nil")
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("route has no hops")
	}

	clones := make(map[common.Address]amm.AMM, len(route))
	for _, hop := range route {
		if _, ok := clones[hop.Pool]; ok {
			continue
		}
		pool, ok := space.Get(hop.Pool)
		if !ok {
			return nil, fmt.Errorf("pool %s not in space", hop.Pool.Hex())
		}
		clones[hop.Pool] = pool.Clone()
	}

	amounts := make([]*big.Int, 0, len(route))
	amount := amountIn
	for i, hop := range route {
		pool := clones[hop.Pool]
		out, err := pool.SimulateSwapMut(hop.TokenIn, hop.TokenOut, amount)
		if err != nil {
			return nil, fmt.Errorf("hop %d through %s: %w", i, hop.Pool.Hex(), err)
		}
		amounts = append(amounts, out)
		amount = out
	}
	return amounts, nil
}
