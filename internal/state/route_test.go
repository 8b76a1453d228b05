package state

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"dexsim/internal/amm"
)

func TestParseRoute(t *testing.T) {
	inputs := []string{
		poolAddr1.Hex() + ":" + tokenA.Hex() + ":" + tokenB.Hex(),
		poolAddr2.Hex() + ":" + tokenB.Hex() + ":" + tokenC.Hex(),
	}

	route, err := ParseRoute(inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route) != 2 {
		t.Fatalf("hop count mismatch: %d", len(route))
	}
	if route[0].Pool != poolAddr1 || route[0].TokenIn != tokenA || route[0].TokenOut != tokenB {
		t.Fatalf("hop 0 mismatch: %+v", route[0])
	}
	if route[1].Pool != poolAddr2 || route[1].TokenIn != tokenB || route[1].TokenOut != tokenC {
		t.Fatalf("hop 1 mismatch: %+v", route[1])
	}
}

func TestParseRouteSkipsBlankEntries(t *testing.T) {
	route, err := ParseRoute([]string{"  ", poolAddr1.Hex() + ":" + tokenA.Hex() + ":" + tokenB.Hex(), ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route) != 1 {
		t.Fatalf("hop count mismatch: %d", len(route))
	}
}

func TestParseRouteRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		inputs []string
	}{
		{"empty", nil},
		{"blank only", []string{"  "}},
		{"missing parts", []string{poolAddr1.Hex() + ":" + tokenA.Hex()}},
		{"bad address", []string{"nope:" + tokenA.Hex() + ":" + tokenB.Hex()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRoute(tc.inputs); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestParseRouteRejectsBrokenChain(t *testing.T) {
	inputs := []string{
		poolAddr1.Hex() + ":" + tokenA.Hex() + ":" + tokenB.Hex(),
		poolAddr2.Hex() + ":" + tokenC.Hex() + ":" + tokenA.Hex(),
	}
	_, err := ParseRoute(inputs)
	if err == nil {
		t.Fatal("want error for broken chain")
	}
	if !strings.Contains(err.Error(), "does not chain") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimulateRouteChainsHops(t *testing.T) {
	space := NewSpace()
	pool1 := newTestPool(poolAddr1, tokenA, tokenB, 1_000_000, 2_000_000)
	pool2 := newTestPool(poolAddr2, tokenB, tokenC, 2_000_000, 1_000_000)
	space.Add(amm.WrapUniswapV2(pool1))
	space.Add(amm.WrapUniswapV2(pool2))

	route := Route{
		{Pool: poolAddr1, TokenIn: tokenA, TokenOut: tokenB},
		{Pool: poolAddr2, TokenIn: tokenB, TokenOut: tokenC},
	}

	amounts, err := SimulateRoute(space, route, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amounts) != 2 {
		t.Fatalf("amount count mismatch: %d", len(amounts))
	}
	if amounts[0].Cmp(big.NewInt(1998)) != 0 {
		t.Fatalf("hop 0 output: got %s want 1998", amounts[0])
	}
	if amounts[1].Cmp(big.NewInt(998)) != 0 {
		t.Fatalf("hop 1 output: got %s want 998", amounts[1])
	}

	// Routing is a what-if: the space keeps its cached reserves.
	if r := pool1.Reserves(); r.Base.Cmp(big.NewInt(1_000_000)) != 0 || r.Quote.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("route mutated pool1: %+v", r)
	}
	if r := pool2.Reserves(); r.Base.Cmp(big.NewInt(2_000_000)) != 0 || r.Quote.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("route mutated pool2: %+v", r)
	}
}

func TestSimulateRouteSamePoolTwice(t *testing.T) {
	space := NewSpace()
	pool := newTestPool(poolAddr1, tokenA, tokenB, 1_000_000, 2_000_000)
	space.Add(amm.WrapUniswapV2(pool))

	route := Route{
		{Pool: poolAddr1, TokenIn: tokenA, TokenOut: tokenB},
		{Pool: poolAddr1, TokenIn: tokenB, TokenOut: tokenA},
	}

	amounts, err := SimulateRoute(space, route, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second hop prices against the clone the first hop already moved,
	// not against fresh reserves: round-tripping loses to slippage.
	if amounts[0].Cmp(big.NewInt(1998)) != 0 {
		t.Fatalf("hop 0 output: got %s want 1998", amounts[0])
	}
	if amounts[1].Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("hop 1 output: got %s want 999", amounts[1])
	}

	if r := pool.Reserves(); r.Base.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("route mutated pool: %+v", r)
	}
}

func TestSimulateRouteUnknownPool(t *testing.T) {
	space := NewSpace()
	space.Add(amm.WrapUniswapV2(newTestPool(poolAddr1, tokenA, tokenB, 1_000_000, 2_000_000)))

	route := Route{
		{Pool: poolAddr2, TokenIn: tokenA, TokenOut: tokenB},
	}
	if _, err := SimulateRoute(space, route, big.NewInt(1000)); err == nil {
		t.Fatal("want error for unknown pool")
	}
}

func TestSimulateRouteHopFailure(t *testing.T) {
	space := NewSpace()
	pool := newTestPool(poolAddr1, tokenA, tokenB, 1_000_000, 2_000_000)
	space.Add(amm.WrapUniswapV2(pool))

	route := Route{
		{Pool: poolAddr1, TokenIn: tokenA, TokenOut: tokenC},
	}
	_, err := SimulateRoute(space, route, big.NewInt(1000))
	if !errors.Is(err, amm.ErrUnknownToken) {
		t.Fatalf("want ErrUnknownToken, got %v", err)
	}
	if r := pool.Reserves(); r.Base.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("failed route mutated pool: %+v", r)
	}
}

func TestSimulateRouteEmpty(t *testing.T) {
	if _, err := SimulateRoute(NewSpace(), nil, big.NewInt(1)); err == nil {
		t.Fatal("want error for empty route")
	}
}
