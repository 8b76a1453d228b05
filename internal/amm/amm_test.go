package amm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAMMEqualByAddress(t *testing.T) {
	v2 := WrapUniswapV2(NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 18, 18, 30,
		big.NewInt(1_000_000), big.NewInt(2_000_000)))
	stable := WrapStableSwap(mustStablePool(t, 18, 18, 4, 100, tokens18(5), tokens18(5)))

	// Identity is the contract address; family and cached reserves do not
	// participate.
	if !v2.Equal(stable) {
		t.Fatal("pools at the same address must compare equal")
	}

	otherAddr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	other := WrapUniswapV2(NewUniswapV2Pool(otherAddr, testTokenA, testTokenB, 18, 18, 30,
		big.NewInt(1_000_000), big.NewInt(2_000_000)))
	if v2.Equal(other) {
		t.Fatal("pools at different addresses must not compare equal")
	}
}

func TestAMMEqualSurvivesRefresh(t *testing.T) {
	pool := NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 18, 18, 0,
		big.NewInt(1_000_000), big.NewInt(2_000_000))
	a := WrapUniswapV2(pool)
	before := a.Clone()

	if _, err := a.SimulateSwapMut(testTokenA, testTokenB, big.NewInt(1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(before) {
		t.Fatal("pool must equal itself across reserve changes")
	}
}

func TestAMMEqualZeroValue(t *testing.T) {
	var a, b AMM
	if !a.Equal(b) {
		t.Fatal("two zero values must compare equal")
	}
	wrapped := WrapUniswapV2(NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 18, 18, 0, nil, nil))
	if a.Equal(wrapped) || wrapped.Equal(a) {
		t.Fatal("zero value must not equal a wrapped pool")
	}
}

func TestAMMCloneIsolation(t *testing.T) {
	pool := NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 18, 18, 0,
		big.NewInt(1_000_000), big.NewInt(2_000_000))
	original := WrapUniswapV2(pool)
	clone := original.Clone()

	if _, err := clone.SimulateSwapMut(testTokenA, testTokenB, big.NewInt(1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reserves := pool.Reserves()
	if reserves.Base.Cmp(big.NewInt(1_000_000)) != 0 || reserves.Quote.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("simulation on clone mutated original: %+v", reserves)
	}
	if !clone.Equal(original) {
		t.Fatal("clone must stay equal to the original")
	}

	// A plain struct copy shares the underlying pool.
	handle := original
	if _, err := handle.SimulateSwapMut(testTokenA, testTokenB, big.NewInt(1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Reserves().Base.Cmp(big.NewInt(1_001_000)) != 0 {
		t.Fatal("struct copy must share pool state")
	}
}

func TestAMMDispatch(t *testing.T) {
	a := WrapUniswapV2(NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 18, 18, 0,
		big.NewInt(1_000_000), big.NewInt(2_000_000)))

	if a.Kind() != KindUniswapV2 {
		t.Fatalf("kind mismatch: %s", a.Kind())
	}
	if a.Address() != testPoolAddr {
		t.Fatalf("address mismatch: %s", a.Address().Hex())
	}
	if tokens := a.Tokens(); len(tokens) != 2 || tokens[0] != testTokenA || tokens[1] != testTokenB {
		t.Fatalf("tokens mismatch: %v", tokens)
	}
	price, err := a.CalculatePrice(testTokenA, testTokenB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 2.0 {
		t.Fatalf("price mismatch: got %v want 2.0", price)
	}

	b := WrapStableSwap(mustStablePool(t, 18, 18, 0, 100, tokens18(10), tokens18(10)))
	if b.Kind() != KindStableSwap {
		t.Fatalf("kind mismatch: %s", b.Kind())
	}
}

func TestAMMJSONRoundTrip(t *testing.T) {
	pools := []AMM{
		WrapUniswapV2(NewUniswapV2Pool(testPoolAddr, testTokenA, testTokenB, 6, 18, 30,
			big.NewInt(1_000_000), tokens18(2))),
		WrapStableSwap(mustStablePool(t, 6, 18, 4, 100,
			new(big.Int).Mul(big.NewInt(1_000_000), pow10(6)), tokens18(1_000_000))),
	}

	for _, original := range pools {
		encoded, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("marshal %s: %v", original.Kind(), err)
		}

		var env ammEnvelope
		if err := json.Unmarshal(encoded, &env); err != nil {
			t.Fatalf("parse envelope: %v", err)
		}
		if env.Kind != original.Kind() {
			t.Fatalf("envelope kind mismatch: got %s want %s", env.Kind, original.Kind())
		}

		var decoded AMM
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", original.Kind(), err)
		}
		if decoded.Kind() != original.Kind() {
			t.Fatalf("kind mismatch after round trip: got %s want %s", decoded.Kind(), original.Kind())
		}
		if !decoded.Equal(original) {
			t.Fatalf("address changed in round trip: %s", decoded.Address().Hex())
		}

		reencoded, err := json.Marshal(decoded)
		if err != nil {
			t.Fatalf("re-marshal %s: %v", decoded.Kind(), err)
		}
		if string(reencoded) != string(encoded) {
			t.Fatalf("round trip not stable:\n%s\n%s", encoded, reencoded)
		}
	}
}

func TestAMMUnmarshalUnknownKind(t *testing.T) {
	var a AMM
	err := json.Unmarshal([]byte(`{"kind":"uniswap_v3","pool":{}}`), &a)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("want ErrDecodeFailure, got %v", err)
	}
}

func TestAMMUnmarshalGarbage(t *testing.T) {
	var a AMM
	if err := json.Unmarshal([]byte(`{"kind":`), &a); err == nil {
		t.Fatal("want error for truncated input")
	}
	err := json.Unmarshal([]byte(`{"kind":"uniswap_v2","pool":{"address":"not-hex"}}`), &a)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("want ErrDecodeFailure, got %v", err)
	}
}

func TestZeroAMMOperationsFail(t *testing.T) {
	var a AMM
	if a.Kind() != "" {
		t.Fatalf("zero value kind: %q", a.Kind())
	}
	if _, err := a.CalculatePrice(testTokenA, testTokenB); err == nil {
		t.Fatal("want error from zero value CalculatePrice")
	}
	if _, err := a.SimulateSwapMut(testTokenA, testTokenB, big.NewInt(1)); err == nil {
		t.Fatal("want error from zero value SimulateSwapMut")
	}
	if _, err := a.GetReserves(context.Background(), newFakeProvider(t)); err == nil {
		t.Fatal("want error from zero value GetReserves")
	}
	if _, err := json.Marshal(a); err == nil {
		t.Fatal("want error marshaling zero value")
	}
	if clone := a.Clone(); clone.Kind() != "" {
		t.Fatal("clone of zero value must stay zero")
	}
}
