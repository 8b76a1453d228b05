package storage

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dexsim/internal/amm"
)

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "pools.json")
	store := NewFileStore(path)

	snap := Snapshot{
		ChainID:     8453,
		BlockNumber: 123456,
		Pools:       []amm.AMM{testV2AMM(t), testStableAMM(t)},
	}
	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("snapshot not found after save")
	}
	if loaded.ChainID != 8453 || loaded.BlockNumber != 123456 {
		t.Fatalf("snapshot header mismatch: %+v", loaded)
	}
	if _, err := time.Parse(time.RFC3339Nano, loaded.SavedAt); err != nil {
		t.Fatalf("saved_at not a timestamp: %q", loaded.SavedAt)
	}
	if len(loaded.Pools) != 2 {
		t.Fatalf("pool count mismatch: %d", len(loaded.Pools))
	}
	if loaded.Pools[0].Kind() != amm.KindUniswapV2 || loaded.Pools[1].Kind() != amm.KindStableSwap {
		t.Fatalf("pool kinds mismatch: %s, %s", loaded.Pools[0].Kind(), loaded.Pools[1].Kind())
	}
	if !loaded.Pools[0].Equal(snap.Pools[0]) || !loaded.Pools[1].Equal(snap.Pools[1]) {
		t.Fatal("pool addresses changed in round trip")
	}
}

func TestFileStoreSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.json")
	store := NewFileStore(path)

	for block := uint64(1); block <= 3; block++ {
		snap := Snapshot{ChainID: 1, BlockNumber: block, Pools: []amm.AMM{testV2AMM(t)}}
		if err := store.Save(context.Background(), snap); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	loaded, ok, err := store.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if loaded.BlockNumber != 3 {
		t.Fatalf("block number mismatch: %d", loaded.BlockNumber)
	}

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "pools.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("missing snapshot must not be an error: %v", err)
	}
	if ok {
		t.Fatal("missing snapshot reported as present")
	}
}

func TestFileStoreLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatal("want error for corrupt snapshot")
	}
}

func TestFileStoreLoadDirectory(t *testing.T) {
	if _, _, err := NewFileStore(t.TempDir()).Load(context.Background()); err == nil {
		t.Fatal("want error for directory path")
	}
}

func testV2AMM(t *testing.T) amm.AMM {
	t.Helper()
	return amm.WrapUniswapV2(amm.NewUniswapV2Pool(
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		6, 18, 30,
		big.NewInt(1_000_000), big.NewInt(2_000_000),
	))
}

func testStableAMM(t *testing.T) amm.AMM {
	t.Helper()
	pool, err := amm.NewStableSwapPool(
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		18, 18, 4, 100,
		big.NewInt(5_000_000), big.NewInt(5_000_000),
	)
	if err != nil {
		t.Fatalf("build stable pool: %v", err)
	}
	return amm.WrapStableSwap(pool)
}
