package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"dexsim/internal/config"
	"dexsim/internal/state"
	"dexsim/internal/storage"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Pool == "" || cfg.Base == "" || cfg.Quote == "" {
		return fmt.Errorf("pool, base, and quote are required")
	}

	poolAddress, err := state.ParseAddress(cfg.Pool)
	if err != nil {
		return err
	}
	base, err := state.ParseAddress(cfg.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	quote, err := state.ParseAddress(cfg.Quote)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	ctx := context.Background()

	store := storage.NewFileStore(cfg.Checkpoint)
	snap, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no checkpoint at %s, run add-pool first", cfg.Checkpoint)
	}

	space := state.NewSpace()
	for _, pool := range snap.Pools {
		space.Add(pool)
	}

	pool, ok := space.Get(poolAddress)
	if !ok {
		return fmt.Errorf("pool %s not in checkpoint", poolAddress.Hex())
	}

	price, err := pool.CalculatePrice(base, quote)
	if err != nil {
		return fmt.Errorf("calculate price: %w", err)
	}

	fmt.Printf("pool: %s (%s)\n", poolAddress.Hex(), pool.Kind())
	fmt.Printf("state: block %d, saved %s\n", snap.BlockNumber, snap.SavedAt)
	fmt.Printf("price: %s\n", strconv.FormatFloat(price, 'g', -1, 64))

	if cfg.Amount == "" {
		return nil
	}

	amountIn, ok := new(big.Int).SetString(cfg.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", cfg.Amount)
	}

	// Simulate on a clone so repeated quotes against the same checkpoint
	// price from identical state.
	sim := pool.Clone()
	amountOut, err := sim.SimulateSwapMut(base, quote, amountIn)
	if err != nil {
		return fmt.Errorf("simulate swap: %w", err)
	}

	fmt.Printf("amount_in: %s\n", amountIn.String())
	fmt.Printf("amount_out: %s\n", amountOut.String())

	return nil
}
