package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"dexsim/internal/config"
	"dexsim/internal/state"
	"dexsim/internal/storage"
)

func runRoute(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRoute(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	amountIn, ok := new(big.Int).SetString(cfg.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", cfg.Amount)
	}

	route, err := state.ParseRoute(cfg.Hops)
	if err != nil {
		return err
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

	amounts, err := state.SimulateRoute(space, route, amountIn)
	if err != nil {
		return err
	}

	fmt.Printf("state: block %d, saved %s\n", snap.BlockNumber, snap.SavedAt)
	fmt.Printf("amount_in: %s\n", amountIn.String())
	for i, hop := range route {
		fmt.Printf("hop %d: %s -> %s via %s out %s\n",
			i, hop.TokenIn.Hex(), hop.TokenOut.Hex(), hop.Pool.Hex(), amounts[i].String())
	}
	fmt.Printf("amount_out: %s\n", amounts[len(amounts)-1].String())

	return nil
}
