package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexsim/internal/amm"
	"dexsim/internal/chain"
	"dexsim/internal/config"
	"dexsim/internal/state"
	"dexsim/internal/storage"
)

func runAddPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAddPool(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Address == "" {
		return fmt.Errorf("pool address is required")
	}

	address, err := state.ParseAddress(cfg.Address)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var pool amm.AMM
	switch amm.PoolKind(cfg.Kind) {
	case amm.KindUniswapV2:
		p, err := amm.FetchUniswapV2Pool(ctx, chainClient, address, cfg.FeeBps)
		if err != nil {
			return fmt.Errorf("fetch pool: %w", err)
		}
		pool = amm.WrapUniswapV2(p)
	case amm.KindStableSwap:
		p, err := amm.FetchStableSwapPool(ctx, chainClient, address, cfg.FeeBps, cfg.Amplifier)
		if err != nil {
			return fmt.Errorf("fetch pool: %w", err)
		}
		pool = amm.WrapStableSwap(p)
	default:
		return fmt.Errorf("unknown pool kind %q", cfg.Kind)
	}

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	store := storage.NewFileStore(cfg.Checkpoint)
	snap, _, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if snap.ChainID != 0 && snap.ChainID != chainID.Uint64() {
		return fmt.Errorf("checkpoint chain id %d does not match rpc chain id %s", snap.ChainID, chainID)
	}

	space := state.NewSpace()
	for _, existing := range snap.Pools {
		space.Add(existing)
	}
	if !space.Add(pool) {
		logger.Info("pool already in checkpoint", zap.String("pool", address.Hex()))
		return nil
	}

	blockNumber, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	snap.ChainID = chainID.Uint64()
	snap.BlockNumber = blockNumber
	snap.Pools = space.Pools()
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	tokens := pool.Tokens()
	tokenHexes := make([]string, 0, len(tokens))
	for _, token := range tokens {
		tokenHexes = append(tokenHexes, token.Hex())
	}
	logger.Info("pool added",
		zap.String("pool", address.Hex()),
		zap.String("kind", string(pool.Kind())),
		zap.Strings("tokens", tokenHexes),
		zap.Int("pools", space.Len()),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return nil
}
