package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexsim/internal/chain"
	"dexsim/internal/config"
	"dexsim/internal/state"
	"dexsim/internal/storage"
	"dexsim/internal/storage/postgres"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
			os.Exit(1)
		}
	}

	root := &cobra.Command{
		Use:          "dexsim",
		Short:        "Offline AMM swap simulator over checkpointed pool state",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh cached pool reserves from the chain",
		RunE:  runSync,
	}

	syncCmd.Flags().String("rpc", "", "EVM RPC URL")
	syncCmd.Flags().String("checkpoint", "./data/pools.json", "pool checkpoint path")
	syncCmd.Flags().String("pg-dsn", "", "optional Postgres DSN to mirror the checkpoint")
	syncCmd.Flags().Bool("watch", false, "stay resident and re-sync on every new head (needs websocket RPC)")
	syncCmd.Flags().Int("workers", 8, "concurrent reserve fetches")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts per pool")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(syncCmd)

	addPoolCmd := &cobra.Command{
		Use:   "add-pool",
		Short: "Fetch a pool's state from the chain and add it to the checkpoint",
		RunE:  runAddPool,
	}

	addPoolCmd.Flags().String("rpc", "", "EVM RPC URL")
	addPoolCmd.Flags().String("checkpoint", "./data/pools.json", "pool checkpoint path")
	addPoolCmd.Flags().String("kind", "uniswap_v2", "pool family (uniswap_v2, stable_swap)")
	addPoolCmd.Flags().String("address", "", "pool contract address")
	addPoolCmd.Flags().Uint32("fee-bps", 30, "swap fee in basis points")
	addPoolCmd.Flags().Uint64("amp", 0, "amplification coefficient override for stable pools (0 reads A())")
	addPoolCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(addPoolCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a pair against the checkpoint, no network",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("checkpoint", "./data/pools.json", "pool checkpoint path")
	quoteCmd.Flags().String("pool", "", "pool contract address")
	quoteCmd.Flags().String("base", "", "base token address")
	quoteCmd.Flags().String("quote", "", "quote token address")
	quoteCmd.Flags().String("amount", "", "optional swap amount in base token raw units")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Simulate a multi-hop route against the checkpoint, no network",
		RunE:  runRoute,
	}

	routeCmd.Flags().String("checkpoint", "./data/pools.json", "pool checkpoint path")
	routeCmd.Flags().String("amount", "", "input amount in the first hop's token raw units")
	routeCmd.Flags().StringSlice("hops", nil, "hops as pool:tokenIn:tokenOut (comma-separated)")
	routeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(routeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	fileStore := storage.NewFileStore(cfg.Checkpoint)
	snap, ok, err := fileStore.Load(ctx)
	if err != nil {
		return err
	}
	if !ok || len(snap.Pools) == 0 {
		logger.Info("nothing to sync", zap.String("checkpoint", cfg.Checkpoint))
		return nil
	}

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	if snap.ChainID != 0 && snap.ChainID != chainID.Uint64() {
		return fmt.Errorf("checkpoint chain id %d does not match rpc chain id %s", snap.ChainID, chainID)
	}

	space := state.NewSpace()
	for _, pool := range snap.Pools {
		space.Add(pool)
	}

	stores := []storage.Store{fileStore}
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		stores = append(stores, pgStore)
	}

	syncer := state.NewSyncer(state.SyncConfig{
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, space, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Int("pools", space.Len()),
		zap.Int("workers", cfg.Workers),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Bool("pg_mirror", cfg.PGDSN != ""),
		zap.Bool("watch", cfg.Watch),
	)

	if err := syncer.RefreshAll(ctx, chainClient); err != nil {
		// Failed pools kept their previous reserves; the checkpoint below
		// is still the freshest consistent view.
		logger.Warn("some pools failed to refresh", zap.Error(err))
	}

	blockNumber, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	snapshot := storage.Snapshot{
		ChainID:     chainID.Uint64(),
		BlockNumber: blockNumber,
		Pools:       space.Pools(),
	}
	for _, store := range stores {
		if err := store.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	logger.Info("checkpoint saved",
		zap.Uint64("block_number", blockNumber),
		zap.Int("pools", space.Len()),
	)

	if !cfg.Watch {
		return nil
	}

	watcher := state.NewWatcher(syncer, chainID.Uint64(), logger, stores...)
	return watcher.Watch(ctx, chainClient, chainClient)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
