package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mintrunner/internal/chain"
	"mintrunner/internal/config"
	"mintrunner/internal/contract"
	"mintrunner/internal/metrics"
	"mintrunner/internal/mint"
	"mintrunner/internal/runner"
	"mintrunner/internal/storage"
	"mintrunner/internal/storage/postgres"
	"mintrunner/internal/supply"
)

func runMint(cmd *cobra.Command, _ []string) error {
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

	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := postgres.QuoteTable(cfg.Table); err != nil && !cfg.DryRun {
		return err
	}

	b, err := loadBindings(cfg, true)
	if err != nil {
		return err
	}

	var supplySource runner.SupplySource
	if cfg.IncludeExternalSupply {
		nft, err := contract.ParseAddress(cfg.ProfileNFTAddress)
		if err != nil {
			return fmt.Errorf("profile nft address: %w", err)
		}
		supplySource = supply.NewFetcher(supply.Config{
			Endpoint: cfg.EtherscanURL,
			APIKey:   cfg.EtherscanAPIKey,
			Contract: nft,
			Timeout:  cfg.HTTPTimeout,
		}, logger)
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	var sinks []storage.Storage
	if !cfg.DryRun {
		store, err := postgres.NewStore(ctx, cfg.DSN())
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		sinks = append(sinks, &postgres.MintSink{Store: store, Table: cfg.Table, Variant: cfg.Variant()})
	}
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	deps := runner.Deps{
		Chain:          chainClient,
		GenesisKey:     b.genesisKey(chainClient),
		ProfileAuction: b.auction(chainClient),
		Supply:         supplySource,
		Sinks:          sinks,
	}
	if cfg.PushgatewayURL != "" {
		deps.Metrics = metrics.NewRunGauges()
	}

	r := runner.NewRunner(runner.RunConfig{
		Reserved:              b.reserved,
		PerTokenAllowance:     cfg.ProfilePerGK,
		IncludeExternalSupply: cfg.IncludeExternalSupply,
		RequireExternalSupply: cfg.RequireExternalSupply,
		Table:                 cfg.Table,
		Policy: mint.ScanPolicy{
			MaxRetries:    cfg.MaxRetries,
			RetryBackoff:  cfg.RetryBackoff,
			ProgressEvery: cfg.ProgressEvery,
		},
		PushgatewayURL: cfg.PushgatewayURL,
	}, deps, logger)

	logger.Info("mintrunner start",
		zap.String("run_id", r.RunID()),
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.String("env", cfg.Environment),
		zap.String("variant", cfg.Variant().String()),
		zap.String("table", cfg.Table),
		zap.String("pg_dsn", redactDSN(cfg.DSN())),
		zap.Bool("dry_run", cfg.DryRun),
		zap.String("out", cfg.Out),
		zap.Uint64("profile_per_gk", cfg.ProfilePerGK),
		zap.String("genesis_key_abi", abiSource(cfg.GenesisKeyABI)),
		zap.String("profile_auction_abi", abiSource(cfg.ProfileAuctionABI)),
	)

	if _, err := r.Run(ctx); err != nil {
		logger.Error("run failed", zap.String("run_id", r.RunID()), zap.Error(err))
		return err
	}
	return nil
}

func abiSource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}
