package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mintrunner/internal/chain"
	"mintrunner/internal/config"
	"mintrunner/internal/mint"
	"mintrunner/internal/runner"
)

type inspectOutput struct {
	mint.BalanceSnapshot
	CirculatingSupply uint64 `json:"circulating_supply"`
	QueryableSupply   uint64 `json:"queryable_supply"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
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
		return fmt.Errorf("%w: rpc (ETH_NODE_URL)", config.ErrMissingConfig)
	}

	b, err := loadBindings(cfg, false)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	r := runner.NewRunner(runner.RunConfig{
		Reserved: b.reserved,
		Policy:   mint.ScanPolicy{MaxRetries: cfg.MaxRetries, RetryBackoff: cfg.RetryBackoff},
	}, runner.Deps{
		Chain:      chainClient,
		GenesisKey: b.genesisKey(chainClient),
	}, logger)

	snap, err := r.Inspect(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(inspectOutput{
		BalanceSnapshot:   snap,
		CirculatingSupply: snap.CirculatingSupply(),
		QueryableSupply:   snap.QueryableSupply(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
