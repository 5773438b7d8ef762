package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "mintrunner",
		Short:        "Genesis key mint accounting job",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compute mint accounting and append one analytics row",
		RunE:  runMint,
	}

	addChainFlags(runCmd)
	runCmd.Flags().Uint64("profile-per-gk", 0, "profile mints allowed per genesis key")
	runCmd.Flags().String("table", "", "analytics table name")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides db-* settings)")
	runCmd.Flags().String("db-name", "", "Postgres database")
	runCmd.Flags().String("db-user", "", "Postgres user")
	runCmd.Flags().String("db-pass", "", "Postgres password")
	runCmd.Flags().String("db-host", "", "Postgres host")
	runCmd.Flags().String("db-port", "5432", "Postgres port")
	runCmd.Flags().String("profile-auction-abi", "", "ProfileAuction ABI file")
	runCmd.Flags().String("profile-auction-address", "", "ProfileAuction contract address")
	runCmd.Flags().Bool("include-external-supply", false, "fetch public profile supply and write publicmints")
	runCmd.Flags().Bool("require-external-supply", false, "fail the run when the external supply is unavailable")
	runCmd.Flags().String("profile-nft-address", "", "profile NFT contract whose total supply is fetched")
	runCmd.Flags().String("etherscan-url", "https://api.etherscan.io/api", "statistics API endpoint")
	runCmd.Flags().String("etherscan-api-key", "", "statistics API key")
	runCmd.Flags().Duration("http-timeout", 30*time.Second, "statistics API timeout")
	runCmd.Flags().Uint64("progress-every", 1000, "log claim scan progress every N tokens (debug level)")
	runCmd.Flags().String("out", "", "also append the row to this JSONL file")
	runCmd.Flags().Bool("dry-run", false, "compute without writing to Postgres (requires --out)")
	runCmd.Flags().String("pushgateway-url", "", "Prometheus Pushgateway URL")

	root.AddCommand(runCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print reserved balances and derived supplies at the chain head",
		RunE:  runInspect,
	}

	addChainFlags(inspectCmd)

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum node RPC URL")
	cmd.Flags().String("env", "", "deployment environment (local reads ABI files from the working directory)")
	cmd.Flags().String("genesis-key-abi", "", "GenesisKey ABI file")
	cmd.Flags().String("genesis-key-address", "", "GenesisKey contract address (also the genesis pool holder)")
	cmd.Flags().String("treasury-address", "", "treasury holder address")
	cmd.Flags().String("insider-address", "", "insider holder address")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for transient RPC failures")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
