package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "gateway",
		Short:        "PSWAP farming gateway",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync worker and HTTP API",
		RunE:  runGateway,
	}
	addCommonFlags(runCmd)
	runCmd.Flags().String("listen", ":8080", "HTTP listen address")
	runCmd.Flags().Duration("sync-interval", 5*time.Minute, "interval between sync cycles")
	root.AddCommand(runCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull position events and record one liquidity snapshot, then exit",
		RunE:  runSync,
	}
	addCommonFlags(syncCmd)
	root.AddCommand(syncCmd)

	rewardCmd := &cobra.Command{
		Use:   "reward",
		Short: "Run one reward accrual pass over stored data, then exit",
		RunE:  runReward,
	}
	addCommonFlags(rewardCmd)
	root.AddCommand(rewardCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("uniswap-url", "", "Uniswap subgraph URL")
	cmd.Flags().String("mooniswap-url", "", "Mooniswap subgraph URL")
	cmd.Flags().Int64("start-block", -1, "game start block, -1 means chain head at first run")
	cmd.Flags().Uint64("formula-update-block", 0, "block at which the updated emission formula takes effect, 0 means game start")
	cmd.Flags().Uint64("block-offset", 5, "confirmation depth below chain head")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
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
