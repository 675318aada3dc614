package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sora-xor/sora-farming-gateway/internal/reward"
	"github.com/sora-xor/sora-farming-gateway/internal/worker"
)

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cmd)
	if err != nil {
		return err
	}
	defer d.close()

	w := worker.NewWorker(worker.RunConfig{
		SyncInterval:       d.cfg.SyncInterval,
		StartBlock:         d.cfg.StartBlock,
		FormulaUpdateBlock: d.cfg.FormulaUpdateBlock,
		BlockOffset:        d.cfg.BlockOffset,
	}, d.chain, d.store, d.uniswap, d.mooniswap, reward.DefaultParams(), d.logger)

	return w.SyncOnce(ctx)
}
