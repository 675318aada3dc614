package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sora-xor/sora-farming-gateway/internal/api"
	"github.com/sora-xor/sora-farming-gateway/internal/reward"
	"github.com/sora-xor/sora-farming-gateway/internal/worker"
)

func runGateway(cmd *cobra.Command, _ []string) error {
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

	server, err := api.NewServer(d.cfg.ListenAddr, d.store, d.uniswap, d.mooniswap, d.logger)
	if err != nil {
		return err
	}

	d.logger.Info("gateway start",
		zap.String("listen", d.cfg.ListenAddr),
		zap.Duration("sync_interval", d.cfg.SyncInterval),
		zap.Uint64("block_offset", d.cfg.BlockOffset),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(groupCtx) })
	group.Go(func() error { return server.Run(groupCtx) })

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
