package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sora-xor/sora-farming-gateway/internal/chain"
	"github.com/sora-xor/sora-farming-gateway/internal/config"
	"github.com/sora-xor/sora-farming-gateway/internal/model"
	"github.com/sora-xor/sora-farming-gateway/internal/storage/postgres"
	"github.com/sora-xor/sora-farming-gateway/internal/subgraph"
)

// deps bundles the wired clients every subcommand needs.
type deps struct {
	cfg       config.Config
	logger    *zap.Logger
	chain     *chain.Client
	store     *postgres.Store
	uniswap   *subgraph.Client
	mooniswap *subgraph.Client
}

func (d *deps) close() {
	if d.chain != nil {
		d.chain.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	if d.logger != nil {
		_ = d.logger.Sync()
	}
}

func buildDeps(ctx context.Context, cmd *cobra.Command) (*deps, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}

	d := &deps{cfg: cfg, logger: logger}

	d.chain, err = chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	d.store, err = postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := d.store.EnsureSchema(ctx); err != nil {
		d.close()
		return nil, err
	}

	d.uniswap, err = subgraph.NewClient(subgraph.Config{
		URL:          cfg.UniswapURL,
		Protocol:     model.ProtocolUniswap,
		Pairs:        cfg.UniswapPairs,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("uniswap client: %w", err)
	}

	d.mooniswap, err = subgraph.NewClient(subgraph.Config{
		URL:          cfg.MooniswapURL,
		Protocol:     model.ProtocolMooniswap,
		Pairs:        cfg.MooniswapPairs,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("mooniswap client: %w", err)
	}

	return d, nil
}
