// Command fundboard serves the crowdfunding progress dashboard: per-contributor
// totals of an ETH raise and a token collection, the claimed token balance and
// mining figures of a fixed wallet.
//
// Usage:
//
//	fundboard --config config.yaml
//	fundboard --setup (interactive config wizard)
//	fundboard (settings from .env and the environment)
//
// Required settings (yaml or environment):
//
//	BASESCAN_API_KEY, TARGET_WALLET, TARGET_ETH, TOKEN_CONTRACT, TOKEN_GOAL
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundboard/config"
	"github.com/vadiminshakov/fundboard/internal"
	"github.com/vadiminshakov/fundboard/internal/clients"
	"github.com/vadiminshakov/fundboard/internal/observability"
	"github.com/vadiminshakov/fundboard/internal/services/claimed"
	"github.com/vadiminshakov/fundboard/internal/services/mining"
	"github.com/vadiminshakov/fundboard/internal/services/pricer"
	"github.com/vadiminshakov/fundboard/internal/setup"
	"github.com/vadiminshakov/fundboard/internal/web"
)

func main() {
	conf, flags, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		path, err := setup.RunTUI(setup.DefaultOutput)
		if err != nil {
			log.Fatal(err)
		}
		if conf, err = config.Load(path, flags.EnvFile); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := newLogger(flags.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, logger); err != nil {
		logger.Fatal("dashboard stopped", zap.Error(err))
	}
	logger.Info("dashboard stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("", registry)

	explorer := clients.NewExplorerClient(conf.ExplorerURL, conf.ExplorerAPIKey,
		logger.Named("explorer"), clients.WithExplorerMetrics(metrics))

	chain, err := clients.DialChainClient(ctx, conf.RPCURL, metrics)
	if err != nil {
		return err
	}
	defer chain.Close()

	claimedReader := claimed.NewReader(chain, conf.ClaimToken, conf.ClaimWallet, logger.Named("claimed"),
		claimed.WithFreshness(conf.ClaimedFreshness),
		claimed.WithMetrics(metrics),
	)
	miningReader := mining.NewReader(chain, conf.MiningContract, conf.MiningWallet,
		conf.BlocksPerDay, conf.MiningFreshness, logger.Named("mining"), metrics)

	creds := make(map[string]internal.ExchangeCredentials, len(conf.ExchangeKeys))
	for name, k := range conf.ExchangeKeys {
		creds[name] = internal.ExchangeCredentials{APIKey: k.APIKey, APISecret: k.APISecret}
	}
	sources, err := internal.NewPriceSources(conf.PriceSources, creds)
	if err != nil {
		return err
	}
	prices := pricer.NewFallbackPricer(logger.Named("pricer"), metrics, conf.PriceFreshness, sources...)

	dashboard := internal.NewDashboard(internal.DashboardConfig{
		TargetWallet:  conf.TargetWallet,
		NativeGoal:    conf.NativeGoal,
		TokenContract: conf.TokenContract,
		TokenGoal:     conf.TokenGoal,
		PricePair:     conf.PricePair,
		Aliases:       conf.Aliases,
	}, explorer, claimedReader, miningReader, prices, logger.Named("dashboard"), metrics)

	server := web.NewServer(conf.ListenAddr, dashboard, logger.Named("web"), metrics)
	server.StreamInterval = conf.StreamInterval
	server.StaticDir = conf.StaticDir
	server.AllowedOrigins = conf.AllowedOrigins

	logger.Info("starting dashboard",
		zap.String("addr", conf.ListenAddr),
		zap.String("target_wallet", conf.TargetWallet),
		zap.String("native_goal", conf.NativeGoal.String()),
		zap.String("token_contract", conf.TokenContract),
		zap.String("token_goal", conf.TokenGoal.String()),
		zap.Strings("price_sources", conf.PriceSources),
	)

	return server.Start(ctx)
}
