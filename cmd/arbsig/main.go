package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"arbsig/internal/infrastructure/config"
	"arbsig/internal/infrastructure/logger"
	"arbsig/internal/infrastructure/svc"
	"arbsig/internal/interfaces/console"
	"arbsig/internal/interfaces/httpapi"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	verbose := flag.Bool("verbose", false, "print price updates to console")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Setup("info")
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	// output sink (console)
	sink := console.NewSink()
	sink.ShowPriceUpdates = *verbose
	if _, err := sc.Bus.AddListener(sink.Listen); err != nil {
		log.Fatal().Err(err).Msg("console sink registration failed")
	}

	// 崩溃恢复：重新装载持久化的 active 信号
	if err := sc.Engine.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("resume active signals failed")
	}

	server := httpapi.NewServer(sc.Engine, sc.Hub, sc.Bus, cfg.HTTP.Addr)

	log.Info().
		Str("config", *configPath).
		Str("addr", cfg.HTTP.Addr).
		Msg("arbsig started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("arbsig exited with error")
	}
}
