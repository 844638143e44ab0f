package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/suwandre/spreadscan/api"
	"github.com/suwandre/spreadscan/config"
	"github.com/suwandre/spreadscan/internal/exchange"
	"github.com/suwandre/spreadscan/internal/fetch"
	"github.com/suwandre/spreadscan/internal/products"
	"github.com/suwandre/spreadscan/internal/scheduler"
)

func main() {
	// ── 1. Logger setup
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// ── 2. Root context setup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Info().Msg("config loaded")

	// ── 4. Fetcher + exchange adapter
	fetcher := fetch.NewClient(cfg.RequestsPerSecond, fetch.RetryPolicy{
		Attempts: cfg.RateLimitAttempts,
		Delay:    fetch.FixedDelay(cfg.RateLimitDelay),
	}, log.Logger)

	coinbase := exchange.NewCoinbaseAdapter(cfg.BaseURL, fetcher)
	log.Info().Str("exchange", coinbase.Name()).Str("base_url", cfg.BaseURL).Msg("exchange adapter initialized")

	// ── 5. Metadata cache + scheduler
	cache := products.NewCache(coinbase, cfg.ProductsFile, cfg.PairsFile,
		cfg.QuoteCurrency, cfg.ProductsMaxAge, log.Logger)

	sched := scheduler.New(cfg, coinbase, cache, os.Stdout, log.Logger)

	// Single-shot mode: one full scan, then exit. No API server.
	if cfg.ScanOnce {
		if err := sched.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("scan failed")
		}
		return
	}

	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler stopped with error")
		}
		stop()
	}()

	// ── 6. Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Spreadscan",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// ── 7. Routes
	api.SetupRoutes(app, sched)

	// ── 8. Graceful shutdown listener
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	// ── 9. Start server (blocking)
	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
