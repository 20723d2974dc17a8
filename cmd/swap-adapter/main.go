package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/streamtip/swap-adapter/internal/api"
	"github.com/streamtip/swap-adapter/internal/catalog"
	"github.com/streamtip/swap-adapter/internal/jobs"
	"github.com/streamtip/swap-adapter/internal/publisher"
	"github.com/streamtip/swap-adapter/internal/rate"
	internalsecrets "github.com/streamtip/swap-adapter/internal/secrets"
	"github.com/streamtip/swap-adapter/internal/store"
	"github.com/streamtip/swap-adapter/internal/swap"
	"github.com/streamtip/swap-adapter/internal/trocador"
	"github.com/streamtip/swap-adapter/pkg/config"
	"github.com/streamtip/swap-adapter/pkg/logger"
	"github.com/streamtip/swap-adapter/pkg/secrets"
	"github.com/streamtip/swap-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [swap-adapter]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	if cfg.WebhookToken == "" {
		logg.Fatal("WEBHOOK_TOKEN must be configured; inbound callbacks cannot be authenticated without it")
	}
	if cfg.PublicBaseURL == "" {
		logg.Fatal("PUBLIC_BASE_URL must be configured to build webhook callback URLs")
	}

	// --- Aggregator credential resolver (AWS SM when configured, env otherwise) ---
	var provider secrets.Provider
	if cfg.TrocadorSecretName != "" {
		var err error
		provider, err = secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
	}
	credCache := secrets.NewCache[internalsecrets.Credential](cfg.SecretCacheTTL)
	stopCleaner := make(chan struct{})
	go credCache.StartCleaner(cfg.CacheCleanupFreq, stopCleaner)

	resolver := internalsecrets.NewResolver(
		logg.Desugar(),
		provider,
		credCache,
		cfg.TrocadorSecretName,
		cfg.TrocadorAPIKey,
	)

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiter (Trocador throttles per key) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 1,
		Burst:             3,
	})

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Trocador HTTP client ---
	client := trocador.NewClient(logg.Desugar(), rateMgr, resolver, trocador.Options{
		BaseURL:       cfg.TrocadorBaseURL,
		Timeout:       cfg.TrocadorTimeout,
		TargetTicker:  cfg.TargetTicker,
		TargetNetwork: cfg.TargetNetwork,
		MinKYCRating:  cfg.MinKYCRating,
	})

	// --- Quote selector ---
	selector := trocador.NewSelector(logg.Desugar(), client, trocador.SelectionPolicy{
		ExcludedProviders: cfg.ExcludedProviders,
		PreferredRatings:  cfg.PreferredRatings,
		PreferredMaxETA:   cfg.PreferredMaxETA,
	})

	// --- Catalog syncer (daily refresh) ---
	syncer := catalog.NewSyncer(logg.Desugar(), client, st, cfg.CatalogSyncInterval, cfg.AssetCacheTTL)
	go syncer.Start(ctx)

	// --- Swap summary refresher ---
	var refresher *jobs.SummaryRefresher
	if hs, ok := st.(*store.HybridStore); ok && hs.PG != nil {
		refresher = jobs.NewSummaryRefresher(logg.Desugar(), hs.PG, pub, cfg.SummaryRefreshInterval)
		go refresher.Start(ctx)
	}

	// --- Swap lifecycle service ---
	swapSvc := swap.NewService(
		logg.Desugar(),
		syncer,
		selector,
		client,
		st,
		pub,
		cfg.PublicBaseURL,
		cfg.WebhookToken,
		cfg.HealthCacheTTL,
	)

	// --- Webhook handler ---
	webhookHandler := swap.NewWebhookHandler(logg.Desugar(), swapSvc, cfg.WebhookToken)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	swapHandler := api.NewSwapHandler(logg.Desugar(), swapSvc, syncer, st)
	api.RegisterRoutes(app, nc, st, swapSvc, swapHandler, webhookHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[swap-adapter] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"aggregator", cfg.TrocadorBaseURL,
		"catalog_sync_interval", cfg.CatalogSyncInterval,
		"target", cfg.TargetTicker+"/"+cfg.TargetNetwork)

	<-ctx.Done()
	logg.Info("shutting down [swap-adapter]...")

	close(stopCleaner)
	syncer.Stop()
	if refresher != nil {
		refresher.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
