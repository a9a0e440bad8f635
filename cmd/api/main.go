package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/srlee0408/voguedrop-sub005/internal/adapter/repo"
	"github.com/srlee0408/voguedrop-sub005/internal/domain"
	"github.com/srlee0408/voguedrop-sub005/internal/http/handlers"
	"github.com/srlee0408/voguedrop-sub005/internal/http/httpapi"
	"github.com/srlee0408/voguedrop-sub005/internal/infra"
	"github.com/srlee0408/voguedrop-sub005/internal/infra/geoip"
	"github.com/srlee0408/voguedrop-sub005/internal/middleware"
	"github.com/srlee0408/voguedrop-sub005/internal/providers/fal"
	"github.com/srlee0408/voguedrop-sub005/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	if err := infra.EnsureSchema(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap schema")
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var countryLookup middleware.CountryLookup
	if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	jobs := repo.NewJobRepository(dbpool)
	effects := repo.NewEffectRepository(dbpool)

	vendor, err := fal.NewClient(fal.Options{
		APIKey:       cfg.FalAPIKey,
		QueueBaseURL: cfg.FalQueueBaseURL,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build fal client")
	}

	endpoints := map[domain.JobType]string{
		domain.JobTypeVideo: cfg.FalVideoEndpoint,
		domain.JobTypeSound: cfg.FalSoundEndpoint,
	}
	reconciler := reconcile.NewReconciler(jobs, vendor, endpoints, cfg.WebhookTimeout, logger)

	app := handlers.NewApp(cfg, logger, jobs, effects, vendor, reconciler)
	router := httpapi.NewRouter(app, logger, countryLookup)
	server := infra.NewHTTPServer(cfg, router)

	sweeper := reconcile.NewSweeper(jobs, reconciler, cfg.SweepBatchSize, cfg.SweepConcurrency, logger)
	scheduler := cron.New()
	if _, err := sweeper.Schedule(scheduler, cfg.SweepSchedule); err != nil {
		logger.Fatal().Err(err).Msg("invalid sweep schedule")
	}
	scheduler.Start()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
