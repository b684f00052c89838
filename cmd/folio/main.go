package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/calendar"
	"folio/internal/config"
	"folio/internal/engine"
	"folio/internal/logger"
	"folio/internal/quotes"
	"folio/internal/repository"
	"folio/internal/scheduler"
	"folio/internal/server"
	"folio/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Service: "folio"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "folio"})
	logger.SetGlobalLogger(log)
	log.Info().Str("store", cfg.Store).Msg("Starting folio")

	ctx := context.Background()
	store, err := repository.Open(ctx, repository.NewConfig(repository.Kind(cfg.Store), cfg.DatabaseURL, cfg.SqlitePath))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	market := quotes.New(cfg.QuoteTTL)
	eng := engine.NewEngine(store, market, market, engine.NewEngineConfig(cfg.ValueAtCostWhenUnquoted, nil), log)

	sched := scheduler.New(log)
	if cfg.SnapshotEnabled {
		job := scheduler.NewSnapshotJob(eng.Today, func(ctx context.Context, date calendar.Date) (types.SnapshotRun, error) {
			return eng.RunSnapshots(ctx, date, nil)
		}, 0)
		if err := sched.AddJob(cfg.SnapshotCron, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register jobs")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:           cfg.Port,
		Log:            log,
		Engine:         eng,
		Quotes:         market,
		Store:          store,
		CorsOrigins:    cfg.CorsOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}
