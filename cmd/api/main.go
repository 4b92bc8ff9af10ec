package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kali23041/3d-gsplat/internal/core"
	"github.com/kali23041/3d-gsplat/internal/domain"
	"github.com/kali23041/3d-gsplat/internal/http/handlers"
	"github.com/kali23041/3d-gsplat/internal/http/httpapi"
	"github.com/kali23041/3d-gsplat/internal/infra"
	"github.com/kali23041/3d-gsplat/internal/storage"
	"github.com/kali23041/3d-gsplat/internal/store"
	"github.com/kali23041/3d-gsplat/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable job records are optional; without DATABASE_URL the state lives
	// in memory only.
	var repo domain.JobRepository = domain.NoopRepository{}
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		pg := store.NewJobRepository(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		repo = pg
	}

	svc := core.New(cfg.SchedulerCapacity, repo, logger)
	if err := svc.Restore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to restore jobs")
	}
	go svc.RunEstimator(ctx, cfg.ProgressTick)

	if cfg.SimulateWorker {
		artifacts, err := storage.NewArtifactStore(cfg.ArtifactDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure artifact storage")
		}
		sim := worker.NewSimulator(svc, artifacts, logger, cfg.WorkerPollInterval)
		go func() {
			if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("simulator stopped with error")
			}
		}()
	}

	app := handlers.NewApp(svc, logger)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
