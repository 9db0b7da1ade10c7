package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote_pipeline_backend/internal/bootstrap"
	apphttp "quote_pipeline_backend/internal/http"
	"quote_pipeline_backend/internal/http/router"
	"quote_pipeline_backend/internal/scheduler"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/db"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	flushSentry, err := monitoring.InitSentry(cfg)
	if err != nil {
		log.Error("failed to initialize sentry", "error", err)
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true, Storage: true})
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		panic("failed to initialize infrastructure: " + err.Error())
	}
	defer infra.Close()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	modules, err := bootstrap.BuildModules(infra)
	if err != nil {
		log.Error("failed to initialize modules", "error", err)
		panic("failed to initialize modules: " + err.Error())
	}

	if cfg.GetRedisURL() != "" {
		expiryClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize expiry scheduler client", "error", err)
		} else {
			defer func() { _ = expiryClient.Close() }()
			modules.Quotes.Service().SetScheduler(expiryClient)
		}
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(infra.Pool),
		EventBus: infra.Bus,
		Metrics:  infra.Metrics,
		Modules: []apphttp.Module{
			modules.Clients,
			modules.Appointments,
			modules.Quotes,
			modules.Webhook,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		infra.Bus.Wait()
		panic("server error: " + err.Error())
	}
	infra.Bus.Wait()
	log.Info("server stopped")
}
