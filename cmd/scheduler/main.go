package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"quote_pipeline_backend/internal/bootstrap"
	"quote_pipeline_backend/internal/scheduler"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	flushSentry, err := monitoring.InitSentry(cfg)
	if err != nil {
		log.Error("failed to initialize sentry", "error", err)
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		panic("failed to initialize infrastructure: " + err.Error())
	}
	defer infra.Close()

	// Worker-side wiring: expiry publishes events that move client stages
	// and notifications run in this process too.
	modules, err := bootstrap.BuildModules(infra)
	if err != nil {
		log.Error("failed to initialize modules", "error", err)
		panic("failed to initialize modules: " + err.Error())
	}
	quotesSvc := modules.Quotes.Service()

	worker, err := scheduler.NewWorker(cfg, quotesSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	sweeper := scheduler.NewExpirySweeper(quotesSvc, log, cfg.GetExpirySweepInterval())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("scheduler error", "error", err)
	}

	infra.Bus.Wait()
	log.Info("scheduler stopped")
}
