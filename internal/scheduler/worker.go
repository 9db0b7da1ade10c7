package scheduler

import (
	"context"
	"fmt"

	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QuoteExpirer expires a single quote if it is still due.
type QuoteExpirer interface {
	ExpireOne(ctx context.Context, quoteID uuid.UUID) (bool, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	expirer QuoteExpirer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, expirer QuoteExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(expirer, log)
	w.server = server
	return w, nil
}

func newWorker(expirer QuoteExpirer, log *logger.Logger) *Worker {
	w := &Worker{
		mux:     asynq.NewServeMux(),
		expirer: expirer,
		log:     log.WithComponent("scheduler"),
	}
	w.mux.HandleFunc(TaskQuoteExpire, w.handleQuoteExpire)
	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleQuoteExpire(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseQuoteExpirePayload(task)
	if err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskQuoteExpire, err, asynq.SkipRetry)
	}

	quoteID, err := uuid.Parse(payload.QuoteID)
	if err != nil {
		return fmt.Errorf("invalid quote id %q: %w", payload.QuoteID, asynq.SkipRetry)
	}

	expired, err := w.expirer.ExpireOne(ctx, quoteID)
	if err != nil {
		return err
	}
	if expired {
		w.log.Info("quote expired", "quote_id", quoteID)
	}
	return nil
}
