package invoicing

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
)

// RetryConfig bounds how long one gateway operation may take in total.
type RetryConfig struct {
	MaxAttempts       int
	AttemptTimeout    time.Duration
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	// TotalBudget caps all attempts plus backoff for one operation.
	TotalBudget time.Duration
}

// DefaultRetryConfig gives three attempts of at most 3s each inside 9s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		AttemptTimeout:    3 * time.Second,
		BackoffBase:       250 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        2 * time.Second,
		TotalBudget:       9 * time.Second,
	}
}

// RetryConfigFrom reads the gateway settings.
func RetryConfigFrom(cfg config.GatewayConfig) RetryConfig {
	rc := DefaultRetryConfig()
	rc.MaxAttempts = cfg.GetGatewayMaxAttempts()
	rc.AttemptTimeout = cfg.GetGatewayAttemptTimeout()
	rc.BackoffBase = cfg.GetGatewayBackoffBase()
	rc.TotalBudget = cfg.GetGatewayTotalBudget()
	return rc
}

// backoff computes the exponential delay before attempt+1, with +/-25% jitter.
func (rc RetryConfig) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= rc.BackoffMultiplier
	}

	d := time.Duration(float64(rc.BackoffBase) * multiplier)
	if rc.MaxBackoff > 0 && d > rc.MaxBackoff {
		d = rc.MaxBackoff
	}

	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	d = time.Duration(float64(d) + jitter)
	if d < 0 {
		return 0
	}
	return d
}

type retrier struct {
	cfg     RetryConfig
	log     *logger.Logger
	metrics *monitoring.Metrics
}

// do runs fn until it succeeds, fails permanently, or the budget runs out.
// Each attempt gets its own timeout derived from the budget context.
func (r retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	budgetCtx, cancel := context.WithTimeout(ctx, r.cfg.TotalBudget)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		attemptCtx, cancelAttempt := context.WithTimeout(budgetCtx, r.cfg.AttemptTimeout)
		err := fn(attemptCtx)
		cancelAttempt()
		elapsed := time.Since(start)

		r.log.WithContext(ctx).GatewayAttempt(op, attempt, elapsed, err)
		r.metrics.ObserveGatewayCall(op, outcome(err), elapsed)

		if err == nil {
			return nil
		}
		// A per-attempt deadline is a timeout on the gateway side; cancellation
		// of the caller's context is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewTransientError(err)
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		select {
		case <-budgetCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		case <-time.After(r.cfg.backoff(attempt)):
		}
	}
	return lastErr
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejected(err):
		return "rejected"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
