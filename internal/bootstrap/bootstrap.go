// Package bootstrap holds the wiring shared by the API, the scheduler and the
// admin CLI: infrastructure first, then the domain modules on top of it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote_pipeline_backend/internal/appointments"
	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/clients"
	"quote_pipeline_backend/internal/email"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/internal/notification"
	"quote_pipeline_backend/internal/quotes"
	quoteadapters "quote_pipeline_backend/internal/quotes/adapters"
	"quote_pipeline_backend/internal/webhook"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/db"
	"quote_pipeline_backend/platform/lock"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
	"quote_pipeline_backend/platform/storage"
	"quote_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options tune Open for the calling binary.
type Options struct {
	// Migrate applies pending migrations before connecting.
	Migrate bool
	// Storage connects MinIO and ensures the quote PDF bucket.
	Storage bool
}

// Infra is the shared infrastructure of one process.
type Infra struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *pgxpool.Pool
	Bus       *events.InMemoryBus
	Validator *validator.Validator
	Policy    *authz.Policy
	Metrics   *monitoring.Metrics
	Redis     *redis.Client
	Locker    lock.Locker
	Store     storage.ObjectStore

	closers []func()
}

// Open connects everything the modules need. Redis and MinIO are optional:
// without them the send lock and PDF archiving are disabled.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Infra, error) {
	policy, err := authz.Load(cfg.GetAuthzPolicyFile())
	if err != nil {
		return nil, fmt.Errorf("load authorization policy: %w", err)
	}

	if opts.Migrate {
		if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, log)
		}); err != nil {
			return nil, err
		}
		log.Info("database migrations complete")
	}

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, err
	}
	log.Info("database connection established")

	infra := &Infra{
		Config:    cfg,
		Log:       log,
		Pool:      pool,
		Bus:       events.NewInMemoryBus(log),
		Validator: validator.New(),
		Policy:    policy,
		Metrics:   monitoring.NewMetrics(),
	}
	infra.closers = append(infra.closers, pool.Close)

	if cfg.GetRedisURL() != "" {
		client, err := lock.NewRedisClient(cfg)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Redis = client
		infra.Locker = lock.NewRedisLocker(client, "")
		infra.closers = append(infra.closers, func() { _ = client.Close() })
	} else {
		log.Warn("REDIS_URL not configured; send lock and expiry scheduling disabled")
	}

	if opts.Storage && cfg.IsMinIOEnabled() {
		store, err := storage.NewMinIOStore(cfg)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		bucket := cfg.GetMinioBucketQuotePDFs()
		if err := WithRetry(ctx, log, "ensure quote-pdfs bucket", 5, 2*time.Second, func() error {
			return store.EnsureBucketExists(ctx, bucket)
		}); err != nil {
			infra.Close()
			return nil, err
		}
		infra.Store = store
		log.Info("storage service initialized", "quotePDFsBucket", bucket)
	}

	return infra, nil
}

// Close releases resources in reverse order of acquisition.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}

// Modules are the wired domain modules.
type Modules struct {
	Clients      *clients.Module
	Appointments *appointments.Module
	Quotes       *quotes.Module
	Notification *notification.Module
	Webhook      *webhook.Module
}

// BuildModules wires the domain modules and their cross-module adapters.
func BuildModules(infra *Infra) (*Modules, error) {
	clientsModule, err := clients.NewModule(infra.Pool, infra.Bus, infra.Validator, infra.Policy, infra.Metrics, infra.Log)
	if err != nil {
		return nil, fmt.Errorf("initialize clients module: %w", err)
	}

	appointmentsModule := appointments.NewModule(infra.Pool, infra.Validator, infra.Policy)

	quotesModule := quotes.NewModule(infra.Config, quotes.Deps{
		Pool:      infra.Pool,
		Bus:       infra.Bus,
		Validator: infra.Validator,
		Policy:    infra.Policy,
		Clients:   quoteadapters.NewClientReaderAdapter(clientsModule.Service()),
		Locker:    infra.Locker,
		Store:     infra.Store,
		Metrics:   infra.Metrics,
		Log:       infra.Log,
	})

	notificationModule := notification.New(email.NewSender(infra.Config), clientsModule.Service(), infra.Log)
	notificationModule.SetQuoteActivityWriter(quoteadapters.NewQuoteActivityWriter(quotesModule.Repository()))
	notificationModule.RegisterHandlers(infra.Bus)

	return &Modules{
		Clients:      clientsModule,
		Appointments: appointmentsModule,
		Quotes:       quotesModule,
		Notification: notificationModule,
		Webhook:      webhook.NewModule(infra.Pool, clientsModule.Service(), infra.Validator, infra.Log),
	}, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
