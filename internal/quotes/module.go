// Package quotes provides the quotes (offertes) domain module.
package quotes

import (
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/events"
	apphttp "quote_pipeline_backend/internal/http"
	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/internal/quotes/handler"
	"quote_pipeline_backend/internal/quotes/repository"
	"quote_pipeline_backend/internal/quotes/service"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/lock"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
	"quote_pipeline_backend/platform/storage"
	"quote_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration the quotes module reads.
type ModuleConfig interface {
	config.QuoteConfig
	config.GatewayConfig
	GetMinioBucketQuotePDFs() string
}

// Deps are the shared collaborators built by the composition root. Locker,
// Store and Metrics may be nil.
type Deps struct {
	Pool      *pgxpool.Pool
	Bus       events.Bus
	Validator *validator.Validator
	Policy    *authz.Policy
	Clients   service.ClientReader
	Locker    lock.Locker
	Store     storage.ObjectStore
	Metrics   *monitoring.Metrics
	Log       *logger.Logger
	Clock     func() time.Time
}

// Module represents the quotes domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates a new quotes module with all dependencies wired
func NewModule(cfg ModuleConfig, deps Deps) *Module {
	repo := repository.New(deps.Pool)

	var gateway invoicing.Gateway = invoicing.Unconfigured{}
	if cfg.IsGatewayEnabled() {
		gateway = invoicing.NewHTTPGateway(cfg)
	}
	adapter := invoicing.NewAdapter(gateway, repo, invoicing.RetryConfigFrom(cfg), deps.Log, deps.Metrics)

	svc := service.New(service.Deps{
		Repo:    repo,
		Clients: deps.Clients,
		Syncer:  adapter,
		Policy:  deps.Policy,
		Machine: domain.NewStateMachine(deps.Policy, deps.Clock),
		Bus:     deps.Bus,
		Locker:  deps.Locker,
		Store:   deps.Store,
		Metrics: deps.Metrics,
		Log:     deps.Log,
	}, service.Settings{
		DefaultTaxRate: cfg.GetDefaultTaxRate(),
		ValidityDays:   cfg.GetQuoteValidityDays(),
		SendLockTTL:    cfg.GetSendLockTTL(),
		PDFBucket:      cfg.GetMinioBucketQuotePDFs(),
	})

	return &Module{
		handler: handler.New(svc, deps.Validator),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the store for cross-module adapters.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	quotes := ctx.Protected.Group("/quotes")
	m.handler.RegisterRoutes(quotes)
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/quotes"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
