// Package clients provides the clients domain module: CRUD plus the sales
// pipeline stage driven by quote events.
package clients

import (
	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/clients/handler"
	"quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/clients/service"
	"quote_pipeline_backend/internal/events"
	apphttp "quote_pipeline_backend/internal/http"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
	"quote_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the clients domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new clients module and subscribes it to quote events
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, policy *authz.Policy, metrics *monitoring.Metrics, log *logger.Logger) (*Module, error) {
	if err := handler.RegisterValidators(val); err != nil {
		return nil, err
	}

	svc := service.New(repository.New(pool), policy, bus, metrics, log)
	svc.RegisterSubscriptions(bus)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "clients"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	clients := ctx.Protected.Group("/clients")
	m.handler.RegisterRoutes(clients)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
