// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/config"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.MonitoringConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration.
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks (DB ping). Optional.
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// Metrics backs /metrics and the request middleware. Optional.
	Metrics *monitoring.Metrics
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
