// Package webhook provides the public lead-ingestion bounded context module.
// This file defines the module that encapsulates all webhook setup and route registration.
package webhook

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/integrationlog"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"golang.org/x/time/rate"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	limiter *httpkit.IPRateLimiter
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(logs integrationlog.Appender, leadCreator LeadCreator, registry *Registry, eventBus events.Bus, cfg config.WebhookConfig, log *logger.Logger) *Module {
	service := NewService(logs, leadCreator, registry, eventBus, log)

	return &Module{
		handler: NewHandler(service, registry),
		limiter: httpkit.NewIPRateLimiter(rate.Limit(cfg.GetWebhookRateLimit()), cfg.GetWebhookRateBurst(), log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public ingestion endpoint: no JWT, per-IP rate limit
	group := ctx.API.Group("/webhooks")
	group.Use(m.limiter.RateLimit())
	group.POST("/:platform", m.handler.HandleDelivery)

	ctx.Protected.GET("/webhooks", m.handler.HandleListPlatforms)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
