package integrationlog

import (
	apphttp "leadflow_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the integration log bounded context module implementing http.Module.
type Module struct {
	repo    *Repository
	handler *Handler
}

// NewModule wires the repository and admin handler.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := NewRepository(pool)
	return &Module{repo: repo, handler: NewHandler(repo)}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "integrationlog" }

// Repository exposes the store so the webhook receiver can append to it.
func (m *Module) Repository() *Repository { return m.repo }

// RegisterRoutes mounts the admin read endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/logs", m.handler.List)
}

var _ apphttp.Module = (*Module)(nil)
