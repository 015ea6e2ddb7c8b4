// Package automation provides the automation profile bounded context module.
package automation

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	handler  *Handler
	repo     *Repository
	resolver *Resolver
}

// NewModule creates and initializes the automation module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	resolver := NewResolver(repo, log)
	handler := NewHandler(repo, val)

	return &Module{handler: handler, repo: repo, resolver: resolver}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "automation"
}

// Resolver exposes the cascade resolver for the ingestion and dispatch paths.
func (m *Module) Resolver() *Resolver {
	return m.resolver
}

// Repository exposes profile lookup for the dispatch worker.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts automation routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/automation/profiles")
	group.GET("", m.handler.HandleListProfiles)
	group.POST("", m.handler.HandleCreateProfile)
	group.PUT("/:profileId", m.handler.HandleUpdateProfile)
	group.DELETE("/:profileId", m.handler.HandleDeleteProfile)
	group.PUT("/:profileId/capabilities", m.handler.HandleSetBinding)
	group.DELETE("/:profileId/capabilities/:capabilityId", m.handler.HandleRemoveBinding)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
