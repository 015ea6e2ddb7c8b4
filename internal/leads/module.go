package leads

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, statuses StatusRegistry, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, statuses, log)
	handler := NewHandler(service, val)

	return &Module{handler: handler, service: service, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes the lead service for other modules (ingestion resolves
// leads through it).
func (m *Module) Service() *Service {
	return m.service
}

// Repository exposes the lead repository for the dispatch worker, which
// updates leads outside any HTTP request.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	group.GET("", m.handler.HandleList)
	group.POST("", m.handler.HandleCreate)
	group.GET("/:leadId", m.handler.HandleGet)
	group.PUT("/:leadId/status", m.handler.HandleChangeStatus)
	group.PUT("/:leadId/profile", m.handler.HandleSetProfile)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
