package dispatch

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the dispatch bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	service *Service
}

// NewModule creates and initializes the dispatch module with all its
// dependencies. The scheduler may be nil in processes that only read jobs.
func NewModule(pool *pgxpool.Pool, scheduler JobScheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, scheduler, log)
	handler := NewHandler(service, val)

	return &Module{handler: handler, repo: repo, service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dispatch"
}

// Repository exposes job persistence for the dispatcher process.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts dispatch routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/dispatch/jobs")
	group.POST("", m.handler.HandleSchedule)
	group.GET("", m.handler.HandleList)
	group.POST("/:jobId/cancel", m.handler.HandleCancel)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
