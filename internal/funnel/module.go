// Package funnel provides the funnel status registry bounded context module.
package funnel

import (
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the funnel bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the funnel module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, log)
	handler := NewHandler(service, val)

	return &Module{handler: handler, service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// Service exposes the funnel service for other modules (ingestion includes
// the ordered statuses in the hook payload).
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts funnel routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/funnel/statuses")
	group.GET("", m.handler.HandleList)
	group.POST("", m.handler.HandleCreate)
	group.PUT("/reorder", m.handler.HandleReorder)
	group.DELETE("/:statusId", m.handler.HandleDelete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
