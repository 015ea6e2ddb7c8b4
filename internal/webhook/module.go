package webhook

import (
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler   *Handler
	repo      *Repository
	forwarder *Forwarder
	limiter   *httpkit.IPRateLimiter
}

// NewModule creates and initializes the webhook module with all its
// dependencies, and subscribes the hook forwarder on the bus.
func NewModule(pool *pgxpool.Pool, leadResolver LeadResolver, cascade CascadeResolver, statuses StatusLister, bus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, leadResolver, cascade, statuses, bus, log)
	handler := NewHandler(service)

	forwarder := NewForwarder(log)
	forwarder.Subscribe(bus)

	return &Module{
		handler:   handler,
		repo:      repo,
		forwarder: forwarder,
		limiter:   httpkit.NewWebhookRateLimiter(log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// Repository exposes instance lookups for the dispatch module, which needs
// per-instance gateway credentials.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Provider-facing endpoint: rate limited, no JWT.
	group := ctx.V1.Group("/webhook")
	group.Use(m.limiter.RateLimit())
	group.POST("/provider", m.handler.HandleProviderEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
