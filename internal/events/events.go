// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"encoding/json"

	"leadfunnel_backend/platform/events"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Ingestion Domain Events
// =============================================================================

// InboundMessageProcessed is published after an inbound provider event has been
// fully resolved (lead, configuration cascade, funnel statuses). The automation
// hook forwarder subscribes to it; delivery is fire-and-forget.
type InboundMessageProcessed struct {
	BaseEvent
	TenantID uuid.UUID       `json:"tenantId"`
	LeadID   uuid.UUID       `json:"leadId"`
	HookURL  string          `json:"-"`
	Payload  json.RawMessage `json:"payload"`
}

func (e InboundMessageProcessed) EventName() string { return "ingestion.message.processed" }

// InstanceConnectionChanged is published when a connection-state provider
// event updates an instance's connectivity. Last known state wins.
type InstanceConnectionChanged struct {
	BaseEvent
	Instance string `json:"instance"`
	State    string `json:"state"`
}

func (e InstanceConnectionChanged) EventName() string { return "ingestion.instance.connection_changed" }
