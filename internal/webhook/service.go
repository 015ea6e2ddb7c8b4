package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadfunnel_backend/internal/automation"
	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/funnel"
	"leadfunnel_backend/internal/leads"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"github.com/google/uuid"
)

// minSenderDigits is the digit floor for an inbound sender. Shorter numbers
// are rejected before any state mutation.
const minSenderDigits = 10

// Process results, returned to the provider in the 200 body.
const (
	ResultIgnored           = "ignored"
	ResultConnectionUpdated = "connection_updated"
	ResultProcessed         = "processed"
)

// LeadResolver is the lead surface the processor needs. *leads.Service
// satisfies it.
type LeadResolver interface {
	ResolveOrCreate(ctx context.Context, tenantID uuid.UUID, canonicalPhone, remoteJID, nameHint string) (leads.Lead, error)
}

// CascadeResolver resolves a lead's automation configuration.
// *automation.Resolver satisfies it.
type CascadeResolver interface {
	Resolve(ctx context.Context, leadProfileID *uuid.UUID, tenantID uuid.UUID) (*automation.Profile, []automation.CapabilityBinding, error)
}

// StatusLister returns the tenant's funnel statuses in presentation order.
// *funnel.Service satisfies it.
type StatusLister interface {
	ListOrdered(ctx context.Context, tenantID uuid.UUID) ([]funnel.Status, error)
}

// InstanceStore is the persistence surface the processor needs.
// *Repository satisfies it.
type InstanceStore interface {
	GetInstanceByName(ctx context.Context, name string) (Instance, error)
	UpdateConnectionState(ctx context.Context, name, state string) error
	GetHookURL(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Service processes inbound provider events. Each invocation is stateless;
// concurrent events for the same sender are serialized by the store's
// uniqueness constraint, not by this process.
type Service struct {
	store    InstanceStore
	leads    LeadResolver
	cascade  CascadeResolver
	statuses StatusLister
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates a new inbound event processor.
func NewService(store InstanceStore, leadResolver LeadResolver, cascade CascadeResolver, statuses StatusLister, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		leads:    leadResolver,
		cascade:  cascade,
		statuses: statuses,
		bus:      bus,
		log:      log,
	}
}

// HookPayload is the normalized body delivered to the tenant's automation
// hook. It carries everything the receiving automation needs to answer,
// including provider metadata so it can call back into the gateway itself.
type HookPayload struct {
	Lead           leads.Lead                     `json:"lead"`
	TenantID       uuid.UUID                      `json:"tenantId"`
	Profile        *automation.Profile            `json:"profile"`
	Capabilities   []automation.CapabilityBinding `json:"capabilities"`
	FunnelStatuses []funnel.Status                `json:"funnelStatuses"`
	Message        json.RawMessage                `json:"message"`
	Provider       ProviderMetadata               `json:"provider"`
}

// ProviderMetadata identifies the gateway instance the event arrived on.
type ProviderMetadata struct {
	Instance  string `json:"instance"`
	ServerURL string `json:"serverUrl"`
	APIKey    string `json:"apiKey"`
}

// Process runs one inbound event through the ingestion state machine.
// A nil error means the provider gets its 200; the hook forward happens
// asynchronously after that and never affects the outcome.
func (s *Service) Process(ctx context.Context, evt ProviderEvent) (string, error) {
	instanceName := evt.ResolveInstanceName()

	switch evt.Event {
	case EventConnectionUpdate:
		return s.processConnectionUpdate(ctx, instanceName, evt)
	case EventMessagesUpsert:
		// handled below
	default:
		s.log.Debug("ignoring provider event", "event", evt.Event, "instance", instanceName)
		return ResultIgnored, nil
	}

	// Echoes of our own outbound messages come back as upserts.
	if evt.Data.Key.FromMe {
		return ResultIgnored, nil
	}

	sender := evt.SenderAddress()
	if sender == "" {
		return "", apperr.Validation("event carries no sender address")
	}

	canonical := phone.Normalize(sender)
	if phone.DigitCount(canonical) < minSenderDigits {
		return "", apperr.Validation("invalid phone format")
	}

	inst, err := s.store.GetInstanceByName(ctx, instanceName)
	if errors.Is(err, ErrInstanceNotFound) {
		return "", apperr.NotFound(fmt.Sprintf("unknown gateway instance %q", instanceName))
	}
	if err != nil {
		return "", err
	}

	lead, err := s.leads.ResolveOrCreate(ctx, inst.TenantID, canonical, evt.Data.Key.RemoteJID, evt.Data.PushName)
	if err != nil {
		return "", err
	}

	// Absence of an automation profile is a valid configuration.
	profile, bindings, err := s.cascade.Resolve(ctx, lead.ProfileID, inst.TenantID)
	if err != nil {
		return "", err
	}

	statuses, err := s.statuses.ListOrdered(ctx, inst.TenantID)
	if err != nil {
		return "", err
	}

	hookURL, err := s.store.GetHookURL(ctx, inst.TenantID)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(HookPayload{
		Lead:           lead,
		TenantID:       inst.TenantID,
		Profile:        profile,
		Capabilities:   bindings,
		FunnelStatuses: statuses,
		Message:        evt.Data.Raw,
		Provider: ProviderMetadata{
			Instance:  inst.Name,
			ServerURL: inst.ServerURL,
			APIKey:    inst.APIKey,
		},
	})
	if err != nil {
		return "", err
	}

	s.bus.Publish(ctx, events.InboundMessageProcessed{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  inst.TenantID,
		LeadID:    lead.ID,
		HookURL:   hookURL,
		Payload:   payload,
	})

	s.log.InboundEvent(evt.Event, inst.Name, ResultProcessed)
	return ResultProcessed, nil
}

// processConnectionUpdate records instance connectivity. Last state wins;
// there is no further business invariant on this branch.
func (s *Service) processConnectionUpdate(ctx context.Context, instanceName string, evt ProviderEvent) (string, error) {
	state := evt.ConnectionState()
	if instanceName == "" || state == "" {
		return ResultIgnored, nil
	}
	if err := s.store.UpdateConnectionState(ctx, instanceName, state); err != nil {
		return "", err
	}

	s.bus.Publish(ctx, events.InstanceConnectionChanged{
		BaseEvent: events.NewBaseEvent(),
		Instance:  instanceName,
		State:     state,
	})
	return ResultConnectionUpdated, nil
}
