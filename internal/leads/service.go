package leads

import (
	"context"
	"errors"
	"strings"

	"leadfunnel_backend/internal/funnel"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"github.com/google/uuid"
)

// StatusRegistry is the funnel surface the lead service needs.
// *funnel.Service satisfies it.
type StatusRegistry interface {
	IsValidKey(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// Service implements lead operations.
type Service struct {
	repo     *Repository
	statuses StatusRegistry
	log      *logger.Logger
}

// NewService creates a new lead service.
func NewService(repo *Repository, statuses StatusRegistry, log *logger.Logger) *Service {
	return &Service{repo: repo, statuses: statuses, log: log}
}

// ResolveOrCreate finds the lead for a canonical phone number or creates it,
// in exactly one write. The returned lead reflects the inbound event: routing
// address updated, status moved to conversation-started, verified set.
func (s *Service) ResolveOrCreate(ctx context.Context, tenantID uuid.UUID, canonicalPhone, remoteJID, nameHint string) (Lead, error) {
	lead, err := s.repo.UpsertFromInbound(ctx, tenantID, canonicalPhone, remoteJID, strings.TrimSpace(nameHint))
	if err != nil {
		s.log.DatabaseError("leads.resolve_or_create", err)
		return Lead{}, err
	}
	return lead, nil
}

// Create inserts a user-created lead. The phone must be a valid number; it is
// stored in canonical form so inbound events dedupe against it.
func (s *Service) Create(ctx context.Context, l Lead) (Lead, error) {
	if _, ok := phone.ValidateE164(l.Phone); !ok {
		return Lead{}, apperr.Validation("invalid phone number")
	}
	l.Phone = phone.Normalize(l.Phone)
	if l.StatusKey == "" {
		l.StatusKey = funnel.KeyNew
	}
	return s.repo.Create(ctx, l)
}

// ChangeStatus moves a lead to another funnel status after validating the
// status key against the tenant's registry.
func (s *Service) ChangeStatus(ctx context.Context, leadID, tenantID uuid.UUID, statusKey string) (Lead, error) {
	valid, err := s.statuses.IsValidKey(ctx, tenantID, statusKey)
	if err != nil {
		return Lead{}, err
	}
	if !valid {
		return Lead{}, apperr.Validation("unknown funnel status key")
	}

	lead, err := s.repo.UpdateStatus(ctx, leadID, tenantID, statusKey)
	if errors.Is(err, ErrLeadNotFound) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// List returns the tenant's leads, optionally filtered by status key.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, statusKey string) ([]Lead, error) {
	return s.repo.List(ctx, tenantID, statusKey)
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID, tenantID)
	if errors.Is(err, ErrLeadNotFound) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// SetProfileOverride points the lead at a specific automation profile, or
// clears the override so the tenant default applies again.
func (s *Service) SetProfileOverride(ctx context.Context, leadID, tenantID uuid.UUID, profileID *uuid.UUID) error {
	err := s.repo.SetProfileOverride(ctx, leadID, tenantID, profileID)
	if errors.Is(err, ErrLeadNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}
