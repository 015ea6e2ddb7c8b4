package funnel

import (
	"context"
	"errors"
	"sort"
	"strings"

	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// StatusStore is the persistence surface the service needs.
// *Repository satisfies it.
type StatusStore interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Status, error)
	GetByID(ctx context.Context, statusID, tenantID uuid.UUID) (Status, error)
	Insert(ctx context.Context, tenantID uuid.UUID, key, label string, displayOrder int) (Status, error)
	Delete(ctx context.Context, statusID, tenantID uuid.UUID) error
	UpdateDisplayOrders(ctx context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error
	SeedRequired(ctx context.Context, tenantID uuid.UUID) error
	KeyExists(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
}

// Service implements the funnel status registry operations.
type Service struct {
	store StatusStore
	log   *logger.Logger
}

// NewService creates a new funnel service.
func NewService(store StatusStore, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// ListOrdered returns the tenant's statuses in presentation order:
// required statuses first, then custom statuses, then `finished`.
// The ordering is recomputed on every read from the stored rows.
// A tenant touching the funnel for the first time gets the immovable
// statuses installed on the way.
func (s *Service) ListOrdered(ctx context.Context, tenantID uuid.UUID) ([]Status, error) {
	statuses, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !hasKey(statuses, KeyFinished) {
		if err := s.store.SeedRequired(ctx, tenantID); err != nil {
			return nil, err
		}
		if statuses, err = s.store.ListByTenant(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	return orderStatuses(statuses), nil
}

// Create adds a custom status after the existing custom ones.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, key, label string) (Status, error) {
	key = strings.TrimSpace(key)
	label = strings.TrimSpace(label)
	if key == "" || label == "" {
		return Status{}, apperr.Validation("status key and label are required")
	}
	if key == KeyFinished {
		return Status{}, apperr.Conflict("status key already exists")
	}

	statuses, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return Status{}, err
	}

	nextOrder := 1
	for _, st := range statuses {
		if !st.IsRequired && st.Key != KeyFinished && st.DisplayOrder >= nextOrder {
			nextOrder = st.DisplayOrder + 1
		}
	}

	created, err := s.store.Insert(ctx, tenantID, key, label, nextOrder)
	if errors.Is(err, errDuplicateKey) {
		return Status{}, apperr.Conflict("status key already exists")
	}
	if err != nil {
		return Status{}, err
	}
	return created, nil
}

// Delete removes a custom status. Required statuses are immovable.
func (s *Service) Delete(ctx context.Context, tenantID, statusID uuid.UUID) error {
	status, err := s.store.GetByID(ctx, statusID, tenantID)
	if errors.Is(err, ErrStatusNotFound) {
		return apperr.NotFound("status not found")
	}
	if err != nil {
		return err
	}
	if status.IsRequired {
		return apperr.Forbidden("required statuses cannot be deleted")
	}
	return s.store.Delete(ctx, statusID, tenantID)
}

// Reorder persists a new ordering for the tenant's custom statuses.
// The supplied id list must exactly match the current non-required,
// non-finished statuses; calling it twice with the same order is a no-op.
func (s *Service) Reorder(ctx context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	statuses, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	if !reorderSetMatches(statuses, orderedIDs) {
		return apperr.Validation("reorder set does not match the tenant's custom statuses")
	}

	return s.store.UpdateDisplayOrders(ctx, tenantID, orderedIDs)
}

// SeedRequired installs the immovable statuses for a tenant; safe to repeat.
func (s *Service) SeedRequired(ctx context.Context, tenantID uuid.UUID) error {
	return s.store.SeedRequired(ctx, tenantID)
}

// IsValidKey reports whether the key names an existing status of the tenant.
func (s *Service) IsValidKey(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	return s.store.KeyExists(ctx, tenantID, key)
}

func hasKey(statuses []Status, key string) bool {
	for _, st := range statuses {
		if st.Key == key {
			return true
		}
	}
	return false
}

// orderStatuses partitions into required (excluding finished), custom
// (excluding finished), and finished, sorts the first two by display order,
// and concatenates. The stored order of required and finished rows never
// affects their placement relative to the custom group.
func orderStatuses(statuses []Status) []Status {
	var required, custom, finished []Status
	for _, st := range statuses {
		switch {
		case st.Key == KeyFinished:
			finished = append(finished, st)
		case st.IsRequired:
			required = append(required, st)
		default:
			custom = append(custom, st)
		}
	}

	byOrder := func(group []Status) {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DisplayOrder < group[j].DisplayOrder
		})
	}
	byOrder(required)
	byOrder(custom)

	out := make([]Status, 0, len(statuses))
	out = append(out, required...)
	out = append(out, custom...)
	out = append(out, finished...)
	return out
}

// reorderSetMatches checks that ids is exactly the set of custom status ids,
// with no duplicates, omissions, or extras.
func reorderSetMatches(statuses []Status, ids []uuid.UUID) bool {
	current := make(map[uuid.UUID]bool)
	for _, st := range statuses {
		if !st.IsRequired && st.Key != KeyFinished {
			current[st.ID] = true
		}
	}

	if len(ids) != len(current) {
		return false
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !current[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
