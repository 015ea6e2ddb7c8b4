package automation

import (
	"context"
	"errors"

	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the data access surface the resolver needs. *Repository satisfies
// it; tests use a fake.
type Store interface {
	GetProfile(ctx context.Context, profileID, tenantID uuid.UUID) (*Profile, error)
	GetDefaultProfileID(ctx context.Context, tenantID uuid.UUID) (*uuid.UUID, error)
	ListBindings(ctx context.Context, profileID uuid.UUID) ([]CapabilityBinding, error)
}

// Resolver resolves the configuration cascade for a lead:
// lead-level override, then tenant default, then none.
type Resolver struct {
	store Store
	log   *logger.Logger
}

// NewResolver creates a new cascade resolver.
func NewResolver(store Store, log *logger.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the profile governing the lead plus its capability
// bindings. A nil profile with nil error means no automation is configured;
// callers must treat that as a valid outcome, not a failure.
func (r *Resolver) Resolve(ctx context.Context, leadProfileID *uuid.UUID, tenantID uuid.UUID) (*Profile, []CapabilityBinding, error) {
	profile, err := r.resolveProfile(ctx, leadProfileID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		return nil, nil, nil
	}

	bindings, err := r.store.ListBindings(ctx, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	return profile, bindings, nil
}

func (r *Resolver) resolveProfile(ctx context.Context, leadProfileID *uuid.UUID, tenantID uuid.UUID) (*Profile, error) {
	if leadProfileID != nil {
		profile, err := r.store.GetProfile(ctx, *leadProfileID, tenantID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		// A dangling override falls through to the tenant default.
		if r.log != nil {
			r.log.Warn("lead profile override no longer exists, falling back to tenant default",
				"profileId", *leadProfileID)
		}
	}

	defaultID, err := r.store.GetDefaultProfileID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if defaultID == nil {
		return nil, nil
	}

	profile, err := r.store.GetProfile(ctx, *defaultID, tenantID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}
