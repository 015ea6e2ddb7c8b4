// Package automation provides the automation profile bounded context.
// It owns behavioral profiles, capability bindings, and the cascade that
// decides which profile governs a given lead.
package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProfileNotFound = errors.New("automation profile not found")

// Profile is a named bundle of automation behavior settings, scoped to a
// tenant. A lead may reference one directly; tenant settings may name a
// default.
type Profile struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	Tone              string
	Objective         string
	Priority          string
	RejectionStrategy string
	Style             string
	Instructions      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Capability describes an automation capability that can be enabled on a profile.
type Capability struct {
	ID          uuid.UUID
	Key         string
	Label       string
	Description string
}

// CapabilityBinding is an enabled capability plus its per-profile settings.
// Downstream consumers treat bindings as an unordered set.
type CapabilityBinding struct {
	Capability Capability
	Settings   map[string]interface{}
}

// Repository provides data access for automation profiles and capabilities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new automation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, tenant_id, name, tone, objective, priority,
	rejection_strategy, style, instructions, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Tone, &p.Objective, &p.Priority,
		&p.RejectionStrategy, &p.Style, &p.Instructions, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProfile returns one profile scoped to a tenant.
func (r *Repository) GetProfile(ctx context.Context, profileID, tenantID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM automation_profiles
		WHERE id = $1 AND tenant_id = $2
	`, profileID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileAnyTenant returns a profile by id alone. The dispatch worker uses
// it because the queued payload already carries the tenant association.
func (r *Repository) GetProfileAnyTenant(ctx context.Context, profileID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM automation_profiles
		WHERE id = $1
	`, profileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDefaultProfileID returns the tenant's default profile id from tenant
// settings, or nil when none is configured.
func (r *Repository) GetDefaultProfileID(ctx context.Context, tenantID uuid.UUID) (*uuid.UUID, error) {
	var profileID *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT default_profile_id FROM tenant_settings WHERE tenant_id = $1
	`, tenantID).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return profileID, err
}

// ListBindings returns all capability bindings of a profile, joined with the
// capability descriptors.
func (r *Repository) ListBindings(ctx context.Context, profileID uuid.UUID) ([]CapabilityBinding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.key, c.label, c.description, pc.settings
		FROM profile_capabilities pc
		JOIN capabilities c ON c.id = pc.capability_id
		WHERE pc.profile_id = $1
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []CapabilityBinding
	for rows.Next() {
		var b CapabilityBinding
		if err := rows.Scan(&b.Capability.ID, &b.Capability.Key, &b.Capability.Label,
			&b.Capability.Description, &b.Settings); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// ListProfiles returns all profiles of a tenant.
func (r *Repository) ListProfiles(ctx context.Context, tenantID uuid.UUID) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM automation_profiles
		WHERE tenant_id = $1
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateProfile creates a new profile for a tenant.
func (r *Repository) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `
		INSERT INTO automation_profiles
			(tenant_id, name, tone, objective, priority, rejection_strategy, style, instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+profileColumns+`
	`, p.TenantID, p.Name, p.Tone, p.Objective, p.Priority, p.RejectionStrategy, p.Style, p.Instructions))
}

// UpdateProfile updates a profile's behavioral fields.
func (r *Repository) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	updated, err := scanProfile(r.pool.QueryRow(ctx, `
		UPDATE automation_profiles
		SET name = $3, tone = $4, objective = $5, priority = $6,
			rejection_strategy = $7, style = $8, instructions = $9, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+profileColumns+`
	`, p.ID, p.TenantID, p.Name, p.Tone, p.Objective, p.Priority,
		p.RejectionStrategy, p.Style, p.Instructions))
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return updated, err
}

// DeleteProfile removes a profile.
func (r *Repository) DeleteProfile(ctx context.Context, profileID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM automation_profiles WHERE id = $1 AND tenant_id = $2
	`, profileID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// SetBinding enables a capability on a profile, replacing existing settings.
func (r *Repository) SetBinding(ctx context.Context, profileID, capabilityID uuid.UUID, settings map[string]interface{}) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profile_capabilities (profile_id, capability_id, settings)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, capability_id) DO UPDATE SET settings = EXCLUDED.settings
	`, profileID, capabilityID, settings)
	return err
}

// RemoveBinding disables a capability on a profile.
func (r *Repository) RemoveBinding(ctx context.Context, profileID, capabilityID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM profile_capabilities WHERE profile_id = $1 AND capability_id = $2
	`, profileID, capabilityID)
	return err
}
