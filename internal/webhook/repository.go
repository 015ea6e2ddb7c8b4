// Package webhook provides the inbound provider event ingestion bounded
// context: payload classification, lead resolution, configuration cascade
// and the fire-and-forget automation hook forward.
package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInstanceNotFound = errors.New("gateway instance not found")

// Instance is a provisioned messaging gateway instance owned by a tenant.
type Instance struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	APIKey          string
	ServerURL       string
	ConnectionState string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository provides data access for gateway instances and tenant hook
// settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetInstanceByName resolves an instance name to its owning tenant and
// gateway credentials.
func (r *Repository) GetInstanceByName(ctx context.Context, name string) (Instance, error) {
	var inst Instance
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, api_key, server_url, connection_state, created_at, updated_at
		FROM gateway_instances
		WHERE name = $1
	`, name).Scan(
		&inst.ID, &inst.TenantID, &inst.Name, &inst.APIKey, &inst.ServerURL,
		&inst.ConnectionState, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrInstanceNotFound
	}
	return inst, err
}

// UpdateConnectionState records the last known connectivity of an instance.
// Unknown instances are not an error on this path: connection events can
// arrive before provisioning completes.
func (r *Repository) UpdateConnectionState(ctx context.Context, name, state string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE gateway_instances SET connection_state = $2, updated_at = now()
		WHERE name = $1
	`, name, state)
	return err
}

// GetHookURL returns the tenant's automation hook URL, empty when none is
// configured.
func (r *Repository) GetHookURL(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var url *string
	err := r.pool.QueryRow(ctx, `
		SELECT automation_hook_url FROM tenant_settings WHERE tenant_id = $1
	`, tenantID).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if url == nil {
		return "", nil
	}
	return *url, nil
}
