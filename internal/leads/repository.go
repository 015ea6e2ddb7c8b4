// Package leads provides the lead bounded context.
// It owns lead persistence, the inbound resolve-or-create path, and the
// admin surface the kanban board talks to.
package leads

import (
	"context"
	"errors"
	"time"

	"leadfunnel_backend/internal/funnel"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLeadNotFound = errors.New("lead not found")

// SourceWhatsApp tags leads created from inbound provider events.
const SourceWhatsApp = "whatsapp"

// Lead is a prospective contact tracked through a tenant's funnel.
type Lead struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Phone       string // canonical digits-only, country-prefixed
	RemoteJID   string // provider routing address
	Description string
	Category    string
	StatusKey   string
	Source      string
	Verified    bool
	IsTest      bool
	ProfileID   *uuid.UUID // automation profile override
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides data access for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new lead repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, tenant_id, name, phone, remote_jid, description, category,
	status_key, source, verified, is_test, profile_id, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.TenantID, &l.Name, &l.Phone, &l.RemoteJID, &l.Description,
		&l.Category, &l.StatusKey, &l.Source, &l.Verified, &l.IsTest, &l.ProfileID,
		&l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// UpsertFromInbound implements the resolve-or-create contract in a single
// statement. The partial unique index on (tenant_id, phone) makes concurrent
// invocations for the same number collapse onto one row; no application lock
// is involved. The display name is only backfilled when the row has none.
func (r *Repository) UpsertFromInbound(ctx context.Context, tenantID uuid.UUID, phone, remoteJID, nameHint string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (tenant_id, name, phone, remote_jid, status_key, source, verified)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (tenant_id, phone) WHERE NOT is_test
		DO UPDATE SET
			remote_jid = EXCLUDED.remote_jid,
			status_key = EXCLUDED.status_key,
			verified   = TRUE,
			name       = CASE WHEN leads.name = '' AND EXCLUDED.name <> ''
				THEN EXCLUDED.name ELSE leads.name END,
			updated_at = now()
		RETURNING `+leadColumns+`
	`, tenantID, nameHint, phone, remoteJID, funnel.KeyConversationStarted, SourceWhatsApp))
}

// GetByID returns one lead scoped to a tenant.
func (r *Repository) GetByID(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return l, err
}

// List returns leads for a tenant, optionally filtered by funnel status.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, statusKey string) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if statusKey != "" {
		query += ` AND status_key = $2`
		args = append(args, statusKey)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// Create inserts a user-created lead.
func (r *Repository) Create(ctx context.Context, l Lead) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads
			(tenant_id, name, phone, remote_jid, description, category, status_key, source, verified, is_test, profile_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+leadColumns+`
	`, l.TenantID, l.Name, l.Phone, l.RemoteJID, l.Description, l.Category,
		l.StatusKey, l.Source, l.Verified, l.IsTest, l.ProfileID))
}

// UpdateStatus moves a lead to another funnel status.
func (r *Repository) UpdateStatus(ctx context.Context, leadID, tenantID uuid.UUID, statusKey string) (Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET status_key = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns+`
	`, leadID, tenantID, statusKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return l, err
}

// SetProfileOverride sets or clears a lead's automation profile override.
func (r *Repository) SetProfileOverride(ctx context.Context, leadID, tenantID uuid.UUID, profileID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET profile_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID, profileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// MarkEngaged records a successful outbound send: the lead enters the
// conversation-started stage and is marked verified. Used by the dispatch
// worker, which knows the lead only by id.
func (r *Repository) MarkEngaged(ctx context.Context, leadID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status_key = $2, verified = TRUE, updated_at = now()
		WHERE id = $1
	`, leadID, funnel.KeyConversationStarted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}
