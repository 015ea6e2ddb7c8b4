// Package funnel provides the funnel status registry bounded context.
// It owns the ordered set of pipeline stages each tenant's leads move through.
package funnel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// KeyFinished is the terminal status every tenant has exactly once.
	// It always sorts last regardless of its stored display order.
	KeyFinished = "finished"
	// KeyNew is the entry status for freshly created leads.
	KeyNew = "new"
	// KeyConversationStarted is set when a lead sends or receives a message.
	KeyConversationStarted = "conversation_started"
)

var ErrStatusNotFound = errors.New("funnel status not found")

// Status represents one pipeline stage of a tenant's funnel.
type Status struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Key          string
	Label        string
	IsRequired   bool
	DisplayOrder int
	CreatedAt    time.Time
}

// Repository provides data access for funnel statuses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new funnel repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const statusColumns = `id, tenant_id, key, label, is_required, display_order, created_at`

func scanStatus(row pgx.Row) (Status, error) {
	var s Status
	err := row.Scan(&s.ID, &s.TenantID, &s.Key, &s.Label, &s.IsRequired, &s.DisplayOrder, &s.CreatedAt)
	return s, err
}

// ListByTenant returns all statuses for a tenant in stored order.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Status, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+statusColumns+`
		FROM funnel_statuses
		WHERE tenant_id = $1
		ORDER BY display_order, created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []Status
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// GetByID returns one status scoped to a tenant.
func (r *Repository) GetByID(ctx context.Context, statusID, tenantID uuid.UUID) (Status, error) {
	s, err := scanStatus(r.pool.QueryRow(ctx, `
		SELECT `+statusColumns+`
		FROM funnel_statuses
		WHERE id = $1 AND tenant_id = $2
	`, statusID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Status{}, ErrStatusNotFound
	}
	return s, err
}

// Insert creates a custom status. A (tenant, key) collision surfaces as
// errDuplicateKey for the service to translate.
func (r *Repository) Insert(ctx context.Context, tenantID uuid.UUID, key, label string, displayOrder int) (Status, error) {
	s, err := scanStatus(r.pool.QueryRow(ctx, `
		INSERT INTO funnel_statuses (tenant_id, key, label, is_required, display_order)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING `+statusColumns+`
	`, tenantID, key, label, displayOrder))
	if isUniqueViolation(err) {
		return Status{}, errDuplicateKey
	}
	return s, err
}

// Delete removes a status row. The service guards required statuses.
func (r *Repository) Delete(ctx context.Context, statusID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM funnel_statuses WHERE id = $1 AND tenant_id = $2
	`, statusID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusNotFound
	}
	return nil
}

// UpdateDisplayOrders persists new display orders for the supplied statuses
// in one transaction.
func (r *Repository) UpdateDisplayOrders(ctx context.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for position, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `
			UPDATE funnel_statuses SET display_order = $1
			WHERE id = $2 AND tenant_id = $3
		`, position+1, id, tenantID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SeedRequired inserts the immovable statuses for a new tenant, skipping any
// that already exist.
func (r *Repository) SeedRequired(ctx context.Context, tenantID uuid.UUID) error {
	seed := []struct {
		key   string
		label string
		order int
	}{
		{KeyNew, "New", 1},
		{KeyConversationStarted, "Conversation started", 2},
		{KeyFinished, "Finished", 1_000_000},
	}
	for _, s := range seed {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO funnel_statuses (tenant_id, key, label, is_required, display_order)
			VALUES ($1, $2, $3, TRUE, $4)
			ON CONFLICT (tenant_id, key) DO NOTHING
		`, tenantID, s.key, s.label, s.order); err != nil {
			return err
		}
	}
	return nil
}

// KeyExists reports whether a status key exists for the tenant.
func (r *Repository) KeyExists(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM funnel_statuses WHERE tenant_id = $1 AND key = $2)
	`, tenantID, key).Scan(&exists)
	return exists, err
}

var errDuplicateKey = errors.New("duplicate funnel status key")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
