// Package dispatch owns scheduled outbound messaging: job persistence,
// at-time promotion onto the durable broker, and the interval worker that
// drains and sends.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrJobNotFound = errors.New("dispatch job not found")
	// ErrNotCancellable means the job already left pending; terminal states
	// are never rewritten.
	ErrNotCancellable = errors.New("dispatch job is not pending")
)

// Job statuses. pending is the only non-terminal state.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job is one scheduled outbound message for a lead.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenantId"`
	LeadID       uuid.UUID  `json:"leadId"`
	ProfileID    uuid.UUID  `json:"profileId"`
	InstanceName string     `json:"instanceName"`
	RemoteJID    string     `json:"remoteJid"`
	Message      string     `json:"message"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	ScheduledAt  time.Time  `json:"scheduledAt"`
	Status       string     `json:"status"`
	Error        *string    `json:"error,omitempty"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Repository provides data access for dispatch jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new dispatch repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, tenant_id, lead_id, profile_id, instance_name, remote_jid, message,
	image_url, scheduled_at, status, error, sent_at, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.TenantID, &j.LeadID, &j.ProfileID, &j.InstanceName,
		&j.RemoteJID, &j.Message, &j.ImageURL, &j.ScheduledAt, &j.Status,
		&j.Error, &j.SentAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// CreateBatch inserts the jobs in one transaction. All rows start pending.
func (r *Repository) CreateBatch(ctx context.Context, jobs []Job) ([]Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		row := tx.QueryRow(ctx, `
			INSERT INTO dispatch_jobs
				(tenant_id, lead_id, profile_id, instance_name, remote_jid, message, image_url, scheduled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+jobColumns+`
		`, j.TenantID, j.LeadID, j.ProfileID, j.InstanceName, j.RemoteJID, j.Message, j.ImageURL, j.ScheduledAt)

		inserted, err := scanJob(row)
		if err != nil {
			return nil, err
		}
		created = append(created, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID returns one job scoped to a tenant.
func (r *Repository) GetByID(ctx context.Context, jobID, tenantID uuid.UUID) (Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM dispatch_jobs WHERE id = $1 AND tenant_id = $2
	`, jobID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// Get returns one job by id alone. Used by the worker, which trusts the
// broker message for tenant scoping.
func (r *Repository) Get(ctx context.Context, jobID uuid.UUID) (Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM dispatch_jobs WHERE id = $1
	`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// List returns a tenant's jobs, optionally filtered by status, newest
// schedule first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, status string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM dispatch_jobs WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Cancel marks a pending job cancelled. The status guard in SQL makes the
// transition monotonic: a job that already went terminal stays terminal.
func (r *Repository) Cancel(ctx context.Context, jobID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $4
	`, jobID, tenantID, StatusCancelled, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, jobID, tenantID); err != nil {
			return err
		}
		return ErrNotCancellable
	}
	return nil
}

// MarkSent records a successful gateway send. Only pending jobs transition.
func (r *Repository) MarkSent(ctx context.Context, jobID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs SET status = $2, sent_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, jobID, StatusSent, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// MarkFailed records a terminal failure with its reason. Only pending jobs
// transition; a user cancellation that raced the worker wins.
func (r *Repository) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs SET status = $2, error = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, jobID, StatusFailed, reason, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
