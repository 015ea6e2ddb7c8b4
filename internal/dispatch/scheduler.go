package dispatch

import (
	"context"
	"fmt"
	"time"

	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// SchedulerClient enqueues due-time firing tasks.
type SchedulerClient struct {
	client *asynq.Client
	queue  string
}

// NewSchedulerClient creates an asynq client for job scheduling.
func NewSchedulerClient(cfg config.SchedulerConfig) (*SchedulerClient, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &SchedulerClient{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

// Close releases the underlying asynq client.
func (c *SchedulerClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleJobDue enqueues a task that fires when the job's scheduled time
// arrives.
func (c *SchedulerClient) ScheduleJobDue(ctx context.Context, payload JobDuePayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewJobDueTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// JobScheduler is the scheduling surface the service needs. *SchedulerClient
// satisfies it.
type JobScheduler interface {
	ScheduleJobDue(ctx context.Context, payload JobDuePayload, runAt time.Time) error
}

// Service implements job scheduling and the user-facing job view.
type Service struct {
	repo      *Repository
	scheduler JobScheduler
	log       *logger.Logger
}

// NewService creates a new dispatch service.
func NewService(repo *Repository, scheduler JobScheduler, log *logger.Logger) *Service {
	return &Service{repo: repo, scheduler: scheduler, log: log}
}

// ScheduleBatch persists the jobs and arms one at-time task per job.
// Jobs whose task cannot be armed still exist as pending rows; the task is
// the trigger, the row is the source of truth.
func (s *Service) ScheduleBatch(ctx context.Context, jobs []Job) ([]Job, error) {
	created, err := s.repo.CreateBatch(ctx, jobs)
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		for _, j := range created {
			payload := JobDuePayload{JobID: j.ID.String(), TenantID: j.TenantID.String()}
			if err := s.scheduler.ScheduleJobDue(ctx, payload, j.ScheduledAt); err != nil {
				s.log.Error("arming job timer failed", "job_id", j.ID.String(), "error", err.Error())
			}
		}
	}
	return created, nil
}

// List returns a tenant's jobs, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, status string) ([]Job, error) {
	return s.repo.List(ctx, tenantID, status)
}

// Cancel cancels a pending job. Terminal jobs are left untouched.
func (s *Service) Cancel(ctx context.Context, jobID, tenantID uuid.UUID) error {
	return s.repo.Cancel(ctx, jobID, tenantID)
}
