package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Publisher appends a message to the dispatch stream. *broker.Channel
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// PromotionWorker is the asynq consumer that moves a job onto the dispatch
// stream when its scheduled time arrives. The interval worker then drains
// the stream and sends.
type PromotionWorker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	repo      *Repository
	publisher Publisher
	log       *logger.Logger
}

// NewPromotionWorker creates the asynq worker for due-job promotion.
func NewPromotionWorker(cfg config.SchedulerConfig, repo *Repository, publisher Publisher, log *logger.Logger) (*PromotionWorker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &PromotionWorker{
		server:    server,
		mux:       mux,
		repo:      repo,
		publisher: publisher,
		log:       log,
	}

	mux.HandleFunc(TaskJobDue, w.handleJobDue)

	return w, nil
}

// handleJobDue promotes one due job. Jobs that were cancelled or already
// processed since scheduling are dropped silently.
func (w *PromotionWorker) handleJobDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobDuePayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	job, err := w.repo.Get(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		return nil
	}

	body, err := json.Marshal(queuedJobFrom(job))
	if err != nil {
		return err
	}

	// An asynq retry on publish failure is safe: the worker's status guards
	// make double promotion a no-op.
	return w.publisher.Publish(ctx, body)
}

// Run serves until the context is cancelled.
func (w *PromotionWorker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("promotion worker stopped", "error", err)
	}
}
