package dispatch

import (
	"context"
	"encoding/json"

	"leadfunnel_backend/internal/automation"
	"leadfunnel_backend/internal/dispatch/broker"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// maxBatch bounds one invocation. Whatever is left stays on the stream for
// the next tick.
const maxBatch = 10

// JobStore is the job persistence surface the worker needs. *Repository
// satisfies it.
type JobStore interface {
	MarkSent(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error
}

// LeadEngager advances a lead after a successful send. *leads.Repository
// satisfies it.
type LeadEngager interface {
	MarkEngaged(ctx context.Context, leadID uuid.UUID) error
}

// ProfileStore resolves the automation profile a job references.
// *automation.Repository satisfies it.
type ProfileStore interface {
	GetProfileAnyTenant(ctx context.Context, profileID uuid.UUID) (*automation.Profile, error)
}

// Gateway sends one text message through a gateway instance.
// *whatsapp.Client satisfies it.
type Gateway interface {
	SendText(ctx context.Context, instance, number, text string) error
}

// Stats is the aggregate outcome of one worker invocation.
type Stats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Worker drains the dispatch stream and sends due jobs, one at a time.
// The batch is sequential on purpose: each job's acknowledgment must follow
// its own gateway send, and a channel is not shared across goroutines.
type Worker struct {
	cfg      config.BrokerConfig
	jobs     JobStore
	leads    LeadEngager
	profiles ProfileStore
	gateway  Gateway
	log      *logger.Logger
}

// NewWorker creates a dispatch worker.
func NewWorker(cfg config.BrokerConfig, jobs JobStore, leads LeadEngager, profiles ProfileStore, gateway Gateway, log *logger.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		jobs:     jobs,
		leads:    leads,
		profiles: profiles,
		gateway:  gateway,
		log:      log,
	}
}

// Run performs one dispatch invocation. Broker connectivity failure aborts
// the whole invocation with nothing processed; per-job failures are isolated
// and only counted.
func (w *Worker) Run(ctx context.Context) (Stats, error) {
	conn, err := broker.Dial(ctx, w.cfg, w.log)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.KindUnavailable, "dispatch broker unreachable", err)
	}

	ch, err := conn.Channel(w.cfg)
	if err != nil {
		_ = conn.Close()
		return Stats{}, err
	}

	stats, err := w.drainAndSend(ctx, ch)

	// Channel before connection, both tolerant of repeat closes.
	_ = ch.Close()
	_ = conn.Close()

	w.log.DispatchResult(stats.Attempted, stats.Succeeded, stats.Failed)
	return stats, err
}

func (w *Worker) drainAndSend(ctx context.Context, ch *broker.Channel) (Stats, error) {
	var stats Stats

	if err := ch.Declare(ctx); err != nil {
		return stats, err
	}

	messages, err := ch.Drain(ctx, maxBatch)
	if err != nil {
		return stats, err
	}

	for _, msg := range messages {
		stats.Attempted++
		if w.processMessage(ctx, ch, msg) {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

// processMessage handles one queued job end to end and settles its broker
// message. Returns true when the job was sent and recorded.
func (w *Worker) processMessage(ctx context.Context, ch *broker.Channel, msg broker.Message) bool {
	var job QueuedJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.log.Error("malformed dispatch message", "message_id", msg.ID, "error", err.Error())
		w.nack(ctx, ch, msg, "malformed message payload")
		return false
	}

	profile, err := w.profiles.GetProfileAnyTenant(ctx, job.ProfileID)
	if err != nil {
		w.fail(ctx, ch, msg, job, "automation profile missing: "+err.Error())
		return false
	}

	body := automation.RenderMessage(profile, job.Message)
	if err := w.gateway.SendText(ctx, job.InstanceName, job.RemoteJID, body); err != nil {
		w.fail(ctx, ch, msg, job, "gateway send failed: "+err.Error())
		return false
	}

	// The send happened. If recording it fails the message stays unsettled
	// and the job stays pending: re-processing beats silently losing a send.
	if err := w.jobs.MarkSent(ctx, job.JobID); err != nil {
		w.log.DatabaseError("dispatch.mark_sent", err)
		return false
	}

	if err := w.leads.MarkEngaged(ctx, job.LeadID); err != nil {
		// The job itself is complete; the lead catches up on its next event.
		w.log.DatabaseError("dispatch.mark_engaged", err)
	}

	if err := ch.Ack(ctx, msg); err != nil {
		w.log.Error("ack failed", "message_id", msg.ID, "error", err.Error())
	}
	return true
}

// fail terminalizes the job and drops its message to the dead-letter stream.
func (w *Worker) fail(ctx context.Context, ch *broker.Channel, msg broker.Message, job QueuedJob, reason string) {
	if err := w.jobs.MarkFailed(ctx, job.JobID, reason); err != nil {
		w.log.DatabaseError("dispatch.mark_failed", err)
	}
	w.nack(ctx, ch, msg, reason)
}

func (w *Worker) nack(ctx context.Context, ch *broker.Channel, msg broker.Message, reason string) {
	if err := ch.Nack(ctx, msg, reason); err != nil {
		w.log.Error("nack failed", "message_id", msg.ID, "error", err.Error())
	}
}
