package dispatch

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskJobDue fires when a scheduled job's time arrives; its handler promotes
// the job onto the dispatch stream.
const TaskJobDue = "dispatch.job.due"

// JobDuePayload identifies the job to promote.
type JobDuePayload struct {
	JobID    string `json:"jobId"`
	TenantID string `json:"tenantId"`
}

func NewJobDueTask(payload JobDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJobDue, data), nil
}

func ParseJobDuePayload(task *asynq.Task) (JobDuePayload, error) {
	var payload JobDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JobDuePayload{}, err
	}
	return payload, nil
}

// QueuedJob is the broker message body: everything the worker needs to send
// without re-reading the job row.
type QueuedJob struct {
	JobID        uuid.UUID `json:"jobId"`
	TenantID     uuid.UUID `json:"tenantId"`
	LeadID       uuid.UUID `json:"leadId"`
	ProfileID    uuid.UUID `json:"profileId"`
	InstanceName string    `json:"instanceName"`
	RemoteJID    string    `json:"remoteJid"`
	Message      string    `json:"message"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
}

func queuedJobFrom(j Job) QueuedJob {
	return QueuedJob{
		JobID:        j.ID,
		TenantID:     j.TenantID,
		LeadID:       j.LeadID,
		ProfileID:    j.ProfileID,
		InstanceName: j.InstanceName,
		RemoteJID:    j.RemoteJID,
		Message:      j.Message,
		ImageURL:     j.ImageURL,
	}
}
