package dispatch

import (
	"net/http"
	"time"

	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const errNoTenantContext = "no tenant context"

// Handler handles dispatch job HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new dispatch handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// ScheduleJobRequest is one job in a schedule batch.
type ScheduleJobRequest struct {
	LeadID       uuid.UUID `json:"leadId" validate:"required"`
	ProfileID    uuid.UUID `json:"profileId" validate:"required"`
	InstanceName string    `json:"instanceName" validate:"required,min=1,max=120"`
	RemoteJID    string    `json:"remoteJid" validate:"required,min=1,max=200"`
	Message      string    `json:"message" validate:"required,min=1,max=4000"`
	ImageURL     *string   `json:"imageUrl" validate:"omitempty,url"`
	ScheduledAt  time.Time `json:"scheduledAt" validate:"required"`
}

// ScheduleBatchRequest is the request body for scheduling jobs.
type ScheduleBatchRequest struct {
	Jobs []ScheduleJobRequest `json:"jobs" validate:"required,min=1,max=100,dive"`
}

// HandleSchedule creates a batch of scheduled jobs.
// POST /api/v1/dispatch/jobs
func (h *Handler) HandleSchedule(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req ScheduleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	jobs := make([]Job, len(req.Jobs))
	for i, r := range req.Jobs {
		jobs[i] = Job{
			TenantID:     tenantID,
			LeadID:       r.LeadID,
			ProfileID:    r.ProfileID,
			InstanceName: r.InstanceName,
			RemoteJID:    r.RemoteJID,
			Message:      r.Message,
			ImageURL:     r.ImageURL,
			ScheduledAt:  r.ScheduledAt,
		}
	}

	created, err := h.service.ScheduleBatch(c.Request.Context(), jobs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, created)
}

// HandleList returns the tenant's jobs.
// GET /api/v1/dispatch/jobs?status=<pending|sent|failed|cancelled>
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	status := c.Query("status")
	switch status {
	case "", StatusPending, StatusSent, StatusFailed, StatusCancelled:
	default:
		httpkit.Error(c, http.StatusBadRequest, "unknown job status", status)
		return
	}

	jobs, err := h.service.List(c.Request.Context(), tenantID, status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, jobs)
}

// HandleCancel cancels a pending job.
// POST /api/v1/dispatch/jobs/:jobId/cancel
func (h *Handler) HandleCancel(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid job ID", nil)
		return
	}

	err = h.service.Cancel(c.Request.Context(), jobID, tenantID)
	switch err {
	case nil:
		c.Status(http.StatusNoContent)
	case ErrJobNotFound:
		httpkit.Error(c, http.StatusNotFound, "job not found", nil)
	case ErrNotCancellable:
		httpkit.Error(c, http.StatusConflict, "job is no longer pending", nil)
	default:
		_ = httpkit.HandleError(c, err)
	}
}

func (h *Handler) getTenantID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusForbidden, errNoTenantContext, nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}
