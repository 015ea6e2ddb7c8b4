package leads

import (
	"net/http"
	"time"

	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const errNoTenantContext = "no tenant context"

// Handler handles lead HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new lead handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	RemoteJID   string     `json:"remoteJid,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	StatusKey   string     `json:"statusKey"`
	Source      string     `json:"source"`
	Verified    bool       `json:"verified"`
	IsTest      bool       `json:"isTest"`
	ProfileID   *uuid.UUID `json:"profileId,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// CreateLeadRequest is the request body for creating a lead by hand.
type CreateLeadRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Phone       string `json:"phone" validate:"required,min=8,max=20"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=120"`
	StatusKey   string `json:"statusKey" validate:"omitempty,max=60"`
	IsTest      bool   `json:"isTest"`
}

// ChangeStatusRequest is the request body for moving a lead between statuses.
type ChangeStatusRequest struct {
	StatusKey string `json:"statusKey" validate:"required,min=1,max=60"`
}

// SetProfileRequest sets or clears a lead's automation profile override.
// A null profileId clears the override.
type SetProfileRequest struct {
	ProfileID *uuid.UUID `json:"profileId"`
}

// HandleList returns the tenant's leads, optionally filtered by status key.
// GET /api/v1/leads?status=<key>
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	items, err := h.service.List(c.Request.Context(), tenantID, c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]LeadResponse, len(items))
	for i, l := range items {
		result[i] = toLeadResponse(l)
	}
	httpkit.OK(c, result)
}

// HandleGet returns one lead.
// GET /api/v1/leads/:leadId
func (h *Handler) HandleGet(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	leadID, ok := h.parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.service.Get(c.Request.Context(), leadID, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// HandleCreate creates a lead by hand.
// POST /api/v1/leads
func (h *Handler) HandleCreate(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req CreateLeadRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), Lead{
		TenantID:    tenantID,
		Name:        req.Name,
		Phone:       req.Phone,
		Description: req.Description,
		Category:    req.Category,
		StatusKey:   req.StatusKey,
		Source:      "manual",
		IsTest:      req.IsTest,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toLeadResponse(created))
}

// HandleChangeStatus moves a lead to another funnel status.
// PUT /api/v1/leads/:leadId/status
func (h *Handler) HandleChangeStatus(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	leadID, ok := h.parseLeadID(c)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	lead, err := h.service.ChangeStatus(c.Request.Context(), leadID, tenantID, req.StatusKey)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// HandleSetProfile sets or clears a lead's automation profile override.
// PUT /api/v1/leads/:leadId/profile
func (h *Handler) HandleSetProfile(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	leadID, ok := h.parseLeadID(c)
	if !ok {
		return
	}

	var req SetProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.service.SetProfileOverride(c.Request.Context(), leadID, tenantID, req.ProfileID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func toLeadResponse(l Lead) LeadResponse {
	return LeadResponse{
		ID:          l.ID,
		Name:        l.Name,
		Phone:       l.Phone,
		RemoteJID:   l.RemoteJID,
		Description: l.Description,
		Category:    l.Category,
		StatusKey:   l.StatusKey,
		Source:      l.Source,
		Verified:    l.Verified,
		IsTest:      l.IsTest,
		ProfileID:   l.ProfileID,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return uuid.UUID{}, false
	}
	return leadID, true
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

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return false
	}
	return true
}
