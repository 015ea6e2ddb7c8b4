package funnel

import (
	"net/http"
	"time"

	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const errNoTenantContext = "no tenant context"

// Handler handles funnel status HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new funnel handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// StatusResponse is the API representation of one funnel status.
type StatusResponse struct {
	ID           uuid.UUID `json:"id"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	IsRequired   bool      `json:"isRequired"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    string    `json:"createdAt"`
}

// CreateStatusRequest is the request body for creating a custom status.
type CreateStatusRequest struct {
	Key   string `json:"key" validate:"required,min=1,max=60"`
	Label string `json:"label" validate:"required,min=1,max=120"`
}

// ReorderRequest is the request body for reordering custom statuses.
type ReorderRequest struct {
	StatusIDs []uuid.UUID `json:"statusIds" validate:"required"`
}

// HandleList returns the tenant's statuses in presentation order.
// GET /api/v1/funnel/statuses
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	statuses, err := h.service.ListOrdered(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]StatusResponse, len(statuses))
	for i, st := range statuses {
		result[i] = toStatusResponse(st)
	}
	httpkit.OK(c, result)
}

// HandleCreate creates a custom status.
// POST /api/v1/funnel/statuses
func (h *Handler) HandleCreate(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req CreateStatusRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), tenantID, req.Key, req.Label)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toStatusResponse(created))
}

// HandleReorder applies a new ordering to the tenant's custom statuses.
// PUT /api/v1/funnel/statuses/reorder
func (h *Handler) HandleReorder(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req ReorderRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if err := h.service.Reorder(c.Request.Context(), tenantID, req.StatusIDs); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDelete removes a custom status.
// DELETE /api/v1/funnel/statuses/:statusId
func (h *Handler) HandleDelete(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	statusID, err := uuid.Parse(c.Param("statusId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid status ID", nil)
		return
	}

	if err := h.service.Delete(c.Request.Context(), tenantID, statusID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func toStatusResponse(st Status) StatusResponse {
	return StatusResponse{
		ID:           st.ID,
		Key:          st.Key,
		Label:        st.Label,
		IsRequired:   st.IsRequired,
		DisplayOrder: st.DisplayOrder,
		CreatedAt:    st.CreatedAt.Format(time.RFC3339),
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
