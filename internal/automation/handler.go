package automation

import (
	"net/http"
	"time"

	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles automation profile HTTP requests.
type Handler struct {
	repo *Repository
	val  *validator.Validator
}

// NewHandler creates a new automation handler.
func NewHandler(repo *Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// ProfileRequest is the request body for creating or updating a profile.
type ProfileRequest struct {
	Name              string `json:"name" validate:"required,min=1,max=120"`
	Tone              string `json:"tone" validate:"max=200"`
	Objective         string `json:"objective" validate:"max=500"`
	Priority          string `json:"priority" validate:"max=200"`
	RejectionStrategy string `json:"rejectionStrategy" validate:"max=500"`
	Style             string `json:"style" validate:"max=200"`
	Instructions      string `json:"instructions" validate:"max=5000"`
}

// ProfileResponse is the API representation of a profile.
type ProfileResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Tone              string    `json:"tone"`
	Objective         string    `json:"objective"`
	Priority          string    `json:"priority"`
	RejectionStrategy string    `json:"rejectionStrategy"`
	Style             string    `json:"style"`
	Instructions      string    `json:"instructions"`
	CreatedAt         string    `json:"createdAt"`
	UpdatedAt         string    `json:"updatedAt"`
}

// BindingRequest enables a capability on a profile.
type BindingRequest struct {
	CapabilityID uuid.UUID              `json:"capabilityId" validate:"required"`
	Settings     map[string]interface{} `json:"settings"`
}

// HandleListProfiles lists the tenant's profiles.
// GET /api/v1/automation/profiles
func (h *Handler) HandleListProfiles(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	profiles, err := h.repo.ListProfiles(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]ProfileResponse, len(profiles))
	for i, p := range profiles {
		result[i] = toProfileResponse(p)
	}
	httpkit.OK(c, result)
}

// HandleCreateProfile creates a profile.
// POST /api/v1/automation/profiles
func (h *Handler) HandleCreateProfile(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req ProfileRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	created, err := h.repo.CreateProfile(c.Request.Context(), profileFromRequest(req, tenantID, uuid.Nil))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toProfileResponse(created))
}

// HandleUpdateProfile updates a profile's behavioral fields.
// PUT /api/v1/automation/profiles/:profileId
func (h *Handler) HandleUpdateProfile(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	profileID, ok := h.parseProfileID(c)
	if !ok {
		return
	}

	var req ProfileRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	updated, err := h.repo.UpdateProfile(c.Request.Context(), profileFromRequest(req, tenantID, profileID))
	if err == ErrProfileNotFound {
		httpkit.Error(c, http.StatusNotFound, "profile not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toProfileResponse(updated))
}

// HandleDeleteProfile removes a profile.
// DELETE /api/v1/automation/profiles/:profileId
func (h *Handler) HandleDeleteProfile(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	profileID, ok := h.parseProfileID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteProfile(c.Request.Context(), profileID, tenantID); err != nil {
		if err == ErrProfileNotFound {
			httpkit.Error(c, http.StatusNotFound, "profile not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSetBinding enables a capability on a profile.
// PUT /api/v1/automation/profiles/:profileId/capabilities
func (h *Handler) HandleSetBinding(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	profileID, ok := h.parseProfileID(c)
	if !ok {
		return
	}

	// Scope check before touching the binding table.
	if _, err := h.repo.GetProfile(c.Request.Context(), profileID, tenantID); err != nil {
		if err == ErrProfileNotFound {
			httpkit.Error(c, http.StatusNotFound, "profile not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	var req BindingRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	if err := h.repo.SetBinding(c.Request.Context(), profileID, req.CapabilityID, req.Settings); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRemoveBinding disables a capability on a profile.
// DELETE /api/v1/automation/profiles/:profileId/capabilities/:capabilityId
func (h *Handler) HandleRemoveBinding(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	profileID, ok := h.parseProfileID(c)
	if !ok {
		return
	}

	capabilityID, err := uuid.Parse(c.Param("capabilityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid capability ID", nil)
		return
	}

	if _, err := h.repo.GetProfile(c.Request.Context(), profileID, tenantID); err != nil {
		if err == ErrProfileNotFound {
			httpkit.Error(c, http.StatusNotFound, "profile not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	if err := h.repo.RemoveBinding(c.Request.Context(), profileID, capabilityID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func profileFromRequest(req ProfileRequest, tenantID, id uuid.UUID) Profile {
	return Profile{
		ID:                id,
		TenantID:          tenantID,
		Name:              req.Name,
		Tone:              req.Tone,
		Objective:         req.Objective,
		Priority:          req.Priority,
		RejectionStrategy: req.RejectionStrategy,
		Style:             req.Style,
		Instructions:      req.Instructions,
	}
}

func toProfileResponse(p Profile) ProfileResponse {
	return ProfileResponse{
		ID:                p.ID,
		Name:              p.Name,
		Tone:              p.Tone,
		Objective:         p.Objective,
		Priority:          p.Priority,
		RejectionStrategy: p.RejectionStrategy,
		Style:             p.Style,
		Instructions:      p.Instructions,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) parseProfileID(c *gin.Context) (uuid.UUID, bool) {
	profileID, err := uuid.Parse(c.Param("profileId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid profile ID", nil)
		return uuid.UUID{}, false
	}
	return profileID, true
}

func (h *Handler) getTenantID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusForbidden, "no tenant context", nil)
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
