package webhook

import (
	"net/http"

	"leadfunnel_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles the provider-facing webhook endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleProviderEvent ingests one provider event.
// POST /api/v1/webhook/provider
//
// The provider gets a 200 as soon as the event is resolved; the automation
// hook forward happens after the response and cannot fail this request.
func (h *Handler) HandleProviderEvent(c *gin.Context) {
	var evt ProviderEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}

	result, err := h.service.Process(c.Request.Context(), evt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"result": result})
}
