package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// maxBodyBytes caps a single delivery.
const maxBodyBytes = 1 << 20

// Receiver is the ingestion entry point the handler calls.
type Receiver interface {
	Receive(ctx context.Context, platformTag string, raw []byte) (ReceiveResponse, error)
	Reject(ctx context.Context, platformTag string, prefix []byte, cause error) error
}

// Handler handles webhook HTTP requests.
type Handler struct {
	receiver Receiver
	registry *Registry
}

// NewHandler creates a new webhook handler.
func NewHandler(receiver Receiver, registry *Registry) *Handler {
	return &Handler{receiver: receiver, registry: registry}
}

// HandleDelivery ingests one platform delivery. The body is read as bytes
// and never bound to a struct so the log keeps it untouched.
// POST /api/webhooks/:platform
func (h *Handler) HandleDelivery(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		httpkit.HandleError(c, h.receiver.Reject(c.Request.Context(), c.Param("platform"), raw, bodyReadError(err)))
		return
	}

	resp, err := h.receiver.Receive(c.Request.Context(), c.Param("platform"), raw)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// HandleListPlatforms returns the registered platform tags.
// GET /api/webhooks
func (h *Handler) HandleListPlatforms(c *gin.Context) {
	httpkit.OK(c, gin.H{"platforms": h.registry.Tags()})
}

func bodyReadError(err error) *BodyReadError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &BodyReadError{Limit: tooLarge.Limit, Err: err}
	}
	return &BodyReadError{Err: err}
}
