package integrationlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Lister is the read side used by the admin endpoint.
type Lister interface {
	ListRecent(ctx context.Context, filter ListFilter) ([]Entry, error)
}

// Handler serves integration log reads.
type Handler struct {
	repo Lister
}

// NewHandler creates a new integration log handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// List returns recent log rows.
// GET /api/logs?platform=&eventType=&limit=
func (h *Handler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = parsed
	}

	entries, err := h.repo.ListRecent(c.Request.Context(), ListFilter{
		Platform:  strings.TrimSpace(c.Query("platform")),
		EventType: EventType(strings.ToUpper(strings.TrimSpace(c.Query("eventType")))),
		Limit:     limit,
	})
	if err != nil {
		_ = c.Error(err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to load integration logs", nil)
		return
	}

	httpkit.OK(c, entries)
}
