// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"time"

	"leadflow_backend/internal/notification/broadcast"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 25 * time.Second

// Service streams broadcaster events to SSE clients.
type Service struct {
	broadcaster *broadcast.Broadcaster
	log         *logger.Logger
}

// New creates a new SSE service
func New(b *broadcast.Broadcaster, log *logger.Logger) *Service {
	return &Service{broadcaster: b, log: log}
}

// Handler returns a Gin handler for SSE connections
// GET /api/realtime/events
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.GetIdentity(c)
		if !id.IsAuthenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Set SSE headers
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		sub := s.broadcaster.Listen()
		defer sub.Close()

		// Send connection event
		c.SSEvent("connected", gin.H{"userId": id.UserID()})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "user_id", id.UserID())

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		// Listen for events
		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "user_id", id.UserID())
				return
			case <-keepAlive.C:
				_, _ = c.Writer.Write([]byte(": keep-alive\n\n"))
				c.Writer.Flush()
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}
