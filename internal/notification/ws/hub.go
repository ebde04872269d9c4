// Package ws serves the duplex realtime channel over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"leadflow_backend/internal/notification/broadcast"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	maxChatLength  = 2000
)

// ChatPoster accepts a chat message from a connected session.
type ChatPoster interface {
	PostChat(ctx context.Context, senderID uuid.UUID, senderName, text string) error
}

// inbound is a client frame. Only CHAT_MESSAGE is acted on.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type chatPayload struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

// Hub upgrades authenticated requests and pumps broadcaster events to them.
type Hub struct {
	broadcaster *broadcast.Broadcaster
	chat        ChatPoster
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// NewHub creates a hub. Origin checks are left to the JWT on the upgrade request.
func NewHub(b *broadcast.Broadcaster, chat ChatPoster, log *logger.Logger) *Hub {
	return &Hub{
		broadcaster: b,
		chat:        chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Handler upgrades the connection.
// GET /api/realtime/ws?token=
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.GetIdentity(c)
		if !id.IsAuthenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("ws: upgrade failed", "error", err)
			return
		}

		sub := h.broadcaster.Listen()
		h.log.Debug("ws client connected", "user_id", id.UserID())

		go h.writePump(conn, sub)
		h.readPump(context.WithoutCancel(c.Request.Context()), conn, id.UserID())

		sub.Close()
		h.log.Debug("ws client disconnected", "user_id", id.UserID())
	}
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("ws: read failed", "error", err, "user_id", userID)
			}
			return
		}
		if msg.Type != string(broadcast.EventChatMessage) {
			h.log.Debug("ws: ignoring inbound frame", "type", msg.Type)
			continue
		}

		var chat chatPayload
		if err := json.Unmarshal(msg.Payload, &chat); err != nil {
			continue
		}
		text := strings.TrimSpace(chat.Text)
		if text == "" || len(text) > maxChatLength {
			continue
		}
		if err := h.chat.PostChat(ctx, userID, strings.TrimSpace(chat.SenderName), text); err != nil {
			h.log.Error("ws: failed to post chat message", "error", err, "user_id", userID)
		}
	}
}

// writePump owns all writes to conn. It exits when the subscription closes
// or a write fails.
func (h *Hub) writePump(conn *websocket.Conn, sub *broadcast.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
