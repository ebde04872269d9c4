package notification

import (
	"context"
	"net/http"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/sanitize"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxChatText = 2000

// ChatRequest is the body of POST /api/chat/messages.
type ChatRequest struct {
	Text       string `json:"text" validate:"required,max=2000"`
	SenderName string `json:"senderName" validate:"omitempty,max=120"`
}

// ChatResponse echoes the accepted message id.
type ChatResponse struct {
	ID uuid.UUID `json:"id"`
}

// ChatService turns terminal chat input into ChatMessagePosted events.
// Messages are not stored; connected sessions see them once.
type ChatService struct {
	bus events.Bus
	val *validator.Validator
}

func NewChatService(bus events.Bus, val *validator.Validator) *ChatService {
	return &ChatService{bus: bus, val: val}
}

// PostChat publishes one chat message.
func (s *ChatService) PostChat(ctx context.Context, senderID uuid.UUID, senderName, text string) error {
	_, err := s.post(ctx, senderID, senderName, text)
	return err
}

func (s *ChatService) post(ctx context.Context, senderID uuid.UUID, senderName, text string) (uuid.UUID, error) {
	text = sanitize.Text(text)
	if text == "" {
		return uuid.Nil, apperr.Validation("Message text is required")
	}
	if len(text) > maxChatText {
		return uuid.Nil, apperr.Validation("Message text is too long")
	}

	id := uuid.New()
	s.bus.Publish(ctx, events.ChatMessagePosted{
		BaseEvent:  events.NewBaseEvent(),
		MessageID:  id,
		SenderID:   senderID,
		SenderName: sanitize.Line(senderName),
		Text:       text,
	})
	return id, nil
}

// HandlePost accepts a chat message over HTTP.
func (s *ChatService) HandlePost(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	if err := s.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	msgID, err := s.post(c.Request.Context(), id.UserID(), req.SenderName, req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, ChatResponse{ID: msgID})
}
