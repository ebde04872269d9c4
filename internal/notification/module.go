// Package notification turns lead and chat domain events into realtime
// broadcasts, advisor e-mails and broker messages.
// Domain modules publish events and never talk to transports directly.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	authrepo "leadflow_backend/internal/auth/repository"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/internal/notification/broadcast"
	"leadflow_backend/internal/notification/relay"
	"leadflow_backend/internal/notification/sse"
	"leadflow_backend/internal/notification/ws"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/google/uuid"
)

// LeadReader loads the lead snapshot carried by NEW_LEAD and assignment mails.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// AdvisorReader resolves the mail recipient of an assignment.
type AdvisorReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (authrepo.User, error)
}

// chatPayload is the CHAT_MESSAGE payload.
type chatPayload struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// Module is the notification bounded context module implementing http.Module
// and events.Handler.
type Module struct {
	broadcaster *broadcast.Broadcaster
	sse         *sse.Service
	hub         *ws.Hub
	chat        *ChatService
	leads       LeadReader
	advisors    AdvisorReader
	sender      email.Sender
	relay       relay.Publisher
	log         *logger.Logger
}

// New creates the notification module. A nil publisher disables relaying.
func New(
	bus events.Bus,
	leads LeadReader,
	advisors AdvisorReader,
	sender email.Sender,
	publisher relay.Publisher,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	if publisher == nil {
		publisher = relay.NoopPublisher{}
	}

	b := broadcast.NewBroadcaster(broadcast.DefaultBufferSize, log)
	chat := NewChatService(bus, val)

	return &Module{
		broadcaster: b,
		sse:         sse.New(b, log),
		hub:         ws.NewHub(b, chat, log),
		chat:        chat,
		leads:       leads,
		advisors:    advisors,
		sender:      sender,
		relay:       publisher,
		log:         log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Broadcaster exposes the fan-out for shutdown and tests.
func (m *Module) Broadcaster() *broadcast.Broadcaster {
	return m.broadcaster
}

// RegisterRoutes mounts realtime and chat routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	realtime := ctx.Protected.Group("/realtime")
	realtime.GET("/events", m.sse.Handler())
	realtime.GET("/ws", m.hub.Handler())

	ctx.Protected.POST("/chat/messages", m.chat.HandlePost)
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	// Lead events
	bus.Subscribe(events.LeadCreated{}.EventName(), m)
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), m)
	bus.Subscribe(events.LeadsAssigned{}.EventName(), m)
	bus.Subscribe(events.LeadsArchived{}.EventName(), m)

	// Chat events
	bus.Subscribe(events.ChatMessagePosted{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return errors.Join(m.handleLeadCreated(ctx, e), m.forward(ctx, e))
	case events.LeadsAssigned:
		return errors.Join(m.handleLeadsAssigned(ctx, e), m.forward(ctx, e))
	case events.LeadStatusChanged, events.LeadsArchived:
		return m.forward(ctx, event)
	case events.ChatMessagePosted:
		return m.handleChatMessagePosted(e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// Close ends every realtime session and the broker connection.
func (m *Module) Close() error {
	m.broadcaster.Close()
	return m.relay.Close()
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	lead, err := m.leads.GetByID(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("load lead %s for broadcast: %w", e.LeadID, err)
	}

	notification, err := broadcast.NewEvent(broadcast.EventNewLead, transport.ToLeadResponse(lead))
	if err != nil {
		return err
	}
	delivered := m.broadcaster.Broadcast(notification)
	m.log.Debug("new lead broadcast", "lead_id", e.LeadID, "origin", e.Origin, "sessions", delivered)
	return nil
}

func (m *Module) handleChatMessagePosted(e events.ChatMessagePosted) error {
	notification, err := broadcast.NewEvent(broadcast.EventChatMessage, chatPayload{
		ID:         e.MessageID,
		SenderID:   e.SenderID,
		SenderName: e.SenderName,
		Text:       e.Text,
		SentAt:     e.OccurredAt(),
	})
	if err != nil {
		return err
	}
	m.broadcaster.Broadcast(notification)
	return nil
}

func (m *Module) handleLeadsAssigned(ctx context.Context, e events.LeadsAssigned) error {
	advisor, err := m.advisors.GetUserByID(ctx, e.AdvisorID)
	if err != nil {
		return fmt.Errorf("load advisor %s: %w", e.AdvisorID, err)
	}

	assigned := make([]email.AssignedLead, 0, len(e.LeadIDs))
	for _, id := range e.LeadIDs {
		lead, err := m.leads.GetByID(ctx, id)
		if err != nil {
			m.log.Warn("assignment mail: lead unavailable", "lead_id", id, "error", err)
			continue
		}
		assigned = append(assigned, email.AssignedLead{
			Name:     lead.Name,
			Interest: lead.Interest,
			Source:   lead.Source,
			Phone:    lead.Phone,
		})
	}
	if len(assigned) == 0 {
		return nil
	}

	if err := m.sender.SendLeadsAssignedEmail(ctx, advisor.Email, advisor.Name, assigned); err != nil {
		return fmt.Errorf("send assignment mail to %s: %w", advisor.Email, err)
	}
	m.log.Info("assignment mail sent", "advisor_id", e.AdvisorID, "leads", len(assigned))
	return nil
}

func (m *Module) forward(ctx context.Context, event events.Event) error {
	if err := m.relay.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("relay %s: %w", event.EventName(), err)
	}
	return nil
}
