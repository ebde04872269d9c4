// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Lead origins carried on LeadCreated.
const (
	OriginWebhook = "webhook"
	OriginIntake  = "intake"
)

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published after a lead row is committed.
type LeadCreated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Interest string    `json:"interest"`
	Source   string    `json:"source"`
	Origin   string    `json:"origin"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadStatusChanged is published when a status is set directly.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadsAssigned is published once per bulk assignment with the leads that succeeded.
type LeadsAssigned struct {
	BaseEvent
	LeadIDs   []uuid.UUID `json:"leadIds"`
	AdvisorID uuid.UUID   `json:"advisorId"`
}

func (e LeadsAssigned) EventName() string { return "leads.assigned" }

// LeadsArchived is published after an archival sweep flags at least one lead.
type LeadsArchived struct {
	BaseEvent
	LeadIDs []uuid.UUID `json:"leadIds"`
}

func (e LeadsArchived) EventName() string { return "leads.archived" }

// =============================================================================
// Chat Domain Events
// =============================================================================

// ChatMessagePosted is published when a terminal user sends a chat message.
type ChatMessagePosted struct {
	BaseEvent
	MessageID  uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
}

func (e ChatMessagePosted) EventName() string { return "chat.message.posted" }
