package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"leadflow_backend/internal/events"

	"github.com/google/uuid"
)

func TestEncodeWrapsEventWithName(t *testing.T) {
	advisor := uuid.New()
	lead := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := events.LeadsAssigned{
		BaseEvent: events.BaseEvent{Timestamp: at},
		LeadIDs:   []uuid.UUID{lead},
		AdvisorID: advisor,
	}

	body, err := Encode(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Name       string    `json:"name"`
		OccurredAt time.Time `json:"occurredAt"`
		Data       struct {
			LeadIDs   []uuid.UUID `json:"leadIds"`
			AdvisorID uuid.UUID   `json:"advisorId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.Name != "leads.assigned" {
		t.Fatalf("expected routing name leads.assigned, got %q", decoded.Name)
	}
	if !decoded.OccurredAt.Equal(at) {
		t.Fatalf("expected occurredAt %s, got %s", at, decoded.OccurredAt)
	}
	if decoded.Data.AdvisorID != advisor || len(decoded.Data.LeadIDs) != 1 || decoded.Data.LeadIDs[0] != lead {
		t.Fatalf("unexpected data %+v", decoded.Data)
	}
}

func TestNoopPublisherAcceptsEverything(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.PublishEvent(context.Background(), events.LeadsArchived{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
