// Package integrationlog provides the append-only audit trail of inbound
// webhook deliveries.
package integrationlog

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// EventType names the stage of an ingestion a row records.
type EventType string

const (
	EventIngestAttempt EventType = "INGEST_ATTEMPT"
	EventIngestError   EventType = "INGEST_ERROR"
	EventIngestSuccess EventType = "INGEST_SUCCESS"
)

// Status is the outcome recorded on a row.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// PayloadEncodingBase64 marks a JSON payload that is not valid UTF-8.
const PayloadEncodingBase64 = "base64"

// Entry is one immutable log row. Payload holds the request body exactly as
// received, byte for byte.
type Entry struct {
	ID           uuid.UUID
	Platform     string
	EventType    EventType
	Status       Status
	Payload      []byte
	ErrorMessage *string
	LeadID       *uuid.UUID
	CreatedAt    time.Time
}

type entryJSON struct {
	ID              uuid.UUID  `json:"id"`
	Platform        string     `json:"platform"`
	EventType       EventType  `json:"eventType"`
	Status          Status     `json:"status"`
	Payload         string     `json:"payload"`
	PayloadEncoding string     `json:"payloadEncoding,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	LeadID          *uuid.UUID `json:"leadId,omitempty"`
	CreatedAt       time.Time  `json:"timestamp"`
}

// MarshalJSON emits the payload as text when it is valid UTF-8 and as
// base64 otherwise.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:           e.ID,
		Platform:     e.Platform,
		EventType:    e.EventType,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		LeadID:       e.LeadID,
		CreatedAt:    e.CreatedAt,
	}
	if utf8.Valid(e.Payload) {
		out.Payload = string(e.Payload)
	} else {
		out.Payload = base64.StdEncoding.EncodeToString(e.Payload)
		out.PayloadEncoding = PayloadEncodingBase64
	}
	return json.Marshal(out)
}

// Attempt builds the row written before any normalization runs.
func Attempt(platform string, payload []byte) Entry {
	return Entry{Platform: storable(platform), EventType: EventIngestAttempt, Status: StatusPending, Payload: clonePayload(payload)}
}

// Failure builds an INGEST_ERROR row carrying the cause.
func Failure(platform string, payload []byte, cause error) Entry {
	msg := storable(cause.Error())
	return Entry{Platform: storable(platform), EventType: EventIngestError, Status: StatusFailure, Payload: clonePayload(payload), ErrorMessage: &msg}
}

// Success builds the INGEST_SUCCESS row for a persisted lead.
func Success(platform string, payload []byte, leadID uuid.UUID) Entry {
	return Entry{Platform: storable(platform), EventType: EventIngestSuccess, Status: StatusSuccess, Payload: clonePayload(payload), LeadID: &leadID}
}

// storable makes caller-controlled text safe for a TEXT column, which
// rejects NUL and invalid UTF-8.
func storable(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

func clonePayload(payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out
}
