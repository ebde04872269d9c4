// Package domain holds the lead aggregate and its lifecycle vocabulary.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lead is a prospect record. Values returned by the store are snapshots:
// mutating one never changes stored state.
type Lead struct {
	ID                uuid.UUID
	Name              string
	Email             string
	Phone             string
	Interest          string
	Status            Status
	Source            string
	CampaignID        *string
	AssignedTo        *uuid.UUID
	Score             int
	Priority          Priority
	Qualification     *string
	Notes             string
	Message           string
	LifeDetails       json.RawMessage
	RealEstateDetails json.RawMessage
	SecuritiesDetails json.RawMessage
	CustomDetails     json.RawMessage
	PlatformData      json.RawMessage
	IsArchived        bool
	StatusChangedAt   time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsUnclaimed reports whether every advisor may see and claim the lead.
func (l Lead) IsUnclaimed() bool {
	return l.AssignedTo == nil
}

// Clone returns a deep copy so callers cannot alias byte slices or pointers.
func (l Lead) Clone() Lead {
	out := l
	out.CampaignID = cloneString(l.CampaignID)
	out.Qualification = cloneString(l.Qualification)
	if l.AssignedTo != nil {
		id := *l.AssignedTo
		out.AssignedTo = &id
	}
	out.LifeDetails = cloneRaw(l.LifeDetails)
	out.RealEstateDetails = cloneRaw(l.RealEstateDetails)
	out.SecuritiesDetails = cloneRaw(l.SecuritiesDetails)
	out.CustomDetails = cloneRaw(l.CustomDetails)
	out.PlatformData = cloneRaw(l.PlatformData)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
