package domain

import (
	"fmt"
	"strings"
)

// Status is a lead's lifecycle state. Wire values are title case.
// Any status may follow any other; Assigned is the one the assignment
// engine sets as a side effect.
type Status string

const (
	StatusNew         Status = "New"
	StatusContacted   Status = "Contacted"
	StatusAssigned    Status = "Assigned"
	StatusProposal    Status = "Proposal"
	StatusApproved    Status = "Approved"
	StatusClosed      Status = "Closed"
	StatusUnavailable Status = "Unavailable"
	StatusLost        Status = "Lost"
)

var knownStatuses = []Status{
	StatusNew,
	StatusContacted,
	StatusAssigned,
	StatusProposal,
	StatusApproved,
	StatusClosed,
	StatusUnavailable,
	StatusLost,
}

// ParseStatus accepts any casing ("ASSIGNED", "assigned") and returns the canonical value.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range knownStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown lead status %q", raw)
}

// IsKnown reports whether s is a canonical status.
func (s Status) IsKnown() bool {
	for _, k := range knownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// Priority ranks follow-up urgency.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority accepts any casing and returns the canonical value.
func ParsePriority(raw string) (Priority, error) {
	trimmed := strings.TrimSpace(raw)
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(trimmed, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", raw)
}
