package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no lead matches the id.
	ErrNotFound = errors.New("lead not found")
	// ErrNoFields is returned by Update when the patch sets nothing.
	ErrNoFields = errors.New("no valid fields provided")
	// ErrUnknownAdvisor is returned when assigned_to references a missing user.
	ErrUnknownAdvisor = errors.New("advisor does not exist")
	// ErrUnknownStatus is returned when a write carries a non-canonical status.
	ErrUnknownStatus = errors.New("unknown lead status")
)

// =====================================
// Segregated Interfaces
// =====================================

// LeadReader provides read-only access to lead snapshots.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
}

// LeadWriter provides single-lead writes. Every call is its own transaction.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error)
	AssignAdvisor(ctx context.Context, id uuid.UUID, advisorID uuid.UUID) (domain.Lead, error)
}

// LeadArchiver flags leads whose status has not changed since cutoff.
type LeadArchiver interface {
	ArchiveInactive(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// LeadStore is the full store surface.
type LeadStore interface {
	LeadReader
	LeadWriter
	LeadArchiver
}

// CreateLeadParams carries the fields of a new lead. An empty Status means New.
type CreateLeadParams struct {
	Name              string
	Email             string
	Phone             string
	Interest          string
	Status            domain.Status
	Source            string
	CampaignID        *string
	AssignedTo        *uuid.UUID
	Score             int
	Priority          domain.Priority
	Qualification     *string
	Notes             string
	Message           string
	LifeDetails       json.RawMessage
	RealEstateDetails json.RawMessage
	SecuritiesDetails json.RawMessage
	CustomDetails     json.RawMessage
	PlatformData      json.RawMessage
}

// UpdateLeadParams is an allowlisted partial update. Nil pointers are left
// untouched; the *Set flags allow clearing nullable columns.
type UpdateLeadParams struct {
	Name              *string
	Email             *string
	Phone             *string
	Interest          *string
	Status            *domain.Status
	Source            *string
	CampaignID        *string
	CampaignIDSet     bool
	AssignedTo        *uuid.UUID
	AssignedToSet     bool
	Score             *int
	Priority          *domain.Priority
	Qualification     *string
	QualificationSet  bool
	Notes             *string
	Message           *string
	LifeDetails       json.RawMessage
	RealEstateDetails json.RawMessage
	SecuritiesDetails json.RawMessage
	CustomDetails     json.RawMessage
	IsArchived        *bool
}

// IsEmpty reports whether the patch sets no column.
func (p UpdateLeadParams) IsEmpty() bool {
	return len(updateFields(p)) == 0
}

// ListParams filters List. A nil AdvisorID lists every lead.
type ListParams struct {
	AdvisorID       *uuid.UUID
	IncludeArchived bool
}
