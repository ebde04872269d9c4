package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	Name              string          `json:"name" validate:"required,min=1,max=200"`
	Email             string          `json:"email,omitempty" validate:"omitempty,max=254"`
	Phone             string          `json:"phone,omitempty" validate:"omitempty,max=40"`
	Interest          string          `json:"interest,omitempty" validate:"omitempty,max=200"`
	Status            string          `json:"status,omitempty" validate:"omitempty,leadstatus"`
	Source            string          `json:"source,omitempty" validate:"omitempty,max=100"`
	CampaignID        *string         `json:"campaignId,omitempty" validate:"omitempty,max=100"`
	AssignedTo        *uuid.UUID      `json:"assignedTo,omitempty"`
	Score             int             `json:"score,omitempty" validate:"min=0,max=100"`
	Priority          string          `json:"priority,omitempty" validate:"omitempty,priority"`
	Qualification     *string         `json:"qualification,omitempty" validate:"omitempty,max=100"`
	Notes             string          `json:"notes,omitempty" validate:"max=10000"`
	Message           string          `json:"message,omitempty" validate:"max=10000"`
	LifeDetails       json.RawMessage `json:"lifeDetails,omitempty"`
	RealEstateDetails json.RawMessage `json:"realEstateDetails,omitempty"`
	SecuritiesDetails json.RawMessage `json:"securitiesDetails,omitempty"`
	CustomDetails     json.RawMessage `json:"customDetails,omitempty"`
}

type UpdateLeadRequest struct {
	Name              *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email             *string         `json:"email,omitempty" validate:"omitempty,max=254"`
	Phone             *string         `json:"phone,omitempty" validate:"omitempty,max=40"`
	Interest          *string         `json:"interest,omitempty" validate:"omitempty,max=200"`
	Status            *string         `json:"status,omitempty" validate:"omitempty,leadstatus"`
	Source            *string         `json:"source,omitempty" validate:"omitempty,max=100"`
	CampaignID        OptionalString  `json:"campaignId,omitempty" validate:"-"`
	AssignedTo        OptionalUUID    `json:"assignedTo,omitempty" validate:"-"`
	Score             *int            `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Priority          *string         `json:"priority,omitempty" validate:"omitempty,priority"`
	Qualification     OptionalString  `json:"qualification,omitempty" validate:"-"`
	Notes             *string         `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Message           *string         `json:"message,omitempty" validate:"omitempty,max=10000"`
	LifeDetails       json.RawMessage `json:"lifeDetails,omitempty"`
	RealEstateDetails json.RawMessage `json:"realEstateDetails,omitempty"`
	SecuritiesDetails json.RawMessage `json:"securitiesDetails,omitempty"`
	CustomDetails     json.RawMessage `json:"customDetails,omitempty"`
	IsArchived        *bool           `json:"isArchived,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,leadstatus"`
}

type AssignLeadsRequest struct {
	LeadIDs   []uuid.UUID `json:"leadIds" validate:"required,min=1,max=500"`
	AdvisorID uuid.UUID   `json:"advisorId" validate:"required"`
}

// Response DTOs

type LeadResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Interest          string          `json:"interest"`
	Status            string          `json:"status"`
	Source            string          `json:"source"`
	CampaignID        *string         `json:"campaignId,omitempty"`
	AssignedTo        *uuid.UUID      `json:"assignedTo,omitempty"`
	Score             int             `json:"score"`
	Priority          string          `json:"priority"`
	Qualification     *string         `json:"qualification,omitempty"`
	Notes             string          `json:"notes"`
	Message           string          `json:"message"`
	LifeDetails       json.RawMessage `json:"lifeDetails,omitempty"`
	RealEstateDetails json.RawMessage `json:"realEstateDetails,omitempty"`
	SecuritiesDetails json.RawMessage `json:"securitiesDetails,omitempty"`
	CustomDetails     json.RawMessage `json:"customDetails,omitempty"`
	PlatformData      json.RawMessage `json:"platformData,omitempty"`
	IsArchived        bool            `json:"isArchived"`
	StatusChangedAt   time.Time       `json:"statusChangedAt"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type CreateLeadResponse struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
}

type AssignFailure struct {
	LeadID uuid.UUID `json:"leadId"`
	Error  string    `json:"error"`
}

type AssignLeadsResponse struct {
	Assigned []LeadResponse  `json:"assigned"`
	Failed   []AssignFailure `json:"failed,omitempty"`
}
