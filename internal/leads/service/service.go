package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	msgLeadNotFound   = "Lead not found"
	msgNoValidFields  = "No valid fields provided"
	msgUnknownAdvisor = "advisor does not exist"
	defaultSource     = "Website"
)

// Service holds the lead use cases behind the HTTP handlers.
type Service struct {
	repo repository.LeadStore
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

// New creates a lead service.
func New(repo repository.LeadStore, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

// Create persists a lead from the internal intake form.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.CreateLeadResponse, error) {
	params := repository.CreateLeadParams{
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		Phone:             phone.NormalizeE164(req.Phone),
		Interest:          strings.TrimSpace(req.Interest),
		Source:            strings.TrimSpace(req.Source),
		CampaignID:        req.CampaignID,
		AssignedTo:        req.AssignedTo,
		Score:             req.Score,
		Qualification:     req.Qualification,
		Notes:             req.Notes,
		Message:           req.Message,
		LifeDetails:       req.LifeDetails,
		RealEstateDetails: req.RealEstateDetails,
		SecuritiesDetails: req.SecuritiesDetails,
		CustomDetails:     req.CustomDetails,
	}
	if params.Source == "" {
		params.Source = defaultSource
	}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return transport.CreateLeadResponse{}, apperr.Validation(err.Error())
		}
		params.Status = status
	}
	if req.Priority != "" {
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return transport.CreateLeadResponse{}, apperr.Validation(err.Error())
		}
		params.Priority = priority
	}
	if err := validateDetails(req.LifeDetails, req.RealEstateDetails, req.SecuritiesDetails, req.CustomDetails); err != nil {
		return transport.CreateLeadResponse{}, err
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.CreateLeadResponse{}, s.storeError("leads.Create", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Interest:  lead.Interest,
		Source:    lead.Source,
		Origin:    events.OriginIntake,
	})

	return transport.CreateLeadResponse{ID: lead.ID, Success: true}, nil
}

// GetByID returns one lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, s.storeError("leads.GetByID", err)
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns leads newest first.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]transport.LeadResponse, error) {
	leads, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, s.storeError("leads.List", err)
	}
	return transport.ToLeadResponses(leads), nil
}

// Update applies an allowlisted partial update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params, err := toUpdateParams(req)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if params.IsEmpty() {
		return transport.LeadResponse{}, apperr.Validation(msgNoValidFields)
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.LeadResponse{}, s.storeError("leads.Update", err)
	}

	if params.Status != nil {
		s.warnUnassigned(lead)
		s.publishStatus(ctx, lead)
	}
	return transport.ToLeadResponse(lead), nil
}

// UpdateStatus sets the status only. Assignment is untouched, so Assigned
// may be set on a lead with no advisor.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, rawStatus string) (transport.LeadResponse, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return transport.LeadResponse{}, apperr.Validation(err.Error())
	}

	lead, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return transport.LeadResponse{}, s.storeError("leads.UpdateStatus", err)
	}

	s.warnUnassigned(lead)
	s.publishStatus(ctx, lead)
	return transport.ToLeadResponse(lead), nil
}

// ArchiveInactive archives leads whose status has not changed for at least after.
func (s *Service) ArchiveInactive(ctx context.Context, after time.Duration) ([]uuid.UUID, error) {
	cutoff := s.now().Add(-after)
	ids, err := s.repo.ArchiveInactive(ctx, cutoff)
	if err != nil {
		return nil, s.storeError("leads.ArchiveInactive", err)
	}
	if len(ids) > 0 {
		s.log.Info("inactive leads archived", "count", len(ids), "cutoff", cutoff)
		s.bus.Publish(ctx, events.LeadsArchived{BaseEvent: events.NewBaseEvent(), LeadIDs: ids})
	}
	return ids, nil
}

func (s *Service) warnUnassigned(lead domain.Lead) {
	if lead.Status == domain.StatusAssigned && lead.IsUnclaimed() {
		s.log.Warn("lead marked Assigned without an advisor", "lead_id", lead.ID)
	}
}

func (s *Service) publishStatus(ctx context.Context, lead domain.Lead) {
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		NewStatus: string(lead.Status),
	})
}

func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgLeadNotFound).WithOp(op)
	case errors.Is(err, repository.ErrNoFields):
		return apperr.Validation(msgNoValidFields).WithOp(op)
	case errors.Is(err, repository.ErrUnknownAdvisor):
		return apperr.Validation(msgUnknownAdvisor).WithOp(op)
	}
	s.log.DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, "failed to access lead store", err).WithOp(op)
}

func toUpdateParams(req transport.UpdateLeadRequest) (repository.UpdateLeadParams, error) {
	params := repository.UpdateLeadParams{
		Name:              trimmed(req.Name),
		Email:             trimmed(req.Email),
		Interest:          trimmed(req.Interest),
		Source:            trimmed(req.Source),
		CampaignID:        req.CampaignID.Value,
		CampaignIDSet:     req.CampaignID.Set,
		AssignedTo:        req.AssignedTo.Value,
		AssignedToSet:     req.AssignedTo.Set,
		Score:             req.Score,
		Qualification:     req.Qualification.Value,
		QualificationSet:  req.Qualification.Set,
		Notes:             req.Notes,
		Message:           req.Message,
		LifeDetails:       req.LifeDetails,
		RealEstateDetails: req.RealEstateDetails,
		SecuritiesDetails: req.SecuritiesDetails,
		CustomDetails:     req.CustomDetails,
		IsArchived:        req.IsArchived,
	}
	if req.Phone != nil {
		p := phone.NormalizeE164(*req.Phone)
		params.Phone = &p
	}
	if req.Status != nil {
		status, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return params, apperr.Validation(err.Error())
		}
		params.Status = &status
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return params, apperr.Validation(err.Error())
		}
		params.Priority = &priority
	}
	if err := validateDetails(req.LifeDetails, req.RealEstateDetails, req.SecuritiesDetails, req.CustomDetails); err != nil {
		return params, err
	}
	return params, nil
}

// validateDetails requires vertical detail blobs to be JSON objects.
func validateDetails(blobs ...json.RawMessage) error {
	for _, blob := range blobs {
		if len(blob) == 0 || string(blob) == "null" {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(blob, &obj); err != nil {
			return apperr.Validation("detail fields must be JSON objects")
		}
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
