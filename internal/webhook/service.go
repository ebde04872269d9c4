package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/integrationlog"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	importedMessage    = "Auto-Imported via Webhook"
	msgLeadReceived    = "Lead received successfully"
	msgIngestFailed    = "Failed to process webhook"
	outcomeSuccess     = "success"
	outcomeRejected    = "rejected"
	outcomeError       = "error"
	outcomeUnsupported = "unsupported"
)

// LeadCreator persists a normalized lead in its own transaction.
// Satisfied by the leads repository.
type LeadCreator interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error)
}

// PersistenceError is returned when the log or lead store rejects a write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// BodyReadError is returned when a delivery body could not be read in full.
// Limit is set when the body ran past the size cap.
type BodyReadError struct {
	Limit int64
	Err   error
}

func (e *BodyReadError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("payload exceeds %d bytes", e.Limit)
	}
	return fmt.Sprintf("failed to read request body: %v", e.Err)
}

func (e *BodyReadError) Unwrap() error { return e.Err }

// ReceiveResponse is returned to the delivering platform on success.
type ReceiveResponse struct {
	Success bool      `json:"success"`
	LeadID  uuid.UUID `json:"leadId"`
	Message string    `json:"message"`
}

// Service runs one webhook delivery through log, normalize and persist.
// Deliveries are not deduplicated: a repeated body creates another lead.
type Service struct {
	logs     integrationlog.Appender
	leads    LeadCreator
	registry *Registry
	eventBus events.Bus
	log      *logger.Logger
}

// NewService creates a new webhook service.
func NewService(logs integrationlog.Appender, leads LeadCreator, registry *Registry, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		logs:     logs,
		leads:    leads,
		registry: registry,
		eventBus: eventBus,
		log:      log,
	}
}

// Receive ingests one delivery. The raw body is logged before anything
// else runs; if that write fails nothing further happens.
func (s *Service) Receive(ctx context.Context, platformTag string, raw []byte) (ReceiveResponse, error) {
	tag := strings.TrimSpace(platformTag)

	if _, err := s.logs.Append(ctx, integrationlog.Attempt(tag, raw)); err != nil {
		s.log.Error("webhook: failed to log ingest attempt", "error", err, "platform", tag)
		return ReceiveResponse{}, toAppError(&PersistenceError{Op: "log ingest attempt", Err: err})
	}

	normalized, err := s.registry.Normalize(tag, raw)
	if err != nil {
		return ReceiveResponse{}, s.fail(ctx, tag, raw, err)
	}

	var campaignID *string
	if normalized.CampaignID != "" {
		campaignID = &normalized.CampaignID
	}
	lead, err := s.leads.Create(ctx, repository.CreateLeadParams{
		Name:         normalized.Name,
		Email:        normalized.Email,
		Phone:        normalized.Phone,
		Interest:     normalized.Interest,
		Status:       domain.StatusNew,
		Source:       normalized.Source,
		CampaignID:   campaignID,
		Message:      importedMessage,
		PlatformData: rawPlatformData(raw),
	})
	if err != nil {
		return ReceiveResponse{}, s.fail(ctx, tag, raw, &PersistenceError{Op: "create lead", Err: err})
	}

	// The lead is committed; a missing success row is logged, not surfaced,
	// so the platform does not redeliver and duplicate it.
	if _, err := s.logs.Append(ctx, integrationlog.Success(tag, raw, lead.ID)); err != nil {
		s.log.Error("webhook: failed to log ingest success", "error", err, "platform", tag, "lead_id", lead.ID)
	}

	s.log.WithContext(ctx).IngestOutcome(tag, string(integrationlog.EventIngestSuccess), string(integrationlog.StatusSuccess), lead.ID.String())
	httpkit.RecordIngest(s.metricsLabel(tag), outcomeSuccess)

	s.eventBus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Interest:  lead.Interest,
		Source:    lead.Source,
		Origin:    events.OriginWebhook,
	})

	return ReceiveResponse{Success: true, LeadID: lead.ID, Message: msgLeadReceived}, nil
}

// Reject records a delivery whose body could not be read. The prefix that
// was read is logged in the attempt and error rows like any other body.
func (s *Service) Reject(ctx context.Context, platformTag string, prefix []byte, cause error) error {
	tag := strings.TrimSpace(platformTag)

	if _, err := s.logs.Append(ctx, integrationlog.Attempt(tag, prefix)); err != nil {
		s.log.Error("webhook: failed to log ingest attempt", "error", err, "platform", tag)
		return toAppError(&PersistenceError{Op: "log ingest attempt", Err: err})
	}
	return s.fail(ctx, tag, prefix, cause)
}

// fail records an INGEST_ERROR row on a best-effort basis and maps cause
// to the HTTP-facing error.
func (s *Service) fail(ctx context.Context, tag string, raw []byte, cause error) error {
	if _, err := s.logs.Append(ctx, integrationlog.Failure(tag, raw, cause)); err != nil {
		s.log.Error("webhook: failed to log ingest error", "error", err, "platform", tag, "cause", cause)
	}

	s.log.WithContext(ctx).IngestOutcome(tag, string(integrationlog.EventIngestError), string(integrationlog.StatusFailure), "")
	httpkit.RecordIngest(s.metricsLabel(tag), outcomeFor(cause))

	return toAppError(cause)
}

// metricsLabel bounds label cardinality to registered tags.
func (s *Service) metricsLabel(tag string) string {
	if _, err := s.registry.Lookup(tag); err != nil {
		return outcomeUnsupported
	}
	return strings.ToLower(tag)
}

func outcomeFor(err error) string {
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return outcomeError
	}
	return outcomeRejected
}

// toAppError maps pipeline errors to HTTP kinds. Anything that is not a
// rejected payload is a persistence failure.
func toAppError(err error) error {
	var unsupported *UnsupportedPlatformError
	var normErr *NormalizationError
	var readErr *BodyReadError
	switch {
	case errors.As(err, &readErr):
		return apperr.Wrap(apperr.KindBadRequest, readErr.Error(), err).WithOp("webhook.Receive")
	case errors.As(err, &unsupported):
		return apperr.Wrap(apperr.KindBadRequest, unsupported.Error(), err).WithOp("webhook.Receive")
	case errors.As(err, &normErr):
		return apperr.Wrap(apperr.KindValidation, "Invalid payload: expected a JSON object", err).WithOp("webhook.Receive")
	}
	return apperr.Wrap(apperr.KindInternal, msgIngestFailed, err).WithOp("webhook.Receive")
}

// rawPlatformData keeps the body as delivered. Normalization already
// proved it is a JSON object.
func rawPlatformData(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
