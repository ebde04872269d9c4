// Package assignment hands batches of leads to an advisor.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Assigner is the single-lead write the engine repeats per lead.
// Each call must commit on its own.
type Assigner interface {
	AssignAdvisor(ctx context.Context, id uuid.UUID, advisorID uuid.UUID) (domain.Lead, error)
}

// LeadFailure records why one lead in a batch was not assigned.
type LeadFailure struct {
	LeadID uuid.UUID
	Err    error
}

// PartialBulkFailure is returned when at least one lead in a batch failed.
// Leads not listed were assigned and stay committed.
type PartialBulkFailure struct {
	Failures  []LeadFailure
	Succeeded int
}

func (e *PartialBulkFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.LeadID, f.Err))
	}
	return fmt.Sprintf("%d of %d leads failed to assign (%s)",
		len(e.Failures), len(e.Failures)+e.Succeeded, strings.Join(parts, "; "))
}

// Unwrap exposes every per-lead cause to errors.Is.
func (e *PartialBulkFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// BulkAssignResult lists the committed snapshots and the per-lead failures.
type BulkAssignResult struct {
	Assigned []domain.Lead
	Failures []LeadFailure
}

// Engine assigns leads one transaction at a time.
type Engine struct {
	store Assigner
	bus   events.Bus
	log   *logger.Logger
}

// New creates an assignment engine.
func New(store Assigner, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{store: store, bus: bus, log: log}
}

// Assign sets assignedTo and status Assigned on every lead. There is no
// rollback across leads: when some fail, the rest stay assigned and the
// returned error is an apperr.KindPartial wrapping a *PartialBulkFailure,
// alongside a populated result.
// Concurrent batches touching the same lead resolve last-write-wins.
func (e *Engine) Assign(ctx context.Context, leadIDs []uuid.UUID, advisorID uuid.UUID) (BulkAssignResult, error) {
	if len(leadIDs) == 0 {
		return BulkAssignResult{}, apperr.Validation("leadIds must not be empty")
	}
	if advisorID == uuid.Nil {
		return BulkAssignResult{}, apperr.Validation("advisorId is required")
	}

	var result BulkAssignResult
	seen := make(map[uuid.UUID]struct{}, len(leadIDs))
	for _, id := range leadIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		lead, err := e.store.AssignAdvisor(ctx, id, advisorID)
		if err != nil {
			e.log.Warn("assignment: lead not assigned", "lead_id", id, "advisor_id", advisorID, "error", err)
			result.Failures = append(result.Failures, LeadFailure{LeadID: id, Err: causeOf(err)})
			continue
		}
		result.Assigned = append(result.Assigned, lead)
	}

	if len(result.Assigned) > 0 {
		ids := make([]uuid.UUID, 0, len(result.Assigned))
		for _, l := range result.Assigned {
			ids = append(ids, l.ID)
		}
		e.bus.Publish(ctx, events.LeadsAssigned{
			BaseEvent: events.NewBaseEvent(),
			LeadIDs:   ids,
			AdvisorID: advisorID,
		})
	}

	if len(result.Failures) > 0 {
		failure := &PartialBulkFailure{Failures: result.Failures, Succeeded: len(result.Assigned)}
		return result, apperr.Wrap(apperr.KindPartial, "Some leads could not be assigned", failure).WithOp("assignment.Assign")
	}
	return result, nil
}

// causeOf keeps sentinel errors intact and hides driver detail otherwise.
func causeOf(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrUnknownAdvisor),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("persist assignment: %w", err)
}
