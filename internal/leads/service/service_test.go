package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
	clock time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads: make(map[uuid.UUID]domain.Lead),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *fakeStore) Create(_ context.Context, p repository.CreateLeadParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	status := p.Status
	if status == "" {
		status = domain.StatusNew
	}
	priority := p.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	lead := domain.Lead{
		ID:              uuid.New(),
		Name:            p.Name,
		Email:           p.Email,
		Phone:           p.Phone,
		Interest:        p.Interest,
		Status:          status,
		Source:          p.Source,
		AssignedTo:      p.AssignedTo,
		Score:           p.Score,
		Priority:        priority,
		PlatformData:    p.PlatformData,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.leads[lead.ID] = lead
	return lead.Clone(), nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead.Clone(), nil
}

func (s *fakeStore) List(_ context.Context, p repository.ListParams) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if l.IsArchived && !p.IncludeArchived {
			continue
		}
		if p.AdvisorID != nil && l.AssignedTo != nil && *l.AssignedTo != *p.AdvisorID {
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, id uuid.UUID, p repository.UpdateLeadParams) (domain.Lead, error) {
	if p.IsEmpty() {
		return domain.Lead{}, repository.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Phone != nil {
		lead.Phone = *p.Phone
	}
	if p.Status != nil {
		lead.Status = *p.Status
		lead.StatusChangedAt = s.tick()
	}
	if p.AssignedToSet {
		lead.AssignedTo = p.AssignedTo
	}
	lead.UpdatedAt = s.tick()
	s.leads[id] = lead
	return lead.Clone(), nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	lead.Status = status
	lead.StatusChangedAt = s.tick()
	s.leads[id] = lead
	return lead.Clone(), nil
}

func (s *fakeStore) AssignAdvisor(_ context.Context, id uuid.UUID, advisorID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	lead.AssignedTo = &advisorID
	lead.Status = domain.StatusAssigned
	s.leads[id] = lead
	return lead.Clone(), nil
}

func (s *fakeStore) ArchiveInactive(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, l := range s.leads {
		if !l.IsArchived && l.StatusChangedAt.Before(cutoff) {
			l.IsArchived = true
			l.Status = domain.StatusLost
			s.leads[id] = l
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

func newTestService() (*Service, *fakeStore, *recordingBus) {
	store := newFakeStore()
	bus := &recordingBus{}
	return New(store, bus, logger.NewWithWriter("test", io.Discard)), store, bus
}

func strPtr(s string) *string { return &s }

func TestCreateDefaultsAndPublishes(t *testing.T) {
	svc, store, bus := newTestService()

	resp, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:  " Ada ",
		Phone: "(650) 253-0000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success flag")
	}

	lead := store.leads[resp.ID]
	if lead.Name != "Ada" || lead.Status != domain.StatusNew || lead.Source != defaultSource {
		t.Fatalf("unexpected stored lead %+v", lead)
	}
	if lead.Phone != "+16502530000" {
		t.Fatalf("expected E.164 phone, got %q", lead.Phone)
	}
	if names := bus.names(); len(names) != 1 || names[0] != (events.LeadCreated{}).EventName() {
		t.Fatalf("expected one LeadCreated, got %v", names)
	}
}

func TestCreateRejectsNonObjectDetails(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.Create(context.Background(), transport.CreateLeadRequest{
		Name:        "Ada",
		LifeDetails: []byte(`[1,2]`),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.leads) != 0 {
		t.Fatal("expected no lead to be stored")
	}
}

func TestUpdateEmptyPatchIsValidationError(t *testing.T) {
	svc, store, _ := newTestService()
	created, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Ada"})

	_, err := svc.Update(context.Background(), created.ID, transport.UpdateLeadRequest{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Message != msgNoValidFields {
		t.Fatalf("expected %q, got %v", msgNoValidFields, err)
	}
}

func TestUpdateMissingLeadIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Update(context.Background(), uuid.New(), transport.UpdateLeadRequest{Name: strPtr("Bob")})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusAcceptsAnyCasingAndKeepsAssignment(t *testing.T) {
	svc, store, bus := newTestService()
	created, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Ada"})

	resp, err := svc.UpdateStatus(context.Background(), created.ID, "ASSIGNED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != string(domain.StatusAssigned) {
		t.Fatalf("expected Assigned, got %s", resp.Status)
	}
	if resp.AssignedTo != nil {
		t.Fatal("status update must not touch assignment")
	}
	if names := bus.names(); len(names) != 1 || names[0] != (events.LeadStatusChanged{}).EventName() {
		t.Fatalf("expected one LeadStatusChanged, got %v", names)
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	svc, store, _ := newTestService()
	created, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Ada"})

	if _, err := svc.UpdateStatus(context.Background(), created.ID, "Pending"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestArchiveInactiveUsesThreshold(t *testing.T) {
	svc, store, bus := newTestService()
	old, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Old"})
	fresh, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Fresh"})

	// old changed at 00:01, fresh at 00:02; cutoff lands between them.
	svc.now = func() time.Time { return store.leads[fresh.ID].StatusChangedAt.Add(15*24*time.Hour - 30*time.Second) }

	ids, err := svc.ArchiveInactive(context.Background(), 15*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != old.ID {
		t.Fatalf("expected only the old lead archived, got %v", ids)
	}
	if store.leads[old.ID].Status != domain.StatusLost {
		t.Fatal("expected archived lead to move to Lost")
	}

	listed, err := svc.List(context.Background(), repository.ListParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != fresh.ID {
		t.Fatalf("expected archived lead excluded from default list, got %+v", listed)
	}
	if names := bus.names(); len(names) != 1 || names[0] != (events.LeadsArchived{}).EventName() {
		t.Fatalf("expected one LeadsArchived, got %v", names)
	}
}

func TestListAdvisorSeesOwnAndUnclaimed(t *testing.T) {
	svc, store, _ := newTestService()
	me, other := uuid.New(), uuid.New()
	mine, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Mine", AssignedTo: &me})
	_, _ = store.Create(context.Background(), repository.CreateLeadParams{Name: "Theirs", AssignedTo: &other})
	open, _ := store.Create(context.Background(), repository.CreateLeadParams{Name: "Open"})

	listed, err := svc.List(context.Background(), repository.ListParams{AdvisorID: &me})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != open.ID || listed[1].ID != mine.ID {
		t.Fatalf("expected [open, mine] newest first, got %+v", listed)
	}
}

func TestGetByIDMissingIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetByID(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
