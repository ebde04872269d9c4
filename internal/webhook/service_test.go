package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/integrationlog"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLogStore struct {
	mu      sync.Mutex
	entries []integrationlog.Entry
	failOn  integrationlog.EventType
}

func (f *fakeLogStore) Append(_ context.Context, entry integrationlog.Entry) (integrationlog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && entry.EventType == f.failOn {
		return integrationlog.Entry{}, errors.New("log store unavailable")
	}
	entry.ID = uuid.New()
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeLogStore) byType(t integrationlog.EventType) []integrationlog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []integrationlog.Entry
	for _, e := range f.entries {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeLeadCreator struct {
	mu    sync.Mutex
	leads []domain.Lead
	err   error
}

func (f *fakeLeadCreator) Create(_ context.Context, p repository.CreateLeadParams) (domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Lead{}, f.err
	}
	lead := domain.Lead{
		ID:           uuid.New(),
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		Interest:     p.Interest,
		Status:       p.Status,
		Source:       p.Source,
		CampaignID:   p.CampaignID,
		Message:      p.Message,
		PlatformData: p.PlatformData,
	}
	f.leads = append(f.leads, lead)
	return lead, nil
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

type fixture struct {
	svc   *Service
	logs  *fakeLogStore
	leads *fakeLeadCreator
	bus   *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := DefaultRegistry().WithAliases(map[string]string{"sourceA": "google"})
	if err != nil {
		t.Fatalf("alias: %v", err)
	}
	f := &fixture{logs: &fakeLogStore{}, leads: &fakeLeadCreator{}, bus: &recordingBus{}}
	f.svc = NewService(f.logs, f.leads, registry, f.bus, logger.NewWithWriter("test", io.Discard))
	return f
}

const scenarioABody = `{"user_column_data":[{"column_id":"FULL_NAME","string_value":"John Doe"},{"column_id":"EMAIL","string_value":"john@example.com"}]}`

func TestReceiveScenarioA(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Receive(context.Background(), "sourceA", []byte(scenarioABody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.LeadID == uuid.Nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(f.leads.leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(f.leads.leads))
	}

	lead := f.leads.leads[0]
	if lead.Name != "John Doe" || lead.Email != "john@example.com" {
		t.Fatalf("unexpected identity %q <%s>", lead.Name, lead.Email)
	}
	if lead.Source != "sourceA" || lead.Status != domain.StatusNew {
		t.Fatalf("expected source sourceA and status New, got %q %q", lead.Source, lead.Status)
	}
	if lead.Phone != DefaultPhone || lead.Interest != "Life Insurance" {
		t.Fatalf("expected documented defaults, got phone %q interest %q", lead.Phone, lead.Interest)
	}
	if lead.Message != importedMessage || string(lead.PlatformData) != scenarioABody {
		t.Fatalf("unexpected message or platform data: %q %s", lead.Message, lead.PlatformData)
	}

	attempts := f.logs.byType(integrationlog.EventIngestAttempt)
	successes := f.logs.byType(integrationlog.EventIngestSuccess)
	if len(attempts) != 1 || len(successes) != 1 || len(f.logs.entries) != 2 {
		t.Fatalf("expected attempt + success rows, got %+v", f.logs.entries)
	}
	if successes[0].LeadID == nil || *successes[0].LeadID != resp.LeadID {
		t.Fatal("expected success row to carry the lead id")
	}

	if len(f.bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(f.bus.published))
	}
	created, ok := f.bus.published[0].(events.LeadCreated)
	if !ok || created.LeadID != resp.LeadID || created.Origin != events.OriginWebhook {
		t.Fatalf("unexpected event %+v", f.bus.published[0])
	}
}

func TestReceiveScenarioBUnsupportedPlatform(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Receive(context.Background(), "unknownPlatform", []byte(`{}`))
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatal("expected UnsupportedPlatformError in the chain")
	}

	if len(f.leads.leads) != 0 {
		t.Fatal("expected zero leads")
	}
	failures := f.logs.byType(integrationlog.EventIngestError)
	if len(failures) != 1 {
		t.Fatalf("expected exactly one INGEST_ERROR row, got %d", len(failures))
	}
	if failures[0].Status != integrationlog.StatusFailure || failures[0].ErrorMessage == nil ||
		!strings.Contains(*failures[0].ErrorMessage, "Unsupported platform") {
		t.Fatalf("unexpected failure row %+v", failures[0])
	}
	if len(f.bus.published) != 0 {
		t.Fatal("expected no event for a rejected delivery")
	}
}

func TestReceiveScenarioCIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"data":{"campaign_id":"c-1","details":{"name":"Jo","email":"jo@example.com"}}}`)

	first, err := f.svc.Receive(context.Background(), "tiktok", body)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := f.svc.Receive(context.Background(), "tiktok", body)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if first.LeadID == second.LeadID || len(f.leads.leads) != 2 {
		t.Fatalf("expected two distinct leads, got %s and %s", first.LeadID, second.LeadID)
	}
}

func TestReceiveNonObjectBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Receive(context.Background(), "meta", []byte(`[1,2,3]`))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.leads.leads) != 0 || len(f.logs.byType(integrationlog.EventIngestError)) != 1 {
		t.Fatal("expected no lead and one error row")
	}
}

func TestReceivePreservesRawBodyInEveryRow(t *testing.T) {
	bodies := map[string]string{
		"google":  "{ \"campaign_id\" : 42,\n  \"user_column_data\": [] }",
		"nowhere": `{"x":1}`,
		"website": `not json at all`,
	}
	for tag, body := range bodies {
		f := newFixture(t)
		_, _ = f.svc.Receive(context.Background(), tag, []byte(body))

		if len(f.logs.entries) == 0 {
			t.Fatalf("%s: expected log rows", tag)
		}
		for _, entry := range f.logs.entries {
			if string(entry.Payload) != body {
				t.Fatalf("%s: payload altered in %s row: %q", tag, entry.EventType, entry.Payload)
			}
		}
	}
}

func TestReceiveAttemptLogFailureStopsEarly(t *testing.T) {
	f := newFixture(t)
	f.logs.failOn = integrationlog.EventIngestAttempt

	_, err := f.svc.Receive(context.Background(), "google", []byte(scenarioABody))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatal("expected PersistenceError in the chain")
	}
	if len(f.leads.leads) != 0 {
		t.Fatal("expected normalization and persistence to be skipped")
	}
}

func TestReceiveLeadWriteFailureLogsError(t *testing.T) {
	f := newFixture(t)
	f.leads.err = errors.New("deadlock detected")

	_, err := f.svc.Receive(context.Background(), "google", []byte(scenarioABody))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	failures := f.logs.byType(integrationlog.EventIngestError)
	if len(failures) != 1 || !strings.Contains(*failures[0].ErrorMessage, "deadlock detected") {
		t.Fatalf("expected error row with cause, got %+v", failures)
	}
	if len(f.logs.byType(integrationlog.EventIngestSuccess)) != 0 {
		t.Fatal("expected no success row")
	}
}

func TestReceiveSuccessLogFailureStillAccepts(t *testing.T) {
	f := newFixture(t)
	f.logs.failOn = integrationlog.EventIngestSuccess

	resp, err := f.svc.Receive(context.Background(), "google", []byte(scenarioABody))
	if err != nil {
		t.Fatalf("expected committed lead to be reported, got %v", err)
	}
	if resp.LeadID == uuid.Nil || len(f.leads.leads) != 1 {
		t.Fatal("expected the lead to be created")
	}
}

func TestReceiveKeepsBinaryBodyInEveryRow(t *testing.T) {
	f := newFixture(t)
	body := []byte("{\"name\":\"\xff\x00\"}")

	_, err := f.svc.Receive(context.Background(), "google", body)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.logs.byType(integrationlog.EventIngestAttempt)) != 1 || len(f.logs.byType(integrationlog.EventIngestError)) != 1 {
		t.Fatalf("expected attempt and error rows, got %+v", f.logs.entries)
	}
	for _, entry := range f.logs.entries {
		if !bytes.Equal(entry.Payload, body) {
			t.Fatalf("payload altered in %s row: %q", entry.EventType, entry.Payload)
		}
	}
	if msg := *f.logs.byType(integrationlog.EventIngestError)[0].ErrorMessage; strings.ContainsRune(msg, 0) {
		t.Fatalf("expected storable error message, got %q", msg)
	}
}

func TestRejectLogsReadPrefix(t *testing.T) {
	f := newFixture(t)
	prefix := []byte(`{"user_column_data":[`)

	err := f.svc.Reject(context.Background(), "google", prefix, &BodyReadError{Limit: 16, Err: errors.New("too large")})
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	failures := f.logs.byType(integrationlog.EventIngestError)
	if len(f.logs.byType(integrationlog.EventIngestAttempt)) != 1 || len(failures) != 1 {
		t.Fatalf("expected attempt and error rows, got %+v", f.logs.entries)
	}
	if !bytes.Equal(failures[0].Payload, prefix) || *failures[0].ErrorMessage != "payload exceeds 16 bytes" {
		t.Fatalf("unexpected error row %+v", failures[0])
	}
	if len(f.leads.leads) != 0 {
		t.Fatal("expected no lead")
	}
}

func TestRejectAttemptLogFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.logs.failOn = integrationlog.EventIngestAttempt

	err := f.svc.Reject(context.Background(), "google", nil, &BodyReadError{Err: io.ErrUnexpectedEOF})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
