package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadflow_backend/internal/integrationlog"

	"github.com/gin-gonic/gin"
)

func newWebhookRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.svc, f.svc.registry)
	r := gin.New()
	r.POST("/api/webhooks/:platform", h.HandleDelivery)
	r.GET("/api/webhooks", h.HandleListPlatforms)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleDeliveryCreated(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(f)

	rec := post(r, "/api/webhooks/sourceA", scenarioABody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		LeadID  string `json:"leadId"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.LeadID != f.leads.leads[0].ID.String() || body.Message == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandleDeliveryUnsupportedIs400(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(f)

	rec := post(r, "/api/webhooks/unknownPlatform", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unsupported platform: unknownPlatform") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHandleDeliveryAttemptLogFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.logs.failOn = "INGEST_ATTEMPT"
	r := newWebhookRouter(f)

	if rec := post(r, "/api/webhooks/google", scenarioABody); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandleDeliveryOversizedBodyIsLogged(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(f)

	body := `{"user_column_data":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := post(r, "/api/webhooks/google", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "payload exceeds") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	attempts := f.logs.byType(integrationlog.EventIngestAttempt)
	failures := f.logs.byType(integrationlog.EventIngestError)
	if len(attempts) != 1 || len(failures) != 1 {
		t.Fatalf("expected attempt and error rows, got %d and %d", len(attempts), len(failures))
	}
	if len(failures[0].Payload) != maxBodyBytes || !strings.HasPrefix(body, string(failures[0].Payload)) {
		t.Fatalf("expected the read prefix to be logged, got %d bytes", len(failures[0].Payload))
	}
	if len(f.leads.leads) != 0 {
		t.Fatal("expected no lead")
	}
}

func TestHandleListPlatforms(t *testing.T) {
	f := newFixture(t)
	r := newWebhookRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body struct {
		Platforms []string `json:"platforms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"google", "meta", "sourcea", "tiktok", "website"}
	if strings.Join(body.Platforms, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, body.Platforms)
	}
}
