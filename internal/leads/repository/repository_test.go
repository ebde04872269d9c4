package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestListQueryExcludesArchivedByDefault(t *testing.T) {
	query, args := buildListQuery(ListParams{})
	if !strings.Contains(query, "WHERE is_archived = false") {
		t.Fatalf("expected archived leads to be excluded: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY created_at DESC, id DESC") {
		t.Fatalf("expected newest-first ordering: %s", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestListQueryAdvisorSeesOwnAndUnclaimed(t *testing.T) {
	advisor := uuid.New()
	query, args := buildListQuery(ListParams{AdvisorID: &advisor})
	if !strings.Contains(query, "(assigned_to = $1 OR assigned_to IS NULL)") {
		t.Fatalf("expected advisor-or-unclaimed filter: %s", query)
	}
	if len(args) != 1 || args[0] != advisor {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestListQueryIncludeArchived(t *testing.T) {
	query, _ := buildListQuery(ListParams{IncludeArchived: true})
	if strings.Contains(query, "is_archived") {
		t.Fatalf("did not expect archive filter: %s", query)
	}
}

func TestBuildUpdateQueryRejectsEmptyPatch(t *testing.T) {
	if _, _, err := buildUpdateQuery(uuid.New(), UpdateLeadParams{}); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
	if !(UpdateLeadParams{}).IsEmpty() {
		t.Fatal("expected empty params to report IsEmpty")
	}
}

func TestBuildUpdateQueryStatusBumpsClock(t *testing.T) {
	status := domain.StatusContacted
	notes := "called twice"
	id := uuid.New()

	query, args, err := buildUpdateQuery(id, UpdateLeadParams{Status: &status, Notes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fragment := range []string{"status = $1", "notes = $2", "status_changed_at = now()", "updated_at = now()", "WHERE id = $3"} {
		if !strings.Contains(query, fragment) {
			t.Errorf("expected %q in %s", fragment, query)
		}
	}
	if len(args) != 3 || args[0] != "Contacted" || args[1] != notes || args[2] != id {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildUpdateQueryNotesLeaveClockAlone(t *testing.T) {
	notes := "n"
	query, _, err := buildUpdateQuery(uuid.New(), UpdateLeadParams{Notes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(query, "status_changed_at") {
		t.Fatalf("notes edits must not reset inactivity clock: %s", query)
	}
}

func TestBuildUpdateQueryCanClearAssignee(t *testing.T) {
	query, args, err := buildUpdateQuery(uuid.New(), UpdateLeadParams{AssignedToSet: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "assigned_to = $1") {
		t.Fatalf("expected assigned_to clause: %s", query)
	}
	if v, ok := args[0].(*uuid.UUID); !ok || v != nil {
		t.Fatalf("expected nil assignee arg, got %#v", args[0])
	}
}

func TestStatusQueriesTouchOnlyStatusColumns(t *testing.T) {
	q := strings.ToLower(updateStatusQuery)
	if strings.Contains(q, "assigned_to =") {
		t.Fatal("status updates must not change assignment")
	}
	if !strings.Contains(q, "status_changed_at = now()") {
		t.Fatal("status updates must restart the inactivity clock")
	}

	assign := strings.ToLower(assignLeadQuery)
	if !strings.Contains(assign, "assigned_to = $1") || !strings.Contains(assign, "status = $2") {
		t.Fatalf("assignment must set advisor and status together: %s", assign)
	}
	if !strings.Contains(strings.ToLower(lockLeadQuery), "for update") {
		t.Fatal("assignment must lock the row it loads")
	}
}

func TestArchiveQueryScopesToLiveStaleLeads(t *testing.T) {
	q := strings.ToLower(archiveInactiveQuery)
	for _, fragment := range []string{"is_archived = true", "is_archived = false", "status_changed_at < $2", "returning id"} {
		if !strings.Contains(q, fragment) {
			t.Errorf("expected %q in archive query", fragment)
		}
	}
	if strings.Contains(q, "delete") {
		t.Fatal("leads are never hard-deleted")
	}
}

func TestMapWriteErrorForeignKey(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: pgForeignKeyViolation})
	if !errors.Is(err, ErrUnknownAdvisor) {
		t.Fatalf("expected ErrUnknownAdvisor, got %v", err)
	}
	other := errors.New("boom")
	if mapWriteError(other) != other {
		t.Fatal("expected unrelated errors to pass through")
	}
}

func TestWritesRejectUnknownStatus(t *testing.T) {
	repo := New(nil)

	if _, err := repo.Create(context.Background(), CreateLeadParams{Name: "x", Status: domain.Status("Pending")}); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus from Create, got %v", err)
	}
	if _, err := repo.UpdateStatus(context.Background(), uuid.New(), domain.Status("pending")); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus from UpdateStatus, got %v", err)
	}
}
