package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindPartial, http.StatusMultiStatus},
		{KindUnknown, http.StatusBadRequest},
	}

	for _, tc := range cases {
		if got := New(tc.kind, "x").HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: expected status %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrappedChain(t *testing.T) {
	base := NotFound("lead not found")
	wrapped := fmt.Errorf("load lead: %w", base)

	if got := GetKind(wrapped); got != KindNotFound {
		t.Fatalf("expected KindNotFound through wrap, got %d", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Fatal("expected Is to match wrapped kind")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected plain errors to be KindUnknown")
	}
}

func TestErrorMessageIncludesOp(t *testing.T) {
	err := Internal("write failed").WithOp("leads.Create")
	if err.Error() != "leads.Create: write failed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
