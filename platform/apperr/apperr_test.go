package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindIllegalTransition, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindSyncRejected, http.StatusBadGateway},
		{KindSyncTransient, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := New(tc.kind, "x").HTTPStatus(); got != tc.want {
			t.Fatalf("kind %s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestGetKindSeesThroughWrapping(t *testing.T) {
	base := Conflict("quote changed")
	wrapped := fmt.Errorf("commit transition: %w", base)

	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected wrapped error to keep KindConflict, got %s", GetKind(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected plain error to be KindUnknown")
	}
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := SyncRejected("gateway rejected quote", errors.New("status 422")).WithOp("invoicing.create")

	want := "invoicing.create: gateway rejected quote: status 422"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestIllegalTransitionDetails(t *testing.T) {
	err := IllegalTransition("accepted", "sent")

	details, ok := err.Details.(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details)
	}
	if details["from"] != "accepted" || details["to"] != "sent" {
		t.Fatalf("unexpected details %v", details)
	}
}
