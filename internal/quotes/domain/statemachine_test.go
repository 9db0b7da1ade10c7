package domain

import (
	"testing"
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/platform/apperr"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func machine() *StateMachine {
	return NewStateMachine(authz.New(nil), func() time.Time { return fixedNow })
}

func manager() authz.Actor { return authz.Actor{Roles: []string{"manager"}} }
func admin() authz.Actor   { return authz.Actor{Roles: []string{"admin"}} }

func pricedDraft() Snapshot {
	return Snapshot{
		Status:    StatusDraft,
		ItemCount: 2,
		Amounts:   Amounts{SubtotalCents: 12500, TaxAmountCents: 2625, TotalCents: 15125},
	}
}

func TestPlan_LegalEdges(t *testing.T) {
	m := machine()
	cases := []struct{ from, to Status }{
		{StatusDraft, StatusSent},
		{StatusSent, StatusViewed},
		{StatusSent, StatusAccepted},
		{StatusSent, StatusRefused},
		{StatusViewed, StatusAccepted},
		{StatusViewed, StatusRefused},
	}
	for _, tc := range cases {
		q := pricedDraft()
		q.Status = tc.from
		tr, err := m.Plan(q, tc.to, manager())
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if tr.From != tc.from || tr.To != tc.to || !tr.At.Equal(fixedNow) {
			t.Fatalf("unexpected transition %+v", tr)
		}
		if tr.RequiresSync() != (tc.from == StatusDraft) {
			t.Fatalf("%s -> %s: wrong sync requirement", tc.from, tc.to)
		}
	}
}

func TestPlan_TerminalStatesHaveNoEdges(t *testing.T) {
	m := machine()
	for _, from := range []Status{StatusAccepted, StatusRefused, StatusExpired} {
		for _, to := range AllStatuses {
			q := pricedDraft()
			q.Status = from
			_, err := m.Plan(q, to, admin())
			if !apperr.Is(err, apperr.KindIllegalTransition) {
				t.Fatalf("%s -> %s: expected illegal transition, got %v", from, to, err)
			}
		}
	}
}

func TestPlan_IllegalSkips(t *testing.T) {
	m := machine()
	q := pricedDraft()
	for _, to := range []Status{StatusViewed, StatusAccepted, StatusRefused, StatusExpired, StatusDraft} {
		if _, err := m.Plan(q, to, admin()); !apperr.Is(err, apperr.KindIllegalTransition) {
			t.Fatalf("draft -> %s: expected illegal transition, got %v", to, err)
		}
	}
}

func TestPlan_RoleChecked(t *testing.T) {
	m := machine()
	_, err := m.Plan(pricedDraft(), StatusSent, authz.Actor{Roles: []string{"staff"}})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPlan_SendNeedsItems(t *testing.T) {
	m := machine()
	q := pricedDraft()
	q.ItemCount = 0
	if _, err := m.Plan(q, StatusSent, manager()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlan_ExpiryIsSystemOnly(t *testing.T) {
	m := machine()
	q := pricedDraft()
	q.Status = StatusSent

	if _, err := m.Plan(q, StatusExpired, admin()); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for staff expiry, got %v", err)
	}
	if _, err := m.Plan(q, StatusExpired, authz.SystemActor()); err != nil {
		t.Fatalf("system expiry failed: %v", err)
	}
}

func TestPlan_LazilyExpiredQuote(t *testing.T) {
	m := machine()
	past := fixedNow.Add(-time.Hour)
	q := pricedDraft()
	q.Status = StatusSent
	q.ExpiresAt = &past

	if _, err := m.Plan(q, StatusAccepted, manager()); !apperr.Is(err, apperr.KindIllegalTransition) {
		t.Fatalf("expected accepting an expired quote to fail, got %v", err)
	}

	tr, err := m.Plan(q, StatusExpired, authz.SystemActor())
	if err != nil {
		t.Fatalf("storing lazy expiry failed: %v", err)
	}
	if tr.From != StatusSent {
		t.Fatalf("expected commit guard on stored status, got %s", tr.From)
	}
}

func TestTransitionApplyStampsTimestamp(t *testing.T) {
	tr := Transition{From: StatusSent, To: StatusAccepted, At: fixedNow}
	got := tr.Apply(Snapshot{Status: StatusSent})
	if got.Status != StatusAccepted || got.AcceptedAt == nil || !got.AcceptedAt.Equal(fixedNow) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.RefusedAt != nil || got.ViewedAt != nil {
		t.Fatal("expected only accepted_at to be stamped")
	}
}

func TestReopen(t *testing.T) {
	m := machine()
	ref := "ext-1"
	sent := fixedNow.Add(-48 * time.Hour)
	q := Snapshot{Status: StatusRefused, ExternalInvoiceID: &ref, SentAt: &sent, RefusedAt: &fixedNow, ItemCount: 1}

	if _, err := m.Reopen(q, manager()); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for manager, got %v", err)
	}

	got, err := m.Reopen(q, admin())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDraft || got.ExternalInvoiceID != nil || got.SentAt != nil || got.RefusedAt != nil {
		t.Fatalf("expected cleared snapshot, got %+v", got)
	}
	if got.ItemCount != 1 {
		t.Fatal("reopen must keep the items")
	}
}

func TestReopen_OnlyTerminal(t *testing.T) {
	m := machine()
	q := pricedDraft()
	q.Status = StatusSent
	if _, err := m.Reopen(q, admin()); !apperr.Is(err, apperr.KindIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestEffectiveStatus(t *testing.T) {
	past := fixedNow.Add(-time.Minute)
	future := fixedNow.Add(time.Minute)

	cases := []struct {
		stored  Status
		expires *time.Time
		want    Status
	}{
		{StatusSent, &past, StatusExpired},
		{StatusViewed, &past, StatusExpired},
		{StatusSent, &future, StatusSent},
		{StatusSent, nil, StatusSent},
		{StatusAccepted, &past, StatusAccepted},
		{StatusDraft, &past, StatusDraft},
	}
	for _, tc := range cases {
		if got := EffectiveStatus(tc.stored, tc.expires, fixedNow); got != tc.want {
			t.Fatalf("EffectiveStatus(%s): expected %s, got %s", tc.stored, tc.want, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("viewed"); err != nil || s != StatusViewed {
		t.Fatalf("unexpected %v %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
