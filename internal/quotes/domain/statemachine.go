package domain

import (
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/platform/apperr"
)

// edges is the quote status graph. Reopen is not an edge; it is a separate,
// audited override.
var edges = map[Status][]Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusViewed, StatusAccepted, StatusRefused, StatusExpired},
	StatusViewed:   {StatusAccepted, StatusRefused, StatusExpired},
	StatusAccepted: nil,
	StatusRefused:  nil,
	StatusExpired:  nil,
}

// Snapshot is the part of a quote the state machine reads and writes.
type Snapshot struct {
	Status            Status
	ItemCount         int
	Amounts           Amounts
	ExternalInvoiceID *string
	SentAt            *time.Time
	ViewedAt          *time.Time
	AcceptedAt        *time.Time
	RefusedAt         *time.Time
	ExpiredAt         *time.Time
	ExpiresAt         *time.Time
}

// Transition is a validated move that has not been committed yet.
type Transition struct {
	From Status
	To   Status
	At   time.Time
}

// RequiresSync is true only for draft -> sent: the gateway push must succeed
// before the status may be committed.
func (t Transition) RequiresSync() bool {
	return t.From == StatusDraft && t.To == StatusSent
}

// Apply stamps the timestamp for the target status onto s.
func (t Transition) Apply(s Snapshot) Snapshot {
	at := t.At
	s.Status = t.To
	switch t.To {
	case StatusSent:
		s.SentAt = &at
	case StatusViewed:
		s.ViewedAt = &at
	case StatusAccepted:
		s.AcceptedAt = &at
	case StatusRefused:
		s.RefusedAt = &at
	case StatusExpired:
		s.ExpiredAt = &at
	case StatusDraft:
	}
	return s
}

// TransitionPolicy decides whether an actor may take a given edge.
type TransitionPolicy interface {
	CanTransition(actor authz.Actor, from, to string) bool
}

// StateMachine validates quote status changes.
type StateMachine struct {
	policy TransitionPolicy
	now    func() time.Time
}

// NewStateMachine creates a state machine. A nil clock means time.Now.
func NewStateMachine(policy TransitionPolicy, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{policy: policy, now: now}
}

// Now returns the machine's clock reading in UTC.
func (m *StateMachine) Now() time.Time {
	return m.now().UTC()
}

// Plan validates moving q to target on behalf of actor. The current status is
// the effective one, so a sent quote past its validity can no longer be
// accepted even if the sweep has not stored the expiry yet.
func (m *StateMachine) Plan(q Snapshot, target Status, actor authz.Actor) (Transition, error) {
	now := m.Now()
	from := EffectiveStatus(q.Status, q.ExpiresAt, now)
	if target == StatusExpired && from == StatusExpired && q.Status.CanExpire() {
		// lazily expired; storing it is still a real edge
		from = q.Status
	}

	if !hasEdge(from, target) {
		return Transition{}, apperr.IllegalTransition(string(from), string(target)).WithOp("quote.transition")
	}
	if !m.policy.CanTransition(actor, string(from), string(target)) {
		return Transition{}, apperr.Forbidden("role may not move quote to " + string(target)).WithOp("quote.transition")
	}
	if target == StatusSent {
		if q.ItemCount == 0 {
			return Transition{}, apperr.Validation("quote has no line items").WithOp("quote.transition")
		}
		if q.Amounts.TotalCents < 0 || !q.Amounts.Consistent() {
			return Transition{}, apperr.Validation("quote amounts are invalid").WithOp("quote.transition")
		}
	}
	return Transition{From: from, To: target, At: now}, nil
}

// Reopen moves a terminal quote back to draft, clearing every downstream
// timestamp and the external reference. Admin-only.
func (m *StateMachine) Reopen(q Snapshot, actor authz.Actor) (Snapshot, error) {
	from := EffectiveStatus(q.Status, q.ExpiresAt, m.Now())
	if !from.IsTerminal() {
		return Snapshot{}, apperr.IllegalTransition(string(from), string(StatusDraft)).WithOp("quote.reopen")
	}
	if !m.policy.CanTransition(actor, string(from), string(StatusDraft)) {
		return Snapshot{}, apperr.Forbidden("only admins may reopen a quote").WithOp("quote.reopen")
	}

	q.Status = StatusDraft
	q.ExternalInvoiceID = nil
	q.SentAt = nil
	q.ViewedAt = nil
	q.AcceptedAt = nil
	q.RefusedAt = nil
	q.ExpiredAt = nil
	q.ExpiresAt = nil
	return q, nil
}

// CanMove reports whether the graph has an edge from -> to.
func CanMove(from, to Status) bool {
	return hasEdge(from, to)
}

func hasEdge(from, to Status) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}
