package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/internal/quotes/repository"
	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu         sync.Mutex
	seq        int
	quotes     map[uuid.UUID]*repository.Quote
	items      map[uuid.UUID][]repository.QuoteItem
	activities []repository.Activity
	ledger     map[uuid.UUID]*invoicing.SyncRecord
	// beforeCommit lets a test change the row between load and commit.
	beforeCommit func(q *repository.Quote)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotes: make(map[uuid.UUID]*repository.Quote),
		items:  make(map[uuid.UUID][]repository.QuoteItem),
		ledger: make(map[uuid.UUID]*invoicing.SyncRecord),
	}
}

func (r *memoryRepo) NextQuoteNumber(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("OFF-2026-%04d", r.seq), nil
}

func (r *memoryRepo) CreateWithItems(_ context.Context, q *repository.Quote, items []repository.QuoteItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	r.quotes[q.ID] = &cp
	r.items[q.ID] = append([]repository.QuoteItem(nil), items...)
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	cp := *q
	return &cp, nil
}

func (r *memoryRepo) GetItems(_ context.Context, id uuid.UUID) ([]repository.QuoteItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repository.QuoteItem{}, r.items[id]...), nil
}

func (r *memoryRepo) List(_ context.Context, params repository.ListParams) (*repository.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.Quote, 0, len(r.quotes))
	for _, q := range r.quotes {
		effective := domain.EffectiveStatus(domain.Status(q.Status), q.ExpiresAt, params.Now)
		if params.Status != nil && string(effective) != *params.Status {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteNumber < out[j].QuoteNumber })
	return &repository.ListResult{Items: out, Total: len(out), Page: params.Page, PageSize: params.PageSize, TotalPages: 1}, nil
}

func (r *memoryRepo) Update(_ context.Context, id uuid.UUID, expected string, p repository.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, err := r.guard(id, expected)
	if err != nil {
		return err
	}
	if p.Notes != nil {
		q.Notes = p.Notes
	}
	if p.TaxRate != nil {
		q.TaxRate = *p.TaxRate
	}
	if p.DiscountRate != nil {
		q.DiscountRate = *p.DiscountRate
	}
	if p.ExpiresAt != nil {
		q.ExpiresAt = p.ExpiresAt
	}
	if p.Amounts != nil {
		setAmounts(q, *p.Amounts)
	}
	return nil
}

func (r *memoryRepo) ReplaceItems(_ context.Context, id uuid.UUID, expected string, items []repository.QuoteItem, a repository.Amounts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, err := r.guard(id, expected)
	if err != nil {
		return err
	}
	r.items[id] = append([]repository.QuoteItem(nil), items...)
	setAmounts(q, a)
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotes[id]; !ok {
		return apperr.NotFound("quote not found")
	}
	delete(r.quotes, id)
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) CommitTransition(_ context.Context, id uuid.UUID, expected string, w repository.TransitionWrite, a *repository.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeCommit != nil {
		if q, ok := r.quotes[id]; ok {
			r.beforeCommit(q)
		}
	}
	q, err := r.guard(id, expected)
	if err != nil {
		return err
	}
	at := w.At
	q.Status = w.To
	switch w.To {
	case "sent":
		q.SentAt = &at
	case "viewed":
		q.ViewedAt = &at
	case "accepted":
		q.AcceptedAt = &at
	case "refused":
		q.RefusedAt = &at
	case "expired":
		q.ExpiredAt = &at
	}
	if w.ExternalInvoiceID != nil {
		q.ExternalInvoiceID = w.ExternalInvoiceID
	}
	if w.ExpiresAt != nil {
		q.ExpiresAt = w.ExpiresAt
	}
	if a != nil {
		r.activities = append(r.activities, *a)
	}
	return nil
}

func (r *memoryRepo) CommitReopen(_ context.Context, id uuid.UUID, expected string, a *repository.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, err := r.guard(id, expected)
	if err != nil {
		return err
	}
	q.Status = "draft"
	q.ExternalInvoiceID = nil
	q.SentAt, q.ViewedAt, q.AcceptedAt, q.RefusedAt, q.ExpiredAt, q.ExpiresAt = nil, nil, nil, nil, nil, nil
	delete(r.ledger, id)
	if a != nil {
		r.activities = append(r.activities, *a)
	}
	return nil
}

func (r *memoryRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, q := range r.quotes {
		if (q.Status == "sent" || q.Status == "viewed") && q.ExpiresAt != nil && !q.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *memoryRepo) RecordActivity(_ context.Context, a *repository.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, *a)
	return nil
}

func (r *memoryRepo) ListActivities(_ context.Context, id uuid.UUID) ([]repository.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Activity
	for _, a := range r.activities {
		if a.QuoteID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetSyncRecord(_ context.Context, id uuid.UUID) (*invoicing.SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.ledger[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepo) ClearSyncRecord(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if _, has := r.ledger[id]; !ok || !has || q.Status != "draft" {
		return apperr.Conflict("quote was changed by someone else")
	}
	delete(r.ledger, id)
	return nil
}

// recordUpstream simulates a gateway create that succeeded before the send failed.
func (r *memoryRepo) recordUpstream(id uuid.UUID, externalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger[id] = &invoicing.SyncRecord{QuoteID: id, ExternalID: externalID, State: "created"}
}

func (r *memoryRepo) activityKinds(id uuid.UUID) []string {
	list, _ := r.ListActivities(context.Background(), id)
	kinds := make([]string, len(list))
	for i, a := range list {
		kinds[i] = a.Kind
	}
	return kinds
}

// guard must be called with mu held.
func (r *memoryRepo) guard(id uuid.UUID, expected string) (*repository.Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, apperr.NotFound("quote not found")
	}
	if q.Status != expected {
		return nil, apperr.Conflict("quote was changed by someone else")
	}
	return q, nil
}

func setAmounts(q *repository.Quote, a repository.Amounts) {
	q.SubtotalCents = a.SubtotalCents
	q.TaxAmountCents = a.TaxAmountCents
	q.DiscountAmountCents = a.DiscountAmountCents
	q.TotalCents = a.TotalCents
}

type stubClients struct{}

func (stubClients) GetClientInfo(_ context.Context, id uuid.UUID) (*ClientInfo, error) {
	email := "jan@example.com"
	return &ClientInfo{ID: id, Name: "Jan de Vries", Email: &email}, nil
}

type stubSyncer struct {
	mu    sync.Mutex
	calls []invoicing.PushRequest
	err   error
}

func (s *stubSyncer) Push(_ context.Context, req invoicing.PushRequest) (invoicing.PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return invoicing.PushResult{}, s.err
	}
	return invoicing.PushResult{ExternalID: "inv-1", Status: "sent", Created: true, Response: []byte(`{"id":"inv-1"}`)}, nil
}

func (s *stubSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.published))
	for i, e := range b.published {
		out[i] = e.EventName()
	}
	return out
}

type recordingScheduler struct {
	scheduled map[uuid.UUID]time.Time
}

func (s *recordingScheduler) ScheduleQuoteExpiry(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.scheduled == nil {
		s.scheduled = make(map[uuid.UUID]time.Time)
	}
	s.scheduled[id] = at
	return nil
}
