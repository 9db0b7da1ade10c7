package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/internal/quotes/repository"
	"quote_pipeline_backend/internal/quotes/transport"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/lock"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
	"quote_pipeline_backend/platform/sanitize"
	"quote_pipeline_backend/platform/storage"

	"github.com/google/uuid"
)

// Repository is the storage the quotes service needs. Implemented by
// repository.Repository; tests use an in-memory fake.
type Repository interface {
	NextQuoteNumber(ctx context.Context) (string, error)
	CreateWithItems(ctx context.Context, quote *repository.Quote, items []repository.QuoteItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Quote, error)
	GetItems(ctx context.Context, quoteID uuid.UUID) ([]repository.QuoteItem, error)
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
	Update(ctx context.Context, id uuid.UUID, expectedStatus string, patch repository.Patch) error
	ReplaceItems(ctx context.Context, quoteID uuid.UUID, expectedStatus string, items []repository.QuoteItem, amounts repository.Amounts) error
	Delete(ctx context.Context, id uuid.UUID) error
	CommitTransition(ctx context.Context, id uuid.UUID, expectedStatus string, w repository.TransitionWrite, activity *repository.Activity) error
	CommitReopen(ctx context.Context, id uuid.UUID, expectedStatus string, activity *repository.Activity) error
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	RecordActivity(ctx context.Context, a *repository.Activity) error
	ListActivities(ctx context.Context, quoteID uuid.UUID) ([]repository.Activity, error)
	GetSyncRecord(ctx context.Context, quoteID uuid.UUID) (*invoicing.SyncRecord, error)
	ClearSyncRecord(ctx context.Context, quoteID uuid.UUID) error
}

// ClientInfo is the client identity a quote needs for the gateway payload,
// the PDF and the sent mail.
type ClientInfo struct {
	ID      uuid.UUID
	Name    string
	Email   *string
	Phone   *string
	Company *string
}

// ClientReader is the narrow view of the clients module the quotes service
// depends on. Implemented by an adapter over the clients repository.
type ClientReader interface {
	GetClientInfo(ctx context.Context, id uuid.UUID) (*ClientInfo, error)
}

// Syncer pushes a quote to the invoicing gateway.
type Syncer interface {
	Push(ctx context.Context, req invoicing.PushRequest) (invoicing.PushResult, error)
}

// ExpiryScheduler queues the background expiry of a sent quote.
type ExpiryScheduler interface {
	ScheduleQuoteExpiry(ctx context.Context, quoteID uuid.UUID, at time.Time) error
}

// Settings are the quote defaults.
type Settings struct {
	DefaultTaxRate float64
	ValidityDays   int
	SendLockTTL    time.Duration
	PDFBucket      string
}

// Deps bundles the collaborators. Locker, Scheduler, Store and Metrics are
// optional.
type Deps struct {
	Repo      Repository
	Clients   ClientReader
	Syncer    Syncer
	Policy    *authz.Policy
	Machine   *domain.StateMachine
	Bus       events.Bus
	Locker    lock.Locker
	Scheduler ExpiryScheduler
	Store     storage.ObjectStore
	Metrics   *monitoring.Metrics
	Log       *logger.Logger
}

// Service provides business logic for quotes
type Service struct {
	repo      Repository
	clients   ClientReader
	syncer    Syncer
	policy    *authz.Policy
	machine   *domain.StateMachine
	bus       events.Bus
	locker    lock.Locker
	scheduler ExpiryScheduler
	store     storage.ObjectStore
	metrics   *monitoring.Metrics
	log       *logger.Logger
	settings  Settings
}

// New creates a new quotes service
func New(deps Deps, settings Settings) *Service {
	if settings.ValidityDays <= 0 {
		settings.ValidityDays = 30
	}
	if settings.SendLockTTL <= 0 {
		settings.SendLockTTL = 30 * time.Second
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.Machine == nil {
		deps.Machine = domain.NewStateMachine(deps.Policy, nil)
	}
	return &Service{
		repo:      deps.Repo,
		clients:   deps.Clients,
		syncer:    deps.Syncer,
		policy:    deps.Policy,
		machine:   deps.Machine,
		bus:       deps.Bus,
		locker:    deps.Locker,
		scheduler: deps.Scheduler,
		store:     deps.Store,
		metrics:   deps.Metrics,
		log:       deps.Log.WithComponent("quotes"),
		settings:  settings,
	}
}

// SetScheduler injects the expiry scheduler (set after construction because
// the scheduler client is optional and created later in main).
func (s *Service) SetScheduler(sched ExpiryScheduler) {
	s.scheduler = sched
}

// Create creates a new draft quote with line items, computing totals server-side
func (s *Service) Create(ctx context.Context, actor authz.Actor, req transport.CreateQuoteRequest) (*transport.QuoteResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionCreate); err != nil {
		return nil, err
	}
	if _, err := s.clients.GetClientInfo(ctx, req.ClientID); err != nil {
		return nil, err
	}

	rates := s.ratesFrom(req.TaxRate, req.DiscountRate, nil)
	lines := linesFromRequest(req.Items)
	amounts, err := domain.Price(lines, rates, domain.StatusDraft)
	if err != nil {
		return nil, err
	}

	quoteNumber, err := s.repo.NextQuoteNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	now := s.machine.Now()
	quote := repository.Quote{
		ID:          uuid.New(),
		ClientID:    req.ClientID,
		QuoteNumber: quoteNumber,
		Status:      string(domain.StatusDraft),
		TaxRate:     rates.TaxRate,
		Notes:       nilIfEmpty(sanitize.Text(req.Notes)),
		CreatedBy:   actor.ID,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	quote.DiscountRate = rates.DiscountRate
	applyAmounts(&quote, amounts)

	items := itemsFromRequest(quote.ID, req.Items, now)
	if err := s.repo.CreateWithItems(ctx, &quote, items); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, quote.ID, actor, "created", fmt.Sprintf("Quote %s created", quote.QuoteNumber), nil)

	resp := toQuoteResponse(quote, items, now)
	return &resp, nil
}

// GetByID returns a quote with its items. A sent or viewed quote past its
// validity is reported as expired even before the sweep stored it.
func (s *Service) GetByID(ctx context.Context, actor authz.Actor, id uuid.UUID) (*transport.QuoteResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionView); err != nil {
		return nil, err
	}
	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toQuoteResponse(*quote, items, s.machine.Now())
	return &resp, nil
}

// List returns a page of quotes. The status filter matches the effective
// status, the same one each returned quote reports.
func (s *Service) List(ctx context.Context, actor authz.Actor, req transport.ListQuotesRequest) (*transport.QuoteListResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionList); err != nil {
		return nil, err
	}

	params, err := listParams(req)
	if err != nil {
		return nil, err
	}
	now := s.machine.Now()
	params.Now = now
	result, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]transport.QuoteResponse, len(result.Items))
	for i, q := range result.Items {
		items[i] = toQuoteResponse(q, nil, now)
	}
	return &transport.QuoteListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// Update patches the quote header. Rates and validity only change while the
// quote is a draft; notes can always be edited.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req transport.UpdateQuoteRequest) (*transport.QuoteResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionUpdate); err != nil {
		return nil, err
	}
	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := repository.Patch{Notes: sanitize.TextPtr(req.Notes)}
	reprices := req.TaxRate != nil || req.DiscountRate != nil
	if reprices || req.ExpiresAt != nil {
		if quote.Status != string(domain.StatusDraft) {
			return nil, apperr.Validation("only draft quotes can be repriced or have their validity changed")
		}
		if err := s.requireNoGatewayRecord(ctx, id); err != nil {
			return nil, err
		}
	}
	if reprices {
		rates := s.ratesFrom(req.TaxRate, req.DiscountRate, quote)
		amounts, err := domain.Price(linesFromItems(items), rates, domain.StatusDraft)
		if err != nil {
			return nil, err
		}
		stored := toRepoAmounts(amounts)
		patch.TaxRate = &rates.TaxRate
		patch.DiscountRate = &rates.DiscountRate
		patch.Amounts = &stored
	}
	patch.ExpiresAt = req.ExpiresAt

	if err := s.repo.Update(ctx, id, quote.Status, patch); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, actor, id)
}

// ReplaceItems swaps all line items of a draft and stores the recomputed
// amounts in the same transaction.
func (s *Service) ReplaceItems(ctx context.Context, actor authz.Actor, id uuid.UUID, req transport.ReplaceItemsRequest) (*transport.QuoteResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionUpdate); err != nil {
		return nil, err
	}
	quote, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != string(domain.StatusDraft) {
		return nil, apperr.Validation("line items can only be changed on a draft quote")
	}
	if err := s.requireNoGatewayRecord(ctx, id); err != nil {
		return nil, err
	}

	amounts, err := domain.Price(linesFromRequest(req.Items), ratesOf(quote), domain.StatusDraft)
	if err != nil {
		return nil, err
	}
	items := itemsFromRequest(id, req.Items, s.machine.Now())
	if err := s.repo.ReplaceItems(ctx, id, quote.Status, items, toRepoAmounts(amounts)); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, id, actor, "items_replaced", fmt.Sprintf("%d line items saved", len(items)), map[string]any{
		"totalCents": amounts.TotalCents,
	})
	return s.GetByID(ctx, actor, id)
}

// Delete removes a quote. Admin only.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Preview prices a set of lines without storing anything.
func (s *Service) Preview(ctx context.Context, actor authz.Actor, req transport.QuoteCalculationRequest) (*transport.QuoteCalculationResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionView); err != nil {
		return nil, err
	}
	rates := s.ratesFrom(req.TaxRate, req.DiscountRate, nil)
	lines := linesFromRequest(req.Items)
	amounts, err := domain.Price(lines, rates, domain.StatusDraft)
	if err != nil {
		return nil, err
	}

	calculated := make([]transport.CalculatedLineItem, len(lines))
	for i, l := range lines {
		calculated[i] = transport.CalculatedLineItem{
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			LineTotalCents: domain.LineTotalCents(l),
		}
	}
	return &transport.QuoteCalculationResponse{
		Lines:               calculated,
		SubtotalCents:       amounts.SubtotalCents,
		TaxRate:             rates.TaxRate,
		TaxAmountCents:      amounts.TaxAmountCents,
		DiscountRate:        rates.DiscountRate,
		DiscountAmountCents: amounts.DiscountAmountCents,
		TotalCents:          amounts.TotalCents,
	}, nil
}

// Activities returns the audit trail of a quote.
func (s *Service) Activities(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]transport.ActivityResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionView); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.repo.ListActivities(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ActivityResponse, len(list))
	for i, a := range list {
		out[i] = transport.ActivityResponse{
			ID:        a.ID,
			ActorID:   a.ActorID,
			Kind:      a.Kind,
			Message:   a.Message,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*repository.Quote, []repository.QuoteItem, error) {
	quote, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return quote, items, nil
}

// ratesFrom fills unset rates from the existing quote, else the defaults, and
// rounds them to stored precision.
func (s *Service) ratesFrom(taxRate, discountRate *float64, existing *repository.Quote) domain.Rates {
	rates := domain.Rates{TaxRate: s.settings.DefaultTaxRate}
	if existing != nil {
		rates = ratesOf(existing)
	}
	if taxRate != nil {
		rates.TaxRate = *taxRate
	}
	if discountRate != nil {
		rates.DiscountRate = *discountRate
	}
	return rates.Normalized()
}

func (s *Service) recordActivity(ctx context.Context, quoteID uuid.UUID, actor authz.Actor, kind, message string, metadata map[string]any) {
	if err := s.repo.RecordActivity(ctx, newActivity(quoteID, actor, kind, message, metadata)); err != nil {
		s.log.WithContext(ctx).Warn("failed to record quote activity", "quote_id", quoteID, "kind", kind, "error", err)
	}
}

func newActivity(quoteID uuid.UUID, actor authz.Actor, kind, message string, metadata map[string]any) *repository.Activity {
	return &repository.Activity{
		ID:       uuid.New(),
		QuoteID:  quoteID,
		ActorID:  actorID(actor),
		Kind:     kind,
		Message:  message,
		Metadata: metadata,
	}
}

func actorID(actor authz.Actor) *uuid.UUID {
	if actor.System || actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}

func actorLabel(actor authz.Actor) string {
	if actor.System {
		return "system"
	}
	return actor.ID.String()
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func listParams(req transport.ListQuotesRequest) (repository.ListParams, error) {
	params := repository.ListParams{
		Search:    strings.TrimSpace(req.Search),
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return params, apperr.BadRequest("invalid clientId")
		}
		params.ClientID = &id
	}
	if req.Status != "" {
		st := req.Status
		params.Status = &st
	}
	if req.CreatedAtFrom != "" {
		from, err := time.Parse("2006-01-02", req.CreatedAtFrom)
		if err != nil {
			return params, apperr.BadRequest("invalid createdAtFrom")
		}
		params.CreatedFrom = &from
	}
	if req.CreatedAtTo != "" {
		to, err := time.Parse("2006-01-02", req.CreatedAtTo)
		if err != nil {
			return params, apperr.BadRequest("invalid createdAtTo")
		}
		end := to.AddDate(0, 0, 1)
		params.CreatedTo = &end
	}
	return params, nil
}
