package service

import (
	"context"
	"strings"
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/clients/domain"
	"quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/clients/transport"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"
	"quote_pipeline_backend/platform/phone"
	"quote_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// stageRetries bounds how often a quote-driven stage move is recomputed after
// losing a race with another writer.
const stageRetries = 3

// Repository is the storage the clients service needs.
type Repository interface {
	Create(ctx context.Context, c *repository.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Client, error)
	Update(ctx context.Context, c *repository.Client) error
	UpdateStage(ctx context.Context, id uuid.UUID, expected, stage string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
}

// Service provides business logic for clients and their pipeline stage
type Service struct {
	repo    Repository
	policy  *authz.Policy
	bus     events.Bus
	metrics *monitoring.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// New creates a new clients service. bus and metrics may be nil.
func New(repo Repository, policy *authz.Policy, bus events.Bus, metrics *monitoring.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo:    repo,
		policy:  policy,
		bus:     bus,
		metrics: metrics,
		log:     log.WithComponent("clients"),
		now:     time.Now,
	}
}

// Create stores a new client in the prospect stage
func (s *Service) Create(ctx context.Context, actor authz.Actor, req transport.CreateClientRequest) (*transport.ClientResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionCreate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := repository.Client{
		ID:            uuid.New(),
		Name:          sanitize.Text(req.Name),
		Email:         normalizeEmail(req.Email),
		Phone:         normalizePhone(req.Phone),
		Company:       sanitize.TextPtr(req.Company),
		PipelineStage: string(domain.StageProspect),
		Notes:         sanitize.TextPtr(req.Notes),
		LeadSource:    sanitize.TextPtr(req.LeadSource),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, err
	}

	resp := toResponse(c)
	return &resp, nil
}

// GetByID returns a single client
func (s *Service) GetByID(ctx context.Context, actor authz.Actor, id uuid.UUID) (*transport.ClientResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionView); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*c)
	return &resp, nil
}

// List returns a page of clients
func (s *Service) List(ctx context.Context, actor authz.Actor, req transport.ListClientsRequest) (*transport.ClientListResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionList); err != nil {
		return nil, err
	}

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
	if req.Stage != "" {
		stage := req.Stage
		params.Stage = &stage
	}

	result, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	items := make([]transport.ClientResponse, len(result.Items))
	for i, c := range result.Items {
		items[i] = toResponse(c)
	}
	return &transport.ClientListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// Update patches the contact fields of a client. The stage is not editable
// here; see OverrideStage.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req transport.UpdateClientRequest) (*transport.ClientResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionUpdate); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = sanitize.Text(*req.Name)
		if c.Name == "" {
			return nil, apperr.Validation("name is required")
		}
	}
	if req.Email != nil {
		c.Email = normalizeEmail(req.Email)
	}
	if req.Phone != nil {
		c.Phone = normalizePhone(req.Phone)
	}
	if req.Company != nil {
		c.Company = sanitize.TextPtr(req.Company)
	}
	if req.Notes != nil {
		c.Notes = sanitize.TextPtr(req.Notes)
	}
	if req.LeadSource != nil {
		c.LeadSource = sanitize.TextPtr(req.LeadSource)
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	resp := toResponse(*c)
	return &resp, nil
}

// Delete removes a client. Admin only.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// OverrideStage sets the pipeline stage by hand. This is the only way a
// client moves back down the funnel.
func (s *Service) OverrideStage(ctx context.Context, actor authz.Actor, id uuid.UUID, stage string) (*transport.ClientResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceClients, authz.ActionTransition); err != nil {
		return nil, err
	}
	target, err := domain.ParseStage(stage)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	c, err := s.advance(ctx, id, domain.ManualOverride(target), actorID(actor))
	if err != nil {
		return nil, err
	}
	resp := toResponse(*c)
	return &resp, nil
}

// ApplyQuoteEvent advances the client's stage for a quote lifecycle event.
func (s *Service) ApplyQuoteEvent(ctx context.Context, clientID uuid.UUID, ev domain.Event) error {
	_, err := s.advance(ctx, clientID, ev, nil)
	return err
}

// advance recomputes the stage from a fresh read and writes it guarded by the
// stage it was computed from. A concurrent writer makes it retry.
func (s *Service) advance(ctx context.Context, id uuid.UUID, ev domain.Event, actor *uuid.UUID) (*repository.Client, error) {
	var lastErr error
	for attempt := 0; attempt < stageRetries; attempt++ {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		current, err := domain.ParseStage(c.PipelineStage)
		if err != nil {
			current = domain.StageProspect
		}
		next := domain.Advance(current, ev)
		if next == current {
			return c, nil
		}

		err = s.repo.UpdateStage(ctx, id, c.PipelineStage, string(next))
		if apperr.Is(err, apperr.KindConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		c.PipelineStage = string(next)
		c.UpdatedAt = s.now().UTC()
		s.log.WithContext(ctx).Info("client stage changed", "client_id", id, "from", current, "to", next, "cause", ev.Kind)
		s.metrics.ObserveStageChange(string(next), string(ev.Kind))
		if s.bus != nil {
			s.bus.Publish(ctx, events.ClientStageChanged{
				BaseEvent: events.NewBaseEvent(),
				ClientID:  id,
				From:      string(current),
				To:        string(next),
				Cause:     string(ev.Kind),
				ActorID:   actor,
			})
		}
		return c, nil
	}
	return nil, lastErr
}

// GetClient returns the stored client without a capability check. Used by
// other modules that already authorized their own request.
func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*repository.Client, error) {
	return s.repo.GetByID(ctx, id)
}

func toResponse(c repository.Client) transport.ClientResponse {
	return transport.ClientResponse{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Company:       c.Company,
		PipelineStage: c.PipelineStage,
		Notes:         c.Notes,
		LeadSource:    c.LeadSource,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func normalizePhone(p *string) *string {
	if p == nil {
		return nil
	}
	v := phone.NormalizeE164(*p)
	if v == "" {
		return nil
	}
	return &v
}

func actorID(actor authz.Actor) *uuid.UUID {
	if actor.System || actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}
