package service

import (
	"context"
	"sync"
	"testing"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/clients/domain"
	"quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/clients/transport"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager   = authz.Actor{ID: uuid.New(), Roles: []string{"manager"}}
	admin     = authz.Actor{ID: uuid.New(), Roles: []string{"admin"}}
	marketing = authz.Actor{ID: uuid.New(), Roles: []string{"marketing"}}
)

type memoryRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]repository.Client
	// raceOnce changes the stage before the next guarded write.
	raceOnce func(c *repository.Client)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clients: make(map[uuid.UUID]repository.Client)}
}

func (r *memoryRepo) Create(_ context.Context, c *repository.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = *c
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, apperr.NotFound("client not found")
	}
	return &c, nil
}

func (r *memoryRepo) Update(_ context.Context, c *repository.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return apperr.NotFound("client not found")
	}
	r.clients[c.ID] = *c
	return nil
}

func (r *memoryRepo) UpdateStage(_ context.Context, id uuid.UUID, expected, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return apperr.NotFound("client not found")
	}
	if r.raceOnce != nil {
		r.raceOnce(&c)
		r.clients[id] = c
		r.raceOnce = nil
	}
	if c.PipelineStage != expected {
		return apperr.Conflict("client stage was changed by someone else")
	}
	c.PipelineStage = stage
	r.clients[id] = c
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return apperr.NotFound("client not found")
	}
	delete(r.clients, id)
	return nil
}

func (r *memoryRepo) List(_ context.Context, p repository.ListParams) (*repository.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Client
	for _, c := range r.clients {
		if p.Stage == nil || c.PipelineStage == *p.Stage {
			out = append(out, c)
		}
	}
	return &repository.ListResult{Items: out, Total: len(out), Page: p.Page, PageSize: p.PageSize, TotalPages: 1}, nil
}

func (r *memoryRepo) stage(id uuid.UUID) string {
	c, _ := r.GetByID(context.Background(), id)
	return c.PipelineStage
}

func newService(t *testing.T) (*Service, *memoryRepo, *events.InMemoryBus) {
	t.Helper()
	repo := newMemoryRepo()
	bus := events.NewInMemoryBus(logger.Discard())
	return New(repo, authz.New(nil), bus, nil, nil), repo, bus
}

func createClient(t *testing.T, svc *Service) *transport.ClientResponse {
	t.Helper()
	email := "  Jan@Example.COM "
	tel := "06 12345678"
	notes := "<b>belt terug</b> maandag"
	c, err := svc.Create(context.Background(), manager, transport.CreateClientRequest{
		Name:  "Jan de Vries",
		Email: &email,
		Phone: &tel,
		Notes: &notes,
	})
	require.NoError(t, err)
	return c
}

func TestCreateNormalizesContactFields(t *testing.T) {
	svc, _, _ := newService(t)
	c := createClient(t, svc)

	assert.Equal(t, "prospect", c.PipelineStage)
	assert.Equal(t, "jan@example.com", *c.Email)
	assert.Equal(t, "+31612345678", *c.Phone)
	assert.Equal(t, "belt terug maandag", *c.Notes)
}

func TestMarketingCanReadButNotWrite(t *testing.T) {
	svc, _, _ := newService(t)
	c := createClient(t, svc)

	_, err := svc.GetByID(context.Background(), marketing, c.ID)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), marketing, transport.CreateClientRequest{Name: "x"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestDeleteNeedsAdmin(t *testing.T) {
	svc, _, _ := newService(t)
	c := createClient(t, svc)

	assert.True(t, apperr.Is(svc.Delete(context.Background(), manager, c.ID), apperr.KindForbidden))
	require.NoError(t, svc.Delete(context.Background(), admin, c.ID))
}

func TestQuoteEventsDriveStage(t *testing.T) {
	svc, repo, bus := newService(t)
	svc.RegisterSubscriptions(bus)
	c := createClient(t, svc)

	publish := func(e events.Event) {
		require.NoError(t, bus.PublishSync(context.Background(), e))
	}
	changed := events.QuoteStatusChanged{ClientID: c.ID, QuoteID: uuid.New()}

	publish(events.QuoteSent{QuoteStatusChanged: changed})
	assert.Equal(t, "proposal", repo.stage(c.ID))

	publish(events.QuoteAccepted{QuoteStatusChanged: changed})
	assert.Equal(t, "closed_won", repo.stage(c.ID))

	// a later quote sent to a won client does not pull it back
	publish(events.QuoteSent{QuoteStatusChanged: changed})
	assert.Equal(t, "closed_won", repo.stage(c.ID))

	publish(events.QuoteRefused{QuoteStatusChanged: changed})
	assert.Equal(t, "closed_lost", repo.stage(c.ID))
}

func TestOverrideStage(t *testing.T) {
	svc, _, _ := newService(t)
	c := createClient(t, svc)
	require.NoError(t, svc.ApplyQuoteEvent(context.Background(), c.ID, domain.QuoteAccepted()))

	got, err := svc.OverrideStage(context.Background(), manager, c.ID, "prospect")
	require.NoError(t, err)
	assert.Equal(t, "prospect", got.PipelineStage)

	_, err = svc.OverrideStage(context.Background(), marketing, c.ID, "proposal")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.OverrideStage(context.Background(), manager, c.ID, "lost")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStageUpdateRetriesAfterRace(t *testing.T) {
	svc, repo, _ := newService(t)
	c := createClient(t, svc)
	repo.raceOnce = func(rc *repository.Client) { rc.PipelineStage = "closed_won" }

	require.NoError(t, svc.ApplyQuoteEvent(context.Background(), c.ID, domain.QuoteSent()))
	assert.Equal(t, "closed_won", repo.stage(c.ID))
}
