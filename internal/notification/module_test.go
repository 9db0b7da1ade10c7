package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	clientsrepo "quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/email"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

type testSender struct {
	calls []email.QuoteSentEmail
	to    []string
	err   error
}

func (s *testSender) SendQuoteSentEmail(_ context.Context, to string, data email.QuoteSentEmail) error {
	s.to = append(s.to, to)
	s.calls = append(s.calls, data)
	return s.err
}

type testClients map[uuid.UUID]*clientsrepo.Client

func (c testClients) GetClient(_ context.Context, id uuid.UUID) (*clientsrepo.Client, error) {
	if cl, ok := c[id]; ok {
		return cl, nil
	}
	return nil, errors.New("not found")
}

type testActivities struct{ kinds []string }

func (a *testActivities) CreateActivity(_ context.Context, _ uuid.UUID, kind, _ string, _ map[string]any) error {
	a.kinds = append(a.kinds, kind)
	return nil
}

const testClientEmail = "client@example.com"

func quoteSent(clientID uuid.UUID) events.QuoteSent {
	expires := time.Date(2026, 11, 18, 0, 0, 0, 0, time.UTC)
	return events.QuoteSent{
		QuoteStatusChanged: events.QuoteStatusChanged{
			BaseEvent:   events.NewBaseEvent(),
			QuoteID:     uuid.New(),
			ClientID:    clientID,
			QuoteNumber: "OFF-2026-0001",
			From:        "draft",
			To:          "sent",
		},
		TotalCents: 15125,
		ExpiresAt:  &expires,
	}
}

func TestHandleQuoteSentEmailsClient(t *testing.T) {
	clientID := uuid.New()
	addr := testClientEmail
	sender := &testSender{}
	activities := &testActivities{}

	m := New(sender, testClients{clientID: {ID: clientID, Name: "Acme", Email: &addr}}, logger.Discard())
	m.SetQuoteActivityWriter(activities)

	bus := events.NewInMemoryBus(logger.Discard())
	m.RegisterHandlers(bus)
	if err := bus.PublishSync(context.Background(), quoteSent(clientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.calls))
	}
	if sender.to[0] != testClientEmail || sender.calls[0].QuoteNumber != "OFF-2026-0001" || sender.calls[0].TotalCents != 15125 {
		t.Fatalf("unexpected email %+v to %s", sender.calls[0], sender.to[0])
	}
	if len(activities.kinds) != 1 || activities.kinds[0] != "email_sent" {
		t.Fatalf("expected email_sent activity, got %v", activities.kinds)
	}
}

func TestHandleQuoteSentSkipsClientWithoutEmail(t *testing.T) {
	clientID := uuid.New()
	sender := &testSender{}

	m := New(sender, testClients{clientID: {ID: clientID, Name: "Acme"}}, logger.Discard())
	if err := m.Handle(context.Background(), quoteSent(clientID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.calls))
	}
}

func TestHandleQuoteSentSwallowsDeliveryFailure(t *testing.T) {
	clientID := uuid.New()
	addr := testClientEmail
	sender := &testSender{err: errors.New("smtp down")}
	activities := &testActivities{}

	m := New(sender, testClients{clientID: {ID: clientID, Name: "Acme", Email: &addr}}, logger.Discard())
	m.SetQuoteActivityWriter(activities)

	if err := m.Handle(context.Background(), quoteSent(clientID)); err != nil {
		t.Fatalf("delivery failure must not surface, got %v", err)
	}
	if len(activities.kinds) != 0 {
		t.Fatalf("expected no activity on failure, got %v", activities.kinds)
	}
}

func TestHandleQuoteSentUnknownClient(t *testing.T) {
	sender := &testSender{}
	m := New(sender, testClients{}, logger.Discard())

	if err := m.Handle(context.Background(), quoteSent(uuid.New())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatal("expected no email for unknown client")
	}
}
