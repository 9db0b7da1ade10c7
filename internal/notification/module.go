// Package notification reacts to domain events with outbound messages. Domain
// modules publish events and never talk to mail providers themselves.
package notification

import (
	"context"
	"strings"

	clientsrepo "quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/email"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

// ClientReader loads the recipient of a client-facing message.
type ClientReader interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clientsrepo.Client, error)
}

// QuoteActivityWriter persists activity log entries for quotes.
type QuoteActivityWriter interface {
	CreateActivity(ctx context.Context, quoteID uuid.UUID, kind, message string, metadata map[string]any) error
}

// Module handles notification-worthy events. Delivery failures are logged and
// never reach the publisher.
type Module struct {
	sender     email.Sender
	clients    ClientReader
	activities QuoteActivityWriter
	log        *logger.Logger
}

// New creates the notification module.
func New(sender email.Sender, clients ClientReader, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender:  sender,
		clients: clients,
		log:     log.WithComponent("notification"),
	}
}

// SetQuoteActivityWriter enables the "email_sent" entries in quote history.
func (m *Module) SetQuoteActivityWriter(w QuoteActivityWriter) {
	m.activities = w
}

// RegisterHandlers subscribes the module to the events it handles.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QuoteSent{}.EventName(), m)
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuoteSent:
		return m.handleQuoteSent(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleQuoteSent(ctx context.Context, e events.QuoteSent) error {
	log := m.log.WithContext(ctx)
	if m.clients == nil {
		return nil
	}

	client, err := m.clients.GetClient(ctx, e.ClientID)
	if err != nil {
		log.Warn("quote sent email skipped: client lookup failed", "quote_id", e.QuoteID, "client_id", e.ClientID, "error", err)
		return nil
	}
	to := ""
	if client.Email != nil {
		to = strings.TrimSpace(*client.Email)
	}
	if to == "" {
		log.Info("quote sent email skipped: client has no email", "quote_id", e.QuoteID)
		return nil
	}

	err = m.sender.SendQuoteSentEmail(ctx, to, email.QuoteSentEmail{
		ClientName:  client.Name,
		QuoteNumber: e.QuoteNumber,
		TotalCents:  e.TotalCents,
		ExpiresAt:   e.ExpiresAt,
	})
	if err != nil {
		log.Error("failed to send quote email", "quote_id", e.QuoteID, "error", err)
		return nil
	}

	if m.activities != nil {
		if err := m.activities.CreateActivity(ctx, e.QuoteID, "email_sent", "Offerte gemaild naar "+to, map[string]any{"to": to}); err != nil {
			log.Warn("failed to record quote email activity", "quote_id", e.QuoteID, "error", err)
		}
	}
	log.Info("quote sent email delivered", "quote_id", e.QuoteID)
	return nil
}
