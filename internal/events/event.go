// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"quote_pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteStatusChanged carries what every quote lifecycle event shares.
type QuoteStatusChanged struct {
	BaseEvent
	QuoteID     uuid.UUID  `json:"quoteId"`
	ClientID    uuid.UUID  `json:"clientId"`
	QuoteNumber string     `json:"quoteNumber"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	ActorID     *uuid.UUID `json:"actorId,omitempty"`
}

// QuoteSent is published after a quote was pushed to the gateway and stored as sent.
type QuoteSent struct {
	QuoteStatusChanged
	ExternalInvoiceID string     `json:"externalInvoiceId"`
	TotalCents        int64      `json:"totalCents"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
}

func (e QuoteSent) EventName() string { return "quotes.quote.sent" }

// QuoteViewed is published when the client opened the quote.
type QuoteViewed struct{ QuoteStatusChanged }

func (e QuoteViewed) EventName() string { return "quotes.quote.viewed" }

// QuoteAccepted is published when the client accepted the quote.
type QuoteAccepted struct {
	QuoteStatusChanged
	TotalCents int64 `json:"totalCents"`
}

func (e QuoteAccepted) EventName() string { return "quotes.quote.accepted" }

// QuoteRefused is published when the client refused the quote.
type QuoteRefused struct{ QuoteStatusChanged }

func (e QuoteRefused) EventName() string { return "quotes.quote.refused" }

// QuoteExpired is published when a quote's validity ran out.
type QuoteExpired struct{ QuoteStatusChanged }

func (e QuoteExpired) EventName() string { return "quotes.quote.expired" }

// QuoteReopened is published when an admin moved a closed quote back to draft.
type QuoteReopened struct {
	QuoteStatusChanged
	Reason string `json:"reason"`
}

func (e QuoteReopened) EventName() string { return "quotes.quote.reopened" }

// =============================================================================
// Client Domain Events
// =============================================================================

// ClientStageChanged is published whenever a client's pipeline stage moves.
type ClientStageChanged struct {
	BaseEvent
	ClientID uuid.UUID  `json:"clientId"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Cause    string     `json:"cause"`
	ActorID  *uuid.UUID `json:"actorId,omitempty"`
}

func (e ClientStageChanged) EventName() string { return "clients.stage.changed" }
