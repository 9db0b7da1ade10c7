package service

import (
	"context"

	"quote_pipeline_backend/internal/clients/domain"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/platform/monitoring"
)

// RegisterSubscriptions moves clients along the funnel as their quotes are
// sent, accepted or refused. A failed stage update is logged and reported;
// the quote transition has already been committed.
func (s *Service) RegisterSubscriptions(bus events.Bus) {
	bus.Subscribe(events.QuoteSent{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.QuoteSent)
		if !ok {
			return nil
		}
		return s.applyLogged(ctx, ev.QuoteStatusChanged, domain.QuoteSent())
	}))
	bus.Subscribe(events.QuoteAccepted{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.QuoteAccepted)
		if !ok {
			return nil
		}
		return s.applyLogged(ctx, ev.QuoteStatusChanged, domain.QuoteAccepted())
	}))
	bus.Subscribe(events.QuoteRefused{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		ev, ok := e.(events.QuoteRefused)
		if !ok {
			return nil
		}
		return s.applyLogged(ctx, ev.QuoteStatusChanged, domain.QuoteRefused())
	}))
}

func (s *Service) applyLogged(ctx context.Context, q events.QuoteStatusChanged, ev domain.Event) error {
	if err := s.ApplyQuoteEvent(ctx, q.ClientID, ev); err != nil {
		s.log.WithContext(ctx).Error("failed to advance client stage", "client_id", q.ClientID, "quote_id", q.QuoteID, "event", ev.Kind, "error", err)
		monitoring.CaptureError(ctx, err, map[string]interface{}{"client_id": q.ClientID.String(), "quote_id": q.QuoteID.String()})
		return err
	}
	return nil
}
