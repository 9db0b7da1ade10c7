package service

import (
	"context"
	"errors"
	"fmt"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/events"
	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/internal/quotes/repository"
	"quote_pipeline_backend/internal/quotes/transport"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/lock"

	"github.com/google/uuid"
)

const (
	sendLockPrefix   = "quote-send:"
	expirySweepLimit = 200
)

// Transition moves a quote along its lifecycle. The draft -> sent edge needs
// the gateway and is delegated to Send.
func (s *Service) Transition(ctx context.Context, actor authz.Actor, id uuid.UUID, target string) (*transport.QuoteResponse, error) {
	to, err := domain.ParseStatus(target)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if to == domain.StatusSent {
		res, err := s.Send(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		return res.Quote, nil
	}

	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.machine.Plan(snapshotOf(quote, items), to, actor)
	if err != nil {
		return nil, err
	}
	if tr.RequiresSync() {
		return nil, apperr.Internal("transition requires gateway sync")
	}

	activity := newActivity(id, actor, "status_changed", fmt.Sprintf("Status changed from %s to %s", tr.From, tr.To), nil)
	w := repository.TransitionWrite{To: string(tr.To), At: tr.At}
	if err := s.repo.CommitTransition(ctx, id, string(tr.From), w, activity); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, quote, tr, actor)

	return s.reload(ctx, id)
}

// Send performs draft -> sent. The quote is pushed to the invoicing gateway
// first; only a successful push commits the status together with the external
// reference. A failed push leaves the quote a draft and returns the gateway
// error.
func (s *Service) Send(ctx context.Context, actor authz.Actor, id uuid.UUID) (*transport.SendQuoteResponse, error) {
	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, sendLockPrefix+id.String(), s.settings.SendLockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("quote is already being sent")
		}
		if err != nil {
			return nil, fmt.Errorf("acquire send lock: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithContext(ctx).Warn("failed to release send lock", "quote_id", id, "error", err)
			}
		}()
	}

	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.machine.Plan(snapshotOf(quote, items), domain.StatusSent, actor)
	if err != nil {
		return nil, err
	}

	expiresAt := tr.At.AddDate(0, 0, s.settings.ValidityDays)
	if quote.ExpiresAt != nil {
		expiresAt = quote.ExpiresAt.UTC()
	}
	if !expiresAt.After(tr.At) {
		return nil, apperr.Validation("quote validity must end in the future")
	}

	client, err := s.clients.GetClientInfo(ctx, quote.ClientID)
	if err != nil {
		return nil, err
	}

	result, err := s.syncer.Push(ctx, invoicing.PushRequest{
		QuoteID:           id,
		ExternalInvoiceID: quote.ExternalInvoiceID,
		Payload:           buildPayload(quote, items, client, expiresAt),
	})
	if err != nil {
		s.recordActivity(ctx, id, actor, "send_failed", "Sending to the invoicing gateway failed", sendFailureMetadata(err))
		return nil, err
	}

	externalID := result.ExternalID
	activity := newActivity(id, actor, "sent", "Quote sent with external reference "+externalID, map[string]any{
		"externalInvoiceId": externalID,
		"gatewayStatus":     result.Status,
	})
	w := repository.TransitionWrite{
		To:                string(domain.StatusSent),
		At:                tr.At,
		ExternalInvoiceID: &externalID,
		ExpiresAt:         &expiresAt,
	}
	if err := s.repo.CommitTransition(ctx, id, string(tr.From), w, activity); err != nil {
		// The ledger keeps the upstream id, so a retry sends the same record.
		s.log.WithContext(ctx).Error("quote pushed but commit failed", "quote_id", id, "external_id", externalID, "error", err)
		return nil, err
	}

	quote.ExternalInvoiceID = &externalID
	quote.ExpiresAt = &expiresAt
	s.afterTransition(ctx, quote, tr, actor)
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleQuoteExpiry(ctx, id, expiresAt); err != nil {
			s.log.WithContext(ctx).Warn("failed to schedule quote expiry", "quote_id", id, "error", err)
		}
	}

	resp, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	return &transport.SendQuoteResponse{
		Success:           true,
		Status:            resp.Status,
		ExternalInvoiceID: &externalID,
		Gateway:           result.Response,
		Quote:             resp,
	}, nil
}

// Reopen moves an accepted, refused or expired quote back to draft. Admin
// only; the reason goes into the audit trail.
func (s *Service) Reopen(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (*transport.QuoteResponse, error) {
	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(quote, items)
	if _, err := s.machine.Reopen(snap, actor); err != nil {
		return nil, err
	}

	from := domain.EffectiveStatus(snap.Status, snap.ExpiresAt, s.machine.Now())
	activity := newActivity(id, actor, "reopened", "Quote reopened: "+reason, map[string]any{
		"from":   string(from),
		"reason": reason,
	})
	if err := s.repo.CommitReopen(ctx, id, quote.Status, activity); err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).QuoteTransition(id.String(), string(from), string(domain.StatusDraft), actorLabel(actor))
	s.metrics.ObserveTransition(string(from), string(domain.StatusDraft))
	if s.bus != nil {
		s.bus.Publish(ctx, events.QuoteReopened{
			QuoteStatusChanged: statusEvent(quote, from, domain.StatusDraft, actor),
			Reason:             reason,
		})
	}
	return s.reload(ctx, id)
}

// DiscardGatewayRecord forgets the upstream record of a draft whose earlier
// send created it but never completed. The next send then creates a fresh
// record from the current lines and amounts.
func (s *Service) DiscardGatewayRecord(ctx context.Context, actor authz.Actor, id uuid.UUID) (*transport.QuoteResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionUpdate); err != nil {
		return nil, err
	}
	quote, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != string(domain.StatusDraft) {
		return nil, apperr.Validation("only a draft's gateway record can be discarded")
	}
	rec, err := s.repo.GetSyncRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperr.NotFound("quote has no gateway record")
	}
	if err := s.repo.ClearSyncRecord(ctx, id); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, id, actor, "gateway_record_discarded", "Gateway record discarded", map[string]any{
		"externalId": rec.ExternalID,
	})
	return s.reload(ctx, id)
}

// requireNoGatewayRecord blocks edits to a draft that already exists upstream:
// a resend reuses that record, so the gateway would keep the old lines.
func (s *Service) requireNoGatewayRecord(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetSyncRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec != nil {
		return apperr.Conflict("quote already exists at the invoicing gateway; discard that record before changing prices, items or validity").
			WithDetails(map[string]string{"externalId": rec.ExternalID})
	}
	return nil
}

// ExpireOne stores the expiry of a single quote. Quotes that moved on in the
// meantime, or whose validity was extended, are left alone.
func (s *Service) ExpireOne(ctx context.Context, id uuid.UUID) (bool, error) {
	quote, items, err := s.load(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	snap := snapshotOf(quote, items)
	if domain.EffectiveStatus(snap.Status, snap.ExpiresAt, s.machine.Now()) != domain.StatusExpired || !snap.Status.CanExpire() {
		return false, nil
	}

	actor := authz.SystemActor()
	tr, err := s.machine.Plan(snap, domain.StatusExpired, actor)
	if err != nil {
		return false, err
	}
	activity := newActivity(id, actor, "expired", "Quote validity ended", nil)
	err = s.repo.CommitTransition(ctx, id, string(tr.From), repository.TransitionWrite{To: string(tr.To), At: tr.At}, activity)
	if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.afterTransition(ctx, quote, tr, actor)
	return true, nil
}

// ExpireOverdue stores the expiry of every quote whose validity has ended and
// returns the ids it expired.
func (s *Service) ExpireOverdue(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.ListExpirable(ctx, s.machine.Now(), expirySweepLimit)
	if err != nil {
		return nil, err
	}

	expired := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		ok, err := s.ExpireOne(ctx, id)
		if err != nil {
			s.log.WithContext(ctx).Warn("failed to expire quote", "quote_id", id, "error", err)
			continue
		}
		if ok {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *Service) afterTransition(ctx context.Context, quote *repository.Quote, tr domain.Transition, actor authz.Actor) {
	s.log.WithContext(ctx).QuoteTransition(quote.ID.String(), string(tr.From), string(tr.To), actorLabel(actor))
	s.metrics.ObserveTransition(string(tr.From), string(tr.To))
	if s.bus == nil {
		return
	}

	base := statusEvent(quote, tr.From, tr.To, actor)
	switch tr.To {
	case domain.StatusSent:
		ext := ""
		if quote.ExternalInvoiceID != nil {
			ext = *quote.ExternalInvoiceID
		}
		s.bus.Publish(ctx, events.QuoteSent{
			QuoteStatusChanged: base,
			ExternalInvoiceID:  ext,
			TotalCents:         quote.TotalCents,
			ExpiresAt:          quote.ExpiresAt,
		})
	case domain.StatusViewed:
		s.bus.Publish(ctx, events.QuoteViewed{QuoteStatusChanged: base})
	case domain.StatusAccepted:
		s.bus.Publish(ctx, events.QuoteAccepted{QuoteStatusChanged: base, TotalCents: quote.TotalCents})
	case domain.StatusRefused:
		s.bus.Publish(ctx, events.QuoteRefused{QuoteStatusChanged: base})
	case domain.StatusExpired:
		s.bus.Publish(ctx, events.QuoteExpired{QuoteStatusChanged: base})
	case domain.StatusDraft:
	}
}

func statusEvent(quote *repository.Quote, from, to domain.Status, actor authz.Actor) events.QuoteStatusChanged {
	return events.QuoteStatusChanged{
		BaseEvent:   events.NewBaseEvent(),
		QuoteID:     quote.ID,
		ClientID:    quote.ClientID,
		QuoteNumber: quote.QuoteNumber,
		From:        string(from),
		To:          string(to),
		ActorID:     actorID(actor),
	}
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*transport.QuoteResponse, error) {
	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toQuoteResponse(*quote, items, s.machine.Now())
	return &resp, nil
}

func sendFailureMetadata(err error) map[string]any {
	meta := map[string]any{"error": err.Error()}
	if appErr, ok := apperr.As(err); ok {
		meta["kind"] = appErr.Kind.String()
		if appErr.Details != nil {
			meta["details"] = appErr.Details
		}
	}
	return meta
}
