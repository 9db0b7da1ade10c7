package service

import (
	"time"

	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/internal/quotes/repository"
	"quote_pipeline_backend/internal/quotes/transport"
	"quote_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

func snapshotOf(q *repository.Quote, items []repository.QuoteItem) domain.Snapshot {
	return domain.Snapshot{
		Status:            domain.Status(q.Status),
		ItemCount:         len(items),
		Amounts:           amountsOf(q),
		ExternalInvoiceID: q.ExternalInvoiceID,
		SentAt:            q.SentAt,
		ViewedAt:          q.ViewedAt,
		AcceptedAt:        q.AcceptedAt,
		RefusedAt:         q.RefusedAt,
		ExpiredAt:         q.ExpiredAt,
		ExpiresAt:         q.ExpiresAt,
	}
}

func amountsOf(q *repository.Quote) domain.Amounts {
	return domain.Amounts{
		SubtotalCents:       q.SubtotalCents,
		TaxAmountCents:      q.TaxAmountCents,
		DiscountAmountCents: q.DiscountAmountCents,
		TotalCents:          q.TotalCents,
	}
}

func ratesOf(q *repository.Quote) domain.Rates {
	return domain.Rates{TaxRate: q.TaxRate, DiscountRate: q.DiscountRate}
}

func applyAmounts(q *repository.Quote, a domain.Amounts) {
	q.SubtotalCents = a.SubtotalCents
	q.TaxAmountCents = a.TaxAmountCents
	q.DiscountAmountCents = a.DiscountAmountCents
	q.TotalCents = a.TotalCents
}

func toRepoAmounts(a domain.Amounts) repository.Amounts {
	return repository.Amounts{
		SubtotalCents:       a.SubtotalCents,
		TaxAmountCents:      a.TaxAmountCents,
		DiscountAmountCents: a.DiscountAmountCents,
		TotalCents:          a.TotalCents,
	}
}

func linesFromRequest(items []transport.QuoteItemRequest) []domain.Line {
	lines := make([]domain.Line, len(items))
	for i, it := range items {
		lines[i] = domain.Line{
			Description:    sanitize.Text(it.Description),
			Quantity:       domain.RoundQuantity(it.Quantity),
			UnitPriceCents: it.UnitPriceCents,
		}
	}
	return lines
}

func linesFromItems(items []repository.QuoteItem) []domain.Line {
	lines := make([]domain.Line, len(items))
	for i, it := range items {
		lines[i] = domain.Line{Description: it.Description, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents}
	}
	return lines
}

func itemsFromRequest(quoteID uuid.UUID, items []transport.QuoteItemRequest, now time.Time) []repository.QuoteItem {
	out := make([]repository.QuoteItem, len(items))
	for i, it := range items {
		out[i] = repository.QuoteItem{
			ID:             uuid.New(),
			QuoteID:        quoteID,
			Description:    sanitize.Text(it.Description),
			Quantity:       domain.RoundQuantity(it.Quantity),
			UnitPriceCents: it.UnitPriceCents,
			Position:       i + 1,
			CreatedAt:      now,
		}
	}
	return out
}

// toQuoteResponse reports the effective status, so an overdue quote reads as
// expired before the sweep stored it.
func toQuoteResponse(q repository.Quote, items []repository.QuoteItem, now time.Time) transport.QuoteResponse {
	status := domain.EffectiveStatus(domain.Status(q.Status), q.ExpiresAt, now)
	resp := transport.QuoteResponse{
		ID:                  q.ID,
		ClientID:            q.ClientID,
		QuoteNumber:         q.QuoteNumber,
		Status:              string(status),
		SubtotalCents:       q.SubtotalCents,
		TaxRate:             q.TaxRate,
		TaxAmountCents:      q.TaxAmountCents,
		DiscountRate:        q.DiscountRate,
		DiscountAmountCents: q.DiscountAmountCents,
		TotalCents:          q.TotalCents,
		Notes:               q.Notes,
		ExternalInvoiceID:   q.ExternalInvoiceID,
		CreatedBy:           q.CreatedBy,
		SentAt:              q.SentAt,
		ViewedAt:            q.ViewedAt,
		AcceptedAt:          q.AcceptedAt,
		RefusedAt:           q.RefusedAt,
		ExpiredAt:           q.ExpiredAt,
		ExpiresAt:           q.ExpiresAt,
		CreatedAt:           q.CreatedAt,
		UpdatedAt:           q.UpdatedAt,
	}
	if items != nil {
		resp.Items = make([]transport.QuoteItemResponse, len(items))
		for i, it := range items {
			resp.Items[i] = transport.QuoteItemResponse{
				ID:             it.ID,
				Description:    it.Description,
				Quantity:       it.Quantity,
				UnitPriceCents: it.UnitPriceCents,
				Position:       it.Position,
				LineTotalCents: domain.LineTotalCents(domain.Line{Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents}),
			}
		}
	}
	return resp
}

func buildPayload(q *repository.Quote, items []repository.QuoteItem, client *ClientInfo, validUntil time.Time) invoicing.Payload {
	payloadItems := make([]invoicing.PayloadItem, len(items))
	for i, it := range items {
		payloadItems[i] = invoicing.PayloadItem{
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		}
	}
	notes := ""
	if q.Notes != nil {
		notes = *q.Notes
	}
	return invoicing.Payload{
		Reference: q.QuoteNumber,
		Client: invoicing.PayloadClient{
			Name:    client.Name,
			Email:   client.Email,
			Phone:   client.Phone,
			Company: client.Company,
		},
		Items:               payloadItems,
		TaxRate:             q.TaxRate,
		DiscountRate:        q.DiscountRate,
		SubtotalCents:       q.SubtotalCents,
		TaxAmountCents:      q.TaxAmountCents,
		DiscountAmountCents: q.DiscountAmountCents,
		TotalCents:          q.TotalCents,
		ValidUntil:          &validUntil,
		Notes:               notes,
	}
}
