package service

import (
	"context"
	"fmt"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/pdf"
	"quote_pipeline_backend/internal/quotes/domain"
	"quote_pipeline_backend/platform/storage"

	"github.com/google/uuid"
)

const pdfContentType = "application/pdf"

// RenderedPDF is a generated quote document. FileKey and URL are set when the
// PDF was archived in object storage.
type RenderedPDF struct {
	FileName string
	Data     []byte
	FileKey  string
	URL      string
}

// RenderPDF generates the quote document. When object storage is configured
// the PDF is archived and a presigned download URL is returned as well.
// Archiving failures are logged; the bytes are still returned.
func (s *Service) RenderPDF(ctx context.Context, actor authz.Actor, id uuid.UUID) (*RenderedPDF, error) {
	if err := s.policy.Require(actor, authz.ResourceQuotes, authz.ActionView); err != nil {
		return nil, err
	}
	quote, items, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClientInfo(ctx, quote.ClientID)
	if err != nil {
		return nil, err
	}

	data := pdf.QuotePDFData{
		QuoteNumber:         quote.QuoteNumber,
		Status:              string(domain.EffectiveStatus(domain.Status(quote.Status), quote.ExpiresAt, s.machine.Now())),
		CreatedAt:           quote.CreatedAt,
		ExpiresAt:           quote.ExpiresAt,
		Notes:               quote.Notes,
		ClientName:          client.Name,
		ClientCompany:       client.Company,
		ClientEmail:         client.Email,
		ClientPhone:         client.Phone,
		SubtotalCents:       quote.SubtotalCents,
		TaxRate:             quote.TaxRate,
		TaxAmountCents:      quote.TaxAmountCents,
		DiscountRate:        quote.DiscountRate,
		DiscountAmountCents: quote.DiscountAmountCents,
		TotalCents:          quote.TotalCents,
	}
	data.Items = make([]pdf.QuotePDFItem, len(items))
	for i, it := range items {
		data.Items[i] = pdf.QuotePDFItem{
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: domain.LineTotalCents(domain.Line{Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents}),
		}
	}

	pdfBytes, err := pdf.GenerateQuotePDF(data)
	if err != nil {
		return nil, fmt.Errorf("generate quote pdf: %w", err)
	}

	out := &RenderedPDF{FileName: fmt.Sprintf("Offerte-%s.pdf", quote.QuoteNumber), Data: pdfBytes}
	if s.store == nil || s.settings.PDFBucket == "" {
		return out, nil
	}

	key := storage.ObjectKey("quotes", id.String(), out.FileName)
	if err := s.store.Put(ctx, s.settings.PDFBucket, key, pdfContentType, pdfBytes); err != nil {
		s.log.WithContext(ctx).Warn("failed to archive quote pdf", "quote_id", id, "error", err)
		return out, nil
	}
	out.FileKey = key
	url, err := s.store.PresignGet(ctx, s.settings.PDFBucket, key)
	if err != nil {
		s.log.WithContext(ctx).Warn("failed to presign quote pdf", "quote_id", id, "error", err)
		return out, nil
	}
	out.URL = url
	s.recordActivity(ctx, id, actor, "pdf_generated", "PDF archived as "+key, nil)
	return out, nil
}
