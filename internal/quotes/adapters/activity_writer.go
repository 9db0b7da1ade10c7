package adapters

import (
	"context"

	"quote_pipeline_backend/internal/quotes/repository"

	"github.com/google/uuid"
)

// ActivityRecorder is the quotes store method the writer appends through.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a *repository.Activity) error
}

// QuoteActivityWriter lets other modules add entries to a quote's audit trail
// without depending on the repository model.
type QuoteActivityWriter struct {
	rec ActivityRecorder
}

func NewQuoteActivityWriter(rec ActivityRecorder) *QuoteActivityWriter {
	return &QuoteActivityWriter{rec: rec}
}

func (w *QuoteActivityWriter) CreateActivity(ctx context.Context, quoteID uuid.UUID, kind, message string, metadata map[string]any) error {
	return w.rec.RecordActivity(ctx, &repository.Activity{
		QuoteID:  quoteID,
		Kind:     kind,
		Message:  message,
		Metadata: metadata,
	})
}
