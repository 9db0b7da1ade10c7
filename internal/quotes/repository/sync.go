package repository

import (
	"context"
	"errors"
	"fmt"

	"quote_pipeline_backend/internal/invoicing"
	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetSyncRecord returns the gateway ledger row for a quote, or nil when the
// quote was never created upstream.
func (r *Repository) GetSyncRecord(ctx context.Context, quoteID uuid.UUID) (*invoicing.SyncRecord, error) {
	var rec invoicing.SyncRecord
	err := r.pool.QueryRow(ctx, `
		SELECT quote_id, external_id, state, last_error, updated_at
		FROM quote_sync_records WHERE quote_id = $1`, quoteID).
		Scan(&rec.QuoteID, &rec.ExternalID, &rec.State, &rec.LastError, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return &rec, nil
}

// RecordSyncCreate stores the upstream id right after the gateway created it.
func (r *Repository) RecordSyncCreate(ctx context.Context, quoteID uuid.UUID, externalID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quote_sync_records (quote_id, external_id, state)
		VALUES ($1, $2, 'created')
		ON CONFLICT (quote_id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			state = 'created',
			last_error = NULL,
			updated_at = now()`, quoteID, externalID)
	if err != nil {
		return fmt.Errorf("failed to record sync create: %w", err)
	}
	return nil
}

// MarkSyncSent flags the upstream record as transmitted.
func (r *Repository) MarkSyncSent(ctx context.Context, quoteID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quote_sync_records SET state = 'sent', last_error = NULL, updated_at = now()
		WHERE quote_id = $1`, quoteID)
	if err != nil {
		return fmt.Errorf("failed to mark sync sent: %w", err)
	}
	return nil
}

// RecordSyncError keeps the last gateway failure for staff visibility. Quotes
// that never reached the gateway have no row, so nothing is written for them.
func (r *Repository) RecordSyncError(ctx context.Context, quoteID uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quote_sync_records SET last_error = $2, updated_at = now()
		WHERE quote_id = $1`, quoteID, message)
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return nil
}

// ClearSyncRecord deletes the ledger row of a quote that is still a draft.
// Rows of sent quotes are kept; they are only cleared by CommitReopen.
func (r *Repository) ClearSyncRecord(ctx context.Context, quoteID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM quote_sync_records s
		USING quotes q
		WHERE s.quote_id = q.id AND q.id = $1 AND q.status = 'draft'`, quoteID)
	if err != nil {
		return fmt.Errorf("failed to clear sync record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(quoteChangedMsg)
	}
	return nil
}

var _ invoicing.Ledger = (*Repository)(nil)
