package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Quote is the database model for a quote header
type Quote struct {
	ID                  uuid.UUID  `db:"id"`
	ClientID            uuid.UUID  `db:"client_id"`
	QuoteNumber         string     `db:"quote_number"`
	Status              string     `db:"status"`
	SubtotalCents       int64      `db:"subtotal_cents"`
	TaxRate             float64    `db:"tax_rate"`
	TaxAmountCents      int64      `db:"tax_amount_cents"`
	DiscountRate        float64    `db:"discount_rate"`
	DiscountAmountCents int64      `db:"discount_amount_cents"`
	TotalCents          int64      `db:"total_cents"`
	Notes               *string    `db:"notes"`
	ExternalInvoiceID   *string    `db:"external_invoice_id"`
	CreatedBy           uuid.UUID  `db:"created_by"`
	SentAt              *time.Time `db:"sent_at"`
	ViewedAt            *time.Time `db:"viewed_at"`
	AcceptedAt          *time.Time `db:"accepted_at"`
	RefusedAt           *time.Time `db:"refused_at"`
	ExpiredAt           *time.Time `db:"expired_at"`
	ExpiresAt           *time.Time `db:"expires_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// QuoteItem is the database model for a quote line item
type QuoteItem struct {
	ID             uuid.UUID `db:"id"`
	QuoteID        uuid.UUID `db:"quote_id"`
	Description    string    `db:"description"`
	Quantity       float64   `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	Position       int       `db:"position"`
	CreatedAt      time.Time `db:"created_at"`
}

// Amounts are the stored money columns, written together.
type Amounts struct {
	SubtotalCents       int64
	TaxAmountCents      int64
	DiscountAmountCents int64
	TotalCents          int64
}

// Patch holds the header fields an update may change. Nil means unchanged.
type Patch struct {
	Notes        *string
	TaxRate      *float64
	DiscountRate *float64
	ExpiresAt    *time.Time
	Amounts      *Amounts
}

// TransitionWrite is everything a status change stores in one statement.
type TransitionWrite struct {
	To                string
	At                time.Time
	ExternalInvoiceID *string
	ExpiresAt         *time.Time
}

// ListParams contains parameters for listing quotes
type ListParams struct {
	ClientID    *uuid.UUID
	// Status filters on the effective status: a sent or viewed quote past
	// its expires_at (as of Now) counts as expired.
	Status      *string
	Now         time.Time
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// ListResult contains the paginated result of listing quotes
type ListResult struct {
	Items      []Quote
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	quoteNotFoundMsg = "quote not found"
	quoteChangedMsg  = "quote was changed by someone else; reload and try again"
)

const quoteColumns = `
	id, client_id, quote_number, status,
	subtotal_cents, tax_rate, tax_amount_cents, discount_rate, discount_amount_cents, total_cents,
	notes, external_invoice_id, created_by,
	sent_at, viewed_at, accepted_at, refused_at, expired_at, expires_at,
	created_at, updated_at`

// Repository provides database operations for quotes
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new quotes repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanQuote(row pgx.Row, q *Quote) error {
	return row.Scan(
		&q.ID, &q.ClientID, &q.QuoteNumber, &q.Status,
		&q.SubtotalCents, &q.TaxRate, &q.TaxAmountCents, &q.DiscountRate, &q.DiscountAmountCents, &q.TotalCents,
		&q.Notes, &q.ExternalInvoiceID, &q.CreatedBy,
		&q.SentAt, &q.ViewedAt, &q.AcceptedAt, &q.RefusedAt, &q.ExpiredAt, &q.ExpiresAt,
		&q.CreatedAt, &q.UpdatedAt,
	)
}

// NextQuoteNumber atomically generates the next quote number for the current year
func (r *Repository) NextQuoteNumber(ctx context.Context) (string, error) {
	year := time.Now().UTC().Year()
	var nextNum int
	query := `
		INSERT INTO quote_counters (year, last_number)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_number = quote_counters.last_number + 1
		RETURNING last_number`

	if err := r.pool.QueryRow(ctx, query, year).Scan(&nextNum); err != nil {
		return "", fmt.Errorf("failed to generate quote number: %w", err)
	}

	return fmt.Sprintf("OFF-%d-%04d", year, nextNum), nil
}

// CreateWithItems inserts a quote and its line items in a single transaction
func (r *Repository) CreateWithItems(ctx context.Context, quote *Quote, items []QuoteItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	quoteQuery := `
		INSERT INTO quotes (
			id, client_id, quote_number, status,
			subtotal_cents, tax_rate, tax_amount_cents, discount_rate, discount_amount_cents, total_cents,
			notes, created_by, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if _, err := tx.Exec(ctx, quoteQuery,
		quote.ID, quote.ClientID, quote.QuoteNumber, quote.Status,
		quote.SubtotalCents, quote.TaxRate, quote.TaxAmountCents, quote.DiscountRate, quote.DiscountAmountCents, quote.TotalCents,
		quote.Notes, quote.CreatedBy, quote.ExpiresAt, quote.CreatedAt, quote.UpdatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Validation("client does not exist")
		}
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	if err := insertItems(ctx, tx, items); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a quote by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	var q Quote
	err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id), &q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(quoteNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return &q, nil
}

// GetItems retrieves all items for a quote in position order
func (r *Repository) GetItems(ctx context.Context, quoteID uuid.UUID) ([]QuoteItem, error) {
	query := `
		SELECT id, quote_id, description, quantity, unit_price_cents, position, created_at
		FROM quote_items WHERE quote_id = $1
		ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quote items: %w", err)
	}
	defer rows.Close()

	items := make([]QuoteItem, 0)
	for rows.Next() {
		var it QuoteItem
		if err := rows.Scan(
			&it.ID, &it.QuoteID, &it.Description, &it.Quantity,
			&it.UnitPriceCents, &it.Position, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quote items: %w", err)
	}
	return items, nil
}

// Update applies a header patch, guarded by the status the caller saw.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, expectedStatus string, patch Patch) error {
	var subtotal, tax, discount, total *int64
	if patch.Amounts != nil {
		subtotal, tax = &patch.Amounts.SubtotalCents, &patch.Amounts.TaxAmountCents
		discount, total = &patch.Amounts.DiscountAmountCents, &patch.Amounts.TotalCents
	}

	query := `
		UPDATE quotes SET
			notes = COALESCE($3, notes),
			tax_rate = COALESCE($4, tax_rate),
			discount_rate = COALESCE($5, discount_rate),
			expires_at = COALESCE($6, expires_at),
			subtotal_cents = COALESCE($7, subtotal_cents),
			tax_amount_cents = COALESCE($8, tax_amount_cents),
			discount_amount_cents = COALESCE($9, discount_amount_cents),
			total_cents = COALESCE($10, total_cents),
			updated_at = now()
		WHERE id = $1 AND status = $2`

	result, err := r.pool.Exec(ctx, query, id, expectedStatus,
		patch.Notes, patch.TaxRate, patch.DiscountRate, patch.ExpiresAt,
		subtotal, tax, discount, total,
	)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrChanged(ctx, r.pool, id)
	}
	return nil
}

// ReplaceItems swaps the full item set and stores the recomputed amounts in
// one transaction, so items and amounts can never disagree.
func (r *Repository) ReplaceItems(ctx context.Context, quoteID uuid.UUID, expectedStatus string, items []QuoteItem, amounts Amounts) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM quotes WHERE id = $1 FOR UPDATE`, quoteID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(quoteNotFoundMsg)
		}
		return fmt.Errorf("failed to lock quote: %w", err)
	}
	if status != expectedStatus {
		return apperr.Conflict(quoteChangedMsg)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return fmt.Errorf("failed to delete old quote items: %w", err)
	}
	if err := insertItems(ctx, tx, items); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE quotes SET
			subtotal_cents = $2, tax_amount_cents = $3, discount_amount_cents = $4, total_cents = $5,
			updated_at = now()
		WHERE id = $1`,
		quoteID, amounts.SubtotalCents, amounts.TaxAmountCents, amounts.DiscountAmountCents, amounts.TotalCents,
	); err != nil {
		return fmt.Errorf("failed to update quote amounts: %w", err)
	}

	return tx.Commit(ctx)
}

func insertItems(ctx context.Context, tx pgx.Tx, items []QuoteItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO quote_items (id, quote_id, description, quantity, unit_price_cents, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.QuoteID, item.Description, item.Quantity,
			item.UnitPriceCents, item.Position, item.CreatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert quote item: %w", err)
		}
	}
	return results.Close()
}

// Delete removes a quote (cascade deletes items, sync record and activities)
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	return nil
}

// CommitTransition stores a status change, its timestamp and (for draft ->
// sent) the external reference in a single UPDATE guarded by the expected
// prior status. The activity row is written in the same transaction.
func (r *Repository) CommitTransition(ctx context.Context, id uuid.UUID, expectedStatus string, w TransitionWrite, activity *Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE quotes SET
			status = $3::text,
			sent_at = CASE WHEN $3::text = 'sent' THEN $4::timestamptz ELSE sent_at END,
			viewed_at = CASE WHEN $3::text = 'viewed' THEN $4::timestamptz ELSE viewed_at END,
			accepted_at = CASE WHEN $3::text = 'accepted' THEN $4::timestamptz ELSE accepted_at END,
			refused_at = CASE WHEN $3::text = 'refused' THEN $4::timestamptz ELSE refused_at END,
			expired_at = CASE WHEN $3::text = 'expired' THEN $4::timestamptz ELSE expired_at END,
			external_invoice_id = COALESCE($5, external_invoice_id),
			expires_at = COALESCE($6, expires_at),
			updated_at = $4::timestamptz
		WHERE id = $1 AND status = $2`

	result, err := tx.Exec(ctx, query, id, expectedStatus, w.To, w.At, w.ExternalInvoiceID, w.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to commit quote transition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrChanged(ctx, tx, id)
	}

	if activity != nil {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CommitReopen moves a terminal quote back to draft, clearing every transition
// timestamp, the external reference and the sync ledger row.
func (r *Repository) CommitReopen(ctx context.Context, id uuid.UUID, expectedStatus string, activity *Activity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE quotes SET
			status = 'draft',
			external_invoice_id = NULL,
			sent_at = NULL, viewed_at = NULL, accepted_at = NULL, refused_at = NULL,
			expired_at = NULL, expires_at = NULL,
			updated_at = now()
		WHERE id = $1 AND status = $2`, id, expectedStatus)
	if err != nil {
		return fmt.Errorf("failed to reopen quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrChanged(ctx, tx, id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quote_sync_records WHERE quote_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear sync record: %w", err)
	}
	if activity != nil {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// effectiveStatusSQL mirrors domain.EffectiveStatus; $6 is the reference time.
const effectiveStatusSQL = `(CASE
		WHEN status IN ('sent', 'viewed') AND expires_at IS NOT NULL AND expires_at <= $6::timestamptz THEN 'expired'
		ELSE status END)`

// ListExpirable returns sent or viewed quotes whose validity ended at or before now.
func (r *Repository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM quotes
		WHERE status IN ('sent', 'viewed') AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expirable quotes: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan quote id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missingOrChanged tells apart a vanished row from a failed status guard.
func (r *Repository) missingOrChanged(ctx context.Context, q querier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check quote: %w", err)
	}
	if !exists {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	return apperr.Conflict(quoteChangedMsg)
}

// List retrieves quotes with filtering and pagination
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	sortBy, err := resolveSortBy(params.SortBy)
	if err != nil {
		return nil, err
	}
	sortOrder, err := resolveSortOrder(params.SortOrder)
	if err != nil {
		return nil, err
	}

	var searchParam interface{}
	if params.Search != "" {
		searchParam = "%" + params.Search + "%"
	}

	var statusParam interface{}
	if params.Status != nil {
		statusParam = *params.Status
	}

	var clientParam interface{}
	if params.ClientID != nil {
		clientParam = *params.ClientID
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	baseQuery := `
		FROM quotes
		WHERE ($1::uuid IS NULL OR client_id = $1)
			AND ($2::text IS NULL OR ` + effectiveStatusSQL + ` = $2)
			AND ($3::text IS NULL OR quote_number ILIKE $3 OR notes ILIKE $3)
			AND ($4::timestamptz IS NULL OR created_at >= $4)
			AND ($5::timestamptz IS NULL OR created_at < $5)
	`
	args := []interface{}{clientParam, statusParam, searchParam, params.CreatedFrom, params.CreatedTo, now}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := `SELECT ` + quoteColumns + baseQuery + `
		ORDER BY
			CASE WHEN $7 = 'quoteNumber' AND $8 = 'asc' THEN quote_number END ASC,
			CASE WHEN $7 = 'quoteNumber' AND $8 = 'desc' THEN quote_number END DESC,
			CASE WHEN $7 = 'status' AND $8 = 'asc' THEN ` + effectiveStatusSQL + ` END ASC,
			CASE WHEN $7 = 'status' AND $8 = 'desc' THEN ` + effectiveStatusSQL + ` END DESC,
			CASE WHEN $7 = 'total' AND $8 = 'asc' THEN total_cents END ASC,
			CASE WHEN $7 = 'total' AND $8 = 'desc' THEN total_cents END DESC,
			CASE WHEN $7 = 'expiresAt' AND $8 = 'asc' THEN expires_at END ASC,
			CASE WHEN $7 = 'expiresAt' AND $8 = 'desc' THEN expires_at END DESC,
			CASE WHEN $7 = 'createdAt' AND $8 = 'asc' THEN created_at END ASC,
			CASE WHEN $7 = 'createdAt' AND $8 = 'desc' THEN created_at END DESC,
			CASE WHEN $7 = 'updatedAt' AND $8 = 'asc' THEN updated_at END ASC,
			CASE WHEN $7 = 'updatedAt' AND $8 = 'desc' THEN updated_at END DESC,
			created_at DESC
		LIMIT $9 OFFSET $10`

	args = append(args, sortBy, sortOrder, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	items := make([]Quote, 0)
	for rows.Next() {
		var q Quote
		if err := scanQuote(rows, &q); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

func resolveSortBy(sortBy string) (string, error) {
	if sortBy == "" {
		return "createdAt", nil
	}
	switch sortBy {
	case "quoteNumber", "status", "total", "expiresAt", "createdAt", "updatedAt":
		return sortBy, nil
	default:
		return "", apperr.BadRequest("invalid sort field")
	}
}

func resolveSortOrder(sortOrder string) (string, error) {
	if sortOrder == "" {
		return "desc", nil
	}
	switch sortOrder {
	case "asc", "desc":
		return sortOrder, nil
	default:
		return "", apperr.BadRequest("invalid sort order")
	}
}
