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

const (
	clientNotFoundMsg = "client not found"
	stageChangedMsg   = "client stage was changed by someone else"
)

// Client represents the client database model
type Client struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	Email         *string   `db:"email"`
	Phone         *string   `db:"phone"`
	Company       *string   `db:"company"`
	PipelineStage string    `db:"pipeline_stage"`
	Notes         *string   `db:"notes"`
	LeadSource    *string   `db:"lead_source"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ListParams contains parameters for listing clients
type ListParams struct {
	Stage     *string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// ListResult contains the result of listing clients
type ListResult struct {
	Items      []Client
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Repository provides database operations for clients
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new clients repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, email, phone, company, pipeline_stage, notes, lead_source, created_at, updated_at`

func scanClient(row pgx.Row, c *Client) error {
	return row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.PipelineStage,
		&c.Notes, &c.LeadSource, &c.CreatedAt, &c.UpdatedAt)
}

// Create inserts a new client
func (r *Repository) Create(ctx context.Context, c *Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.PipelineStage, c.Notes, c.LeadSource, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	var c Client
	err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(clientNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

// Update writes the editable contact fields of a client
func (r *Repository) Update(ctx context.Context, c *Client) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE clients SET
			name = $2, email = $3, phone = $4, company = $5, notes = $6, lead_source = $7, updated_at = $8
		WHERE id = $1`,
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Notes, c.LeadSource, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMsg)
	}
	return nil
}

// UpdateStage moves a client to stage if it is still at expected.
func (r *Repository) UpdateStage(ctx context.Context, id uuid.UUID, expected, stage string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE clients SET pipeline_stage = $3, updated_at = now()
		WHERE id = $1 AND pipeline_stage = $2`, id, expected, stage)
	if err != nil {
		return fmt.Errorf("failed to update client stage: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check client: %w", err)
	}
	if !exists {
		return apperr.NotFound(clientNotFoundMsg)
	}
	return apperr.Conflict(stageChangedMsg)
}

// Delete removes a client. Appointments keep their row with the link cleared;
// quotes block the delete through their foreign key.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Conflict("client still has quotes")
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMsg)
	}
	return nil
}

var sortColumns = map[string]string{
	"name":      "name",
	"company":   "company",
	"stage":     "pipeline_stage",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// List retrieves clients with optional filtering
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	orderBy := "created_at"
	if params.SortBy != "" {
		col, ok := sortColumns[params.SortBy]
		if !ok {
			return nil, apperr.BadRequest("invalid sort field")
		}
		orderBy = col
	}
	sortDir := "DESC"
	switch params.SortOrder {
	case "":
	case "asc":
		sortDir = "ASC"
	case "desc":
		sortDir = "DESC"
	default:
		return nil, apperr.BadRequest("invalid sort order")
	}

	var search *string
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		search = &pattern
	}

	where := `
		FROM clients
		WHERE ($1::text IS NULL OR pipeline_stage = $1)
		  AND ($2::text IS NULL OR name ILIKE $2 OR email ILIKE $2 OR company ILIKE $2 OR phone ILIKE $2)`

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+where, params.Stage, search).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id LIMIT $3 OFFSET $4", clientColumns, where, orderBy, sortDir)
	rows, err := r.pool.Query(ctx, query, params.Stage, search, params.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := scanClient(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}
