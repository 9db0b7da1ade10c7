package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote_pipeline_backend/internal/appointments/transport"
	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment represents the appointment database model
type Appointment struct {
	ID          uuid.UUID  `db:"id"`
	ClientID    *uuid.UUID `db:"client_id"`
	UserID      uuid.UUID  `db:"user_id"`
	Title       string     `db:"title"`
	Description *string    `db:"description"`
	Location    *string    `db:"location"`
	StartTime   time.Time  `db:"start_time"`
	EndTime     time.Time  `db:"end_time"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// ToResponse converts the model to its API shape
func (a Appointment) ToResponse() transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		ClientID:    a.ClientID,
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Status:      transport.AppointmentStatus(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// Repository provides database operations for appointments
type Repository struct {
	pool *pgxpool.Pool
}

const (
	appointmentNotFoundMsg = "appointment not found"
	appointmentColumns     = `id, client_id, user_id, title, description, location, start_time, end_time, status, created_at, updated_at`
	foreignKeyViolation    = "23503"
)

// New creates a new appointments repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row, a *Appointment) error {
	return row.Scan(&a.ID, &a.ClientID, &a.UserID, &a.Title, &a.Description, &a.Location,
		&a.StartTime, &a.EndTime, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

// Create inserts a new appointment
func (r *Repository) Create(ctx context.Context, appt *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		appt.ID, appt.ClientID, appt.UserID, appt.Title, appt.Description, appt.Location,
		appt.StartTime, appt.EndTime, appt.Status, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Validation("client does not exist")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// GetByID retrieves an appointment by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt Appointment
	err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id), &appt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(appointmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// Update updates an existing appointment
func (r *Repository) Update(ctx context.Context, appt *Appointment) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE appointments SET
			client_id = $2,
			title = $3,
			description = $4,
			location = $5,
			start_time = $6,
			end_time = $7,
			updated_at = $8
		WHERE id = $1`,
		appt.ID, appt.ClientID, appt.Title, appt.Description, appt.Location,
		appt.StartTime, appt.EndTime, appt.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Validation("client does not exist")
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(appointmentNotFoundMsg)
	}
	return nil
}

// UpdateStatus updates the status of an appointment
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(appointmentNotFoundMsg)
	}
	return nil
}

// Delete removes an appointment
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(appointmentNotFoundMsg)
	}
	return nil
}

// ListForDateRange returns the user's non-cancelled appointments overlapping [from, to).
func (r *Repository) ListForDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE user_id = $1 AND status <> 'cancelled' AND start_time < $3 AND end_time > $2
		ORDER BY start_time`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for range: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListParams contains parameters for listing appointments
type ListParams struct {
	UserID    *uuid.UUID
	ClientID  *uuid.UUID
	Status    *string
	StartFrom *time.Time
	StartTo   *time.Time
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// ListResult contains the result of listing appointments
type ListResult struct {
	Items      []Appointment
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

var sortColumns = map[string]string{
	"title":     "title",
	"status":    "status",
	"startTime": "start_time",
	"endTime":   "end_time",
	"createdAt": "created_at",
}

// List retrieves appointments with optional filtering
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	orderBy := "start_time"
	if params.SortBy != "" {
		col, ok := sortColumns[params.SortBy]
		if !ok {
			return nil, apperr.BadRequest("invalid sort field")
		}
		orderBy = col
	}
	sortDir := "ASC"
	switch params.SortOrder {
	case "", "asc":
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
		FROM appointments
		WHERE ($1::uuid IS NULL OR user_id = $1)
		  AND ($2::uuid IS NULL OR client_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::timestamptz IS NULL OR start_time >= $4)
		  AND ($5::timestamptz IS NULL OR start_time < $5)
		  AND ($6::text IS NULL OR title ILIKE $6 OR location ILIKE $6)`
	args := []interface{}{params.UserID, params.ClientID, params.Status, params.StartFrom, params.StartTo, search}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id LIMIT $7 OFFSET $8", appointmentColumns, where, orderBy, sortDir)
	rows, err := r.pool.Query(ctx, query, append(args, params.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	items, err := collect(rows)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	items := make([]Appointment, 0)
	for rows.Next() {
		var appt Appointment
		if err := scanAppointment(rows, &appt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		items = append(items, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return items, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
