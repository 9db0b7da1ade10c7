package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Activity is one entry in a quote's audit trail.
type Activity struct {
	ID        uuid.UUID      `db:"id"`
	QuoteID   uuid.UUID      `db:"quote_id"`
	ActorID   *uuid.UUID     `db:"actor_id"`
	Kind      string         `db:"kind"`
	Message   string         `db:"message"`
	Metadata  map[string]any `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertActivity(ctx context.Context, db execer, a *Activity) error {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO quote_activities (id, quote_id, actor_id, kind, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.QuoteID, a.ActorID, a.Kind, a.Message, raw, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert quote activity: %w", err)
	}
	return nil
}

// RecordActivity appends an entry to the quote's audit trail.
func (r *Repository) RecordActivity(ctx context.Context, a *Activity) error {
	return insertActivity(ctx, r.pool, a)
}

// ListActivities returns a quote's audit trail, newest first.
func (r *Repository) ListActivities(ctx context.Context, quoteID uuid.UUID) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, actor_id, kind, message, metadata, created_at
		FROM quote_activities WHERE quote_id = $1
		ORDER BY created_at DESC`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quote activities: %w", err)
	}
	defer rows.Close()

	out := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		var raw []byte
		if err := rows.Scan(&a.ID, &a.QuoteID, &a.ActorID, &a.Kind, &a.Message, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote activity: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
