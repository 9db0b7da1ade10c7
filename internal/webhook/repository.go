// Package webhook captures web-form submissions from external sites as new
// prospect clients. Callers authenticate with API keys managed by admins.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const apiKeyNotFoundMsg = "webhook API key not found"

// APIKey represents a webhook API key stored in the database.
type APIKey struct {
	ID             uuid.UUID
	Name           string
	KeyHash        string
	KeyPrefix      string
	AllowedDomains []string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository provides data access for webhook API keys.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey creates a new random API key and returns the plaintext key and its hash.
// The plaintext key is returned only once; only the hash is stored.
func GenerateAPIKey() (plaintext string, hash string, prefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", err
	}
	plaintext = "whk_" + hex.EncodeToString(buf)
	return plaintext, HashKey(plaintext), plaintext[:12], nil
}

// HashKey hashes a plaintext API key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

const apiKeyColumns = `id, name, key_hash, key_prefix, allowed_domains, is_active, created_at, updated_at`

func scanAPIKey(row pgx.Row, key *APIKey) error {
	return row.Scan(
		&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&key.AllowedDomains, &key.IsActive, &key.CreatedAt, &key.UpdatedAt,
	)
}

// Create creates a new API key record.
func (r *Repository) Create(ctx context.Context, name, keyHash, keyPrefix string, allowedDomains []string) (APIKey, error) {
	var key APIKey
	err := scanAPIKey(r.pool.QueryRow(ctx, `
		INSERT INTO webhook_api_keys (name, key_hash, key_prefix, allowed_domains)
		VALUES ($1, $2, $3, $4)
		RETURNING `+apiKeyColumns,
		name, keyHash, keyPrefix, allowedDomains), &key)
	if err != nil {
		return APIKey{}, fmt.Errorf("failed to create webhook API key: %w", err)
	}
	return key, nil
}

// GetByHash retrieves an active API key by its hash.
func (r *Repository) GetByHash(ctx context.Context, keyHash string) (APIKey, error) {
	var key APIKey
	err := scanAPIKey(r.pool.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM webhook_api_keys
		WHERE key_hash = $1 AND is_active = true`, keyHash), &key)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, apperr.NotFound(apiKeyNotFoundMsg)
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("failed to get webhook API key: %w", err)
	}
	return key, nil
}

// List returns all API keys, newest first.
func (r *Repository) List(ctx context.Context) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM webhook_api_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook API keys: %w", err)
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		if err := scanAPIKey(rows, &key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Revoke deactivates an API key.
func (r *Repository) Revoke(ctx context.Context, keyID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_api_keys SET is_active = false, updated_at = now()
		WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("failed to revoke webhook API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apiKeyNotFoundMsg)
	}
	return nil
}

// FindRecentDuplicateClient returns a client created within the window that
// shares the email or phone, so double-submitted forms create one client.
func (r *Repository) FindRecentDuplicateClient(ctx context.Context, email, phone string, within time.Duration) (*uuid.UUID, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM clients
		WHERE created_at > now() - make_interval(secs => $3)
		  AND (($1 <> '' AND lower(email) = lower($1)) OR ($2 <> '' AND phone = $2))
		ORDER BY created_at DESC
		LIMIT 1`, email, phone, within.Seconds()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate client: %w", err)
	}
	return &id, nil
}
