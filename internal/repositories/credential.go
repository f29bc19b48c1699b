package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

type credentialQueries struct {
	get               string
	put               string
	updateAccessToken string
	delete            string
}

var credentialSQL = map[Dialect]credentialQueries{
	DialectSQLite: {
		get: `
			SELECT user_id, provider, access_token, refresh_token, expires_at, last_refreshed_at, created_at, updated_at
			FROM credentials
			WHERE user_id = ? AND provider = ?`,
		put: `
			INSERT INTO credentials (user_id, provider, access_token, refresh_token, expires_at, last_refreshed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, provider) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				expires_at = excluded.expires_at,
				last_refreshed_at = excluded.last_refreshed_at,
				updated_at = excluded.updated_at`,
		updateAccessToken: `
			UPDATE credentials
			SET access_token = ?, expires_at = ?, last_refreshed_at = ?, updated_at = ?
			WHERE user_id = ? AND provider = ? AND refresh_token = ?`,
		delete: `DELETE FROM credentials WHERE user_id = ? AND provider = ?`,
	},
	DialectPostgres: {
		get: `
			SELECT user_id, provider, access_token, refresh_token, expires_at, last_refreshed_at, created_at, updated_at
			FROM credentials
			WHERE user_id = $1 AND provider = $2`,
		put: `
			INSERT INTO credentials (user_id, provider, access_token, refresh_token, expires_at, last_refreshed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, provider) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				expires_at = excluded.expires_at,
				last_refreshed_at = excluded.last_refreshed_at,
				updated_at = excluded.updated_at`,
		updateAccessToken: `
			UPDATE credentials
			SET access_token = $1, expires_at = $2, last_refreshed_at = $3, updated_at = $4
			WHERE user_id = $5 AND provider = $6 AND refresh_token = $7`,
		delete: `DELETE FROM credentials WHERE user_id = $1 AND provider = $2`,
	},
}

// CredentialRepository stores one [models.Credential] per (user, provider) pair.
//
// Put is a full replacement used when linking. Refreshes go through UpdateAccessToken, which only
// touches the row while it still holds the refresh token the refresh was made with.
type CredentialRepository struct {
	db  *sql.DB
	q   credentialQueries
	now func() time.Time
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB, dialect Dialect) *CredentialRepository {
	q, ok := credentialSQL[dialect]
	if !ok {
		q = credentialSQL[DialectSQLite]
	}
	return &CredentialRepository{db: db, q: q, now: time.Now}
}

// Get returns the credential for the pair or [shared.ErrNoCredential].
func (r *CredentialRepository) Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error) {
	var (
		c                                                models.Credential
		providerName                                     string
		expiresAt, lastRefreshedAt, createdAt, updatedAt int64
	)

	err := r.db.QueryRowContext(ctx, r.q.get, userID, string(provider)).Scan(
		&c.UserID,
		&providerName,
		&c.AccessToken,
		&c.RefreshToken,
		&expiresAt,
		&lastRefreshedAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoCredential, models.CredentialKey(userID, provider))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	c.Provider = models.Provider(providerName)
	c.ExpiresAt = fromNanos(expiresAt)
	c.LastRefreshedAt = fromNanos(lastRefreshedAt)
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	return &c, nil
}

// Put replaces the stored credential for the pair, creating it when absent.
//
// CreatedAt is kept from the existing row; UpdatedAt is set to now.
func (r *CredentialRepository) Put(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	now := r.now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.q.put,
		cred.UserID,
		string(cred.Provider),
		cred.AccessToken,
		cred.RefreshToken,
		toNanos(cred.ExpiresAt),
		toNanos(cred.LastRefreshedAt),
		toNanos(cred.CreatedAt),
		toNanos(cred.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// UpdateAccessToken stores a refreshed access token for cred's pair, provided the row still holds
// cred.RefreshToken. A relinked or revoked credential is left alone and
// [shared.ErrCredentialChanged] is returned.
func (r *CredentialRepository) UpdateAccessToken(ctx context.Context, cred *models.Credential) error {
	now := r.now().UTC()

	result, err := r.db.ExecContext(ctx, r.q.updateAccessToken,
		cred.AccessToken,
		toNanos(cred.ExpiresAt),
		toNanos(cred.LastRefreshedAt),
		toNanos(now),
		cred.UserID,
		string(cred.Provider),
		cred.RefreshToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrCredentialChanged, cred.Key())
	}

	cred.UpdatedAt = now
	return nil
}

// Delete revokes the stored credential. Deleting a missing credential is not an error.
func (r *CredentialRepository) Delete(ctx context.Context, userID string, provider models.Provider) error {
	if _, err := r.db.ExecContext(ctx, r.q.delete, userID, string(provider)); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
