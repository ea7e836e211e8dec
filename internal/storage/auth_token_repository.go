package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// AuthToken is a remote service session cookie cached per address.
type AuthToken struct {
	Address   string     `json:"address"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// AuthTokenRepository caches remote session cookies.
type AuthTokenRepository struct {
	store *Store
}

// NewAuthTokenRepository creates a new auth token repository.
func NewAuthTokenRepository(store *Store) *AuthTokenRepository {
	return &AuthTokenRepository{store: store}
}

// Put stores or replaces the token for an address.
func (r *AuthTokenRepository) Put(ctx context.Context, token *AuthToken) error {
	query := `
		INSERT INTO auth_tokens (address, token, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at
	`
	if _, err := r.store.db.ExecContext(ctx, query, token.Address, token.Token, token.ExpiresAt); err != nil {
		return werr.Internal("auth token write failed", err)
	}
	return nil
}

// Get reads the cached token for an address. An expired token is treated
// as absent and removed.
func (r *AuthTokenRepository) Get(ctx context.Context, address string) (*AuthToken, error) {
	var (
		token     AuthToken
		expiresAt sql.NullTime
	)
	err := r.store.db.QueryRowContext(ctx,
		`SELECT address, token, expires_at FROM auth_tokens WHERE address = ?`, address,
	).Scan(&token.Address, &token.Token, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, werr.NotFound("auth token")
	}
	if err != nil {
		return nil, werr.Internal("auth token read failed", err)
	}

	if expiresAt.Valid {
		if time.Now().After(expiresAt.Time) {
			_ = r.Delete(ctx, address)
			return nil, werr.NotFound("auth token")
		}
		t := expiresAt.Time
		token.ExpiresAt = &t
	}
	return &token, nil
}

// Delete drops the cached token, forcing a fresh sign-in.
func (r *AuthTokenRepository) Delete(ctx context.Context, address string) error {
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE address = ?`, address); err != nil {
		return werr.Internal("auth token delete failed", err)
	}
	return nil
}
