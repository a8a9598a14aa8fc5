package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
)

// TokenStore implements token.Store on Postgres. One row per subject; Set is
// an upsert, so the stored pair is always the most recently issued one.
type TokenStore struct{ db *DB }

func NewTokenStore(db *DB) *TokenStore { return &TokenStore{db: db} }

func (s *TokenStore) Get(ctx context.Context, subject string) (*entity.AuthTokens, error) {
	const q = `
SELECT access_token, refresh_token, expires_in, expires_at
FROM auth_tokens WHERE subject=$1`
	row := s.db.Pool.QueryRow(ctx, q, subject)

	var tokens entity.AuthTokens
	if err := row.Scan(&tokens.AccessToken, &tokens.RefreshToken, &tokens.ExpiresIn, &tokens.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	return &tokens, nil
}

func (s *TokenStore) Set(ctx context.Context, subject string, tokens *entity.AuthTokens) error {
	const q = `
INSERT INTO auth_tokens (subject, access_token, refresh_token, expires_in, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (subject) DO UPDATE
SET access_token=EXCLUDED.access_token,
    refresh_token=EXCLUDED.refresh_token,
    expires_in=EXCLUDED.expires_in,
    expires_at=EXCLUDED.expires_at`
	_, err := s.db.Pool.Exec(ctx, q, subject, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn, tokens.ExpiresAt)

	return err
}
