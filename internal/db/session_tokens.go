package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/easy-apply-agent/internal/login"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// TokenStore keeps session tokens in the session_tokens table.
type TokenStore struct {
	db *DB
}

var _ login.TokenStore = (*TokenStore)(nil)

// Tokens returns the database-backed session token store.
func (db *DB) Tokens() *TokenStore {
	return &TokenStore{db: db}
}

// Load returns the caller's stored session token, or nil when none is stored.
func (s *TokenStore) Load(ctx context.Context, caller string) (*types.SessionToken, error) {
	var raw []byte
	err := s.db.pool.QueryRow(ctx,
		`SELECT token FROM session_tokens WHERE caller = $1`,
		caller,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}
	return login.DecodeToken(raw)
}

// Save stores the caller's session token, replacing any previous one.
func (s *TokenStore) Save(ctx context.Context, caller string, token *types.SessionToken) error {
	raw, err := login.EncodeToken(token)
	if err != nil {
		return err
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO session_tokens (caller, token, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (caller) DO UPDATE SET token = $2, updated_at = NOW()`,
		caller, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// Delete removes the caller's session token. Deleting a missing token is not an error.
func (s *TokenStore) Delete(ctx context.Context, caller string) error {
	if _, err := s.db.pool.Exec(ctx, `DELETE FROM session_tokens WHERE caller = $1`, caller); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}
