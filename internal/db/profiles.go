package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// ErrProfileNotFound is returned when a caller has no stored profile.
var ErrProfileNotFound = errors.New("candidate profile not found")

// Sealer encrypts and decrypts platform secrets.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// SaveProfile stores the caller's profile and platform login. The secret is
// sealed before it reaches the database.
func (db *DB) SaveProfile(ctx context.Context, caller string, profile *types.CandidateProfile, identity, secret string, sealer Sealer) error {
	doc, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	sealed, err := sealer.Seal([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to seal secret: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO candidate_profiles (caller, profile, identity, sealed_secret)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (caller) DO UPDATE SET profile = $2, identity = $3, sealed_secret = $4, updated_at = NOW()`,
		caller, doc, identity, sealed,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// LoadProfile returns the caller's profile and unsealed credentials.
func (db *DB) LoadProfile(ctx context.Context, caller string, sealer Sealer) (*types.CandidateProfile, *types.Credentials, error) {
	var (
		doc      []byte
		identity string
		sealed   []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT profile, identity, sealed_secret FROM candidate_profiles WHERE caller = $1`,
		caller,
	).Scan(&doc, &identity, &sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrProfileNotFound
		}
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal(doc, &profile); err != nil {
		return nil, nil, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	secret, err := sealer.Open(sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to unseal credentials: %w", err)
	}
	creds := types.NewCredentials(identity, string(secret))
	for i := range secret {
		secret[i] = 0
	}
	return &profile, creds, nil
}
