package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/db"
)

// ErrNoSecret is returned when neither the config row nor the environment
// provides a signing secret.
var ErrNoSecret = errors.New("webhook: no signing secret configured")

// SecretStore reads and writes the persisted signing secret. An absent row is
// reported as "" with a nil error.
type SecretStore interface {
	SigningSecret(ctx context.Context) (string, error)
	SetSigningSecret(ctx context.Context, secret string) error
}

// PGSecretStore keeps the secret in the single-row webhook_config table. The
// signing_secret column holds the plaintext HMAC key; it is used as-is and
// must never be hashed.
type PGSecretStore struct {
	db db.Querier
}

func NewSecretStore(q db.Querier) *PGSecretStore {
	return &PGSecretStore{db: q}
}

func (s *PGSecretStore) SigningSecret(ctx context.Context) (string, error) {
	var secret string
	err := s.db.QueryRow(ctx, `SELECT signing_secret FROM webhook_config WHERE id = 1`).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read webhook signing secret: %w", err)
	}
	return secret, nil
}

func (s *PGSecretStore) SetSigningSecret(ctx context.Context, secret string) error {
	if secret == "" {
		return errors.New("signing secret must not be empty")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_config (id, signing_secret, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET signing_secret = EXCLUDED.signing_secret, updated_at = NOW()`,
		secret,
	)
	if err != nil {
		return fmt.Errorf("store webhook signing secret: %w", err)
	}
	return nil
}

// SecretResolver picks the signing secret: the stored row first, then the
// environment fallback. Nothing is cached.
type SecretResolver struct {
	store    SecretStore
	fallback string
	logger   zerolog.Logger
}

// NewSecretResolver builds a resolver. store may be nil, in which case only
// the fallback is consulted.
func NewSecretResolver(store SecretStore, fallback string, logger zerolog.Logger) *SecretResolver {
	return &SecretResolver{store: store, fallback: fallback, logger: logger}
}

func (r *SecretResolver) Resolve(ctx context.Context) (string, error) {
	if r.store != nil {
		secret, err := r.store.SigningSecret(ctx)
		switch {
		case err != nil:
			r.logger.Warn().Err(err).Msg("webhook secret store unavailable, using environment fallback")
		case secret != "":
			return secret, nil
		}
	}
	if r.fallback != "" {
		return r.fallback, nil
	}
	return "", ErrNoSecret
}
