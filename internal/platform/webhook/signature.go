package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// SignatureHeader carries the HMAC-SHA256 digest of the raw request body,
// either as "sha256=<hex>" or as bare hex.
const SignatureHeader = "X-Webhook-Signature"

const signaturePrefix = "sha256="

// Sign returns the header value for body signed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// ParseSignatureHeader decodes the digest from a signature header. It reports
// false for an empty header or malformed hex.
func ParseSignatureHeader(h string) ([]byte, bool) {
	h = strings.TrimSpace(h)
	if len(h) >= len(signaturePrefix) && strings.EqualFold(h[:len(signaturePrefix)], signaturePrefix) {
		h = h[len(signaturePrefix):]
	}
	if h == "" {
		return nil, false
	}
	sig, err := hex.DecodeString(h)
	if err != nil || len(sig) != sha256.Size {
		return nil, false
	}
	return sig, true
}

// SecretSource yields the signing secret currently in force.
type SecretSource interface {
	Resolve(ctx context.Context) (string, error)
}

// Verifier authenticates inbound bodies. The secret is resolved on every call
// so a rotation applies to the next request.
type Verifier struct {
	secrets SecretSource
	logger  zerolog.Logger
}

func NewVerifier(secrets SecretSource, logger zerolog.Logger) *Verifier {
	return &Verifier{secrets: secrets, logger: logger}
}

// Verify reports whether header is a valid signature of rawBody. It fails
// closed when no secret can be resolved.
func (v *Verifier) Verify(ctx context.Context, rawBody []byte, header string) bool {
	got, ok := ParseSignatureHeader(header)
	if !ok {
		return false
	}

	secret, err := v.secrets.Resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSecret) {
			v.logger.Error().Msg("no webhook signing secret configured, rejecting request")
		} else {
			v.logger.Error().Err(err).Msg("failed to resolve webhook signing secret")
		}
		return false
	}
	if secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), got)
}
