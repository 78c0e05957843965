package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/synapseiq/secadmin/internal/config"
	"github.com/synapseiq/secadmin/internal/errs"
)

// tokenIssuer is written to the iss claim and required on verification.
const tokenIssuer = "secadmin"

// ErrMissingSigningSecret is returned when the token issuer is built without a secret.
var ErrMissingSigningSecret = errors.New("security: missing jwt signing secret")

// TokenIssuer signs and verifies short-lived HS256 bearer tokens.
// It is immutable after construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customizes a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer builds a TokenIssuer from the JWT configuration.
func NewTokenIssuer(cfg config.JWTConfig, opts ...IssuerOption) (*TokenIssuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrMissingSigningSecret
	}
	ttl := cfg.Expiry
	if ttl <= 0 {
		ttl = config.DefaultJWTExpiry
	}
	issuer := &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for subject and returns it with its expiry.
func (t *TokenIssuer) Issue(subject string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("security: issue token: %w", errs.ErrValidation)
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("security: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token and returns its subject.
// Every failure is reported as errs.ErrUnauthenticated.
func (t *TokenIssuer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("empty token: %w", errs.ErrUnauthenticated)
	}
	var claims jwt.RegisteredClaims
	parsed, errParse := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if errParse != nil {
		return "", fmt.Errorf("invalid token: %v: %w", errParse, errs.ErrUnauthenticated)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errs.ErrUnauthenticated)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("token without subject: %w", errs.ErrUnauthenticated)
	}
	return subject, nil
}
