package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/synapseiq/secadmin/internal/config"
	"github.com/synapseiq/secadmin/internal/errs"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Expiry: 30 * time.Minute}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	token, expiresAt, err := issuer.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(clock.now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}
	subject, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "admin" {
		t.Fatalf("expected subject admin, got %q", subject)
	}
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = issuedAt.Add(30*time.Minute - time.Second)
	if _, errVerify := issuer.Verify(token); errVerify != nil {
		t.Fatalf("expected token to be valid just before expiry, got %v", errVerify)
	}

	clock.now = issuedAt.Add(30*time.Minute + time.Second)
	_, errVerify := issuer.Verify(token)
	if !errors.Is(errVerify, errs.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", errVerify)
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	other, err := NewTokenIssuer(config.JWTConfig{Secret: "other-secret"}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	token, _, err := other.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, errVerify := issuer.Verify(token); !errors.Is(errVerify, errs.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", errVerify)
	}
}

func TestTokenIssuer_RejectsMalformedAndForeignTokens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "secadmin",
		Subject: "admin",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "secadmin",
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    "secadmin",
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not.a.token",
		"no expiry":  noExpiry,
		"no subject": noSubject,
		"wrong alg":  wrongAlg,
	} {
		if _, errVerify := issuer.Verify(token); !errors.Is(errVerify, errs.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, errVerify)
		}
	}
}

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(config.JWTConfig{Secret: "  "}); !errors.Is(err, ErrMissingSigningSecret) {
		t.Fatalf("expected ErrMissingSigningSecret, got %v", err)
	}
	issuer, err := NewTokenIssuer(config.JWTConfig{Secret: "s"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if issuer.TTL() != config.DefaultJWTExpiry {
		t.Fatalf("expected default ttl, got %s", issuer.TTL())
	}
}
