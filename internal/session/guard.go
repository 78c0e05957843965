// Package session resolves bearer tokens to active operator accounts.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
)

// TokenVerifier returns the subject of a valid token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserFinder loads accounts by login name.
type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Guard is the single choke point between a bearer token and a user.
type Guard struct {
	tokens TokenVerifier
	users  UserFinder
}

// NewGuard constructs a Guard.
func NewGuard(tokens TokenVerifier, users UserFinder) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Resolve verifies token and returns the active user it names.
func (g *Guard) Resolve(ctx context.Context, token string) (models.User, error) {
	if g == nil || g.tokens == nil || g.users == nil {
		return models.User{}, fmt.Errorf("session: guard not configured: %w", errs.ErrUnauthenticated)
	}
	if token == "" {
		return models.User{}, fmt.Errorf("missing bearer token: %w", errs.ErrUnauthenticated)
	}
	subject, errVerify := g.tokens.Verify(token)
	if errVerify != nil {
		return models.User{}, errVerify
	}
	user, errFind := g.users.FindUserByUsername(ctx, subject)
	if errFind != nil {
		if errors.Is(errFind, errs.ErrNotFound) {
			return models.User{}, fmt.Errorf("token subject no longer exists: %w", errs.ErrUnauthenticated)
		}
		return models.User{}, errFind
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("inactive user: %w", errs.ErrForbidden)
	}
	return user, nil
}
