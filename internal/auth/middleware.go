package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

const principalKey = "auth_principal"

// Authenticator resolves an access token to the identity that owns it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error)
}

// Principal represents the authenticated caller.
type Principal struct {
	Identity    *domain.Identity
	Profile     *domain.Profile
	AccessToken string
}

// Role returns the caller's profile role, or an empty role when no profile exists yet.
func (p *Principal) Role() domain.RoleKey {
	if p == nil || p.Profile == nil {
		return ""
	}
	return p.Profile.RoleKey
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	authenticator Authenticator
	profiles      repository.ProfileRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authenticator Authenticator, profiles repository.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator, profiles: profiles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c)
	if err != nil {
		return err
	}

	identity, err := m.authenticator.Authenticate(c.UserContext(), token)
	if err != nil {
		return apperrors.NewUnauthorized("not authenticated")
	}

	principal := &Principal{Identity: identity, AccessToken: token}

	profile, err := m.profiles.GetByUserID(c.UserContext(), identity.ID)
	switch {
	case err == nil:
		principal.Profile = profile
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("not authenticated")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("not authenticated")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
