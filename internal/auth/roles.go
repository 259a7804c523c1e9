package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// RequireRole ensures the caller's profile holds one of the allowed roles.
func RequireRole(allowed ...domain.RoleKey) fiber.Handler {
	allowedSet := make(map[domain.RoleKey]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("access denied")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}
		return c.Next()
	}
}
