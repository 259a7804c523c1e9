package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/auth"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func invalidPayload() error {
	return apperrors.NewDomainError(apperrors.CodeValidationFailed, "invalid payload", fiber.StatusBadRequest, nil)
}

// principal returns the authenticated caller or a 401.
func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.Identity == nil {
		return nil, apperrors.NewUnauthorized("not authenticated")
	}
	return p, nil
}
