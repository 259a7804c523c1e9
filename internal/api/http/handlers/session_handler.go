package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// SessionHandler exposes sign-in and sign-out.
type SessionHandler struct {
	auth *service.AuthService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(authService *service.AuthService) *SessionHandler {
	return &SessionHandler{auth: authService}
}

// SignIn handles POST /api/auth/sign-in.
func (h *SessionHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	result, err := h.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, result)
}

// SignOut handles POST /api/auth/sign-out.
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c)
	if err != nil {
		return err
	}
	if err := h.auth.SignOut(c.UserContext(), token); err != nil {
		return err
	}
	return success(c, http.StatusOK, fiber.Map{"signed_out": true})
}
