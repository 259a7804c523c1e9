package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	profile, err := h.profiles.Get(c.UserContext(), caller.Identity.ID)
	if err != nil {
		return err
	}
	profile.Email = caller.Identity.Email
	profile.LastSignInAt = caller.Identity.LastSignInAt
	return success(c, http.StatusOK, profile)
}

// Update handles PATCH /api/profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req service.ProfileUpdateInput
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	profile, err := h.profiles.Update(c.UserContext(), caller.Identity.ID, req)
	if err != nil {
		return err
	}
	profile.Email = caller.Identity.Email
	return success(c, http.StatusOK, profile)
}

// ProProfile handles GET /api/pro-profile.
func (h *ProfileHandler) ProProfile(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	pro, err := h.profiles.ProProfile(c.UserContext(), caller.Identity.ID)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, pro)
}
