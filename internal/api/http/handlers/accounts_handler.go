package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// AccountsHandler exposes the self-service provisioning endpoints.
type AccountsHandler struct {
	provisioning *service.ProvisioningService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(provisioning *service.ProvisioningService) *AccountsHandler {
	return &AccountsHandler{provisioning: provisioning}
}

// Register handles POST /api/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	summary, err := h.provisioning.Register(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, summary)
}

// CheckEmail handles POST /api/check-email.
func (h *AccountsHandler) CheckEmail(c *fiber.Ctx) error {
	var req dto.CheckEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	availability, err := h.provisioning.CheckEmailAvailability(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, availability)
}

// BecomePro handles POST /api/become-pro.
func (h *AccountsHandler) BecomePro(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.BecomeProRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	pro, err := h.provisioning.PromoteToProfessional(c.UserContext(), caller.Identity.ID, req.ToInput())
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, pro)
}
