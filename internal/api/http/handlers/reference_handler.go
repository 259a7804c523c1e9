package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// ReferenceHandler serves the read-only lookup data.
type ReferenceHandler struct {
	reference *service.ReferenceService
}

// NewReferenceHandler constructs handler.
func NewReferenceHandler(reference *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{reference: reference}
}

// ProData handles GET /api/pro-data. With ?sector= only that sector's categories are returned.
func (h *ReferenceHandler) ProData(c *fiber.Ctx) error {
	if sector := c.Query("sector"); sector != "" {
		categories, err := h.reference.Categories(c.UserContext(), sector)
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, fiber.Map{"categories": categories})
	}

	sectors, err := h.reference.Sectors(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, fiber.Map{"sectors": sectors})
}

// Departments handles GET /api/departments.
func (h *ReferenceHandler) Departments(c *fiber.Ctx) error {
	catalog, err := h.reference.Departments(c.UserContext())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, catalog)
}
