package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/service"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// AdminHandler exposes the administrator endpoints.
type AdminHandler struct {
	provisioning *service.ProvisioningService
	admin        *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(provisioning *service.ProvisioningService, admin *service.AdminService) *AdminHandler {
	return &AdminHandler{provisioning: provisioning, admin: admin}
}

// CreateAdmin handles POST /api/admin/create-admin.
func (h *AdminHandler) CreateAdmin(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	summary, err := h.provisioning.CreateAdmin(c.UserContext(), caller.Profile, req.ToInput())
	if err != nil {
		return err
	}
	return success(c, http.StatusCreated, summary)
}

// UpdateUserRole handles POST /api/admin/user-role.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.RoleChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	result, err := h.provisioning.ChangeUserRole(c.UserContext(), caller.Profile, req.ToInput())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, result)
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var query dto.UserListQuery
	if err := c.QueryParser(&query); err != nil {
		return invalidPayload()
	}

	filters := service.UserListFilters{
		Page:      query.Page,
		Limit:     query.Limit,
		Search:    query.Search,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if role := strings.TrimSpace(query.Role); role != "" && role != "all" {
		key := domain.RoleKey(role)
		if !key.Valid() {
			return apperrors.NewValidationError("invalid data", []apperrors.FieldViolation{{
				Field: "role", Rule: "oneof", Message: "role must be one of user pro admin",
			}})
		}
		filters.Role = &key
	}

	page, err := h.admin.ListUsers(c.UserContext(), caller.Profile, filters)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, page)
}

// UserStats handles GET /api/admin/user-stats.
func (h *AdminHandler) UserStats(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.admin.Stats(c.UserContext(), caller.Profile)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, stats)
}
