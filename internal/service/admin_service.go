package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

const (
	defaultUserPageSize = 10
	maxUserPageSize     = 100
	activeWindow        = 30 * 24 * time.Hour
)

// UserListFilters define admin listing parameters.
type UserListFilters struct {
	Page      int
	Limit     int
	Search    string
	Role      *domain.RoleKey
	SortBy    string
	SortOrder string
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users      []domain.Profile `json:"users"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

// UserStats summarises the account base.
type UserStats struct {
	TotalUsers  int `json:"total_users"`
	ActiveUsers int `json:"active_users"`
	ProUsers    int `json:"pro_users"`
	AdminUsers  int `json:"admin_users"`
}

// AdminService backs the administrator console.
type AdminService struct {
	identities   identity.Service
	profiles     repository.ProfileRepository
	logger       *zap.Logger
	listPageSize int
	now          func() time.Time
}

// AdminDependencies encapsulates repositories required for administration.
type AdminDependencies struct {
	Identities   identity.Service
	ProfileRepo  repository.ProfileRepository
	ListPageSize int
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies, logger *zap.Logger) *AdminService {
	return &AdminService{
		identities:   deps.Identities,
		profiles:     deps.ProfileRepo,
		logger:       logger,
		listPageSize: deps.ListPageSize,
		now:          time.Now,
	}
}

func requireAdmin(actor *domain.Profile) error {
	if actor == nil {
		return apperrors.NewUnauthorized("not authenticated")
	}
	if actor.RoleKey != domain.RoleAdmin {
		return apperrors.NewForbidden("access denied")
	}
	return nil
}

// ListUsers returns a page of profiles enriched with identity email and last sign-in.
func (s *AdminService) ListUsers(ctx context.Context, actor *domain.Profile, filters UserListFilters) (*UserPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultUserPageSize
	}
	if filters.Limit > maxUserPageSize {
		filters.Limit = maxUserPageSize
	}

	sortBy := repository.SortCreatedAt
	switch repository.ProfileSort(filters.SortBy) {
	case repository.SortLastName, repository.SortRoleKey:
		sortBy = repository.ProfileSort(filters.SortBy)
	}

	users, total, err := s.profiles.List(ctx, repository.ProfileFilter{
		Search:     strings.TrimSpace(filters.Search),
		Role:       filters.Role,
		SortBy:     sortBy,
		Descending: !strings.EqualFold(filters.SortOrder, "asc"),
		Limit:      filters.Limit,
		Offset:     (filters.Page - 1) * filters.Limit,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	directory, err := s.identityDirectory(ctx)
	if err != nil {
		s.logger.Warn("identity listing unavailable, users returned without email", zap.Error(err))
	}
	for i := range users {
		if ident, ok := directory[users[i].UserID]; ok {
			users[i].Email = ident.Email
			users[i].LastSignInAt = ident.LastSignInAt
		}
	}
	if users == nil {
		users = []domain.Profile{}
	}

	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       filters.Page,
		Limit:      filters.Limit,
		TotalPages: (total + filters.Limit - 1) / filters.Limit,
	}, nil
}

// Stats counts all, recently active, professional and administrator accounts.
func (s *AdminService) Stats(ctx context.Context, actor *domain.Profile) (*UserStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var stats UserStats
	var err error
	if stats.TotalUsers, err = s.profiles.CountByRole(ctx, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	if stats.ActiveUsers, err = s.profiles.CountActiveSince(ctx, s.now().Add(-activeWindow)); err != nil {
		return nil, apperrors.MapError(err)
	}
	pro, admin := domain.RolePro, domain.RoleAdmin
	if stats.ProUsers, err = s.profiles.CountByRole(ctx, &pro); err != nil {
		return nil, apperrors.MapError(err)
	}
	if stats.AdminUsers, err = s.profiles.CountByRole(ctx, &admin); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &stats, nil
}

func (s *AdminService) identityDirectory(ctx context.Context) (map[string]domain.Identity, error) {
	perPage := s.listPageSize
	if perPage <= 0 {
		perPage = 100
	}
	directory := map[string]domain.Identity{}
	for number := 1; ; number++ {
		page, err := s.identities.List(ctx, identity.Page{Number: number, PerPage: perPage})
		if err != nil {
			return directory, err
		}
		for _, ident := range page {
			directory[ident.ID] = ident
		}
		if len(page) < perPage {
			return directory, nil
		}
	}
}
