package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	"github.com/spec-kit/marketplace-accounts/internal/validation"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// ProfileUpdateInput is a partial update of the caller's contact fields. Role is not editable.
type ProfileUpdateInput struct {
	FirstName      *string `json:"first_name" validate:"omitempty,min=1,max=120"`
	LastName       *string `json:"last_name" validate:"omitempty,min=1,max=120"`
	PhoneNumber    *string `json:"phone_number" validate:"omitempty,max=32"`
	Address        *string `json:"address" validate:"omitempty,max=255"`
	City           *string `json:"city" validate:"omitempty,max=120"`
	PostalCode     *string `json:"postal_code" validate:"omitempty,max=10"`
	DepartmentCode *string `json:"department_code" validate:"omitempty,min=2,max=3"`
	AvatarURL      *string `json:"avatar_url" validate:"omitempty,url"`
}

// ProfileService serves the caller's own profile records.
type ProfileService struct {
	profiles  repository.ProfileRepository
	pros      repository.ProProfileRepository
	validator *validation.Validator
	logger    *zap.Logger
}

// NewProfileService builds the service.
func NewProfileService(profiles repository.ProfileRepository, pros repository.ProProfileRepository, v *validation.Validator, logger *zap.Logger) *ProfileService {
	if v == nil {
		v = validation.New()
	}
	return &ProfileService{profiles: profiles, pros: pros, validator: v, logger: logger}
}

// Get returns the profile of userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("profile")
		}
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// Update applies a partial update. Names cannot be blanked.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdateInput) (*domain.Profile, error) {
	patch := domain.ProfilePatch{
		FirstName:      trimmedPtr(in.FirstName),
		LastName:       trimmedPtr(in.LastName),
		PhoneNumber:    trimmedPtr(in.PhoneNumber),
		Address:        trimmedPtr(in.Address),
		City:           trimmedPtr(in.City),
		PostalCode:     trimmedPtr(in.PostalCode),
		DepartmentCode: trimmedPtr(in.DepartmentCode),
		AvatarURL:      trimmedPtr(in.AvatarURL),
	}
	in.FirstName, in.LastName = patch.FirstName, patch.LastName
	if violations := s.validator.Struct(in); len(violations) > 0 {
		return nil, apperrors.NewValidationError("invalid data", violations)
	}
	if patch.FirstName != nil && *patch.FirstName == "" {
		return nil, apperrors.NewValidationError("invalid data", []apperrors.FieldViolation{{Field: "first_name", Rule: "required", Message: "first_name is required"}})
	}
	if patch.LastName != nil && *patch.LastName == "" {
		return nil, apperrors.NewValidationError("invalid data", []apperrors.FieldViolation{{Field: "last_name", Rule: "required", Message: "last_name is required"}})
	}
	if patch.Empty() {
		return s.Get(ctx, userID)
	}

	profile, err := s.profiles.UpdateFields(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("profile")
		}
		s.logger.Error("profile update failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// ProProfile returns the professional record of userID.
func (s *ProfileService) ProProfile(ctx context.Context, userID string) (*domain.ProProfile, error) {
	pro, err := s.pros.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("professional profile")
		}
		return nil, apperrors.MapError(err)
	}
	return pro, nil
}

// trimmedPtr trims value but keeps an empty result, so a field can be cleared.
func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
