package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// SignInResult bundles the issued session with the caller's profile.
type SignInResult struct {
	Session *domain.Session `json:"session"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

// AuthService coordinates sign-in and sign-out against the identity service.
type AuthService struct {
	identities identity.Service
	profiles   repository.ProfileRepository
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Identities  identity.Service
	ProfileRepo repository.ProfileRepository
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies, logger *zap.Logger) *AuthService {
	return &AuthService{
		identities: deps.Identities,
		profiles:   deps.ProfileRepo,
		logger:     logger,
	}
}

// SignIn authenticates an email/password pair and returns the session and profile.
// An identity without a profile can still sign in; Profile is then nil.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("invalid data", []apperrors.FieldViolation{{
			Field:   "email",
			Rule:    "required",
			Message: "email and password are required",
		}})
	}

	session, err := s.identities.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		s.logger.Error("sign-in failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	result := &SignInResult{Session: session}
	if session.Identity == nil {
		return result, nil
	}
	profile, err := s.profiles.GetByUserID(ctx, session.Identity.ID)
	switch {
	case err == nil:
		profile.Email = session.Identity.Email
		profile.LastSignInAt = session.Identity.LastSignInAt
		result.Profile = profile
	case errors.Is(err, pgx.ErrNoRows):
		s.logger.Warn("signed-in identity has no profile", zap.String("user_id", session.Identity.ID))
	default:
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// SignOut revokes the given access token.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if err := s.identities.SignOut(ctx, accessToken); err != nil {
		if errors.Is(err, identity.ErrInvalidSession) {
			return apperrors.NewUnauthorized("not authenticated")
		}
		s.logger.Error("sign-out failed", zap.Error(err))
		return apperrors.NewInternalError(err)
	}
	return nil
}
