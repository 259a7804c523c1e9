package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	"github.com/spec-kit/marketplace-accounts/internal/validation"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// Provisioning variants, used as metric labels and event payload values.
const (
	VariantRegisterUser = "register_user"
	VariantRegisterPro  = "register_pro"
	VariantPromote      = "promote_pro"
	VariantCreateAdmin  = "create_admin"
	VariantRoleChange   = "role_change"
)

// Saga step names.
const (
	stepCreateIdentity   = "create_identity"
	stepInsertProfile    = "insert_profile"
	stepInsertProProfile = "insert_pro_profile"
	stepPromoteRole      = "promote_role"
)

// ProvisioningMetrics receives saga outcomes.
type ProvisioningMetrics interface {
	SagaOutcome(variant, outcome string)
	Compensation(step string, ok bool)
}

type noopProvisioningMetrics struct{}

func (noopProvisioningMetrics) SagaOutcome(string, string) {}
func (noopProvisioningMetrics) Compensation(string, bool)  {}

// RegistrationInput is the composed payload submitted by the signup wizard.
type RegistrationInput struct {
	AccountType     domain.AccountType `json:"account_type" validate:"required,oneof=user pro"`
	Email           string             `json:"email" validate:"required,email"`
	Password        string             `json:"password" validate:"required,min=8"`
	FirstName       string             `json:"first_name" validate:"required,max=120"`
	LastName        string             `json:"last_name" validate:"required,max=120"`
	PhoneNumber     *string            `json:"phone_number"`
	DepartmentCode  *string            `json:"department_code" validate:"omitempty,min=2,max=3"`
	Address         *string            `json:"address"`
	City            *string            `json:"city"`
	PostalCode      *string            `json:"postal_code"`
	SectorKey       string             `json:"sector_key" validate:"required_if=AccountType pro"`
	CategoryKey     string             `json:"category_key" validate:"required_if=AccountType pro"`
	BusinessName    *string            `json:"business_name"`
	Description     *string            `json:"description"`
	ExperienceYears *int               `json:"experience_years" validate:"omitempty,min=0,max=50"`
}

// PromotionInput carries the professional attributes of an existing user.
type PromotionInput struct {
	SectorKey       string  `json:"sector_key" validate:"required"`
	CategoryKey     string  `json:"category_key" validate:"required"`
	BusinessName    *string `json:"business_name"`
	Description     *string `json:"description"`
	ExperienceYears *int    `json:"experience_years" validate:"omitempty,min=0,max=50"`
}

// AdminCreationInput describes a new administrator account.
type AdminCreationInput struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name" validate:"required,max=120"`
	LastName    string  `json:"last_name" validate:"required,max=120"`
	PhoneNumber *string `json:"phone_number"`
}

// RoleChangeInput targets another account's role.
type RoleChangeInput struct {
	UserID  string         `json:"userId" validate:"required,uuid"`
	RoleKey domain.RoleKey `json:"role_key" validate:"required,oneof=user pro admin"`
}

// RoleChangeResult reports the transition applied by a role change.
type RoleChangeResult struct {
	UserID  string         `json:"user_id"`
	OldRole domain.RoleKey `json:"old_role"`
	NewRole domain.RoleKey `json:"new_role"`
}

// EmailAvailability answers the wizard's email check.
type EmailAvailability struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

// ProvisioningDependencies encapsulates collaborators of the provisioning service.
type ProvisioningDependencies struct {
	Identities     identity.Service
	ProfileRepo    repository.ProfileRepository
	ProProfileRepo repository.ProProfileRepository
	ReferenceRepo  repository.ReferenceRepository
	ProcedureRepo  repository.ProcedureRepository
	Validator      *validation.Validator
	Dispatcher     events.Dispatcher
	Metrics        ProvisioningMetrics
}

// ProvisioningService creates accounts across the identity store and the profile tables.
type ProvisioningService struct {
	identities   identity.Service
	profiles     repository.ProfileRepository
	pros         repository.ProProfileRepository
	reference    repository.ReferenceRepository
	procedures   repository.ProcedureRepository
	validator    *validation.Validator
	dispatcher   events.Dispatcher
	metrics      ProvisioningMetrics
	logger       *zap.Logger
	listPageSize int
	now          func() time.Time
}

// NewProvisioningService constructs the service.
func NewProvisioningService(cfg config.Config, deps ProvisioningDependencies, logger *zap.Logger) *ProvisioningService {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopProvisioningMetrics{}
	}
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}
	return &ProvisioningService{
		identities:   deps.Identities,
		profiles:     deps.ProfileRepo,
		pros:         deps.ProProfileRepo,
		reference:    deps.ReferenceRepo,
		procedures:   deps.ProcedureRepo,
		validator:    v,
		dispatcher:   deps.Dispatcher,
		metrics:      metrics,
		logger:       logger,
		listPageSize: cfg.Identity.ListPageSize,
		now:          time.Now,
	}
}

// CheckEmailAvailability reports whether no identity uses email. It never writes.
func (s *ProvisioningService) CheckEmailAvailability(ctx context.Context, email string) (*EmailAvailability, error) {
	email = strings.TrimSpace(email)
	if violations := s.validator.Struct(struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}); len(violations) > 0 {
		return nil, apperrors.NewValidationError("invalid email", violations)
	}

	existing, err := identity.FindByEmail(ctx, s.identities, email, s.listPageSize)
	if err != nil {
		s.logger.Error("email availability lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return &EmailAvailability{Email: email, Available: existing == nil}, nil
}

// Register provisions an individual or professional account.
func (s *ProvisioningService) Register(ctx context.Context, in RegistrationInput) (*domain.AccountSummary, error) {
	in.Email = strings.TrimSpace(in.Email)
	variant := VariantRegisterUser
	if in.AccountType == domain.AccountTypePro {
		variant = VariantRegisterPro
	}

	summary, err := s.register(ctx, variant, in)
	s.metrics.SagaOutcome(variant, outcomeOf(err))
	return summary, err
}

func (s *ProvisioningService) register(ctx context.Context, variant string, in RegistrationInput) (*domain.AccountSummary, error) {
	violations := s.validator.Struct(in)
	for _, msg := range validation.RegistrationPasswordViolations(in.Password) {
		violations = append(violations, apperrors.FieldViolation{Field: "password", Rule: "policy", Message: msg})
	}
	if len(violations) > 0 {
		return nil, apperrors.NewValidationError("invalid data", violations)
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}
	if in.AccountType == domain.AccountTypePro {
		if err := s.checkCategorySector(ctx, in.SectorKey, in.CategoryKey); err != nil {
			return nil, err
		}
	}

	metadata := map[string]any{
		domain.MetaFirstName:   in.FirstName,
		domain.MetaLastName:    in.LastName,
		domain.MetaAccountType: string(in.AccountType),
		domain.MetaCreatedAt:   s.now().UTC().Format(time.RFC3339),
	}

	var created *domain.Identity
	profile := &domain.Profile{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PhoneNumber:    trimmedOrNil(in.PhoneNumber),
		DepartmentCode: trimmedOrNil(in.DepartmentCode),
		Address:        trimmedOrNil(in.Address),
		City:           trimmedOrNil(in.City),
		PostalCode:     trimmedOrNil(in.PostalCode),
		RoleKey:        domain.RoleUser,
	}

	steps := []sagaStep{s.createIdentityStep(in.Email, in.Password, metadata, &created)}
	steps = append(steps, s.insertProfileStep(profile, &created))

	if in.AccountType == domain.AccountTypePro {
		pro := &domain.ProProfile{
			CategoryKey:     in.CategoryKey,
			SectorKey:       in.SectorKey,
			BusinessName:    trimmedOrNil(in.BusinessName),
			Description:     trimmedOrNil(in.Description),
			ExperienceYears: in.ExperienceYears,
		}
		steps = append(steps,
			sagaStep{
				name: stepInsertProProfile,
				forward: func(ctx context.Context) error {
					pro.UserID = created.ID
					return s.pros.Insert(ctx, pro)
				},
				compensate: func(ctx context.Context) error {
					return s.pros.Delete(ctx, created.ID)
				},
			},
			sagaStep{
				name: stepPromoteRole,
				forward: func(ctx context.Context) error {
					if err := s.profiles.UpdateRole(ctx, created.ID, domain.RolePro); err != nil {
						return err
					}
					profile.RoleKey = domain.RolePro
					return nil
				},
			},
		)
	}

	if failure := runSaga(ctx, steps); failure != nil {
		return nil, s.resolveFailure(ctx, variant, in.Email, created, failure)
	}

	summary := &domain.AccountSummary{
		UserID:      created.ID,
		Email:       created.Email,
		AccountType: in.AccountType,
		RoleKey:     profile.RoleKey,
		CreatedAt:   created.CreatedAt,
	}
	if in.AccountType == domain.AccountTypePro {
		summary.CategoryKey = in.CategoryKey
		summary.SectorKey = in.SectorKey
	}

	s.publish(ctx, events.New(events.EventAccountProvisioned, created.ID, nil, events.AccountProvisionedPayload{
		Email:       created.Email,
		AccountType: in.AccountType,
		RoleKey:     profile.RoleKey,
		Variant:     variant,
	}))
	s.logger.Info("account provisioned",
		zap.String("variant", variant),
		zap.String("user_id", created.ID),
		zap.String("role_key", string(profile.RoleKey)))
	return summary, nil
}

// CreateAdmin provisions another administrator on behalf of caller.
func (s *ProvisioningService) CreateAdmin(ctx context.Context, caller *domain.Profile, in AdminCreationInput) (*domain.AccountSummary, error) {
	summary, err := s.createAdmin(ctx, caller, in)
	s.metrics.SagaOutcome(VariantCreateAdmin, outcomeOf(err))
	return summary, err
}

func (s *ProvisioningService) createAdmin(ctx context.Context, caller *domain.Profile, in AdminCreationInput) (*domain.AccountSummary, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("not authenticated")
	}
	if caller.RoleKey != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("access denied")
	}

	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Check(in); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		domain.MetaFirstName:      in.FirstName,
		domain.MetaLastName:       in.LastName,
		domain.MetaCreatedByAdmin: caller.UserID,
		domain.MetaCreatedAt:      s.now().UTC().Format(time.RFC3339),
	}

	var created *domain.Identity
	profile := &domain.Profile{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: trimmedOrNil(in.PhoneNumber),
		RoleKey:     domain.RoleAdmin,
	}

	failure := runSaga(ctx, []sagaStep{
		s.createIdentityStep(in.Email, in.Password, metadata, &created),
		s.insertProfileStep(profile, &created),
	})
	if failure != nil {
		return nil, s.resolveFailure(ctx, VariantCreateAdmin, in.Email, created, failure)
	}

	actor := caller.UserID
	s.publish(ctx, events.New(events.EventAccountProvisioned, created.ID, &actor, events.AccountProvisionedPayload{
		Email:       created.Email,
		AccountType: domain.AccountTypeUser,
		RoleKey:     domain.RoleAdmin,
		Variant:     VariantCreateAdmin,
	}))
	s.logger.Info("administrator created",
		zap.String("user_id", created.ID),
		zap.String("created_by", caller.UserID))

	return &domain.AccountSummary{
		UserID:      created.ID,
		Email:       created.Email,
		AccountType: domain.AccountTypeUser,
		RoleKey:     domain.RoleAdmin,
		CreatedBy:   caller.UserID,
		Profile:     profile,
		CreatedAt:   created.CreatedAt,
	}, nil
}

// PromoteToProfessional turns the caller's existing account into a professional one.
func (s *ProvisioningService) PromoteToProfessional(ctx context.Context, userID string, in PromotionInput) (*domain.ProProfile, error) {
	pro, err := s.promote(ctx, userID, in)
	s.metrics.SagaOutcome(VariantPromote, outcomeOf(err))
	return pro, err
}

func (s *ProvisioningService) promote(ctx context.Context, userID string, in PromotionInput) (*domain.ProProfile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("profile")
		}
		return nil, apperrors.MapError(err)
	}
	if profile.RoleKey == domain.RolePro {
		return nil, apperrors.NewAlreadyProfessional()
	}

	if err := s.validator.Check(in); err != nil {
		return nil, err
	}
	if err := s.checkCategorySector(ctx, in.SectorKey, in.CategoryKey); err != nil {
		return nil, err
	}

	err = s.procedures.BecomeProfessional(ctx, repository.BecomeProfessionalArgs{
		UserID:          userID,
		CategoryKey:     in.CategoryKey,
		SectorKey:       in.SectorKey,
		BusinessName:    trimmedOrNil(in.BusinessName),
		Description:     trimmedOrNil(in.Description),
		ExperienceYears: in.ExperienceYears,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewAlreadyProfessional()
		}
		s.logger.Error("become_professional failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.NewProfileWriteFailed(err)
	}

	s.publish(ctx, events.New(events.EventProfessionalPromoted, userID, &userID, events.ProfessionalPromotedPayload{
		SectorKey:   in.SectorKey,
		CategoryKey: in.CategoryKey,
	}))

	pro, err := s.pros.GetByUserID(ctx, userID)
	if err != nil {
		// The procedure committed; answer with what was written.
		s.logger.Warn("promoted profile could not be read back", zap.String("user_id", userID), zap.Error(err))
		return &domain.ProProfile{
			UserID:          userID,
			CategoryKey:     in.CategoryKey,
			SectorKey:       in.SectorKey,
			BusinessName:    trimmedOrNil(in.BusinessName),
			Description:     trimmedOrNil(in.Description),
			ExperienceYears: in.ExperienceYears,
		}, nil
	}
	return pro, nil
}

// ChangeUserRole lets an administrator set another account's role.
func (s *ProvisioningService) ChangeUserRole(ctx context.Context, caller *domain.Profile, in RoleChangeInput) (*RoleChangeResult, error) {
	result, err := s.changeRole(ctx, caller, in)
	s.metrics.SagaOutcome(VariantRoleChange, outcomeOf(err))
	return result, err
}

func (s *ProvisioningService) changeRole(ctx context.Context, caller *domain.Profile, in RoleChangeInput) (*RoleChangeResult, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("not authenticated")
	}
	if caller.RoleKey != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("access denied")
	}
	if err := s.validator.Check(in); err != nil {
		return nil, err
	}
	if in.UserID == caller.UserID && in.RoleKey != domain.RoleAdmin {
		return nil, apperrors.NewSelfDemotionForbidden()
	}

	previous, err := s.procedures.AdminUpdateUserRole(ctx, in.UserID, in.RoleKey)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("user")
		case errors.Is(err, repository.ErrCheckViolation):
			return nil, apperrors.NewValidationError("invalid role change", []apperrors.FieldViolation{{
				Field:   "role_key",
				Rule:    "pro_profile_required",
				Message: "a professional role requires a professional profile",
			}})
		}
		s.logger.Error("admin_update_user_role failed", zap.String("target", in.UserID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	actor := caller.UserID
	s.publish(ctx, events.New(events.EventRoleChanged, in.UserID, &actor, events.RoleChangedPayload{
		OldRole: previous,
		NewRole: in.RoleKey,
	}))
	return &RoleChangeResult{UserID: in.UserID, OldRole: previous, NewRole: in.RoleKey}, nil
}

func (s *ProvisioningService) createIdentityStep(email, password string, metadata map[string]any, created **domain.Identity) sagaStep {
	return sagaStep{
		name: stepCreateIdentity,
		forward: func(ctx context.Context) error {
			ident, err := s.identities.Create(ctx, identity.CreateInput{Email: email, Password: password, Metadata: metadata})
			if err != nil {
				return err
			}
			*created = ident
			return nil
		},
		compensate: func(ctx context.Context) error {
			return s.identities.Delete(ctx, (*created).ID)
		},
	}
}

func (s *ProvisioningService) insertProfileStep(profile *domain.Profile, created **domain.Identity) sagaStep {
	return sagaStep{
		name: stepInsertProfile,
		forward: func(ctx context.Context) error {
			profile.UserID = (*created).ID
			return s.profiles.Insert(ctx, profile)
		},
		compensate: func(ctx context.Context) error {
			return s.profiles.Delete(ctx, (*created).ID)
		},
	}
}

// resolveFailure logs the compensation outcome and maps the failure onto the error taxonomy.
func (s *ProvisioningService) resolveFailure(ctx context.Context, variant, email string, created *domain.Identity, failure *sagaFailure) error {
	if failure.failedStep == stepCreateIdentity {
		if errors.Is(failure.err, identity.ErrEmailTaken) {
			return apperrors.NewEmailConflict()
		}
		s.logger.Error("identity creation failed",
			zap.String("variant", variant),
			zap.Error(failure.err))
		return apperrors.NewIdentityCreationFailed(failure.err)
	}

	s.logger.Error("profile write failed",
		zap.String("variant", variant),
		zap.String("step", failure.failedStep),
		zap.String("user_id", created.ID),
		zap.Error(failure.err))

	orphaned := false
	for _, c := range failure.compensations {
		s.metrics.Compensation(c.step, c.err == nil)
		if c.err == nil {
			s.logger.Warn("compensation applied",
				zap.String("variant", variant),
				zap.String("step", c.step),
				zap.String("user_id", created.ID))
			continue
		}
		if c.step == stepCreateIdentity {
			orphaned = true
			s.logger.Error("compensating identity delete failed",
				zap.String("event", "orphaned_identity"),
				zap.String("variant", variant),
				zap.String("user_id", created.ID),
				zap.Error(c.err))
			continue
		}
		s.logger.Error("compensation failed",
			zap.String("variant", variant),
			zap.String("step", c.step),
			zap.String("user_id", created.ID),
			zap.Error(c.err))
	}

	if orphaned {
		s.publish(ctx, events.New(events.EventIdentityOrphaned, created.ID, nil, events.IdentityOrphanedPayload{
			Email:  email,
			Source: variant,
			Reason: failure.err.Error(),
		}))
	} else {
		s.publish(ctx, events.New(events.EventProvisioningCompensated, created.ID, nil, events.ProvisioningCompensatedPayload{
			Email:      email,
			Variant:    variant,
			FailedStep: failure.failedStep,
			Undone:     failure.undone(),
		}))
	}
	return apperrors.NewProfileWriteFailed(failure.err)
}

func (s *ProvisioningService) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := identity.FindByEmail(ctx, s.identities, email, s.listPageSize)
	if err != nil {
		s.logger.Error("identity lookup failed", zap.Error(err))
		return apperrors.NewIdentityCreationFailed(err)
	}
	if existing != nil {
		return apperrors.NewEmailConflict()
	}
	return nil
}

func (s *ProvisioningService) checkCategorySector(ctx context.Context, sectorKey, categoryKey string) error {
	category, err := s.reference.GetCategory(ctx, categoryKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewCategorySectorMismatch()
		}
		return apperrors.MapError(err)
	}
	if category.SectorKey != sectorKey {
		return apperrors.NewCategorySectorMismatch()
	}
	return nil
}

func (s *ProvisioningService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.ToDomainError(err).Code
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
