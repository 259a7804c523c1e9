package dto

import (
	"strings"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// RegisterRequest is the composed payload of the signup wizard. The account type is accepted
// under both accountType and account_type.
type RegisterRequest struct {
	AccountType      string `json:"account_type"`
	AccountTypeCamel string `json:"accountType"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	PhoneNumber      string `json:"phone_number"`
	DepartmentCode   string `json:"department_code"`
	Address          string `json:"address"`
	City             string `json:"city"`
	PostalCode       string `json:"postal_code"`
	SectorKey        string `json:"sector_key"`
	CategoryKey      string `json:"category_key"`
	BusinessName     string `json:"business_name"`
	Description      string `json:"description"`
	ExperienceYears  *int   `json:"experience_years"`
}

// ToInput normalises the request; blank optional fields become absent.
func (r RegisterRequest) ToInput() service.RegistrationInput {
	accountType := strings.TrimSpace(r.AccountType)
	if accountType == "" {
		accountType = strings.TrimSpace(r.AccountTypeCamel)
	}
	in := service.RegistrationInput{
		AccountType:    domain.AccountType(strings.ToLower(accountType)),
		Email:          strings.TrimSpace(r.Email),
		Password:       r.Password,
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		PhoneNumber:    optional(r.PhoneNumber),
		DepartmentCode: optional(r.DepartmentCode),
		Address:        optional(r.Address),
		City:           optional(r.City),
		PostalCode:     optional(r.PostalCode),
	}
	if in.AccountType == domain.AccountTypePro {
		in.SectorKey = strings.TrimSpace(r.SectorKey)
		in.CategoryKey = strings.TrimSpace(r.CategoryKey)
		in.BusinessName = optional(r.BusinessName)
		in.Description = optional(r.Description)
		in.ExperienceYears = r.ExperienceYears
	}
	return in
}

// CheckEmailRequest asks whether an email is still free.
type CheckEmailRequest struct {
	Email string `json:"email"`
}

// BecomeProRequest promotes the caller to a professional account.
type BecomeProRequest struct {
	SectorKey       string `json:"sector_key"`
	CategoryKey     string `json:"category_key"`
	BusinessName    string `json:"business_name"`
	Description     string `json:"description"`
	ExperienceYears *int   `json:"experience_years"`
}

// ToInput normalises the request.
func (r BecomeProRequest) ToInput() service.PromotionInput {
	return service.PromotionInput{
		SectorKey:       strings.TrimSpace(r.SectorKey),
		CategoryKey:     strings.TrimSpace(r.CategoryKey),
		BusinessName:    optional(r.BusinessName),
		Description:     optional(r.Description),
		ExperienceYears: r.ExperienceYears,
	}
}

// CreateAdminRequest describes a new administrator.
type CreateAdminRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// ToInput normalises the request.
func (r CreateAdminRequest) ToInput() service.AdminCreationInput {
	return service.AdminCreationInput{
		Email:       strings.TrimSpace(r.Email),
		Password:    r.Password,
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		PhoneNumber: optional(r.PhoneNumber),
	}
}

// RoleChangeRequest sets another account's role. Both camelCase and snake_case keys are accepted.
type RoleChangeRequest struct {
	UserID       string `json:"userId"`
	UserIDSnake  string `json:"user_id"`
	RoleKey      string `json:"roleKey"`
	RoleKeySnake string `json:"role_key"`
}

// ToInput normalises the request.
func (r RoleChangeRequest) ToInput() service.RoleChangeInput {
	return service.RoleChangeInput{
		UserID:  firstNonBlank(r.UserID, r.UserIDSnake),
		RoleKey: domain.RoleKey(firstNonBlank(r.RoleKey, r.RoleKeySnake)),
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
