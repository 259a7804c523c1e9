// Package wizard drives the multi-step signup flow: step sequencing, per-step validity,
// the debounced email availability check and the final submission.
package wizard

import (
	"strings"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/validation"
)

// Step identifies a wizard page.
type Step string

const (
	StepEmail            Step = "email"
	StepPersonal         Step = "personal"
	StepProfessional     Step = "professional"
	StepPassword         Step = "password"
	StepPersonalPassword Step = "personal_password"
)

// StepsFor returns the ordered steps of an account type: four for professionals, two otherwise.
func StepsFor(accountType domain.AccountType) []Step {
	if accountType == domain.AccountTypePro {
		return []Step{StepEmail, StepPersonal, StepProfessional, StepPassword}
	}
	return []Step{StepEmail, StepPersonalPassword}
}

// EmailStatus is the outcome of the availability check for the current email.
type EmailStatus string

const (
	EmailUnknown   EmailStatus = "unknown"
	EmailChecking  EmailStatus = "checking"
	EmailAvailable EmailStatus = "available"
	EmailTaken     EmailStatus = "taken"
)

// Fields is the superset of values collected by either flow.
type Fields struct {
	Email           string
	FirstName       string
	LastName        string
	PhoneNumber     string
	Address         string
	City            string
	PostalCode      string
	DepartmentCode  string
	SectorKey       string
	CategoryKey     string
	BusinessName    string
	Description     string
	ExperienceYears *int
	Password        string
	Confirmation    string
}

// Session is the in-progress registration. It lives only in the client.
type Session struct {
	AccountType        domain.AccountType
	StepIndex          int
	Fields             Fields
	EmailStatus        EmailStatus
	PasswordViolations []string
}

// NewSession starts at step 1.
func NewSession(accountType domain.AccountType) *Session {
	return &Session{AccountType: accountType, StepIndex: 1, EmailStatus: EmailUnknown}
}

// Steps returns the steps of this session's flow.
func (s *Session) Steps() []Step { return StepsFor(s.AccountType) }

// Current returns the step being edited.
func (s *Session) Current() Step { return s.Steps()[s.StepIndex-1] }

// Last reports whether the current step is the final one.
func (s *Session) Last() bool { return s.StepIndex == len(s.Steps()) }

func (s *Session) refreshPasswordViolations() {
	violations := validation.RegistrationPasswordViolations(s.Fields.Password)
	violations = append(violations, validation.ConfirmationViolations(s.Fields.Password, s.Fields.Confirmation)...)
	s.PasswordViolations = violations
}

// Catalog maps each sector key to the category keys it offers.
type Catalog map[string][]string

// Contains reports whether categoryKey belongs to sectorKey.
func (c Catalog) Contains(sectorKey, categoryKey string) bool {
	for _, key := range c[sectorKey] {
		if key == categoryKey {
			return true
		}
	}
	return false
}

// CatalogFromSectors builds a catalog from the pro-data listing.
func CatalogFromSectors(sectors []domain.Sector) Catalog {
	catalog := make(Catalog, len(sectors))
	for _, sector := range sectors {
		keys := make([]string, 0, len(sector.Categories))
		for _, c := range sector.Categories {
			keys = append(keys, c.Key)
		}
		catalog[sector.Key] = keys
	}
	return catalog
}

// stepValid evaluates the predicate gating forward navigation from step.
func (s *Session) stepValid(step Step, catalog Catalog) bool {
	f := s.Fields
	switch step {
	case StepEmail:
		return strings.TrimSpace(f.Email) != "" && s.EmailStatus == EmailAvailable
	case StepPersonal:
		return personalValid(f)
	case StepProfessional:
		return f.SectorKey != "" && f.CategoryKey != "" && catalog.Contains(f.SectorKey, f.CategoryKey)
	case StepPassword:
		return len(s.PasswordViolations) == 0 && f.Password != "" && f.Password == f.Confirmation
	case StepPersonalPassword:
		return personalValid(f) && s.stepValid(StepPassword, catalog)
	}
	return false
}

// firstInvalidStep returns the 1-based index of the first step whose predicate fails, or 0.
func (s *Session) firstInvalidStep(catalog Catalog) int {
	for i, step := range s.Steps() {
		if !s.stepValid(step, catalog) {
			return i + 1
		}
	}
	return 0
}

func personalValid(f Fields) bool {
	return strings.TrimSpace(f.FirstName) != "" && strings.TrimSpace(f.LastName) != ""
}
