package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// DefaultDebounce is the quiet period after the last email edit before availability is checked.
const DefaultDebounce = 400 * time.Millisecond

// State is the lifecycle of a wizard run.
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateExited     State = "exited"
)

var (
	ErrStepInvalid   = errors.New("current step is not complete")
	ErrNotFinalStep  = errors.New("submission is only possible from the final step")
	ErrLastStep      = errors.New("already on the final step")
	ErrNotEditable   = errors.New("wizard is no longer editable")
	ErrSubmitPending = errors.New("submission already in progress")
)

// EmailChecker answers whether an email is still free.
type EmailChecker interface {
	CheckEmail(ctx context.Context, email string) (bool, error)
}

// Submitter sends the composed registration payload.
type Submitter interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*domain.AccountSummary, error)
}

// Config wires a Machine.
type Config struct {
	AccountType  domain.AccountType
	Checker      EmailChecker
	Submitter    Submitter
	Catalog      Catalog
	Clock        Clock
	Debounce     time.Duration
	CheckTimeout time.Duration
	Logger       *zap.Logger
	// OnChange is called outside the lock after every observable transition.
	OnChange func(Snapshot)
}

// PersonalInfo groups the personal step fields. Only the names are required.
type PersonalInfo struct {
	FirstName      string
	LastName       string
	PhoneNumber    string
	Address        string
	City           string
	PostalCode     string
	DepartmentCode string
}

// ProfessionalDetails are the optional fields of the professional step.
type ProfessionalDetails struct {
	BusinessName    string
	Description     string
	ExperienceYears *int
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State              State
	Step               Step
	StepIndex          int
	StepCount          int
	StepValid          bool
	Email              string
	EmailStatus        EmailStatus
	PasswordViolations []string
	Err                error
	Result             *domain.AccountSummary
}

// Machine sequences the signup steps for one user.
type Machine struct {
	mu        sync.Mutex
	session   *Session
	state     State
	err       error
	result    *domain.AccountSummary
	catalog   Catalog
	pending   Timer
	checker   EmailChecker
	submitter Submitter
	clock     Clock
	debounce  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	onChange  func(Snapshot)
}

// NewMachine creates a session at step 1.
func NewMachine(cfg Config) *Machine {
	if cfg.AccountType != domain.AccountTypePro {
		cfg.AccountType = domain.AccountTypeUser
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Machine{
		session:   NewSession(cfg.AccountType),
		state:     StateEditing,
		catalog:   cfg.Catalog,
		checker:   cfg.Checker,
		submitter: cfg.Submitter,
		clock:     cfg.Clock,
		debounce:  cfg.Debounce,
		timeout:   cfg.CheckTimeout,
		logger:    cfg.Logger,
		onChange:  cfg.OnChange,
	}
	m.session.refreshPasswordViolations()
	return m
}

// SetCatalog replaces the sector/category catalog used by the professional step.
func (m *Machine) SetCatalog(catalog Catalog) {
	m.mu.Lock()
	m.catalog = catalog
	m.mu.Unlock()
}

// Snapshot returns the current view.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state, Err: m.err, Result: m.result}
	if s := m.session; s != nil {
		snap.Step = s.Current()
		snap.StepIndex = s.StepIndex
		snap.StepCount = len(s.Steps())
		snap.StepValid = s.stepValid(s.Current(), m.catalog)
		snap.Email = s.Fields.Email
		snap.EmailStatus = s.EmailStatus
		snap.PasswordViolations = append([]string(nil), s.PasswordViolations...)
	}
	return snap
}

func (m *Machine) notify(snap Snapshot) {
	if m.onChange != nil {
		m.onChange(snap)
	}
}

// edit applies f while the session is editable and publishes the result.
func (m *Machine) edit(f func(s *Session)) error {
	m.mu.Lock()
	if m.session == nil || m.state == StateSubmitting {
		m.mu.Unlock()
		return ErrNotEditable
	}
	f(m.session)
	if m.state == StateFailed {
		m.state = StateEditing
		m.err = nil
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
	return nil
}

// SetEmail records an edit of the email field and restarts the availability debounce.
func (m *Machine) SetEmail(email string) error {
	email = strings.TrimSpace(email)
	return m.edit(func(s *Session) {
		if m.pending != nil {
			m.pending.Stop()
			m.pending = nil
		}
		s.Fields.Email = email
		s.EmailStatus = EmailUnknown
		if email == "" {
			return
		}
		m.pending = m.clock.AfterFunc(m.debounce, func() { m.fireCheck(email) })
	})
}

func (m *Machine) fireCheck(email string) {
	m.mu.Lock()
	if m.session == nil || m.session.Fields.Email != email || m.checker == nil {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.session.EmailStatus = EmailChecking
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	available, err := m.checker.CheckEmail(ctx, email)

	m.mu.Lock()
	if m.session == nil || m.session.Fields.Email != email {
		m.mu.Unlock()
		m.logger.Debug("discarding stale email check", zap.String("email", email))
		return
	}
	switch {
	case err != nil:
		m.logger.Warn("email availability check failed", zap.String("email", email), zap.Error(err))
		m.session.EmailStatus = EmailUnknown
	case available:
		m.session.EmailStatus = EmailAvailable
	default:
		m.session.EmailStatus = EmailTaken
	}
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// SetPersonal fills the personal step.
func (m *Machine) SetPersonal(info PersonalInfo) error {
	return m.edit(func(s *Session) {
		s.Fields.FirstName = info.FirstName
		s.Fields.LastName = info.LastName
		s.Fields.PhoneNumber = info.PhoneNumber
		s.Fields.Address = info.Address
		s.Fields.City = info.City
		s.Fields.PostalCode = info.PostalCode
		s.Fields.DepartmentCode = info.DepartmentCode
	})
}

// SelectSector picks a sector. Any previously chosen category is cleared.
func (m *Machine) SelectSector(sectorKey string) error {
	return m.edit(func(s *Session) {
		if s.Fields.SectorKey != sectorKey {
			s.Fields.CategoryKey = ""
		}
		s.Fields.SectorKey = sectorKey
	})
}

// SelectCategory picks a category of the selected sector.
func (m *Machine) SelectCategory(categoryKey string) error {
	return m.edit(func(s *Session) { s.Fields.CategoryKey = categoryKey })
}

// SetProfessionalDetails fills the optional professional fields.
func (m *Machine) SetProfessionalDetails(details ProfessionalDetails) error {
	return m.edit(func(s *Session) {
		s.Fields.BusinessName = details.BusinessName
		s.Fields.Description = details.Description
		s.Fields.ExperienceYears = details.ExperienceYears
	})
}

// SetPassword records the password and its confirmation and recomputes the violations.
func (m *Machine) SetPassword(password, confirmation string) error {
	return m.edit(func(s *Session) {
		s.Fields.Password = password
		s.Fields.Confirmation = confirmation
		s.refreshPasswordViolations()
	})
}

// Advance moves to the next step when the current one is valid.
func (m *Machine) Advance() error {
	m.mu.Lock()
	s := m.session
	if s == nil || m.state == StateSubmitting {
		m.mu.Unlock()
		return ErrNotEditable
	}
	if s.Last() {
		m.mu.Unlock()
		return ErrLastStep
	}
	if !s.stepValid(s.Current(), m.catalog) {
		m.mu.Unlock()
		return ErrStepInvalid
	}
	s.StepIndex++
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
	return nil
}

// Retreat moves back one step. From step 1 it exits and discards the session.
func (m *Machine) Retreat() error {
	m.mu.Lock()
	s := m.session
	if s == nil || m.state == StateSubmitting {
		m.mu.Unlock()
		return ErrNotEditable
	}
	if s.StepIndex == 1 {
		if m.pending != nil {
			m.pending.Stop()
			m.pending = nil
		}
		m.session = nil
		m.state = StateExited
	} else {
		s.StepIndex--
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
	return nil
}

// Submit sends the composed payload once from the final step. Every step must still be valid;
// otherwise the machine moves back to the first invalid one. On failure the machine stays on
// the final step with every field kept so the user can correct and resubmit.
func (m *Machine) Submit(ctx context.Context) (*domain.AccountSummary, error) {
	m.mu.Lock()
	s := m.session
	switch {
	case m.state == StateSubmitting:
		m.mu.Unlock()
		return nil, ErrSubmitPending
	case s == nil:
		m.mu.Unlock()
		return nil, ErrNotEditable
	case !s.Last():
		m.mu.Unlock()
		return nil, ErrNotFinalStep
	}
	if index := s.firstInvalidStep(m.catalog); index > 0 {
		// An earlier step can go stale after it was left, e.g. an email edited
		// from a later step is unchecked again.
		if index == s.StepIndex {
			m.mu.Unlock()
			return nil, ErrStepInvalid
		}
		s.StepIndex = index
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.notify(snap)
		return nil, ErrStepInvalid
	}
	req := compose(s)
	m.state = StateSubmitting
	m.err = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	summary, err := m.submitter.Register(ctx, req)

	m.mu.Lock()
	if err != nil {
		m.state = StateFailed
		m.err = err
	} else {
		m.state = StateSucceeded
		m.result = summary
		m.session = nil
	}
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	if err != nil {
		m.logger.Info("registration failed", zap.Error(err))
		return nil, err
	}
	return summary, nil
}

func compose(s *Session) dto.RegisterRequest {
	f := s.Fields
	req := dto.RegisterRequest{
		AccountType:    string(s.AccountType),
		Email:          f.Email,
		Password:       f.Password,
		FirstName:      strings.TrimSpace(f.FirstName),
		LastName:       strings.TrimSpace(f.LastName),
		PhoneNumber:    f.PhoneNumber,
		DepartmentCode: f.DepartmentCode,
		Address:        f.Address,
		City:           f.City,
		PostalCode:     f.PostalCode,
	}
	if s.AccountType == domain.AccountTypePro {
		req.SectorKey = f.SectorKey
		req.CategoryKey = f.CategoryKey
		req.BusinessName = f.BusinessName
		req.Description = f.Description
		req.ExperienceYears = f.ExperienceYears
	}
	return req
}
