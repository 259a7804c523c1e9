package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/validation"
)

type stubChecker struct {
	mu     sync.Mutex
	calls  []string
	taken  map[string]bool
	err    error
	during func(email string)
}

func (c *stubChecker) CheckEmail(_ context.Context, email string) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, email)
	during := c.during
	c.mu.Unlock()
	if during != nil {
		during(email)
	}
	if c.err != nil {
		return false, c.err
	}
	return !c.taken[email], nil
}

type stubSubmitter struct {
	requests []dto.RegisterRequest
	errs     []error
}

func (s *stubSubmitter) Register(_ context.Context, req dto.RegisterRequest) (*domain.AccountSummary, error) {
	s.requests = append(s.requests, req)
	if n := len(s.requests); n <= len(s.errs) && s.errs[n-1] != nil {
		return nil, s.errs[n-1]
	}
	return &domain.AccountSummary{UserID: "user-1", Email: req.Email, AccountType: domain.AccountType(req.AccountType)}, nil
}

var testCatalog = Catalog{
	"batiment": {"plomberie", "electricite"},
	"services": {"menage"},
}

type fixture struct {
	clock     *FakeClock
	checker   *stubChecker
	submitter *stubSubmitter
	machine   *Machine
	snapshots []Snapshot
}

func newFixture(t *testing.T, accountType domain.AccountType) *fixture {
	t.Helper()
	f := &fixture{
		clock:     NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		checker:   &stubChecker{taken: map[string]bool{}},
		submitter: &stubSubmitter{},
	}
	f.machine = NewMachine(Config{
		AccountType: accountType,
		Checker:     f.checker,
		Submitter:   f.submitter,
		Catalog:     testCatalog,
		Clock:       f.clock,
		Logger:      zaptest.NewLogger(t),
		OnChange:    func(s Snapshot) { f.snapshots = append(f.snapshots, s) },
	})
	return f
}

func (f *fixture) confirmEmail(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, f.machine.SetEmail(email))
	f.clock.Advance(DefaultDebounce)
	require.Equal(t, EmailAvailable, f.machine.Snapshot().EmailStatus)
}

func TestDebounceFiresOneCheckForLastEdit(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	step := 150 * time.Millisecond

	require.NoError(t, f.machine.SetEmail("a"))
	f.clock.Advance(step)
	require.NoError(t, f.machine.SetEmail("ab"))
	f.clock.Advance(step)
	require.NoError(t, f.machine.SetEmail("abc@x.com"))
	f.clock.Advance(DefaultDebounce - time.Millisecond)
	assert.Empty(t, f.checker.calls)

	f.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"abc@x.com"}, f.checker.calls)
	assert.Equal(t, EmailAvailable, f.machine.Snapshot().EmailStatus)
	assert.Zero(t, f.clock.Pending())

	var statuses []EmailStatus
	for _, s := range f.snapshots {
		if s.Email == "a" || s.Email == "ab" {
			assert.Equal(t, EmailUnknown, s.EmailStatus)
		}
		if s.Email == "abc@x.com" {
			statuses = append(statuses, s.EmailStatus)
		}
	}
	assert.Equal(t, []EmailStatus{EmailUnknown, EmailChecking, EmailAvailable}, statuses)
}

func TestStaleCheckResultIsDiscarded(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	f.checker.during = func(email string) {
		if email == "first@x.com" {
			require.NoError(t, f.machine.SetEmail("second@x.com"))
		}
	}

	require.NoError(t, f.machine.SetEmail("first@x.com"))
	f.clock.Advance(DefaultDebounce)

	snap := f.machine.Snapshot()
	assert.Equal(t, "second@x.com", snap.Email)
	assert.Equal(t, EmailUnknown, snap.EmailStatus)
	assert.False(t, snap.StepValid)

	f.clock.Advance(DefaultDebounce)
	assert.Equal(t, []string{"first@x.com", "second@x.com"}, f.checker.calls)
	assert.Equal(t, EmailAvailable, f.machine.Snapshot().EmailStatus)
}

func TestEmailStepGating(t *testing.T) {
	t.Run("taken email blocks", func(t *testing.T) {
		f := newFixture(t, domain.AccountTypeUser)
		f.checker.taken["used@x.com"] = true
		require.NoError(t, f.machine.SetEmail("used@x.com"))
		f.clock.Advance(DefaultDebounce)

		assert.Equal(t, EmailTaken, f.machine.Snapshot().EmailStatus)
		assert.ErrorIs(t, f.machine.Advance(), ErrStepInvalid)
	})

	t.Run("failed check leaves status unknown", func(t *testing.T) {
		f := newFixture(t, domain.AccountTypeUser)
		f.checker.err = errors.New("network down")
		require.NoError(t, f.machine.SetEmail("new@x.com"))
		f.clock.Advance(DefaultDebounce)

		assert.Equal(t, EmailUnknown, f.machine.Snapshot().EmailStatus)
		assert.ErrorIs(t, f.machine.Advance(), ErrStepInvalid)
	})

	t.Run("clearing the email cancels the pending check", func(t *testing.T) {
		f := newFixture(t, domain.AccountTypeUser)
		require.NoError(t, f.machine.SetEmail("new@x.com"))
		require.NoError(t, f.machine.SetEmail(""))
		f.clock.Advance(DefaultDebounce)

		assert.Empty(t, f.checker.calls)
		assert.ErrorIs(t, f.machine.Advance(), ErrStepInvalid)
	})
}

func TestProfessionalFlow(t *testing.T) {
	f := newFixture(t, domain.AccountTypePro)
	m := f.machine
	assert.Equal(t, 4, m.Snapshot().StepCount)

	assert.ErrorIs(t, m.Advance(), ErrStepInvalid)
	f.confirmEmail(t, "new@pro.fr")
	require.NoError(t, m.Advance())
	assert.Equal(t, StepPersonal, m.Snapshot().Step)

	require.NoError(t, m.SetPersonal(PersonalInfo{FirstName: "Jean"}))
	assert.ErrorIs(t, m.Advance(), ErrStepInvalid)
	require.NoError(t, m.SetPersonal(PersonalInfo{FirstName: "Jean", LastName: "Dupont", DepartmentCode: "75"}))
	require.NoError(t, m.Advance())
	assert.Equal(t, StepProfessional, m.Snapshot().Step)

	require.NoError(t, m.SelectSector("batiment"))
	require.NoError(t, m.SelectCategory("menage"))
	assert.ErrorIs(t, m.Advance(), ErrStepInvalid)
	require.NoError(t, m.SelectCategory("plomberie"))
	assert.True(t, m.Snapshot().StepValid)

	require.NoError(t, m.SelectSector("services"))
	assert.False(t, m.Snapshot().StepValid)
	require.NoError(t, m.SelectSector("batiment"))
	require.NoError(t, m.SelectCategory("plomberie"))
	years := 12
	require.NoError(t, m.SetProfessionalDetails(ProfessionalDetails{BusinessName: "Dupont Plomberie", ExperienceYears: &years}))
	require.NoError(t, m.Advance())
	assert.Equal(t, StepPassword, m.Snapshot().Step)

	require.NoError(t, m.SetPassword("secret", "secret"))
	assert.Equal(t, []string{validation.MsgPasswordTooShort, validation.MsgPasswordNoDigit}, m.Snapshot().PasswordViolations)
	require.NoError(t, m.SetPassword("Secret12", "Secret13"))
	assert.Equal(t, []string{validation.MsgPasswordMismatch}, m.Snapshot().PasswordViolations)
	_, err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrStepInvalid)

	require.NoError(t, m.SetPassword("Secret12", "Secret12"))
	assert.ErrorIs(t, m.Advance(), ErrLastStep)
	summary, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new@pro.fr", summary.Email)

	require.Len(t, f.submitter.requests, 1)
	req := f.submitter.requests[0]
	assert.Equal(t, "pro", req.AccountType)
	assert.Equal(t, "Jean", req.FirstName)
	assert.Equal(t, "Dupont", req.LastName)
	assert.Equal(t, "75", req.DepartmentCode)
	assert.Equal(t, "batiment", req.SectorKey)
	assert.Equal(t, "plomberie", req.CategoryKey)
	assert.Equal(t, "Dupont Plomberie", req.BusinessName)
	assert.Equal(t, &years, req.ExperienceYears)
	assert.Equal(t, "Secret12", req.Password)

	snap := m.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Zero(t, snap.StepIndex)
	assert.ErrorIs(t, m.SetEmail("again@x.com"), ErrNotEditable)
}

func TestIndividualFlowOmitsProfessionalFields(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	m := f.machine
	assert.Equal(t, 2, m.Snapshot().StepCount)

	f.confirmEmail(t, "marie@x.com")
	require.NoError(t, m.Advance())
	assert.Equal(t, StepPersonalPassword, m.Snapshot().Step)

	require.NoError(t, m.SelectSector("batiment"))
	require.NoError(t, m.SelectCategory("plomberie"))
	require.NoError(t, m.SetPassword("password1", "password1"))
	assert.False(t, m.Snapshot().StepValid)

	require.NoError(t, m.SetPersonal(PersonalInfo{FirstName: "Marie", LastName: "Curie"}))
	_, err := m.Submit(context.Background())
	require.NoError(t, err)

	req := f.submitter.requests[0]
	assert.Equal(t, "user", req.AccountType)
	assert.Empty(t, req.SectorKey)
	assert.Empty(t, req.CategoryKey)
}

func TestSubmitFailureStaysOnFinalStep(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	m := f.machine
	f.submitter.errs = []error{&APIError{Status: 409, Code: "EMAIL_CONFLICT", Message: "this email is already in use"}}

	f.confirmEmail(t, "marie@x.com")
	require.NoError(t, m.Advance())
	require.NoError(t, m.SetPersonal(PersonalInfo{FirstName: "Marie", LastName: "Curie"}))
	require.NoError(t, m.SetPassword("password1", "password1"))

	_, err := m.Submit(context.Background())
	require.Error(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, 2, snap.StepIndex)
	assert.Equal(t, err, snap.Err)

	summary, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", summary.UserID)
	assert.Len(t, f.submitter.requests, 2)
	assert.Equal(t, f.submitter.requests[0], f.submitter.requests[1])
	assert.Equal(t, StateSucceeded, m.Snapshot().State)
}

func TestSubmitOnlyFromFinalStep(t *testing.T) {
	f := newFixture(t, domain.AccountTypePro)
	f.confirmEmail(t, "new@pro.fr")

	_, err := f.machine.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotFinalStep)
	assert.Empty(t, f.submitter.requests)
}

func TestSubmitRejectsEmailEditedAfterFirstStep(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	m := f.machine
	f.checker.taken["taken@x.com"] = true

	f.confirmEmail(t, "new@x.com")
	require.NoError(t, m.Advance())
	require.NoError(t, m.SetPersonal(PersonalInfo{FirstName: "Marie", LastName: "Curie"}))
	require.NoError(t, m.SetPassword("password1", "password1"))

	require.NoError(t, m.SetEmail("taken@x.com"))
	snap := m.Snapshot()
	require.Equal(t, 2, snap.StepIndex)
	require.Equal(t, EmailUnknown, snap.EmailStatus)

	_, err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrStepInvalid)
	assert.Empty(t, f.submitter.requests)

	snap = m.Snapshot()
	assert.Equal(t, StepEmail, snap.Step)
	assert.Equal(t, 1, snap.StepIndex)
	assert.Equal(t, StateEditing, snap.State)

	f.clock.Advance(DefaultDebounce)
	assert.Equal(t, EmailTaken, m.Snapshot().EmailStatus)
	assert.ErrorIs(t, m.Advance(), ErrStepInvalid)
	assert.Empty(t, f.submitter.requests)

	f.confirmEmail(t, "other@x.com")
	require.NoError(t, m.Advance())
	summary, err := m.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other@x.com", summary.Email)
	require.Len(t, f.submitter.requests, 1)
	assert.Equal(t, "other@x.com", f.submitter.requests[0].Email)
}

func TestRetreat(t *testing.T) {
	f := newFixture(t, domain.AccountTypePro)
	m := f.machine
	f.confirmEmail(t, "new@pro.fr")
	require.NoError(t, m.Advance())

	require.NoError(t, m.Retreat())
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.StepIndex)
	assert.Equal(t, "new@pro.fr", snap.Email)
	assert.Equal(t, EmailAvailable, snap.EmailStatus)

	require.NoError(t, m.SetEmail("other@pro.fr"))
	require.NoError(t, m.Retreat())
	assert.Equal(t, StateExited, m.Snapshot().State)
	assert.Zero(t, f.clock.Pending())
	assert.ErrorIs(t, m.Advance(), ErrNotEditable)
	assert.ErrorIs(t, m.Retreat(), ErrNotEditable)
}

func TestInitialPasswordViolations(t *testing.T) {
	f := newFixture(t, domain.AccountTypeUser)
	assert.Equal(t, []string{
		validation.MsgPasswordTooShort,
		validation.MsgPasswordNoDigit,
		validation.MsgPasswordNoConfirm,
	}, f.machine.Snapshot().PasswordViolations)
}

func TestCatalogFromSectors(t *testing.T) {
	catalog := CatalogFromSectors([]domain.Sector{
		{Key: "batiment", Categories: []domain.Category{{Key: "plomberie"}, {Key: "electricite"}}},
		{Key: "services"},
	})
	assert.True(t, catalog.Contains("batiment", "electricite"))
	assert.False(t, catalog.Contains("services", "plomberie"))
	assert.False(t, catalog.Contains("unknown", "plomberie"))
}
