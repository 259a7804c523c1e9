// Package fakes holds in-memory collaborators with failure injection for tests.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

// Failures maps an operation name such as "profiles.Insert" to the error it should return.
type Failures struct {
	mu   sync.Mutex
	errs map[string]error
}

// Set makes op fail with err until cleared.
func (f *Failures) Set(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[op] = err
}

// Clear removes every injected failure.
func (f *Failures) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = nil
}

func (f *Failures) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// Store is a shared in-memory backing for every fake collaborator.
type Store struct {
	Failures Failures

	mu         sync.Mutex
	identities []*identityRecord
	sessions   map[string]string
	profiles   map[string]*domain.Profile
	pros       map[string]*domain.ProProfile
	sectors    []domain.Sector
	categories []domain.Category
	depts      []domain.Department
}

type identityRecord struct {
	domain.Identity
	password string
}

// NewStore returns a store seeded with a small reference catalogue.
func NewStore() *Store {
	return &Store{
		sessions: map[string]string{},
		profiles: map[string]*domain.Profile{},
		pros:     map[string]*domain.ProProfile{},
		sectors: []domain.Sector{
			{Key: "batiment", Label: "Bâtiment"},
			{Key: "services", Label: "Services à la personne"},
		},
		categories: []domain.Category{
			{Key: "plomberie", Label: "Plomberie", SectorKey: "batiment"},
			{Key: "electricite", Label: "Électricité", SectorKey: "batiment"},
			{Key: "menage", Label: "Ménage", SectorKey: "services"},
		},
		depts: []domain.Department{
			{Code: "75", Name: "Paris", Region: "Île-de-France"},
			{Code: "92", Name: "Hauts-de-Seine", Region: "Île-de-France"},
			{Code: "69", Name: "Rhône", Region: "Auvergne-Rhône-Alpes"},
		},
	}
}

// Identities exposes the store as an identity.Service.
func (s *Store) Identities() *Identities { return &Identities{s: s} }

// Profiles exposes the store as a repository.ProfileRepository.
func (s *Store) Profiles() *Profiles { return &Profiles{s: s} }

// ProProfiles exposes the store as a repository.ProProfileRepository.
func (s *Store) ProProfiles() *ProProfiles { return &ProProfiles{s: s} }

// Reference exposes the store as a repository.ReferenceRepository.
func (s *Store) Reference() *Reference { return &Reference{s: s} }

// Procedures exposes the store as a repository.ProcedureRepository.
func (s *Store) Procedures() *Procedures { return &Procedures{s: s} }

// IdentityEmails lists every stored identity email.
func (s *Store) IdentityEmails() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.identities))
	for _, r := range s.identities {
		out = append(out, r.Email)
	}
	return out
}

// ProfileCount returns how many profile rows exist.
func (s *Store) ProfileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

// ProProfileCount returns how many pro profile rows exist.
func (s *Store) ProProfileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pros)
}

// Seed inserts a ready account and returns its identity id.
func (s *Store) Seed(email, password string, role domain.RoleKey, createdAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.identities = append(s.identities, &identityRecord{
		Identity: domain.Identity{ID: id, Email: email, CreatedAt: createdAt},
		password: password,
	})
	s.profiles[id] = &domain.Profile{UserID: id, FirstName: "Seed", LastName: email, RoleKey: role, CreatedAt: createdAt, UpdatedAt: createdAt}
	if role == domain.RolePro {
		s.pros[id] = &domain.ProProfile{UserID: id, SectorKey: "batiment", CategoryKey: "plomberie", CreatedAt: createdAt, UpdatedAt: createdAt}
	}
	return id
}

// SeedIdentityOnly inserts an identity with no profile, as a failed compensation would leave it.
func (s *Store) SeedIdentityOnly(email string, createdAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.identities = append(s.identities, &identityRecord{
		Identity: domain.Identity{ID: id, Email: email, CreatedAt: createdAt},
	})
	return id
}

// Identities is an in-memory identity.Service.
type Identities struct{ s *Store }

func (f *Identities) List(_ context.Context, page identity.Page) ([]domain.Identity, error) {
	if err := f.s.Failures.check("identities.List"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if page.Number < 1 {
		page.Number = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = 50
	}
	start := (page.Number - 1) * page.PerPage
	var out []domain.Identity
	for i := start; i < len(f.s.identities) && len(out) < page.PerPage; i++ {
		out = append(out, f.s.identities[i].Identity)
	}
	return out, nil
}

func (f *Identities) Create(_ context.Context, in identity.CreateInput) (*domain.Identity, error) {
	if err := f.s.Failures.check("identities.Create"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.identities {
		if r.Email == in.Email {
			return nil, identity.ErrEmailTaken
		}
	}
	rec := &identityRecord{
		Identity: domain.Identity{ID: uuid.NewString(), Email: in.Email, Metadata: in.Metadata, CreatedAt: time.Now()},
		password: in.Password,
	}
	f.s.identities = append(f.s.identities, rec)
	created := rec.Identity
	return &created, nil
}

func (f *Identities) Delete(_ context.Context, id string) error {
	if err := f.s.Failures.check("identities.Delete"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i, r := range f.s.identities {
		if r.ID == id {
			f.s.identities = append(f.s.identities[:i], f.s.identities[i+1:]...)
			return nil
		}
	}
	return identity.ErrNotFound
}

func (f *Identities) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	if err := f.s.Failures.check("identities.SignIn"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, r := range f.s.identities {
		if r.Email == email && r.password == password {
			token := "token-" + uuid.NewString()
			f.s.sessions[token] = r.ID
			ident := r.Identity
			return &domain.Session{AccessToken: token, TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour), Identity: &ident}, nil
		}
	}
	return nil, identity.ErrInvalidCredentials
}

func (f *Identities) SignOut(_ context.Context, token string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.sessions[token]; !ok {
		return identity.ErrInvalidSession
	}
	delete(f.s.sessions, token)
	return nil
}

func (f *Identities) Authenticate(_ context.Context, token string) (*domain.Identity, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	id, ok := f.s.sessions[token]
	if !ok {
		return nil, identity.ErrInvalidSession
	}
	for _, r := range f.s.identities {
		if r.ID == id {
			ident := r.Identity
			return &ident, nil
		}
	}
	return nil, identity.ErrInvalidSession
}

// Profiles is an in-memory repository.ProfileRepository.
type Profiles struct{ s *Store }

func (f *Profiles) Insert(_ context.Context, profile *domain.Profile) error {
	if err := f.s.Failures.check("profiles.Insert"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, exists := f.s.profiles[profile.UserID]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	copied := *profile
	f.s.profiles[profile.UserID] = &copied
	return nil
}

func (f *Profiles) Upsert(_ context.Context, profile *domain.Profile) error {
	if err := f.s.Failures.check("profiles.Upsert"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	now := time.Now()
	if existing, ok := f.s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	copied := *profile
	f.s.profiles[profile.UserID] = &copied
	return nil
}

func (f *Profiles) GetByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	if err := f.s.Failures.check("profiles.GetByUserID"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.profiles[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (f *Profiles) UpdateRole(_ context.Context, userID string, role domain.RoleKey) error {
	if err := f.s.Failures.check("profiles.UpdateRole"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.profiles[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	if role == domain.RolePro {
		if _, hasPro := f.s.pros[userID]; !hasPro {
			return repository.ErrCheckViolation
		}
	}
	p.RoleKey = role
	p.UpdatedAt = time.Now()
	return nil
}

func (f *Profiles) UpdateFields(_ context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	if err := f.s.Failures.check("profiles.UpdateFields"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.profiles[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	set := func(dst **string, v *string) {
		switch {
		case v == nil:
		case *v == "":
			*dst = nil
		default:
			value := *v
			*dst = &value
		}
	}
	set(&p.PhoneNumber, patch.PhoneNumber)
	set(&p.Address, patch.Address)
	set(&p.City, patch.City)
	set(&p.PostalCode, patch.PostalCode)
	set(&p.DepartmentCode, patch.DepartmentCode)
	set(&p.AvatarURL, patch.AvatarURL)
	if !patch.Empty() {
		p.UpdatedAt = time.Now()
	}
	copied := *p
	return &copied, nil
}

func (f *Profiles) Delete(_ context.Context, userID string) error {
	if err := f.s.Failures.check("profiles.Delete"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.profiles, userID)
	delete(f.s.pros, userID)
	return nil
}

func (f *Profiles) List(_ context.Context, filter repository.ProfileFilter) ([]domain.Profile, int, error) {
	if err := f.s.Failures.check("profiles.List"); err != nil {
		return nil, 0, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var matched []domain.Profile
	search := strings.ToLower(filter.Search)
	for _, p := range f.s.profiles {
		if filter.Role != nil && p.RoleKey != *filter.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), search) {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case repository.SortLastName:
			less = matched[i].LastName < matched[j].LastName
		case repository.SortRoleKey:
			less = matched[i].RoleKey < matched[j].RoleKey
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if filter.Descending {
			return !less
		}
		return less
	})
	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *Profiles) CountByRole(_ context.Context, role *domain.RoleKey) (int, error) {
	if err := f.s.Failures.check("profiles.CountByRole"); err != nil {
		return 0, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, p := range f.s.profiles {
		if role == nil || p.RoleKey == *role {
			n++
		}
	}
	return n, nil
}

func (f *Profiles) CountActiveSince(_ context.Context, since time.Time) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, p := range f.s.profiles {
		if !p.UpdatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *Profiles) ListUserIDs(_ context.Context) ([]string, error) {
	if err := f.s.Failures.check("profiles.ListUserIDs"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	ids := make([]string, 0, len(f.s.profiles))
	for id := range f.s.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

// ProProfiles is an in-memory repository.ProProfileRepository.
type ProProfiles struct{ s *Store }

func (f *ProProfiles) Insert(_ context.Context, pro *domain.ProProfile) error {
	if err := f.s.Failures.check("pros.Insert"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.profiles[pro.UserID]; !ok {
		return fmt.Errorf("pro_profile: no profile for %s", pro.UserID)
	}
	if _, exists := f.s.pros[pro.UserID]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now()
	pro.CreatedAt, pro.UpdatedAt = now, now
	copied := *pro
	f.s.pros[pro.UserID] = &copied
	return nil
}

func (f *ProProfiles) GetByUserID(_ context.Context, userID string) (*domain.ProProfile, error) {
	if err := f.s.Failures.check("pros.GetByUserID"); err != nil {
		return nil, err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.pros[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (f *ProProfiles) Update(_ context.Context, pro *domain.ProProfile) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.pros[pro.UserID]; !ok {
		return pgx.ErrNoRows
	}
	pro.UpdatedAt = time.Now()
	copied := *pro
	f.s.pros[pro.UserID] = &copied
	return nil
}

func (f *ProProfiles) Delete(_ context.Context, userID string) error {
	if err := f.s.Failures.check("pros.Delete"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.pros[userID]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.s.pros, userID)
	return nil
}

// Reference is an in-memory repository.ReferenceRepository.
type Reference struct{ s *Store }

func (f *Reference) ListSectors(context.Context) ([]domain.Sector, error) {
	if err := f.s.Failures.check("reference.ListSectors"); err != nil {
		return nil, err
	}
	return append([]domain.Sector(nil), f.s.sectors...), nil
}

func (f *Reference) ListCategories(_ context.Context, sectorKey *string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.s.categories {
		if sectorKey == nil || c.SectorKey == *sectorKey {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Reference) GetCategory(_ context.Context, categoryKey string) (*domain.Category, error) {
	if err := f.s.Failures.check("reference.GetCategory"); err != nil {
		return nil, err
	}
	for _, c := range f.s.categories {
		if c.Key == categoryKey {
			copied := c
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *Reference) ListDepartments(context.Context) ([]domain.Department, error) {
	return append([]domain.Department(nil), f.s.depts...), nil
}

// Procedures is an in-memory repository.ProcedureRepository. Each call is applied atomically.
type Procedures struct{ s *Store }

func (f *Procedures) BecomeProfessional(_ context.Context, args repository.BecomeProfessionalArgs) error {
	if err := f.s.Failures.check("procedures.BecomeProfessional"); err != nil {
		return err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.profiles[args.UserID]
	if !ok {
		return pgx.ErrNoRows
	}
	if _, exists := f.s.pros[args.UserID]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now()
	f.s.pros[args.UserID] = &domain.ProProfile{
		UserID:          args.UserID,
		CategoryKey:     args.CategoryKey,
		SectorKey:       args.SectorKey,
		BusinessName:    args.BusinessName,
		Description:     args.Description,
		ExperienceYears: args.ExperienceYears,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p.RoleKey = domain.RolePro
	p.UpdatedAt = now
	return nil
}

func (f *Procedures) AdminUpdateUserRole(_ context.Context, targetUserID string, role domain.RoleKey) (domain.RoleKey, error) {
	if err := f.s.Failures.check("procedures.AdminUpdateUserRole"); err != nil {
		return "", err
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.profiles[targetUserID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	previous := p.RoleKey
	if role == domain.RolePro {
		if _, hasPro := f.s.pros[targetUserID]; !hasPro {
			return "", repository.ErrCheckViolation
		}
	}
	if previous == domain.RolePro && role != domain.RolePro {
		delete(f.s.pros, targetUserID)
	}
	p.RoleKey = role
	p.UpdatedAt = time.Now()
	return previous, nil
}

var (
	_ identity.Service                = (*Identities)(nil)
	_ repository.ProfileRepository    = (*Profiles)(nil)
	_ repository.ProProfileRepository = (*ProProfiles)(nil)
	_ repository.ReferenceRepository  = (*Reference)(nil)
	_ repository.ProcedureRepository  = (*Procedures)(nil)
)
