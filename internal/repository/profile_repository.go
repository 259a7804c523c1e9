package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// ProfileRepository handles persistence for user profiles.
type ProfileRepository interface {
	Insert(ctx context.Context, profile *domain.Profile) error
	Upsert(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateRole(ctx context.Context, userID string, role domain.RoleKey) error
	UpdateFields(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, filter ProfileFilter) ([]domain.Profile, int, error)
	CountByRole(ctx context.Context, role *domain.RoleKey) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// ProfileSort names the columns the admin listing may order by.
type ProfileSort string

const (
	SortCreatedAt ProfileSort = "created_at"
	SortLastName  ProfileSort = "last_name"
	SortRoleKey   ProfileSort = "role_key"
)

// ProfileFilter defines query params for profile listing.
type ProfileFilter struct {
	Search     string
	Role       *domain.RoleKey
	SortBy     ProfileSort
	Descending bool
	Limit      int
	Offset     int
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileColumns = `p.user_id, p.first_name, p.last_name, p.phone_number, p.address, p.city,
        p.postal_code, p.department_code, p.role_key, p.avatar_url, p.created_at, p.updated_at,
        d.code, d.name, d.region`

const profileFrom = `user_profile p LEFT JOIN french_departments d ON d.code = p.department_code`

func (r *profileRepository) Insert(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO user_profile (user_id, first_name, last_name, phone_number, address, city,
            postal_code, department_code, role_key, avatar_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		profile.UserID,
		profile.FirstName,
		profile.LastName,
		profile.PhoneNumber,
		profile.Address,
		profile.City,
		profile.PostalCode,
		profile.DepartmentCode,
		profile.RoleKey,
		profile.AvatarURL,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	return translateWriteError(err)
}

func (r *profileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO user_profile (user_id, first_name, last_name, phone_number, address, city,
            postal_code, department_code, role_key, avatar_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id) DO UPDATE SET
            first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
            phone_number=EXCLUDED.phone_number, address=EXCLUDED.address, city=EXCLUDED.city,
            postal_code=EXCLUDED.postal_code, department_code=EXCLUDED.department_code,
            role_key=EXCLUDED.role_key, avatar_url=EXCLUDED.avatar_url, updated_at=NOW()
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		profile.UserID,
		profile.FirstName,
		profile.LastName,
		profile.PhoneNumber,
		profile.Address,
		profile.City,
		profile.PostalCode,
		profile.DepartmentCode,
		profile.RoleKey,
		profile.AvatarURL,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM ` + profileFrom + ` WHERE p.user_id=$1`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

func (r *profileRepository) UpdateRole(ctx context.Context, userID string, role domain.RoleKey) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE user_profile SET role_key=$1, updated_at=NOW() WHERE user_id=$2`, role, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *profileRepository) UpdateFields(ctx context.Context, userID string, patch domain.ProfilePatch) (*domain.Profile, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value *string, nullable bool) {
		if value == nil {
			return
		}
		args = append(args, *value)
		placeholder := fmt.Sprintf("$%d", len(args))
		if nullable {
			// an empty string clears the column
			placeholder = "NULLIF(" + placeholder + ", '')"
		}
		sets = append(sets, column+"="+placeholder)
	}
	add("first_name", patch.FirstName, false)
	add("last_name", patch.LastName, false)
	add("phone_number", patch.PhoneNumber, true)
	add("address", patch.Address, true)
	add("city", patch.City, true)
	add("postal_code", patch.PostalCode, true)
	add("department_code", patch.DepartmentCode, true)
	add("avatar_url", patch.AvatarURL, true)

	if len(sets) > 0 {
		args = append(args, userID)
		query := fmt.Sprintf(`UPDATE user_profile SET %s, updated_at=NOW() WHERE user_id=$%d`,
			strings.Join(sets, ", "), len(args))
		cmd, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if cmd.RowsAffected() == 0 {
			return nil, pgx.ErrNoRows
		}
	}
	return r.GetByUserID(ctx, userID)
}

func (r *profileRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_profile WHERE user_id=$1`, userID)
	return err
}

func (r *profileRepository) List(ctx context.Context, filter ProfileFilter) ([]domain.Profile, int, error) {
	query := `SELECT ` + profileColumns + `, COUNT(*) OVER() FROM ` + profileFrom
	args := []any{}
	clauses := []string{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR p.city ILIKE $%d)", n, n, n))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("p.role_key=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	column := "p.created_at"
	switch filter.SortBy {
	case SortLastName:
		column = "p.last_name"
	case SortRoleKey:
		column = "p.role_key"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, p.user_id", column, direction)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Profile
		total  int
	)
	for rows.Next() {
		profile, err := scanProfile(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *profile)
	}
	return result, total, rows.Err()
}

func (r *profileRepository) CountByRole(ctx context.Context, role *domain.RoleKey) (int, error) {
	var count int
	if role == nil {
		err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_profile`).Scan(&count)
		return count, err
	}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_profile WHERE role_key=$1`, *role).Scan(&count)
	return count, err
}

func (r *profileRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_profile WHERE updated_at >= $1`, since).Scan(&count)
	return count, err
}

func (r *profileRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM user_profile`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanProfile(row pgx.Row, extra ...any) (*domain.Profile, error) {
	var (
		profile    domain.Profile
		deptCode   *string
		deptName   *string
		deptRegion *string
	)
	dest := []any{
		&profile.UserID,
		&profile.FirstName,
		&profile.LastName,
		&profile.PhoneNumber,
		&profile.Address,
		&profile.City,
		&profile.PostalCode,
		&profile.DepartmentCode,
		&profile.RoleKey,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
		&deptCode,
		&deptName,
		&deptRegion,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if deptCode != nil {
		profile.Department = &domain.Department{Code: *deptCode}
		if deptName != nil {
			profile.Department.Name = *deptName
		}
		if deptRegion != nil {
			profile.Department.Region = *deptRegion
		}
	}
	return &profile, nil
}
