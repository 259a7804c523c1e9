package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// ErrCheckViolation is returned when a stored function trips a table check or the pro role trigger.
var ErrCheckViolation = errors.New("check violation")

// BecomeProfessionalArgs feeds the become_professional stored function.
type BecomeProfessionalArgs struct {
	UserID          string
	CategoryKey     string
	SectorKey       string
	BusinessName    *string
	Description     *string
	ExperienceYears *int
}

// ProcedureRepository invokes the atomic multi-row transitions implemented in the database.
type ProcedureRepository interface {
	BecomeProfessional(ctx context.Context, args BecomeProfessionalArgs) error
	AdminUpdateUserRole(ctx context.Context, targetUserID string, role domain.RoleKey) (domain.RoleKey, error)
}

type procedureRepository struct {
	pool *pgxpool.Pool
}

// NewProcedureRepository builds the repository.
func NewProcedureRepository(pool *pgxpool.Pool) ProcedureRepository {
	return &procedureRepository{pool: pool}
}

func (r *procedureRepository) BecomeProfessional(ctx context.Context, args BecomeProfessionalArgs) error {
	const query = `SELECT become_professional($1,$2,$3,$4,$5,$6)`
	_, err := r.pool.Exec(ctx, query,
		args.UserID,
		args.CategoryKey,
		args.SectorKey,
		args.BusinessName,
		args.Description,
		args.ExperienceYears,
	)
	return translateProcedureError(err)
}

// AdminUpdateUserRole sets the role of the target and returns the role it had before.
func (r *procedureRepository) AdminUpdateUserRole(ctx context.Context, targetUserID string, role domain.RoleKey) (domain.RoleKey, error) {
	var previous domain.RoleKey
	err := r.pool.QueryRow(ctx, `SELECT admin_update_user_role($1,$2)`, targetUserID, role).Scan(&previous)
	if err != nil {
		return "", translateProcedureError(err)
	}
	return previous, nil
}

// translateProcedureError maps the SQLSTATEs raised by the stored functions.
func translateProcedureError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "P0002":
			return pgx.ErrNoRows
		case "23505":
			return ErrDuplicate
		case "23514":
			return ErrCheckViolation
		}
	}
	return err
}
