package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// ProProfileRepository manages professional profile rows.
type ProProfileRepository interface {
	Insert(ctx context.Context, pro *domain.ProProfile) error
	GetByUserID(ctx context.Context, userID string) (*domain.ProProfile, error)
	Update(ctx context.Context, pro *domain.ProProfile) error
	Delete(ctx context.Context, userID string) error
}

type proProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProProfileRepository builds the repository.
func NewProProfileRepository(pool *pgxpool.Pool) ProProfileRepository {
	return &proProfileRepository{pool: pool}
}

func (r *proProfileRepository) Insert(ctx context.Context, pro *domain.ProProfile) error {
	const query = `
        INSERT INTO pro_profile (user_id, category_key, sector_key, business_name, description, experience_years)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		pro.UserID,
		pro.CategoryKey,
		pro.SectorKey,
		pro.BusinessName,
		pro.Description,
		pro.ExperienceYears,
	).Scan(&pro.CreatedAt, &pro.UpdatedAt)
	return translateWriteError(err)
}

func (r *proProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.ProProfile, error) {
	const query = `
        SELECT user_id, category_key, sector_key, business_name, description, experience_years, created_at, updated_at
        FROM pro_profile WHERE user_id=$1`
	var pro domain.ProProfile
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&pro.UserID,
		&pro.CategoryKey,
		&pro.SectorKey,
		&pro.BusinessName,
		&pro.Description,
		&pro.ExperienceYears,
		&pro.CreatedAt,
		&pro.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &pro, nil
}

func (r *proProfileRepository) Update(ctx context.Context, pro *domain.ProProfile) error {
	const query = `
        UPDATE pro_profile SET category_key=$1, sector_key=$2, business_name=$3, description=$4,
            experience_years=$5, updated_at=NOW()
        WHERE user_id=$6
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		pro.CategoryKey,
		pro.SectorKey,
		pro.BusinessName,
		pro.Description,
		pro.ExperienceYears,
		pro.UserID,
	).Scan(&pro.UpdatedAt)
}

func (r *proProfileRepository) Delete(ctx context.Context, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM pro_profile WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
