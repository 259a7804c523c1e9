package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// ReferenceRepository reads the static lookup tables used by the signup flow.
type ReferenceRepository interface {
	ListSectors(ctx context.Context) ([]domain.Sector, error)
	ListCategories(ctx context.Context, sectorKey *string) ([]domain.Category, error)
	GetCategory(ctx context.Context, categoryKey string) (*domain.Category, error)
	ListDepartments(ctx context.Context) ([]domain.Department, error)
}

type referenceRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceRepository builds the repository.
func NewReferenceRepository(pool *pgxpool.Pool) ReferenceRepository {
	return &referenceRepository{pool: pool}
}

func (r *referenceRepository) ListSectors(ctx context.Context) ([]domain.Sector, error) {
	const query = `SELECT key, label, description FROM pro_sector ORDER BY label`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Sector
	for rows.Next() {
		var sector domain.Sector
		if err := rows.Scan(&sector.Key, &sector.Label, &sector.Description); err != nil {
			return nil, err
		}
		result = append(result, sector)
	}
	return result, rows.Err()
}

func (r *referenceRepository) ListCategories(ctx context.Context, sectorKey *string) ([]domain.Category, error) {
	query := `SELECT key, label, description, sector_key FROM pro_category`
	args := []any{}
	if sectorKey != nil {
		query += ` WHERE sector_key=$1`
		args = append(args, *sectorKey)
	}
	query += ` ORDER BY label`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.Key, &category.Label, &category.Description, &category.SectorKey); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}

func (r *referenceRepository) GetCategory(ctx context.Context, categoryKey string) (*domain.Category, error) {
	const query = `SELECT key, label, description, sector_key FROM pro_category WHERE key=$1`
	var category domain.Category
	if err := r.pool.QueryRow(ctx, query, categoryKey).Scan(
		&category.Key,
		&category.Label,
		&category.Description,
		&category.SectorKey,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *referenceRepository) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	const query = `SELECT code, name, region FROM french_departments ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.Code, &dept.Name, &dept.Region); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}
