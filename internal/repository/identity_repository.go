package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate key")

// IdentityRecord is a stored credential principal including its password hash.
type IdentityRecord struct {
	domain.Identity
	PasswordHash string
}

// IdentityRepository defines persistence access for locally stored identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity *IdentityRecord) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*IdentityRecord, error)
	GetByEmail(ctx context.Context, email string) (*IdentityRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.Identity, error)
	TouchSignIn(ctx context.Context, id string) error
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Create(ctx context.Context, identity *IdentityRecord) error {
	const query = `
        INSERT INTO identities (email, password_hash, metadata)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	metadata, err := json.Marshal(identity.Metadata)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, query,
		identity.Email,
		identity.PasswordHash,
		metadata,
	).Scan(&identity.ID, &identity.CreatedAt)
	return translateWriteError(err)
}

func (r *identityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*IdentityRecord, error) {
	const query = `
        SELECT id, email, password_hash, metadata, created_at, last_sign_in_at
        FROM identities WHERE id=$1`

	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	const query = `
        SELECT id, email, password_hash, metadata, created_at, last_sign_in_at
        FROM identities WHERE email=$1`

	return scanIdentity(r.pool.QueryRow(ctx, query, email))
}

func (r *identityRepository) List(ctx context.Context, limit, offset int) ([]domain.Identity, error) {
	const query = `
        SELECT id, email, password_hash, metadata, created_at, last_sign_in_at
        FROM identities ORDER BY created_at, id LIMIT $1 OFFSET $2`

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Identity
	for rows.Next() {
		record, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record.Identity)
	}
	return result, rows.Err()
}

func (r *identityRepository) TouchSignIn(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE identities SET last_sign_in_at=NOW() WHERE id=$1`, id)
	return err
}

func scanIdentity(row pgx.Row) (*IdentityRecord, error) {
	var (
		record   IdentityRecord
		metadata []byte
	)
	if err := row.Scan(
		&record.ID,
		&record.Email,
		&record.PasswordHash,
		&metadata,
		&record.CreatedAt,
		&record.LastSignInAt,
	); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

// translateWriteError maps unique violations onto ErrDuplicate.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
