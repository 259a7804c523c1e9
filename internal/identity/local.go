package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

// Revocations remembers signed-out session ids until their natural expiry.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LocalProvider stores identities in Postgres and issues JWT sessions.
type LocalProvider struct {
	store       repository.IdentityRepository
	tokens      *auth.TokenManager
	revocations Revocations
	hasher      *auth.Hasher
}

// NewLocalProvider wires the Postgres-backed credential store.
func NewLocalProvider(store repository.IdentityRepository, tokens *auth.TokenManager, revocations Revocations, bcryptCost int) *LocalProvider {
	return &LocalProvider{store: store, tokens: tokens, revocations: revocations, hasher: auth.NewHasher(bcryptCost)}
}

func (p *LocalProvider) List(ctx context.Context, page Page) ([]domain.Identity, error) {
	page = normalizePage(page)
	return p.store.List(ctx, page.PerPage, (page.Number-1)*page.PerPage)
}

func (p *LocalProvider) Create(ctx context.Context, in CreateInput) (*domain.Identity, error) {
	hash, err := p.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	record := &repository.IdentityRecord{
		Identity:     domain.Identity{Email: in.Email, Metadata: in.Metadata},
		PasswordHash: hash,
	}
	if err := p.store.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &record.Identity, nil
}

func (p *LocalProvider) Delete(ctx context.Context, id string) error {
	if err := p.store.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	record, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.hasher.Burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !p.hasher.Verify(record.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	issued, err := p.tokens.GenerateToken(record.ID, record.Email)
	if err != nil {
		return nil, err
	}
	if err := p.store.TouchSignIn(ctx, record.ID); err != nil {
		return nil, err
	}
	now := time.Now()
	record.LastSignInAt = &now

	return &domain.Session{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		ExpiresAt:   issued.ExpiresAt,
		Identity:    &record.Identity,
	}, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.ParseToken(accessToken)
	if err != nil {
		return ErrInvalidSession
	}
	return p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (p *LocalProvider) Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := p.tokens.ParseToken(accessToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	revoked, err := p.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidSession
	}
	record, err := p.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return &record.Identity, nil
}

const revokedKeyPrefix = "session:revoked:"

// RedisRevocations keeps the sign-out denylist in Redis with a TTL matching the token.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations builds the denylist on top of the shared client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
