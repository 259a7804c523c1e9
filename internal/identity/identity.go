// Package identity adapts credential stores behind a single Service contract.
//
// The store owns password hashes and email uniqueness; callers only see ids,
// emails and creation metadata.
package identity

import (
	"context"
	"errors"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

var (
	ErrEmailTaken         = errors.New("identity: email already registered")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidSession     = errors.New("identity: invalid session")
	ErrNotFound           = errors.New("identity: not found")
	ErrMalformedResponse  = errors.New("identity: malformed store response")
)

// Page selects a window of the identity listing. Number starts at 1.
type Page struct {
	Number  int
	PerPage int
}

// CreateInput describes a new identity.
type CreateInput struct {
	Email    string
	Password string
	Metadata map[string]any
}

// Service is the credential store consumed by provisioning and session handling.
type Service interface {
	List(ctx context.Context, page Page) ([]domain.Identity, error)
	Create(ctx context.Context, in CreateInput) (*domain.Identity, error)
	Delete(ctx context.Context, id string) error
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error)
}

// FindByEmail pages through List until an exact email match is found or the listing ends.
func FindByEmail(ctx context.Context, svc Service, email string, perPage int) (*domain.Identity, error) {
	if perPage <= 0 {
		perPage = 100
	}
	for number := 1; ; number++ {
		identities, err := svc.List(ctx, Page{Number: number, PerPage: perPage})
		if err != nil {
			return nil, err
		}
		for i := range identities {
			if identities[i].Email == email {
				return &identities[i], nil
			}
		}
		if len(identities) < perPage {
			return nil, nil
		}
	}
}

func normalizePage(page Page) Page {
	if page.Number < 1 {
		page.Number = 1
	}
	if page.PerPage <= 0 {
		page.PerPage = 50
	}
	return page
}
