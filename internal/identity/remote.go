package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignInAt *time.Time     `json:"last_sign_in_at"`
}

func (u remoteUser) toDomain() domain.Identity {
	return domain.Identity{
		ID:           u.ID,
		Email:        u.Email,
		Metadata:     u.UserMetadata,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

type remoteUserList struct {
	Users []remoteUser `json:"users"`
}

type remoteCreateRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

type remoteTokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        remoteUser `json:"user"`
}

type remoteError struct {
	Code    any    `json:"code"`
	Message string `json:"msg"`
	ErrCode string `json:"error_code"`
	Error   string `json:"error"`
}

func (e remoteError) text() string {
	for _, s := range []string{e.Message, e.ErrCode, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// RemoteProvider talks to a hosted auth admin API using a service key.
type RemoteProvider struct {
	client     *resty.Client
	serviceKey string
	logger     *zap.Logger
}

// NewRemoteProvider configures the HTTP client for the hosted identity store.
func NewRemoteProvider(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *RemoteProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("apikey", serviceKey)

	return &RemoteProvider{client: client, serviceKey: serviceKey, logger: logger}
}

func (p *RemoteProvider) admin(ctx context.Context) *resty.Request {
	return p.client.R().
		SetContext(ctx).
		SetError(&remoteError{}).
		SetAuthToken(p.serviceKey)
}

func (p *RemoteProvider) List(ctx context.Context, page Page) ([]domain.Identity, error) {
	page = normalizePage(page)

	var result remoteUserList
	resp, err := p.admin(ctx).
		SetQueryParam("page", strconv.Itoa(page.Number)).
		SetQueryParam("per_page", strconv.Itoa(page.PerPage)).
		Get("/admin/users")
	if err := p.check(resp, err, "list users"); err != nil {
		return nil, err
	}
	if err := p.decode(resp, &result, "list users"); err != nil {
		return nil, err
	}
	if result.Users == nil {
		p.logger.Error("identity store list without users field", zap.Int("page", page.Number))
		return nil, fmt.Errorf("identity store list users: %w", ErrMalformedResponse)
	}

	identities := make([]domain.Identity, 0, len(result.Users))
	for _, u := range result.Users {
		identities = append(identities, u.toDomain())
	}
	return identities, nil
}

func (p *RemoteProvider) Create(ctx context.Context, in CreateInput) (*domain.Identity, error) {
	var created remoteUser
	resp, err := p.admin(ctx).
		SetBody(remoteCreateRequest{
			Email:        in.Email,
			Password:     in.Password,
			EmailConfirm: true,
			UserMetadata: in.Metadata,
		}).
		Post("/admin/users")
	if err == nil && isDuplicate(resp) {
		return nil, ErrEmailTaken
	}
	if err := p.check(resp, err, "create user"); err != nil {
		return nil, err
	}
	if err := p.decode(resp, &created, "create user"); err != nil {
		return nil, err
	}

	identity := created.toDomain()
	return &identity, nil
}

func (p *RemoteProvider) Delete(ctx context.Context, id string) error {
	resp, err := p.admin(ctx).
		SetPathParam("id", id).
		Delete("/admin/users/{id}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	return p.check(resp, err, "delete user")
}

func (p *RemoteProvider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var token remoteTokenResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetError(&remoteError{}).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/token")
	if err == nil && (resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized) {
		return nil, ErrInvalidCredentials
	}
	if err := p.check(resp, err, "sign in"); err != nil {
		return nil, err
	}
	if err := p.decode(resp, &token, "sign in"); err != nil {
		return nil, err
	}

	identity := token.User.toDomain()
	return &domain.Session{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		Identity:    &identity,
	}, nil
}

func (p *RemoteProvider) SignOut(ctx context.Context, accessToken string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetError(&remoteError{}).
		SetAuthToken(accessToken).
		Post("/logout")
	if err == nil && resp.StatusCode() == http.StatusUnauthorized {
		return ErrInvalidSession
	}
	return p.check(resp, err, "sign out")
}

func (p *RemoteProvider) Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error) {
	var user remoteUser
	resp, err := p.client.R().
		SetContext(ctx).
		SetError(&remoteError{}).
		SetAuthToken(accessToken).
		Get("/user")
	if err == nil && (resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden) {
		return nil, ErrInvalidSession
	}
	if err := p.check(resp, err, "get user"); err != nil {
		return nil, err
	}
	if err := p.decode(resp, &user, "get user"); err != nil {
		return nil, err
	}
	identity := user.toDomain()
	return &identity, nil
}

func (p *RemoteProvider) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		p.logger.Error("identity store call failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("identity store %s: %w", op, err)
	}
	if resp.IsError() {
		msg := ""
		if re, ok := resp.Error().(*remoteError); ok && re != nil {
			msg = re.text()
		}
		p.logger.Warn("identity store returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return fmt.Errorf("identity store %s: status %d: %s", op, resp.StatusCode(), msg)
	}
	return nil
}

// decode reads a successful body whatever content type the store declared.
// An empty or unparsable body is an error, never an empty result.
func (p *RemoteProvider) decode(resp *resty.Response, out any, op string) error {
	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		p.logger.Error("identity store returned empty body", zap.String("op", op), zap.Int("status_code", resp.StatusCode()))
		return fmt.Errorf("identity store %s: empty body: %w", op, ErrMalformedResponse)
	}
	if err := json.Unmarshal(body, out); err != nil {
		p.logger.Error("identity store body not decodable",
			zap.String("op", op),
			zap.String("content_type", resp.Header().Get("Content-Type")),
			zap.Error(err),
		)
		return fmt.Errorf("identity store %s: %w", op, errors.Join(ErrMalformedResponse, err))
	}
	return nil
}

func isDuplicate(resp *resty.Response) bool {
	switch resp.StatusCode() {
	case http.StatusConflict:
		return true
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		re, ok := resp.Error().(*remoteError)
		if !ok || re == nil {
			return false
		}
		text := strings.ToLower(re.text())
		return strings.Contains(text, "already") || strings.Contains(text, "exists")
	}
	return false
}
