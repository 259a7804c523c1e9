package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// APIError is a non-2xx answer from the accounts API.
type APIError struct {
	Status  int             `json:"-"`
	Message string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ClientConfig describes how the wizard reaches the accounts API.
type ClientConfig struct {
	BaseURL      string
	Origin       string
	MarkerHeader string
	MarkerValue  string
	Timeout      time.Duration
}

// Client calls the guarded accounts API the way the first-party front end does.
type Client struct {
	http *resty.Client
}

// NewClient sets the marker header and Origin on every request.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Origin", cfg.Origin)
	if cfg.MarkerHeader != "" {
		client.SetHeader(cfg.MarkerHeader, cfg.MarkerValue)
	}
	return &Client{http: client}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var env envelope
	req := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil || apiErr.Message == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// CheckEmail reports whether email is still free.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	var result struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/check-email", dto.CheckEmailRequest{Email: email}, &result); err != nil {
		return false, err
	}
	return result.Available, nil
}

// Register submits the composed wizard payload.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*domain.AccountSummary, error) {
	var summary domain.AccountSummary
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ProData lists the sectors with their categories.
func (c *Client) ProData(ctx context.Context) ([]domain.Sector, error) {
	var result struct {
		Sectors []domain.Sector `json:"sectors"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pro-data", nil, &result); err != nil {
		return nil, err
	}
	return result.Sectors, nil
}

// Departments lists the departments selectable on the personal step.
func (c *Client) Departments(ctx context.Context) ([]domain.Department, error) {
	var result struct {
		Departments []domain.Department `json:"departments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/departments", nil, &result); err != nil {
		return nil, err
	}
	return result.Departments, nil
}
