package domain

import "time"

// Session is an authenticated sign-in issued by the identity service.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    *Identity `json:"user"`
}

// AccountSummary is returned by the provisioning entry points.
type AccountSummary struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email"`
	AccountType AccountType `json:"account_type"`
	RoleKey     RoleKey     `json:"role_key"`
	CategoryKey string      `json:"category_key,omitempty"`
	SectorKey   string      `json:"sector_key,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	Profile     *Profile    `json:"profile,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
