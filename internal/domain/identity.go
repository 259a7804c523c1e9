package domain

import "time"

// Identity is a credential-store principal. The password hash never leaves the store.
type Identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
}

// Metadata keys written at identity creation.
const (
	MetaFirstName      = "first_name"
	MetaLastName       = "last_name"
	MetaAccountType    = "account_type"
	MetaCreatedByAdmin = "created_by_admin"
	MetaCreatedAt      = "created_at"
)
