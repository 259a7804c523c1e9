package domain

import "time"

// Profile is the user-facing account record, one-to-one with an Identity.
type Profile struct {
	UserID         string      `json:"user_id"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	PhoneNumber    *string     `json:"phone_number,omitempty"`
	Address        *string     `json:"address,omitempty"`
	City           *string     `json:"city,omitempty"`
	PostalCode     *string     `json:"postal_code,omitempty"`
	DepartmentCode *string     `json:"department_code,omitempty"`
	RoleKey        RoleKey     `json:"role_key"`
	AvatarURL      *string     `json:"avatar_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Email          string      `json:"email,omitempty"`
	LastSignInAt   *time.Time  `json:"last_sign_in_at,omitempty"`
	Department     *Department `json:"department,omitempty"`
}

// ProfilePatch carries the contact fields a user may change on their own profile.
type ProfilePatch struct {
	FirstName      *string
	LastName       *string
	PhoneNumber    *string
	Address        *string
	City           *string
	PostalCode     *string
	DepartmentCode *string
	AvatarURL      *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PhoneNumber == nil && p.Address == nil &&
		p.City == nil && p.PostalCode == nil && p.DepartmentCode == nil && p.AvatarURL == nil
}
