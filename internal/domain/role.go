package domain

// RoleKey is the closed set of account roles stored on a profile.
type RoleKey string

const (
	RoleUser  RoleKey = "user"
	RolePro   RoleKey = "pro"
	RoleAdmin RoleKey = "admin"
)

// Valid reports whether r is one of the known roles.
func (r RoleKey) Valid() bool {
	switch r {
	case RoleUser, RolePro, RoleAdmin:
		return true
	}
	return false
}

// AccountType is the kind of account requested at registration.
type AccountType string

const (
	AccountTypeUser AccountType = "user"
	AccountTypePro  AccountType = "pro"
)
