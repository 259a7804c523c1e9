package dto

// SignInRequest payload for sign-in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserListQuery binds the admin listing query string.
type UserListQuery struct {
	Page      int    `query:"page"`
	Limit     int    `query:"limit"`
	Search    string `query:"search"`
	Role      string `query:"role"`
	SortBy    string `query:"sort_by"`
	SortOrder string `query:"sort_order"`
}
