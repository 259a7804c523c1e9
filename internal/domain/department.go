package domain

// Department is an administrative French département used as an optional profile locality.
type Department struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}
