package domain

import "time"

// ProProfile holds professional business attributes, one-to-one with Profile.
type ProProfile struct {
	UserID          string    `json:"user_id"`
	CategoryKey     string    `json:"category_key"`
	SectorKey       string    `json:"sector_key"`
	BusinessName    *string   `json:"business_name,omitempty"`
	Description     *string   `json:"description,omitempty"`
	ExperienceYears *int      `json:"experience_years,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Sector groups professional categories (for example "batiment").
type Sector struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Description *string    `json:"description,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
}

// Category is a trade that belongs to exactly one sector.
type Category struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Description *string `json:"description,omitempty"`
	SectorKey   string  `json:"sector_key,omitempty"`
}
