package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountProvisioned      EventType = "account_provisioned"
	EventProvisioningCompensated EventType = "provisioning_compensated"
	EventIdentityOrphaned        EventType = "identity_orphaned"
	EventProfessionalPromoted    EventType = "professional_promoted"
	EventRoleChanged             EventType = "role_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, userID string, actorID *string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountProvisionedPayload payload.
type AccountProvisionedPayload struct {
	Email       string             `json:"email"`
	AccountType domain.AccountType `json:"account_type"`
	RoleKey     domain.RoleKey     `json:"role_key"`
	Variant     string             `json:"variant"`
}

// ProvisioningCompensatedPayload payload.
type ProvisioningCompensatedPayload struct {
	Email      string   `json:"email"`
	Variant    string   `json:"variant"`
	FailedStep string   `json:"failed_step"`
	Undone     []string `json:"undone"`
}

// IdentityOrphanedPayload payload.
type IdentityOrphanedPayload struct {
	Email  string `json:"email"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// ProfessionalPromotedPayload payload.
type ProfessionalPromotedPayload struct {
	SectorKey   string `json:"sector_key"`
	CategoryKey string `json:"category_key"`
}

// RoleChangedPayload payload.
type RoleChangedPayload struct {
	OldRole domain.RoleKey `json:"old_role"`
	NewRole domain.RoleKey `json:"new_role"`
}
