package models

import "github.com/google/uuid"

// Actor identifies the acting user for guard evaluation. Identity and role
// resolution happen upstream; this workflow only authorizes against the
// supplied role string.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// Role constants for users within an organization.
const (
	RoleOwner           = "owner"
	RoleAdmin           = "admin"
	RoleRegionalManager = "regional_manager"
	RoleStoreManager    = "store_manager"
	RoleEvaluator       = "evaluator"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleOwner, RoleAdmin, RoleRegionalManager, RoleStoreManager, RoleEvaluator}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanReview reports whether the actor's role may sign off or push back
// action items awaiting review.
func (a Actor) CanReview() bool {
	switch a.Role {
	case RoleRegionalManager, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// IsManager reports whether the actor holds a store-manager-or-above role.
func (a Actor) IsManager() bool {
	switch a.Role {
	case RoleStoreManager, RoleRegionalManager, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the actor may review self-assessments.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}
