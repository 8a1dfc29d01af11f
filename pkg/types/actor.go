package types

import (
	"github.com/google/uuid"

	"github.com/hpratama/resellhub-backend/pkg/enums"
)

// Actor is the authenticated identity every mutating operation runs as.
// Services check it before touching state.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// IsAdmin reports whether the actor operates the administrator side.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// IsReseller reports whether the actor operates the reseller side.
func (a Actor) IsReseller() bool {
	return a.Role == enums.ActorRoleReseller
}

// IsZero reports whether the actor is unset.
func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}
