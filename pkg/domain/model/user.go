package model

import (
	"time"

	"github.com/chapterkit/doorman/pkg/domain/types"
)

// User is the soft per-user record. Created on first interaction, updated on
// verification, never hard-deleted so the audit trail stays resolvable.
type User struct {
	ID         types.UserID
	Email      string
	Membership types.Membership
	FlowState  types.FlowState
	VerifiedAt time.Time
	LastActive time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks required fields
func (u *User) Validate() error {
	return u.ID.Validate()
}

// Member is a platform-side member snapshot fetched from the gateway. It is
// a weak reference: role membership must be re-fetched before any mutation
// decision.
type Member struct {
	ID      types.UserID
	Name    string
	RoleIDs []types.RoleID
}

// HasRole reports whether the snapshot holds the given role
func (m *Member) HasRole(roleID types.RoleID) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a platform role with its configured rank. Rank ordering is linear;
// a principal may only manage roles strictly below its own top rank.
type Role struct {
	ID   types.RoleID
	Name string
	Rank int
}

// BotIdentity is the acting principal's own standing on the platform
type BotIdentity struct {
	ID             types.UserID
	Rank           int
	CanManageRoles bool
}
