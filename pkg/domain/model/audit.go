package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/chapterkit/doorman/pkg/domain/types"
)

// AuditEvent is one append-only record of a verification attempt, role
// change or flow transition.
type AuditEvent struct {
	ID        types.EventID
	UserID    types.UserID
	Type      types.AuditType
	Details   string
	GuildID   string
	Timestamp time.Time
}

// NewEventID returns a fresh audit event identifier
func NewEventID() types.EventID {
	return types.EventID(uuid.NewString())
}
