package interfaces

import (
	"context"
	"time"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// Repository bundles the persistence backends the core requires. Both the
// in-memory and the Firestore implementation satisfy it.
type Repository interface {
	User() UserRepository
	Session() SessionRepository
	Audit() AuditRepository
	Close() error
}

// UserRepository stores soft user records keyed by platform id
type UserRepository interface {
	Get(ctx context.Context, id types.UserID) (*model.User, error)
	Put(ctx context.Context, user *model.User) error
	// Touch updates the last-active timestamp, creating the record if it
	// does not exist yet.
	Touch(ctx context.Context, id types.UserID, now time.Time) (*model.User, error)
}

// SessionRepository stores ephemeral per-user onboarding scratch state
type SessionRepository interface {
	Get(ctx context.Context, id types.UserID) (*model.Session, error)
	Set(ctx context.Context, session *model.Session) error
	// Update shallow-merges the patch into the existing session, creating
	// one when absent.
	Update(ctx context.Context, id types.UserID, patch model.SessionPatch) (*model.Session, error)
	Delete(ctx context.Context, id types.UserID) error
	// DeleteOlderThan reaps sessions not updated since the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditRepository stores append-only audit events
type AuditRepository interface {
	Append(ctx context.Context, event *model.AuditEvent) (*model.AuditEvent, error)
	ListByUser(ctx context.Context, id types.UserID, limit int) ([]*model.AuditEvent, error)
	ListByType(ctx context.Context, eventType types.AuditType, limit int) ([]*model.AuditEvent, error)
}
