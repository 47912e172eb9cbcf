package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[types.UserID]*model.Session
}

var _ interfaces.SessionRepository = &sessionRepository{}

func newSessionRepository() *sessionRepository {
	return &sessionRepository{
		sessions: make(map[types.UserID]*model.Session),
	}
}

func copySession(s *model.Session) *model.Session {
	copied := *s
	copied.Pronouns = append([]types.RoleKey(nil), s.Pronouns...)
	copied.Interests = append([]types.RoleKey(nil), s.Interests...)
	return &copied
}

func (r *sessionRepository) Get(ctx context.Context, id types.UserID) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "session not found", goerr.V("userID", id))
	}
	return copySession(s), nil
}

func (r *sessionRepository) Set(ctx context.Context, session *model.Session) error {
	if err := session.UserID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copySession(session)
	now := time.Now().UTC()
	if existing, ok := r.sessions[session.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.sessions[session.UserID] = stored
	return nil
}

func (r *sessionRepository) Update(ctx context.Context, id types.UserID, patch model.SessionPatch) (*model.Session, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	s, exists := r.sessions[id]
	if !exists {
		s = &model.Session{
			UserID:    id,
			Step:      model.StepPronouns,
			CreatedAt: now,
		}
		r.sessions[id] = s
	}
	s.Apply(patch)
	s.UpdatedAt = now

	return copySession(s), nil
}

func (r *sessionRepository) Delete(ctx context.Context, id types.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
