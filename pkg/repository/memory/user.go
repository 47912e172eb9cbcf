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

type userRepository struct {
	mu    sync.RWMutex
	users map[types.UserID]*model.User
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[types.UserID]*model.User),
	}
}

func copyUser(u *model.User) *model.User {
	copied := *u
	return &copied
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.users[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", id))
	}
	return copyUser(u), nil
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyUser(user)
	now := time.Now().UTC()
	if existing, ok := r.users[user.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.users[user.ID] = stored
	return nil
}

func (r *userRepository) Touch(ctx context.Context, id types.UserID, now time.Time) (*model.User, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		u = &model.User{
			ID:         id,
			Membership: types.MembershipUnknown,
			FlowState:  types.FlowStart,
			CreatedAt:  now,
		}
		r.users[id] = u
	}
	u.LastActive = now
	u.UpdatedAt = now

	return copyUser(u), nil
}
