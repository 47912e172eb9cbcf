package rolesync

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// Op is a single-role operation direction
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// Auditor records successful role changes. Each change is recorded once,
// keyed by role id and direction.
type Auditor interface {
	RoleChange(ctx context.Context, user types.UserID, role types.RoleID, op string)
}

// Engine reconciles a member's desired role set against their actual roles.
// It re-fetches authoritative platform state before every mutation decision
// and never trusts a previously cached snapshot.
type Engine struct {
	gateway     interfaces.ChatGateway
	auditor     Auditor
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error
}

// Option configures the engine
type Option func(*Engine)

// WithMaxAttempts bounds retries of transient failures
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithBackoff sets the base backoff; total wait grows linearly with the
// attempt number.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.backoff = d
	}
}

// WithSleep injects the wait primitive for tests
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// New creates a role synchronization engine
func New(gateway interfaces.ChatGateway, auditor Auditor, opts ...Option) *Engine {
	e := &Engine{
		gateway:     gateway,
		auditor:     auditor,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// checkRole validates the hierarchy preconditions for touching roleID and
// returns the fetched role.
func (e *Engine) checkRole(ctx context.Context, roleID types.RoleID) (*model.Role, error) {
	role, err := e.gateway.GetRole(ctx, roleID)
	if err != nil {
		return nil, goerr.Wrap(err, "role does not exist",
			goerr.T(types.ErrTagRoleMgmt), goerr.V("roleID", roleID))
	}

	self, err := e.gateway.Self(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve bot identity", goerr.T(types.ErrTagRoleMgmt))
	}
	if !self.CanManageRoles {
		return nil, goerr.New("bot lacks role management capability", goerr.T(types.ErrTagPermission))
	}
	if role.Rank >= self.Rank {
		return nil, goerr.Wrap(types.ErrHierarchyViolation, "cannot modify role",
			goerr.V("roleID", roleID), goerr.V("roleRank", role.Rank), goerr.V("botRank", self.Rank))
	}

	return role, nil
}

// Assign adds or removes a single role. Re-applying an operation the member
// already satisfies is a no-op success. Transient failures are retried with
// linear backoff; anything else aborts immediately.
func (e *Engine) Assign(ctx context.Context, userID types.UserID, roleID types.RoleID, op Op) error {
	if op != OpAdd && op != OpRemove {
		return goerr.New("invalid role operation", goerr.T(types.ErrTagValidation), goerr.V("op", op))
	}

	if _, err := e.checkRole(ctx, roleID); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		member, err := e.gateway.GetMember(ctx, userID)
		if err != nil {
			return goerr.Wrap(err, "failed to fetch member",
				goerr.T(types.ErrTagRoleMgmt), goerr.V("userID", userID))
		}

		// Idempotence: nothing to do when the state already matches.
		if (op == OpAdd) == member.HasRole(roleID) {
			return nil
		}

		if op == OpAdd {
			err = e.gateway.AddRole(ctx, userID, roleID)
		} else {
			err = e.gateway.RemoveRole(ctx, userID, roleID)
		}
		if err == nil {
			if e.auditor != nil {
				e.auditor.RoleChange(ctx, userID, roleID, string(op))
			}
			return nil
		}

		lastErr = err
		if !types.Transient(err) {
			return goerr.Wrap(err, "role operation failed",
				goerr.T(types.ErrTagRoleMgmt),
				goerr.V("roleID", roleID), goerr.V("op", op))
		}

		logging.From(ctx).Warn("transient role operation failure",
			"roleID", roleID, "op", op, "attempt", attempt)
		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, time.Duration(attempt)*e.backoff); err != nil {
				return goerr.Wrap(err, "retry wait aborted", goerr.T(types.ErrTagRoleMgmt))
			}
		}
	}

	return goerr.Wrap(lastErr, "role operation failed after retries",
		goerr.T(types.ErrTagRoleMgmt),
		goerr.V("roleID", roleID), goerr.V("op", op), goerr.V("attempts", e.maxAttempts))
}

// RoleFailure is one role that could not be updated within a batch
type RoleFailure struct {
	RoleID types.RoleID
	Op     Op
	Err    error
}

// BatchResult reports the outcome of a batch update
type BatchResult struct {
	Added   []types.RoleID
	Removed []types.RoleID
	Failed  []RoleFailure
}

// OK reports whether every requested change succeeded
func (r *BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// BatchUpdate applies additions and removals, preferring one atomic
// full-list replacement and falling back to per-role operations that
// collect failures instead of aborting the batch. Roles violating the
// hierarchy invariant are skipped and reported, never fatal.
func (e *Engine) BatchUpdate(ctx context.Context, userID types.UserID, toAdd, toRemove []types.RoleID) (*BatchResult, error) {
	result := &BatchResult{}

	var addable, removable []types.RoleID
	for _, id := range toAdd {
		if _, err := e.checkRole(ctx, id); err != nil {
			result.Failed = append(result.Failed, RoleFailure{RoleID: id, Op: OpAdd, Err: err})
			continue
		}
		addable = append(addable, id)
	}
	for _, id := range toRemove {
		if _, err := e.checkRole(ctx, id); err != nil {
			result.Failed = append(result.Failed, RoleFailure{RoleID: id, Op: OpRemove, Err: err})
			continue
		}
		removable = append(removable, id)
	}

	member, err := e.gateway.GetMember(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch member",
			goerr.T(types.ErrTagRoleMgmt), goerr.V("userID", userID))
	}

	added, removed, desired := diffRoles(member.RoleIDs, addable, removable)
	if len(added) == 0 && len(removed) == 0 {
		return result, nil
	}

	if err := e.setRolesWithRetry(ctx, userID, desired); err != nil {
		logging.From(ctx).Warn("atomic role replacement failed, falling back to individual updates",
			"userID", userID, "error", err.Error())
		return e.fallback(ctx, userID, added, removed, result), nil
	}

	result.Added = added
	result.Removed = removed
	e.auditChanges(ctx, userID, added, removed)
	return result, nil
}

// fallback applies removals then additions one role at a time, collecting
// per-role failures.
func (e *Engine) fallback(ctx context.Context, userID types.UserID, added, removed []types.RoleID, result *BatchResult) *BatchResult {
	// Removals first so intermediary roles drop before grants land.
	for _, id := range removed {
		if err := e.Assign(ctx, userID, id, OpRemove); err != nil {
			result.Failed = append(result.Failed, RoleFailure{RoleID: id, Op: OpRemove, Err: err})
		} else {
			result.Removed = append(result.Removed, id)
		}
	}
	for _, id := range added {
		if err := e.Assign(ctx, userID, id, OpAdd); err != nil {
			result.Failed = append(result.Failed, RoleFailure{RoleID: id, Op: OpAdd, Err: err})
		} else {
			result.Added = append(result.Added, id)
		}
	}

	return result
}

// UpdateByKeys converts a user's menu selection into a role diff over the
// given key universe and applies it.
func (e *Engine) UpdateByKeys(ctx context.Context, userID types.UserID, roleMap *model.RoleMap, selected, universe []types.RoleKey) (*BatchResult, error) {
	diff := roleMap.Diff(selected, universe)
	return e.BatchUpdate(ctx, userID, diff.ToAdd, diff.ToRemove)
}

// setRolesWithRetry attempts the atomic full-list replacement, retrying
// transient failures.
func (e *Engine) setRolesWithRetry(ctx context.Context, userID types.UserID, desired []types.RoleID) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := e.gateway.SetRoles(ctx, userID, desired)
		if err == nil {
			return nil
		}

		lastErr = err
		if !types.Transient(err) {
			return err
		}
		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, time.Duration(attempt)*e.backoff); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func (e *Engine) auditChanges(ctx context.Context, userID types.UserID, added, removed []types.RoleID) {
	if e.auditor == nil {
		return
	}
	for _, id := range added {
		e.auditor.RoleChange(ctx, userID, id, string(OpAdd))
	}
	for _, id := range removed {
		e.auditor.RoleChange(ctx, userID, id, string(OpRemove))
	}
}

// diffRoles computes the effective additions and removals against the
// member's current roles and the resulting desired full list.
func diffRoles(current, toAdd, toRemove []types.RoleID) (added, removed, desired []types.RoleID) {
	has := make(map[types.RoleID]bool, len(current))
	for _, id := range current {
		has[id] = true
	}
	drop := make(map[types.RoleID]bool, len(toRemove))
	for _, id := range toRemove {
		drop[id] = true
	}
	want := make(map[types.RoleID]bool, len(toAdd))
	for _, id := range toAdd {
		want[id] = true
	}

	for _, id := range current {
		if drop[id] && !want[id] {
			removed = append(removed, id)
			continue
		}
		desired = append(desired, id)
	}
	for _, id := range toAdd {
		if !has[id] {
			added = append(added, id)
			desired = append(desired, id)
		}
	}

	return added, removed, desired
}
