package types

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Error tags categorize failures across the system. The interaction
// dispatcher maps them to user-visible messages; retry policies key off them.
var (
	ErrTagValidation = goerr.NewTag("validation")
	ErrTagPermission = goerr.NewTag("permission")
	ErrTagRateLimit  = goerr.NewTag("rate_limit")
	ErrTagUpstream   = goerr.NewTag("upstream")
	ErrTagRoleMgmt   = goerr.NewTag("role_management")
	ErrTagNotFound   = goerr.NewTag("not_found")
	ErrTagUnknown    = goerr.NewTag("unknown")
)

// Sentinel errors shared between services
var (
	// ErrHierarchyViolation is returned when a role sits at or above the
	// bot's own top rank and therefore cannot be managed.
	ErrHierarchyViolation = goerr.New("role is at or above the bot's rank", goerr.T(ErrTagRoleMgmt))

	// ErrStaleReference is returned by the gateway when a fetched member or
	// role snapshot no longer matches the platform state. Transient.
	ErrStaleReference = goerr.New("stale platform reference", goerr.T(ErrTagRoleMgmt))

	// ErrNoHandler is returned when no handler matches an interaction
	// identifier.
	ErrNoHandler = goerr.New("no handler registered", goerr.T(ErrTagNotFound))

	// ErrThrottled is returned when a per-user interaction bucket is empty.
	ErrThrottled = goerr.New("too many interactions", goerr.T(ErrTagRateLimit))
)

// Transient reports whether an error belongs to a retryable class. Validation,
// permission and hierarchy failures are never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if goerr.HasTag(err, ErrTagValidation) || goerr.HasTag(err, ErrTagPermission) {
		return false
	}
	return goerr.HasTag(err, ErrTagRateLimit) || errors.Is(err, ErrStaleReference)
}
