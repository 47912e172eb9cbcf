package model

import (
	"time"

	"github.com/chapterkit/doorman/pkg/domain/types"
)

// SelectStep is the sub-step of an attribute-selection phase
type SelectStep string

const (
	StepPronouns  SelectStep = "pronouns"
	StepInterests SelectStep = "interests"
)

// Session is ephemeral per-user scratch state holding in-progress selections
// between onboarding steps. It is not authoritative: the platform's actual
// role set is recomputed from it only when a step finalizes.
type Session struct {
	UserID     types.UserID
	Membership types.Membership
	Step       SelectStep
	Pronouns   []types.RoleKey
	Interests  []types.RoleKey
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionPatch is a shallow partial update; nil fields are left untouched
type SessionPatch struct {
	Membership *types.Membership
	Step       *SelectStep
	Pronouns   []types.RoleKey
	Interests  []types.RoleKey
}

// Apply merges the patch into the session
func (s *Session) Apply(p SessionPatch) {
	if p.Membership != nil {
		s.Membership = *p.Membership
	}
	if p.Step != nil {
		s.Step = *p.Step
	}
	if p.Pronouns != nil {
		s.Pronouns = append([]types.RoleKey(nil), p.Pronouns...)
	}
	if p.Interests != nil {
		s.Interests = append([]types.RoleKey(nil), p.Interests...)
	}
}

// Selected returns the keys currently picked for the given step
func (s *Session) Selected(step SelectStep) []types.RoleKey {
	switch step {
	case StepPronouns:
		return s.Pronouns
	case StepInterests:
		return s.Interests
	default:
		return nil
	}
}
