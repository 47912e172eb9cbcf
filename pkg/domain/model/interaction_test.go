package model_test

import (
	"regexp"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

func TestAdminActionID(t *testing.T) {
	t.Run("round trip for both decisions", func(t *testing.T) {
		id := model.AdminActionID(model.DecisionApprove, "U123")
		gt.Value(t, id).Equal("admin_approve_U123")

		decision, target, err := model.ParseAdminActionID(id)
		gt.NoError(t, err)
		gt.Value(t, decision).Equal(model.DecisionApprove)
		gt.Value(t, target).Equal(types.UserID("U123"))

		id = model.AdminActionID(model.DecisionDeny, "U456")
		decision, target, err = model.ParseAdminActionID(id)
		gt.NoError(t, err)
		gt.Value(t, decision).Equal(model.DecisionDeny)
		gt.Value(t, target).Equal(types.UserID("U456"))
	})

	t.Run("rejects non-admin identifiers", func(t *testing.T) {
		_, _, err := model.ParseAdminActionID("verify_start")
		gt.Error(t, err)
	})

	t.Run("pattern matches generated identifiers", func(t *testing.T) {
		re := regexp.MustCompile(model.AdminActionPattern)
		gt.Bool(t, re.MatchString(model.AdminActionID(model.DecisionApprove, "U123"))).True()
		gt.Bool(t, re.MatchString(model.AdminActionID(model.DecisionDeny, "U123"))).True()
		gt.Bool(t, re.MatchString("rules_accept_member")).False()
	})
}

func TestSessionApply(t *testing.T) {
	session := &model.Session{
		UserID:     "U1",
		Membership: types.MembershipMember,
		Step:       model.StepPronouns,
		Pronouns:   []types.RoleKey{"pronouns_she_her"},
	}

	step := model.StepInterests
	session.Apply(model.SessionPatch{
		Step:      &step,
		Interests: []types.RoleKey{"topic_climate"},
	})

	// Untouched fields survive the patch.
	gt.Value(t, session.Membership).Equal(types.MembershipMember)
	gt.Array(t, session.Pronouns).Equal([]types.RoleKey{"pronouns_she_her"})
	gt.Value(t, session.Step).Equal(model.StepInterests)
	gt.Array(t, session.Interests).Equal([]types.RoleKey{"topic_climate"})

	gt.Array(t, session.Selected(model.StepPronouns)).Equal([]types.RoleKey{"pronouns_she_her"})
	gt.Array(t, session.Selected(model.StepInterests)).Equal([]types.RoleKey{"topic_climate"})
}
