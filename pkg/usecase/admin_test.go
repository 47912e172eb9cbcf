package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// pendingAffiliate walks a user to the awaiting-approval state
func pendingAffiliate(t *testing.T, env *testEnv, id types.UserID) {
	t.Helper()
	ctx := context.Background()

	env.gw.addMember(id)
	gt.NoError(t, env.uc.Onboard.StartAffiliate(ctx, ix(model.KindButton, model.IDAffiliateStart, id)))
	gt.NoError(t, env.uc.Onboard.CompletePronouns(ctx, ix(model.KindButton, model.IDPronounsDone, id)))
	gt.NoError(t, env.uc.Onboard.CompleteInterests(ctx, ix(model.KindButton, model.IDInterestsDone, id)))
	gt.NoError(t, env.uc.Onboard.AcceptRules(ctx, ix(model.KindButton, model.IDRulesAcceptAffiliate, id)))
	gt.Value(t, env.user(t, id).FlowState).Equal(types.FlowAwaitingApproval)
}

func TestAdminApprove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gw.managers["UADMIN"] = true
	pendingAffiliate(t, env, "U3")

	approveIx := ix(model.KindButton, model.AdminActionID(model.DecisionApprove, "U3"), "UADMIN")
	gt.NoError(t, env.uc.Admin.Decide(ctx, approveIx))

	// approval swaps the intermediary for the affiliate role
	gt.Value(t, env.user(t, "U3").FlowState).Equal(types.FlowDone)
	gt.Bool(t, env.gw.members["U3"].HasRole("RAFF")).True()
	gt.Bool(t, env.gw.members["U3"].HasRole("RUNVA")).False()

	// the applicant hears about it by DM, the moderator gets an ack
	gt.Array(t, env.gw.dms).Length(1)
	gt.Value(t, env.gw.dms[0].User).Equal(types.UserID("U3"))
	gt.Value(t, env.gw.lastEphemeral(t).Text).Equal("Approved.")

	events := gt.R1(env.repo.Audit().ListByType(ctx, types.AuditAdminDecision, 10)).NoError(t)
	gt.Array(t, events).Length(1)
	gt.Value(t, events[0].UserID).Equal(types.UserID("U3"))
	gt.Value(t, events[0].Details).Equal("approve by UADMIN")
}

func TestAdminDeny(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gw.managers["UADMIN"] = true

	// walk an affiliate with a picked pronoun to the pending state
	env.gw.addMember("U3")
	gt.NoError(t, env.uc.Onboard.StartAffiliate(ctx, ix(model.KindButton, model.IDAffiliateStart, "U3")))
	pickIx := ix(model.KindSelect, model.IDPickPronouns, "U3")
	pickIx.Values = []string{"pronoun_she"}
	gt.NoError(t, env.uc.Onboard.SelectRoles(ctx, pickIx))
	gt.NoError(t, env.uc.Onboard.CompletePronouns(ctx, ix(model.KindButton, model.IDPronounsDone, "U3")))
	gt.NoError(t, env.uc.Onboard.CompleteInterests(ctx, ix(model.KindButton, model.IDInterestsDone, "U3")))
	gt.NoError(t, env.uc.Onboard.AcceptRules(ctx, ix(model.KindButton, model.IDRulesAcceptAffiliate, "U3")))
	gt.Array(t, env.gw.members["U3"].RoleIDs).Equal([]types.RoleID{"RUNVA", "RP2"})

	denyIx := ix(model.KindButton, model.AdminActionID(model.DecisionDeny, "U3"), "UADMIN")
	gt.NoError(t, env.uc.Admin.Decide(ctx, denyIx))

	// denial strips the intermediary and every picked role
	gt.Value(t, env.user(t, "U3").FlowState).Equal(types.FlowDenied)
	gt.Bool(t, env.gw.members["U3"].HasRole("RAFF")).False()
	gt.Array(t, env.gw.members["U3"].RoleIDs).Length(0)
	gt.Array(t, env.gw.dms).Length(1)
	gt.Value(t, env.gw.lastEphemeral(t).Text).Equal("Denied.")

	// denial is terminal: the user cannot restart onboarding
	err := env.uc.Onboard.StartAffiliate(ctx, ix(model.KindButton, model.IDAffiliateStart, "U3"))
	gt.Error(t, err)
	gt.Array(t, env.gw.members["U3"].RoleIDs).Length(0)
}

func TestAdminDecideStale(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gw.managers["UADMIN"] = true
	pendingAffiliate(t, env, "U3")

	approveIx := ix(model.KindButton, model.AdminActionID(model.DecisionApprove, "U3"), "UADMIN")
	gt.NoError(t, env.uc.Admin.Decide(ctx, approveIx))

	// pressing the stale deny button afterwards changes nothing
	denyIx := ix(model.KindButton, model.AdminActionID(model.DecisionDeny, "U3"), "UADMIN")
	gt.NoError(t, env.uc.Admin.Decide(ctx, denyIx))

	gt.Value(t, env.user(t, "U3").FlowState).Equal(types.FlowDone)
	gt.Bool(t, env.gw.members["U3"].HasRole("RAFF")).True()
	gt.Value(t, env.gw.lastEphemeral(t).Text).Equal("This request has already been decided.")
}

func TestAdminDecidePermission(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	pendingAffiliate(t, env, "U3")

	approveIx := ix(model.KindButton, model.AdminActionID(model.DecisionApprove, "U3"), "UNOBODY")
	err := env.uc.Admin.Decide(ctx, approveIx)
	gt.Error(t, err)
	gt.Bool(t, goerr.HasTag(err, types.ErrTagPermission)).True()
	gt.Value(t, env.user(t, "U3").FlowState).Equal(types.FlowAwaitingApproval)
}

func TestAdminDecideBadTarget(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gw.managers["UADMIN"] = true

	t.Run("malformed identifier", func(t *testing.T) {
		err := env.uc.Admin.Decide(ctx, ix(model.KindButton, "rules_accept_member", "UADMIN"))
		gt.Error(t, err)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagValidation)).True()
	})

	t.Run("unknown target user", func(t *testing.T) {
		approveIx := ix(model.KindButton, model.AdminActionID(model.DecisionApprove, "UGHOST"), "UADMIN")
		err := env.uc.Admin.Decide(ctx, approveIx)
		gt.Error(t, err)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagValidation)).True()
	})
}
