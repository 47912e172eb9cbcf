package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/service/rolesync"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// AdminUseCase handles moderator decisions on pending affiliates
type AdminUseCase struct {
	uc *UseCases
}

// Decide processes an approve/deny button. The target user id is embedded
// in the button identifier. Decisions on users no longer awaiting approval
// are acknowledged as no-ops so stale buttons stay harmless.
func (u *AdminUseCase) Decide(ctx context.Context, ix *model.Interaction) error {
	decision, target, err := model.ParseAdminActionID(ix.ID)
	if err != nil {
		return err
	}

	allowed, err := u.uc.gateway.CanManageRoles(ctx, ix.UserID)
	if err != nil {
		return goerr.Wrap(err, "failed to check moderator permission")
	}
	if !allowed {
		return goerr.New("only moderators can decide approvals",
			goerr.T(types.ErrTagPermission), goerr.V("userID", ix.UserID))
	}

	user, err := u.uc.repo.User().Get(ctx, target)
	if err != nil {
		return goerr.Wrap(err, "unknown approval target",
			goerr.T(types.ErrTagValidation), goerr.V("target", target))
	}

	if user.FlowState != types.FlowAwaitingApproval {
		logging.From(ctx).Info("stale admin decision ignored",
			"target", target, "state", user.FlowState, "decision", decision)
		return u.notifyAdmin(ctx, ix, "This request has already been decided.")
	}

	switch decision {
	case model.DecisionApprove:
		return u.approve(ctx, ix, user)
	default:
		return u.deny(ctx, ix, user)
	}
}

func (u *AdminUseCase) approve(ctx context.Context, ix *model.Interaction, user *model.User) error {
	// Swap the unverified affiliate role for the real one, add first.
	if err := u.uc.engine.Assign(ctx, user.ID, u.uc.guild.AffiliateRole, rolesync.OpAdd); err != nil {
		return goerr.Wrap(err, "failed to grant affiliate role")
	}
	if err := u.uc.engine.Assign(ctx, user.ID, u.uc.guild.AffiliateUnverifiedRole, rolesync.OpRemove); err != nil {
		return goerr.Wrap(err, "failed to remove unverified affiliate role")
	}

	current := user.FlowState
	user.FlowState = types.FlowDone
	user.UpdatedAt = u.uc.clock()
	if err := u.uc.repo.User().Put(ctx, user); err != nil {
		return goerr.Wrap(err, "failed to persist approval")
	}
	u.uc.recorder.FlowTransition(ctx, user.ID, current, types.FlowDone)
	u.uc.recorder.AdminDecision(ctx, ix.UserID, user.ID, model.DecisionApprove)

	if err := u.uc.repo.Session().Delete(ctx, user.ID); err != nil {
		logging.From(ctx).Warn("failed to drop selection session", "error", err.Error())
	}

	if err := u.uc.gateway.SendDM(ctx, user.ID, doneMessage(types.MembershipAffiliate)); err != nil {
		logging.From(ctx).Warn("failed to notify approved user", "error", err.Error())
	}
	return u.notifyAdmin(ctx, ix, "Approved.")
}

func (u *AdminUseCase) deny(ctx context.Context, ix *model.Interaction, user *model.User) error {
	// A denied user keeps nothing from the flow: the unverified role and
	// every selectable role they picked come off before the state flips.
	roleMap := u.uc.guild.AffiliateRoles
	toRemove := append(roleMap.RoleIDs(roleMap.Keys()), u.uc.guild.AffiliateUnverifiedRole)
	result, err := u.uc.engine.BatchUpdate(ctx, user.ID, nil, toRemove)
	if err != nil {
		return goerr.Wrap(err, "failed to strip pending roles")
	}
	if !result.OK() {
		logging.From(ctx).Warn("some pending roles could not be removed",
			"target", user.ID, "failed", len(result.Failed))
	}

	current := user.FlowState
	user.FlowState = types.FlowDenied
	user.UpdatedAt = u.uc.clock()
	if err := u.uc.repo.User().Put(ctx, user); err != nil {
		return goerr.Wrap(err, "failed to persist denial")
	}
	u.uc.recorder.FlowTransition(ctx, user.ID, current, types.FlowDenied)
	u.uc.recorder.AdminDecision(ctx, ix.UserID, user.ID, model.DecisionDeny)

	if err := u.uc.repo.Session().Delete(ctx, user.ID); err != nil {
		logging.From(ctx).Warn("failed to drop selection session", "error", err.Error())
	}

	if err := u.uc.gateway.SendDM(ctx, user.ID, deniedMessage()); err != nil {
		logging.From(ctx).Warn("failed to notify denied user", "error", err.Error())
	}
	return u.notifyAdmin(ctx, ix, "Denied.")
}

func (u *AdminUseCase) notifyAdmin(ctx context.Context, ix *model.Interaction, text string) error {
	msg := model.Message{Text: text}
	if ix.ChannelID != "" {
		return u.uc.gateway.PostEphemeral(ctx, ix.ChannelID, ix.UserID, msg)
	}
	return u.uc.gateway.SendDM(ctx, ix.UserID, msg)
}
