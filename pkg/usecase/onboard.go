package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/service/rolesync"
	"github.com/chapterkit/doorman/pkg/service/verify"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// OnboardUseCase drives the per-user onboarding flow. Every handler loads
// the user's current state, validates the requested transition, and only
// advances after the step's side effects succeed.
type OnboardUseCase struct {
	uc *UseCases
}

// reply delivers a message to the interacting user, preferring an ephemeral
// channel message over a DM.
func (u *OnboardUseCase) reply(ctx context.Context, ix *model.Interaction, msg model.Message) error {
	if ix.ChannelID != "" {
		return u.uc.gateway.PostEphemeral(ctx, ix.ChannelID, ix.UserID, msg)
	}
	return u.uc.gateway.SendDM(ctx, ix.UserID, msg)
}

// transition moves the user to the next flow state after validating it
func (u *OnboardUseCase) transition(ctx context.Context, user *model.User, next types.FlowState) error {
	current := user.FlowState.Normalize()
	if !current.CanTransition(next) {
		return goerr.New("illegal flow transition",
			goerr.T(types.ErrTagValidation),
			goerr.V("userID", user.ID), goerr.V("from", current), goerr.V("to", next))
	}

	user.FlowState = next
	user.UpdatedAt = u.uc.clock()
	if err := u.uc.repo.User().Put(ctx, user); err != nil {
		return goerr.Wrap(err, "failed to persist flow transition")
	}

	u.uc.recorder.FlowTransition(ctx, user.ID, current, next)
	return nil
}

// Start greets a newcomer and offers the two entry paths. Triggered by the
// onboard command and by the platform's join event.
func (u *OnboardUseCase) Start(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	if user.FlowState.IsTerminal() {
		return u.reply(ctx, ix, model.Message{
			Text: "You've already completed onboarding. Use the roles command to adjust your roles.",
		})
	}

	return u.reply(ctx, ix, welcomeMessage())
}

// OpenVerify opens the email entry modal
func (u *OnboardUseCase) OpenVerify(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	switch user.FlowState.Normalize() {
	case types.FlowStart, types.FlowVerifying:
	default:
		return goerr.New("verification is not available at this step",
			goerr.T(types.ErrTagValidation), goerr.V("state", user.FlowState))
	}

	if ix.TriggerID == "" {
		return goerr.New("interaction has no trigger", goerr.T(types.ErrTagValidation))
	}
	return u.uc.gateway.OpenModal(ctx, ix.TriggerID, emailModal())
}

// SubmitEmail verifies the submitted address against the membership roster.
// A roster match grants the unverified member role and opens the member
// selection; a well-formed address with no match continues as an affiliate.
// A malformed address stays in the verifying state so the user can retry.
func (u *OnboardUseCase) SubmitEmail(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	if user.FlowState.Normalize() == types.FlowStart {
		if err := u.transition(ctx, user, types.FlowVerifying); err != nil {
			return err
		}
	} else if user.FlowState != types.FlowVerifying {
		return goerr.New("verification is not available at this step",
			goerr.T(types.ErrTagValidation), goerr.V("state", user.FlowState))
	}

	email := verify.NormalizeEmail(ix.Inputs[model.InputEmail])
	ok, err := u.uc.verifier.Lookup(ctx, email)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagValidation) {
			u.uc.recorder.VerificationFailed(ctx, ix.UserID, "malformed email address")
		}
		return goerr.Wrap(err, "membership lookup failed")
	}
	if !ok {
		// A well-formed address with no roster match goes down the affiliate
		// path; only admins can promote them later.
		u.uc.recorder.VerificationFailed(ctx, ix.UserID, "address not found in roster")
		return u.enterAffiliatePath(ctx, ix, user,
			"We couldn't find a membership for that address, so you've been set up as a community affiliate.")
	}

	now := u.uc.clock()
	user.Email = email
	user.Membership = types.MembershipMember
	user.VerifiedAt = now
	if err := u.uc.engine.Assign(ctx, ix.UserID, u.uc.guild.MemberUnverifiedRole, rolesync.OpAdd); err != nil {
		return goerr.Wrap(err, "failed to grant unverified member role")
	}
	if err := u.transition(ctx, user, types.FlowMemberSelect); err != nil {
		return err
	}
	u.uc.recorder.VerificationOK(ctx, ix.UserID)

	if err := u.beginSelection(ctx, ix.UserID, types.MembershipMember); err != nil {
		return err
	}

	roleMap := u.uc.guild.MemberRoles
	return u.reply(ctx, ix, selectionMessage(roleMap, types.MembershipMember, model.StepPronouns))
}

// StartAffiliate switches the user onto the affiliate path without
// verification.
func (u *OnboardUseCase) StartAffiliate(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	return u.enterAffiliatePath(ctx, ix, user, "")
}

// enterAffiliatePath marks the user as an affiliate, grants the unverified
// affiliate role and opens the selection steps. The role is granted before
// the transition so a failed grant leaves the flow where it was.
func (u *OnboardUseCase) enterAffiliatePath(ctx context.Context, ix *model.Interaction, user *model.User, intro string) error {
	if !user.FlowState.Normalize().CanTransition(types.FlowAffiliateSelect) {
		return goerr.New("the affiliate path is not available at this step",
			goerr.T(types.ErrTagValidation), goerr.V("state", user.FlowState))
	}

	if err := u.uc.engine.Assign(ctx, ix.UserID, u.uc.guild.AffiliateUnverifiedRole, rolesync.OpAdd); err != nil {
		return goerr.Wrap(err, "failed to grant unverified affiliate role")
	}

	user.Membership = types.MembershipAffiliate
	if err := u.transition(ctx, user, types.FlowAffiliateSelect); err != nil {
		return err
	}

	if err := u.beginSelection(ctx, ix.UserID, types.MembershipAffiliate); err != nil {
		return err
	}

	msg := selectionMessage(u.uc.guild.AffiliateRoles, types.MembershipAffiliate, model.StepPronouns)
	if intro != "" {
		msg.Text = intro + " " + msg.Text
	}
	return u.reply(ctx, ix, msg)
}

// beginSelection initializes the selection session at the pronoun step
func (u *OnboardUseCase) beginSelection(ctx context.Context, userID types.UserID, membership types.Membership) error {
	step := model.StepPronouns
	if _, err := u.uc.repo.Session().Update(ctx, userID, model.SessionPatch{
		Membership: &membership,
		Step:       &step,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize selection session")
	}
	return nil
}

// SelectRoles stores a menu selection in the user's session. Nothing is
// applied to the platform until the step is confirmed.
func (u *OnboardUseCase) SelectRoles(ctx context.Context, ix *model.Interaction) error {
	session, err := u.uc.repo.Session().Get(ctx, ix.UserID)
	if err != nil {
		return goerr.Wrap(err, "no selection in progress", goerr.T(types.ErrTagValidation))
	}

	roleMap, err := u.uc.guild.RoleMapFor(session.Membership)
	if err != nil {
		return err
	}

	keys := make([]types.RoleKey, 0, len(ix.Values))
	for _, value := range ix.Values {
		key := types.RoleKey(value)
		if _, ok := roleMap.Resolve(key); !ok {
			return goerr.New("unknown role key",
				goerr.T(types.ErrTagValidation), goerr.V("key", value))
		}
		keys = append(keys, key)
	}

	patch := model.SessionPatch{}
	switch ix.ID {
	case model.IDPickPronouns:
		patch.Pronouns = keys
	default:
		patch.Interests = keys
	}

	if _, err := u.uc.repo.Session().Update(ctx, ix.UserID, patch); err != nil {
		return goerr.Wrap(err, "failed to store selection")
	}
	return nil
}

// CompletePronouns confirms the pronoun step and presents the interests menu
func (u *OnboardUseCase) CompletePronouns(ctx context.Context, ix *model.Interaction) error {
	session, err := u.uc.repo.Session().Get(ctx, ix.UserID)
	if err != nil {
		return goerr.Wrap(err, "no selection in progress", goerr.T(types.ErrTagValidation))
	}

	roleMap, err := u.uc.guild.RoleMapFor(session.Membership)
	if err != nil {
		return err
	}

	step := model.StepInterests
	if _, err := u.uc.repo.Session().Update(ctx, ix.UserID, model.SessionPatch{Step: &step}); err != nil {
		return goerr.Wrap(err, "failed to advance selection step")
	}

	return u.reply(ctx, ix, selectionMessage(roleMap, session.Membership, model.StepInterests))
}

// CompleteInterests confirms the final selection step, reconciles the
// user's roles and moves the flow to rules acceptance. When the user is
// already onboarded this is a plain role adjustment.
func (u *OnboardUseCase) CompleteInterests(ctx context.Context, ix *model.Interaction) error {
	session, err := u.uc.repo.Session().Get(ctx, ix.UserID)
	if err != nil {
		return goerr.Wrap(err, "no selection in progress", goerr.T(types.ErrTagValidation))
	}

	roleMap, err := u.uc.guild.RoleMapFor(session.Membership)
	if err != nil {
		return err
	}

	selected := append(append([]types.RoleKey{}, session.Pronouns...), session.Interests...)
	result, err := u.uc.engine.UpdateByKeys(ctx, ix.UserID, roleMap, selected, roleMap.Keys())
	if err != nil {
		return goerr.Wrap(err, "failed to apply role selection")
	}
	if !result.OK() {
		logging.From(ctx).Warn("some roles could not be applied",
			"userID", ix.UserID, "failed", len(result.Failed))
	}

	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	if user.FlowState.IsTerminal() {
		// Re-adjustment after onboarding: no flow change, no rules step.
		if err := u.uc.repo.Session().Delete(ctx, ix.UserID); err != nil {
			logging.From(ctx).Warn("failed to drop selection session", "error", err.Error())
		}
		return u.reply(ctx, ix, model.Message{Text: "Your roles have been updated."})
	}

	if err := u.transition(ctx, user, types.FlowRulesPending); err != nil {
		return err
	}

	return u.reply(ctx, ix, rulesMessage(u.uc.guild.RulesText, session.Membership))
}

// AcceptRules handles the rules acceptance button for both variants. The
// variant comes from the persisted user record, never from the button id:
// a forged member-accept button on an affiliate account must not hand out
// the member role.
func (u *OnboardUseCase) AcceptRules(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	membership := user.Membership
	if membership == types.MembershipUnknown {
		membership = types.MembershipAffiliate
	}

	expected := model.IDRulesAcceptMember
	if membership == types.MembershipAffiliate {
		expected = model.IDRulesAcceptAffiliate
	}
	if ix.ID != expected {
		return goerr.New("rules acceptance does not match the recorded membership",
			goerr.T(types.ErrTagValidation),
			goerr.V("userID", ix.UserID), goerr.V("action", ix.ID), goerr.V("membership", membership))
	}

	return u.acceptRules(ctx, ix, user, membership)
}

// ReactionAccept treats the configured reaction on the rules message as an
// acceptance. The membership variant comes from the user record since a
// reaction carries no button identity.
func (u *OnboardUseCase) ReactionAccept(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Get(ctx, ix.UserID)
	if err != nil {
		return goerr.Wrap(err, "unknown user", goerr.T(types.ErrTagValidation))
	}
	if user.FlowState != types.FlowRulesPending {
		// Reactions arrive for all sorts of messages; ignore the rest.
		return nil
	}

	membership := user.Membership
	if membership == types.MembershipUnknown {
		membership = types.MembershipAffiliate
	}
	return u.acceptRules(ctx, ix, user, membership)
}

func (u *OnboardUseCase) acceptRules(ctx context.Context, ix *model.Interaction, user *model.User, membership types.Membership) error {
	if user.FlowState != types.FlowRulesPending {
		return goerr.New("rules acceptance is not available at this step",
			goerr.T(types.ErrTagValidation), goerr.V("state", user.FlowState))
	}

	if membership == types.MembershipAffiliate {
		if err := u.transition(ctx, user, types.FlowAwaitingApproval); err != nil {
			return err
		}
		if _, err := u.uc.gateway.PostMessage(ctx, u.uc.guild.ModeratorChannel, approvalRequestMessage(ix.UserID)); err != nil {
			return goerr.Wrap(err, "failed to request moderator approval")
		}
		return u.reply(ctx, ix, pendingApprovalMessage())
	}

	// Swap the intermediary for the full member role. Add before remove so
	// a failure never leaves the user with neither.
	baseRole, err := u.uc.guild.BaseRoleFor(membership)
	if err != nil {
		return err
	}
	if err := u.uc.engine.Assign(ctx, ix.UserID, baseRole, rolesync.OpAdd); err != nil {
		return goerr.Wrap(err, "failed to grant base role")
	}
	if err := u.uc.engine.Assign(ctx, ix.UserID, u.uc.guild.MemberUnverifiedRole, rolesync.OpRemove); err != nil {
		return goerr.Wrap(err, "failed to remove unverified member role")
	}

	if err := u.transition(ctx, user, types.FlowDone); err != nil {
		return err
	}
	if err := u.uc.repo.Session().Delete(ctx, ix.UserID); err != nil {
		logging.From(ctx).Warn("failed to drop selection session", "error", err.Error())
	}

	return u.reply(ctx, ix, doneMessage(membership))
}

// AdjustRoles reopens the selection flow for a user who already finished
// onboarding. Triggered by the roles command.
func (u *OnboardUseCase) AdjustRoles(ctx context.Context, ix *model.Interaction) error {
	user, err := u.uc.repo.User().Touch(ctx, ix.UserID, u.uc.clock())
	if err != nil {
		return goerr.Wrap(err, "failed to touch user")
	}

	if user.FlowState != types.FlowDone {
		return goerr.New("finish onboarding before adjusting roles",
			goerr.T(types.ErrTagValidation), goerr.V("state", user.FlowState))
	}

	membership := user.Membership
	if membership == types.MembershipUnknown {
		membership = types.MembershipAffiliate
	}

	if err := u.beginSelection(ctx, ix.UserID, membership); err != nil {
		return err
	}

	roleMap, err := u.uc.guild.RoleMapFor(membership)
	if err != nil {
		return err
	}
	return u.reply(ctx, ix, selectionMessage(roleMap, membership, model.StepPronouns))
}
