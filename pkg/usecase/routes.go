package usecase

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/service/dispatch"
)

// Register binds every onboarding handler to the dispatcher. Exact routes
// cover the fixed identifiers; the admin decision buttons carry the target
// user id as a suffix and are matched by pattern.
func (uc *UseCases) Register(d *dispatch.Dispatcher) error {
	d.Register(model.KindCommand, model.IDCommandOnboard, uc.Onboard.Start)
	d.Register(model.KindCommand, model.IDCommandRoles, uc.Onboard.AdjustRoles)

	d.Register(model.KindButton, model.IDVerifyStart, uc.Onboard.OpenVerify)
	d.Register(model.KindButton, model.IDAffiliateStart, uc.Onboard.StartAffiliate)
	d.Register(model.KindButton, model.IDPronounsDone, uc.Onboard.CompletePronouns)
	d.Register(model.KindButton, model.IDInterestsDone, uc.Onboard.CompleteInterests)
	d.Register(model.KindButton, model.IDRulesAcceptMember, uc.Onboard.AcceptRules)
	d.Register(model.KindButton, model.IDRulesAcceptAffiliate, uc.Onboard.AcceptRules)

	d.Register(model.KindSelect, model.IDPickPronouns, uc.Onboard.SelectRoles)
	d.Register(model.KindSelect, model.IDPickInterestsMember, uc.Onboard.SelectRoles)
	d.Register(model.KindSelect, model.IDPickInterestsAffiliate, uc.Onboard.SelectRoles)

	d.Register(model.KindModal, model.IDVerifyEmailModal, uc.Onboard.SubmitEmail)

	d.Register(model.KindReaction, model.IDReactionAccept, uc.Onboard.ReactionAccept)

	if err := d.RegisterPattern(model.KindButton, model.AdminActionPattern, uc.Admin.Decide); err != nil {
		return goerr.Wrap(err, "failed to register admin decision route")
	}

	return nil
}
