package usecase

import (
	"fmt"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

func welcomeMessage() model.Message {
	return model.Message{
		Text: "Welcome! To get set up, verify your membership with the email " +
			"address on file, or continue as a community affiliate.",
		Buttons: []model.Button{
			{ID: model.IDVerifyStart, Label: "Verify membership", Style: model.StylePrimary},
			{ID: model.IDAffiliateStart, Label: "Join as affiliate"},
		},
	}
}

func emailModal() model.Modal {
	return model.Modal{
		ID:    model.IDVerifyEmailModal,
		Title: "Verify membership",
		Inputs: []model.ModalInput{
			{ID: model.InputEmail, Label: "Email address", Placeholder: "you@example.org"},
		},
	}
}

// selectionMessage renders the menu for one attribute-selection sub-step
func selectionMessage(roleMap *model.RoleMap, membership types.Membership, step model.SelectStep) model.Message {
	var (
		category    model.RoleCategory
		text        string
		placeholder string
		doneID      string
	)

	switch step {
	case model.StepPronouns:
		category = model.CategoryPronoun
		text = "Pick the pronouns you'd like displayed, then continue."
		placeholder = "Select pronouns"
		doneID = model.IDPronounsDone
	default:
		category = model.CategoryInterest
		text = "Pick the topics you're interested in, then continue."
		placeholder = "Select interests"
		doneID = model.IDInterestsDone
	}

	menuID := model.IDPickPronouns
	if step == model.StepInterests {
		menuID = model.IDPickInterestsMember
		if membership == types.MembershipAffiliate {
			menuID = model.IDPickInterestsAffiliate
		}
	}

	var options []model.SelectOption
	for _, key := range roleMap.Keys(category) {
		entry, _ := roleMap.Entry(key)
		options = append(options, model.SelectOption{Value: key.String(), Label: entry.Label})
	}

	return model.Message{
		Text: text,
		Menu: &model.SelectMenu{
			ID:          menuID,
			Placeholder: placeholder,
			Options:     options,
			MaxValues:   len(options),
		},
		Buttons: []model.Button{
			{ID: doneID, Label: "Done", Style: model.StylePrimary},
		},
	}
}

func rulesMessage(rules string, membership types.Membership) model.Message {
	acceptID := model.IDRulesAcceptMember
	if membership == types.MembershipAffiliate {
		acceptID = model.IDRulesAcceptAffiliate
	}

	return model.Message{
		Text: rules,
		Buttons: []model.Button{
			{ID: acceptID, Label: "I accept the rules", Style: model.StylePrimary},
		},
	}
}

func approvalRequestMessage(target types.UserID) model.Message {
	return model.Message{
		Text: fmt.Sprintf("<@%s> accepted the rules as an affiliate and is waiting for review.", target),
		Buttons: []model.Button{
			{ID: model.AdminActionID(model.DecisionApprove, target), Label: "Approve", Style: model.StylePrimary},
			{ID: model.AdminActionID(model.DecisionDeny, target), Label: "Deny", Style: model.StyleDanger},
		},
	}
}

func doneMessage(membership types.Membership) model.Message {
	if membership == types.MembershipAffiliate {
		return model.Message{Text: "You're all set. Welcome aboard!"}
	}
	return model.Message{Text: "You're all set. Welcome, and thanks for being a member!"}
}

func pendingApprovalMessage() model.Message {
	return model.Message{Text: "Thanks! A moderator will review your request shortly. We'll let you know."}
}

func deniedMessage() model.Message {
	return model.Message{Text: "Your access request was not approved. Contact a moderator if you have questions."}
}
