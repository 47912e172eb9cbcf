package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/types"
)

// InteractionKind is the class of inbound user action
type InteractionKind string

const (
	KindCommand  InteractionKind = "command"
	KindButton   InteractionKind = "button"
	KindSelect   InteractionKind = "select"
	KindModal    InteractionKind = "modal"
	KindReaction InteractionKind = "reaction"
)

// Interaction is a platform-neutral inbound user action. The HTTP controller
// translates raw payloads into this shape before dispatch.
type Interaction struct {
	Kind      InteractionKind
	ID        string
	UserID    types.UserID
	ChannelID types.ChannelID
	MessageID types.MessageID
	TriggerID string

	// Values carries select-menu selections; Inputs carries modal form
	// fields keyed by input identifier.
	Values []string
	Inputs map[string]string
}

// Interaction identifiers. Admin decision buttons embed the target user id
// as a suffix and are matched by pattern.
const (
	IDCommandOnboard = "onboard"
	IDCommandRoles   = "roles"

	IDVerifyStart          = "verify_start"
	IDAffiliateStart       = "affiliate_start"
	IDPronounsDone         = "pronouns_done"
	IDInterestsDone        = "interests_done"
	IDRulesAcceptMember    = "rules_accept_member"
	IDRulesAcceptAffiliate = "rules_accept_affiliate"

	IDPickPronouns           = "pick_pronouns"
	IDPickInterestsMember    = "pick_roles_member"
	IDPickInterestsAffiliate = "pick_roles_affiliate"

	IDVerifyEmailModal = "verify_email_modal"
	InputEmail         = "email_input"

	IDReactionAccept = "rules_accept_reaction"

	adminApprovePrefix = "admin_approve_"
	adminDenyPrefix    = "admin_deny_"
)

// AdminDecision is a moderator's verdict on a pending affiliate
type AdminDecision string

const (
	DecisionApprove AdminDecision = "approve"
	DecisionDeny    AdminDecision = "deny"
)

// AdminActionID builds the button identifier for a moderator decision on
// the given user.
func AdminActionID(decision AdminDecision, target types.UserID) string {
	switch decision {
	case DecisionApprove:
		return adminApprovePrefix + target.String()
	default:
		return adminDenyPrefix + target.String()
	}
}

// ParseAdminActionID extracts the decision and target user id from an admin
// button identifier.
func ParseAdminActionID(id string) (AdminDecision, types.UserID, error) {
	switch {
	case strings.HasPrefix(id, adminApprovePrefix):
		return DecisionApprove, types.UserID(strings.TrimPrefix(id, adminApprovePrefix)), nil
	case strings.HasPrefix(id, adminDenyPrefix):
		return DecisionDeny, types.UserID(strings.TrimPrefix(id, adminDenyPrefix)), nil
	default:
		return "", "", goerr.New(fmt.Sprintf("not an admin action ID: %s", id), goerr.T(types.ErrTagValidation))
	}
}

// AdminActionPattern matches both admin decision identifiers
const AdminActionPattern = `^admin_(approve|deny)_(.+)$`
