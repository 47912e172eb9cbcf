package config

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// GuildConfig holds the per-community onboarding configuration: which roles
// exist, their ranks, and where the flow posts its messages. Role ranks live
// here because the chat platform has no native role ordering.
type GuildConfig struct {
	GuildID string

	// ModeratorChannel receives approval requests and security alerts.
	ModeratorChannel types.ChannelID
	// WelcomeChannel is where newcomers are greeted; empty means DM only.
	WelcomeChannel types.ChannelID

	// RulesText is posted before the final acceptance step.
	RulesText string
	// AcceptEmoji is the reaction that counts as rules acceptance.
	AcceptEmoji string

	// MemberRole and AffiliateRole are the base roles granted when the flow
	// completes.
	MemberRole    types.RoleID
	AffiliateRole types.RoleID

	// MemberUnverifiedRole and AffiliateUnverifiedRole mark users who are
	// inside the flow but not yet accepted. They are swapped for the base
	// role on completion and stripped on denial.
	MemberUnverifiedRole    types.RoleID
	AffiliateUnverifiedRole types.RoleID

	// MemberRoles and AffiliateRoles are the selectable role maps for each
	// membership variant. Both share the pronoun subset.
	MemberRoles    *model.RoleMap
	AffiliateRoles *model.RoleMap

	// Ranks orders every managed role; BotRank must exceed all of them.
	Ranks   map[types.RoleID]int
	BotRank int
}

// RoleMapFor returns the selectable role map for the membership variant
func (c *GuildConfig) RoleMapFor(membership types.Membership) (*model.RoleMap, error) {
	switch membership {
	case types.MembershipMember:
		return c.MemberRoles, nil
	case types.MembershipAffiliate:
		return c.AffiliateRoles, nil
	default:
		return nil, goerr.New("no role map for membership",
			goerr.T(types.ErrTagValidation), goerr.V("membership", membership))
	}
}

// BaseRoleFor returns the base role granted on completion for the variant
func (c *GuildConfig) BaseRoleFor(membership types.Membership) (types.RoleID, error) {
	switch membership {
	case types.MembershipMember:
		return c.MemberRole, nil
	case types.MembershipAffiliate:
		return c.AffiliateRole, nil
	default:
		return "", goerr.New("no base role for membership",
			goerr.T(types.ErrTagValidation), goerr.V("membership", membership))
	}
}

// Validate checks structural consistency of the guild configuration
func (c *GuildConfig) Validate() error {
	if c.GuildID == "" {
		return goerr.New("guild ID is required", goerr.T(types.ErrTagValidation))
	}
	if c.MemberRoles == nil || c.AffiliateRoles == nil {
		return goerr.New("both role map variants are required", goerr.T(types.ErrTagValidation))
	}
	if err := c.MemberRole.Validate(); err != nil {
		return goerr.Wrap(err, "invalid member base role")
	}
	if err := c.AffiliateRole.Validate(); err != nil {
		return goerr.Wrap(err, "invalid affiliate base role")
	}
	if err := c.MemberUnverifiedRole.Validate(); err != nil {
		return goerr.Wrap(err, "invalid unverified member role")
	}
	if err := c.AffiliateUnverifiedRole.Validate(); err != nil {
		return goerr.Wrap(err, "invalid unverified affiliate role")
	}

	for id, rank := range c.Ranks {
		if rank >= c.BotRank {
			return goerr.New("managed role ranks at or above the bot",
				goerr.T(types.ErrTagValidation),
				goerr.V("roleID", id), goerr.V("rank", rank), goerr.V("botRank", c.BotRank))
		}
	}

	return nil
}
