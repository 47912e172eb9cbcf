package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/chapterkit/doorman/pkg/domain/model"
	domainconfig "github.com/chapterkit/doorman/pkg/domain/model/config"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// Guild holds the CLI flag pointing at the guild configuration file
type Guild struct {
	path string
}

// Flags returns CLI flags for guild configuration
func (g *Guild) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "guild-config",
			Usage:       "Path to the guild configuration TOML file",
			Category:    "Guild",
			Required:    true,
			Sources:     cli.EnvVars("DOORMAN_GUILD_CONFIG"),
			Destination: &g.path,
		},
	}
}

// guildFile is the TOML shape of the guild configuration
type guildFile struct {
	GuildID          string `toml:"guild_id"`
	ModeratorChannel string `toml:"moderator_channel"`
	WelcomeChannel   string `toml:"welcome_channel"`
	RulesText        string `toml:"rules_text"`
	AcceptEmoji      string `toml:"accept_emoji"`

	MemberRole                  string `toml:"member_role"`
	MemberRoleRank              int    `toml:"member_role_rank"`
	AffiliateRole               string `toml:"affiliate_role"`
	AffiliateRoleRank           int    `toml:"affiliate_role_rank"`
	MemberUnverifiedRole        string `toml:"member_unverified_role"`
	MemberUnverifiedRoleRank    int    `toml:"member_unverified_role_rank"`
	AffiliateUnverifiedRole     string `toml:"affiliate_unverified_role"`
	AffiliateUnverifiedRoleRank int    `toml:"affiliate_unverified_role_rank"`
	BotRank                     int    `toml:"bot_rank"`

	Pronouns           []roleEntry `toml:"pronoun"`
	MemberInterests    []roleEntry `toml:"member_interest"`
	AffiliateInterests []roleEntry `toml:"affiliate_interest"`
}

type roleEntry struct {
	Key    string `toml:"key"`
	RoleID string `toml:"role_id"`
	Label  string `toml:"label"`
	Rank   int    `toml:"rank"`
}

func (e roleEntry) toModel(category model.RoleCategory) model.RoleEntry {
	return model.RoleEntry{
		Key:      types.RoleKey(e.Key),
		RoleID:   types.RoleID(e.RoleID),
		Label:    e.Label,
		Category: category,
	}
}

// Configure loads and validates the guild configuration. The pronoun
// entries are shared between both role map variants.
func (g *Guild) Configure() (*domainconfig.GuildConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(g.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read guild config file", goerr.V("path", g.path))
	}

	var file guildFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse guild config TOML", goerr.V("path", g.path))
	}

	memberEntries := make([]model.RoleEntry, 0, len(file.Pronouns)+len(file.MemberInterests))
	affiliateEntries := make([]model.RoleEntry, 0, len(file.Pronouns)+len(file.AffiliateInterests))
	for _, e := range file.Pronouns {
		memberEntries = append(memberEntries, e.toModel(model.CategoryPronoun))
		affiliateEntries = append(affiliateEntries, e.toModel(model.CategoryPronoun))
	}
	for _, e := range file.MemberInterests {
		memberEntries = append(memberEntries, e.toModel(model.CategoryInterest))
	}
	for _, e := range file.AffiliateInterests {
		affiliateEntries = append(affiliateEntries, e.toModel(model.CategoryInterest))
	}

	memberRoles, err := model.NewRoleMap(memberEntries)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid member role map", goerr.V("path", g.path))
	}
	affiliateRoles, err := model.NewRoleMap(affiliateEntries)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid affiliate role map", goerr.V("path", g.path))
	}

	ranks := map[types.RoleID]int{
		types.RoleID(file.MemberRole):              file.MemberRoleRank,
		types.RoleID(file.AffiliateRole):           file.AffiliateRoleRank,
		types.RoleID(file.MemberUnverifiedRole):    file.MemberUnverifiedRoleRank,
		types.RoleID(file.AffiliateUnverifiedRole): file.AffiliateUnverifiedRoleRank,
	}
	for _, entries := range [][]roleEntry{file.Pronouns, file.MemberInterests, file.AffiliateInterests} {
		for _, e := range entries {
			ranks[types.RoleID(e.RoleID)] = e.Rank
		}
	}

	cfg := &domainconfig.GuildConfig{
		GuildID:                 file.GuildID,
		ModeratorChannel:        types.ChannelID(file.ModeratorChannel),
		WelcomeChannel:          types.ChannelID(file.WelcomeChannel),
		RulesText:               file.RulesText,
		AcceptEmoji:             file.AcceptEmoji,
		MemberRole:              types.RoleID(file.MemberRole),
		AffiliateRole:           types.RoleID(file.AffiliateRole),
		MemberUnverifiedRole:    types.RoleID(file.MemberUnverifiedRole),
		AffiliateUnverifiedRole: types.RoleID(file.AffiliateUnverifiedRole),
		MemberRoles:             memberRoles,
		AffiliateRoles:          affiliateRoles,
		Ranks:                   ranks,
		BotRank:                 file.BotRank,
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "guild config validation failed", goerr.V("path", g.path))
	}

	return cfg, nil
}
