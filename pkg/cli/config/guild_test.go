package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/chapterkit/doorman/pkg/cli/config"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

const validGuildTOML = `
guild_id = "T0123456"
moderator_channel = "C0MOD"
welcome_channel = "C0WELCOME"
rules_text = "Be kind. No spam."
accept_emoji = "white_check_mark"

member_role = "S0MEMBER"
member_role_rank = 20
affiliate_role = "S0AFF"
affiliate_role_rank = 20
member_unverified_role = "S0UNVM"
member_unverified_role_rank = 15
affiliate_unverified_role = "S0UNVA"
affiliate_unverified_role_rank = 15
bot_rank = 100

[[pronoun]]
key = "pronoun_they"
role_id = "S0P1"
label = "they/them"
rank = 10

[[pronoun]]
key = "pronoun_she"
role_id = "S0P2"
label = "she/her"
rank = 10

[[member_interest]]
key = "interest_games"
role_id = "S0G1"
label = "Games"
rank = 10

[[affiliate_interest]]
key = "interest_events"
role_id = "S0E1"
label = "Events"
rank = 10
`

func writeGuildFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guild.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestGuildConfigure(t *testing.T) {
	guild := config.NewGuildForTest(writeGuildFile(t, validGuildTOML))

	cfg := gt.R1(guild.Configure()).NoError(t)
	gt.Value(t, cfg.GuildID).Equal("T0123456")
	gt.Value(t, cfg.ModeratorChannel).Equal(types.ChannelID("C0MOD"))
	gt.Value(t, cfg.AcceptEmoji).Equal("white_check_mark")
	gt.Value(t, cfg.MemberRole).Equal(types.RoleID("S0MEMBER"))
	gt.Value(t, cfg.AffiliateRole).Equal(types.RoleID("S0AFF"))
	gt.Value(t, cfg.MemberUnverifiedRole).Equal(types.RoleID("S0UNVM"))
	gt.Value(t, cfg.AffiliateUnverifiedRole).Equal(types.RoleID("S0UNVA"))
	gt.Value(t, cfg.BotRank).Equal(100)

	// pronouns are shared between both variants
	gt.Array(t, cfg.MemberRoles.Keys(model.CategoryPronoun)).
		Equal([]types.RoleKey{"pronoun_they", "pronoun_she"})
	gt.Array(t, cfg.AffiliateRoles.Keys(model.CategoryPronoun)).
		Equal([]types.RoleKey{"pronoun_they", "pronoun_she"})

	// interests are per variant
	gt.Array(t, cfg.MemberRoles.Keys(model.CategoryInterest)).
		Equal([]types.RoleKey{"interest_games"})
	gt.Array(t, cfg.AffiliateRoles.Keys(model.CategoryInterest)).
		Equal([]types.RoleKey{"interest_events"})

	roleID, ok := cfg.MemberRoles.Resolve("pronoun_she")
	gt.Bool(t, ok).True()
	gt.Value(t, roleID).Equal(types.RoleID("S0P2"))

	// the rank table covers status roles and every mapped role
	gt.Number(t, cfg.Ranks["S0MEMBER"]).Equal(20)
	gt.Number(t, cfg.Ranks["S0UNVM"]).Equal(15)
	gt.Number(t, cfg.Ranks["S0UNVA"]).Equal(15)
	gt.Number(t, cfg.Ranks["S0P1"]).Equal(10)
	gt.Number(t, cfg.Ranks["S0E1"]).Equal(10)
}

func TestGuildConfigureErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		guild := config.NewGuildForTest(filepath.Join(t.TempDir(), "absent.toml"))
		_, err := guild.Configure()
		gt.Error(t, err)
	})

	t.Run("malformed TOML", func(t *testing.T) {
		guild := config.NewGuildForTest(writeGuildFile(t, "guild_id = [broken"))
		_, err := guild.Configure()
		gt.Error(t, err)
	})

	t.Run("role rank at or above the bot rank", func(t *testing.T) {
		bad := validGuildTOML + `
[[member_interest]]
key = "interest_admin"
role_id = "S0ADMIN"
label = "Admin"
rank = 100
`
		guild := config.NewGuildForTest(writeGuildFile(t, bad))
		_, err := guild.Configure()
		gt.Error(t, err)
	})

	t.Run("duplicate role key", func(t *testing.T) {
		bad := validGuildTOML + `
[[member_interest]]
key = "pronoun_they"
role_id = "S0DUP"
label = "Duplicate"
rank = 10
`
		guild := config.NewGuildForTest(writeGuildFile(t, bad))
		_, err := guild.Configure()
		gt.Error(t, err)
	})

	t.Run("missing unverified roles", func(t *testing.T) {
		guild := config.NewGuildForTest(writeGuildFile(t, `
guild_id = "T0123456"
moderator_channel = "C0MOD"
member_role = "S0MEMBER"
affiliate_role = "S0AFF"
bot_rank = 100
`))
		_, err := guild.Configure()
		gt.Error(t, err)
	})

	t.Run("missing guild id", func(t *testing.T) {
		guild := config.NewGuildForTest(writeGuildFile(t, `
moderator_channel = "C0MOD"
member_role = "S0MEMBER"
affiliate_role = "S0AFF"
bot_rank = 100
`))
		_, err := guild.Configure()
		gt.Error(t, err)
	})
}
