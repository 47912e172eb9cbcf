package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	domainconfig "github.com/chapterkit/doorman/pkg/domain/model/config"
	slacksvc "github.com/chapterkit/doorman/pkg/service/slack"
)

// Slack holds CLI flags for the Slack connection
type Slack struct {
	botToken      string
	signingSecret string
}

// Flags returns CLI flags for Slack configuration
func (s *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack bot token (xoxb-...)",
			Category:    "Slack",
			Required:    true,
			Sources:     cli.EnvVars("DOORMAN_SLACK_BOT_TOKEN"),
			Destination: &s.botToken,
		},
		&cli.StringFlag{
			Name:        "slack-signing-secret",
			Usage:       "Slack signing secret for webhook verification",
			Category:    "Slack",
			Required:    true,
			Sources:     cli.EnvVars("DOORMAN_SLACK_SIGNING_SECRET"),
			Destination: &s.signingSecret,
		},
	}
}

// SigningSecret returns the webhook signing secret
func (s *Slack) SigningSecret() string {
	return s.signingSecret
}

// Configure builds the chat gateway. Role ranks and the bot's own rank come
// from the guild configuration.
func (s *Slack) Configure(guild *domainconfig.GuildConfig) (*slacksvc.Gateway, error) {
	gateway, err := slacksvc.New(s.botToken,
		slacksvc.WithRankTable(guild.Ranks),
		slacksvc.WithBotRank(guild.BotRank),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize Slack gateway")
	}
	return gateway, nil
}
