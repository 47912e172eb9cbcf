package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/async"
	"github.com/chapterkit/doorman/pkg/utils/errutil"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// handleCommand handles Slack slash command requests. The leading slash is
// stripped so command names line up with interaction identifiers.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slash command"), http.StatusBadRequest)
		return
	}

	ix := &model.Interaction{
		Kind:      model.KindCommand,
		ID:        strings.TrimPrefix(cmd.Command, "/"),
		UserID:    types.UserID(cmd.UserID),
		ChannelID: types.ChannelID(cmd.ChannelID),
		TriggerID: cmd.TriggerID,
	}

	logging.From(ctx).Info("slash command received", "command", cmd.Command, "userID", cmd.UserID)

	// Acknowledge immediately; replies arrive through the response channel.
	w.WriteHeader(http.StatusOK)

	async.Dispatch(ctx, func(ctx context.Context) error {
		s.dispatcher.Dispatch(ctx, ix)
		return nil
	})
}
