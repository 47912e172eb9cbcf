package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/async"
	"github.com/chapterkit/doorman/pkg/utils/errutil"
)

// handleInteraction handles Slack interactive component payloads: button
// clicks, select menus and modal submissions. Slack sends them as
// application/x-www-form-urlencoded with a "payload" field containing JSON.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload := r.FormValue("payload")
	if payload == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("missing payload field in interaction request"), http.StatusBadRequest)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse interaction payload"), http.StatusBadRequest)
		return
	}

	interactions := callbackInteractions(&callback)

	// Acknowledge before processing; Slack expects a fast empty 200.
	w.WriteHeader(http.StatusOK)

	for _, ix := range interactions {
		ix := ix
		async.Dispatch(ctx, func(ctx context.Context) error {
			s.dispatcher.Dispatch(ctx, ix)
			return nil
		})
	}
}

// callbackInteractions converts a Slack interaction callback into
// platform-neutral interactions.
func callbackInteractions(callback *slack.InteractionCallback) []*model.Interaction {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		var out []*model.Interaction
		for _, action := range callback.ActionCallback.BlockActions {
			ix := &model.Interaction{
				ID:        action.ActionID,
				UserID:    types.UserID(callback.User.ID),
				ChannelID: types.ChannelID(callback.Channel.ID),
				MessageID: types.MessageID(callback.Message.Timestamp),
				TriggerID: callback.TriggerID,
			}

			if len(action.SelectedOptions) > 0 || action.Type == "multi_static_select" {
				ix.Kind = model.KindSelect
				for _, opt := range action.SelectedOptions {
					ix.Values = append(ix.Values, opt.Value)
				}
			} else {
				ix.Kind = model.KindButton
			}

			out = append(out, ix)
		}
		return out

	case slack.InteractionTypeViewSubmission:
		ix := &model.Interaction{
			Kind:      model.KindModal,
			ID:        callback.View.CallbackID,
			UserID:    types.UserID(callback.User.ID),
			TriggerID: callback.TriggerID,
			Inputs:    make(map[string]string),
		}
		for _, block := range callback.View.State.Values {
			for actionID, state := range block {
				ix.Inputs[actionID] = state.Value
			}
		}
		return []*model.Interaction{ix}

	default:
		return nil
	}
}
