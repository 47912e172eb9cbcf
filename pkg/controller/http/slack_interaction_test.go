package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	goslack "github.com/slack-go/slack"

	httpctrl "github.com/chapterkit/doorman/pkg/controller/http"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/service/dispatch"
)

func TestCallbackInteractions(t *testing.T) {
	t.Run("button click", func(t *testing.T) {
		callback := &goslack.InteractionCallback{
			Type:      goslack.InteractionTypeBlockActions,
			User:      goslack.User{ID: "U1"},
			TriggerID: "tr1",
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{
					{ActionID: model.IDVerifyStart, Type: "button"},
				},
			},
		}
		callback.Channel.ID = "C1"

		out := httpctrl.CallbackInteractions(callback)
		gt.Array(t, out).Length(1)
		gt.Value(t, out[0].Kind).Equal(model.KindButton)
		gt.Value(t, out[0].ID).Equal(model.IDVerifyStart)
		gt.Value(t, out[0].UserID.String()).Equal("U1")
		gt.Value(t, out[0].ChannelID.String()).Equal("C1")
		gt.Value(t, out[0].TriggerID).Equal("tr1")
	})

	t.Run("multi select carries chosen values", func(t *testing.T) {
		action := &goslack.BlockAction{
			ActionID: model.IDPickPronouns,
			Type:     "multi_static_select",
		}
		action.SelectedOptions = []goslack.OptionBlockObject{
			{Value: "pronoun_they"},
			{Value: "pronoun_she"},
		}

		callback := &goslack.InteractionCallback{
			Type: goslack.InteractionTypeBlockActions,
			User: goslack.User{ID: "U1"},
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{action},
			},
		}

		out := httpctrl.CallbackInteractions(callback)
		gt.Array(t, out).Length(1)
		gt.Value(t, out[0].Kind).Equal(model.KindSelect)
		gt.Array(t, out[0].Values).Equal([]string{"pronoun_they", "pronoun_she"})
	})

	t.Run("empty multi select still routes as a select", func(t *testing.T) {
		callback := &goslack.InteractionCallback{
			Type: goslack.InteractionTypeBlockActions,
			User: goslack.User{ID: "U1"},
			ActionCallback: goslack.ActionCallbacks{
				BlockActions: []*goslack.BlockAction{
					{ActionID: model.IDPickPronouns, Type: "multi_static_select"},
				},
			},
		}

		out := httpctrl.CallbackInteractions(callback)
		gt.Array(t, out).Length(1)
		gt.Value(t, out[0].Kind).Equal(model.KindSelect)
		gt.Array(t, out[0].Values).Length(0)
	})

	t.Run("view submission flattens inputs", func(t *testing.T) {
		callback := &goslack.InteractionCallback{
			Type: goslack.InteractionTypeViewSubmission,
			User: goslack.User{ID: "U1"},
		}
		callback.View.CallbackID = model.IDVerifyEmailModal
		callback.View.State = &goslack.ViewState{
			Values: map[string]map[string]goslack.BlockAction{
				model.InputEmail: {
					model.InputEmail: {Value: "alice@example.org"},
				},
			},
		}

		out := httpctrl.CallbackInteractions(callback)
		gt.Array(t, out).Length(1)
		gt.Value(t, out[0].Kind).Equal(model.KindModal)
		gt.Value(t, out[0].ID).Equal(model.IDVerifyEmailModal)
		gt.Value(t, out[0].Inputs[model.InputEmail]).Equal("alice@example.org")
	})

	t.Run("unhandled callback types are dropped", func(t *testing.T) {
		callback := &goslack.InteractionCallback{Type: goslack.InteractionTypeShortcut}
		gt.Array(t, httpctrl.CallbackInteractions(callback)).Length(0)
	})
}

func TestInteractionEndpoint(t *testing.T) {
	const secret = "test-signing-secret"

	d := dispatch.New(nil)
	dispatched := make(chan *model.Interaction, 1)
	d.Register(model.KindButton, model.IDVerifyStart, func(ctx context.Context, ix *model.Interaction) error {
		dispatched <- ix
		return nil
	})
	srv := httpctrl.New(d, secret)

	callback := goslack.InteractionCallback{
		Type:      goslack.InteractionTypeBlockActions,
		User:      goslack.User{ID: "U1"},
		TriggerID: "tr1",
		ActionCallback: goslack.ActionCallbacks{
			BlockActions: []*goslack.BlockAction{
				{ActionID: model.IDVerifyStart, Type: "button"},
			},
		},
	}
	payload := gt.R1(json.Marshal(callback)).NoError(t)

	form := url.Values{"payload": {string(payload)}}
	body := form.Encode()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/interaction", "application/x-www-form-urlencoded", body))
	gt.Number(t, rec.Code).Equal(http.StatusOK)

	select {
	case ix := <-dispatched:
		gt.Value(t, ix.ID).Equal(model.IDVerifyStart)
		gt.Value(t, ix.TriggerID).Equal("tr1")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestInteractionEndpointBadPayload(t *testing.T) {
	const secret = "test-signing-secret"
	srv := httpctrl.New(dispatch.New(nil), secret)

	t.Run("missing payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/interaction", "application/x-www-form-urlencoded", "other=1"))
		gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("malformed payload json", func(t *testing.T) {
		form := url.Values{"payload": {"{broken"}}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, signedRequest(secret, "/hooks/slack/interaction", "application/x-www-form-urlencoded", form.Encode()))
		gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
	})
}
