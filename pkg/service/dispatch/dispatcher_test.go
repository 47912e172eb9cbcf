package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/service/dispatch"
)

// noticeGateway captures user-facing notices and ignores everything else
type noticeGateway struct {
	mu        sync.Mutex
	ephemeral []string
	dms       []string
}

func (g *noticeGateway) GetMember(ctx context.Context, id types.UserID) (*model.Member, error) {
	return nil, nil
}

func (g *noticeGateway) GetRole(ctx context.Context, id types.RoleID) (*model.Role, error) {
	return nil, nil
}

func (g *noticeGateway) Self(ctx context.Context) (*model.BotIdentity, error) {
	return &model.BotIdentity{}, nil
}

func (g *noticeGateway) CanManageRoles(ctx context.Context, id types.UserID) (bool, error) {
	return false, nil
}

func (g *noticeGateway) AddRole(ctx context.Context, user types.UserID, role types.RoleID) error {
	return nil
}

func (g *noticeGateway) RemoveRole(ctx context.Context, user types.UserID, role types.RoleID) error {
	return nil
}

func (g *noticeGateway) SetRoles(ctx context.Context, user types.UserID, roles []types.RoleID) error {
	return nil
}

func (g *noticeGateway) PostMessage(ctx context.Context, channel types.ChannelID, msg model.Message) (types.MessageID, error) {
	return "", nil
}

func (g *noticeGateway) PostEphemeral(ctx context.Context, channel types.ChannelID, user types.UserID, msg model.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ephemeral = append(g.ephemeral, msg.Text)
	return nil
}

func (g *noticeGateway) UpdateMessage(ctx context.Context, channel types.ChannelID, id types.MessageID, msg model.Message) error {
	return nil
}

func (g *noticeGateway) SendDM(ctx context.Context, user types.UserID, msg model.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dms = append(g.dms, msg.Text)
	return nil
}

func (g *noticeGateway) OpenModal(ctx context.Context, triggerID string, modal model.Modal) error {
	return nil
}

type throttleLog struct {
	mu     sync.Mutex
	events []string
}

func (a *throttleLog) Throttled(ctx context.Context, user types.UserID, interactionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, string(user)+":"+interactionID)
}

func buttonIx(id string) *model.Interaction {
	return &model.Interaction{
		Kind:      model.KindButton,
		ID:        id,
		UserID:    "U1",
		ChannelID: "C1",
	}
}

func TestDispatchRouting(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to the exact handler", func(t *testing.T) {
		d := dispatch.New(&noticeGateway{})

		var got *model.Interaction
		d.Register(model.KindButton, "verify_start", func(ctx context.Context, ix *model.Interaction) error {
			got = ix
			return nil
		})

		d.Dispatch(ctx, buttonIx("verify_start"))
		gt.Value(t, got).NotNil()
		gt.Value(t, got.ID).Equal("verify_start")
	})

	t.Run("exact route wins over a matching pattern", func(t *testing.T) {
		d := dispatch.New(&noticeGateway{})

		var hit string
		gt.NoError(t, d.RegisterPattern(model.KindButton, `^verify_`, func(ctx context.Context, ix *model.Interaction) error {
			hit = "pattern"
			return nil
		}))
		d.Register(model.KindButton, "verify_start", func(ctx context.Context, ix *model.Interaction) error {
			hit = "exact"
			return nil
		})

		d.Dispatch(ctx, buttonIx("verify_start"))
		gt.Value(t, hit).Equal("exact")
	})

	t.Run("patterns are tried in registration order", func(t *testing.T) {
		d := dispatch.New(&noticeGateway{})

		var hit string
		gt.NoError(t, d.RegisterPattern(model.KindButton, `^admin_`, func(ctx context.Context, ix *model.Interaction) error {
			hit = "first"
			return nil
		}))
		gt.NoError(t, d.RegisterPattern(model.KindButton, `^admin_approve_`, func(ctx context.Context, ix *model.Interaction) error {
			hit = "second"
			return nil
		}))

		d.Dispatch(ctx, buttonIx("admin_approve_U42"))
		gt.Value(t, hit).Equal("first")
	})

	t.Run("patterns only match their own kind", func(t *testing.T) {
		gw := &noticeGateway{}
		d := dispatch.New(gw)

		var called bool
		gt.NoError(t, d.RegisterPattern(model.KindButton, `^admin_`, func(ctx context.Context, ix *model.Interaction) error {
			called = true
			return nil
		}))

		d.Dispatch(ctx, &model.Interaction{
			Kind:      model.KindSelect,
			ID:        "admin_approve_U42",
			UserID:    "U1",
			ChannelID: "C1",
		})
		gt.Bool(t, called).False()
		gt.Array(t, gw.ephemeral).Equal([]string{"That action is no longer available."})
	})

	t.Run("rejects an invalid pattern", func(t *testing.T) {
		d := dispatch.New(&noticeGateway{})

		err := d.RegisterPattern(model.KindButton, `([`, func(ctx context.Context, ix *model.Interaction) error {
			return nil
		})
		gt.Error(t, err)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagValidation)).True()
	})

	t.Run("unroutable interaction without a channel falls back to DM", func(t *testing.T) {
		gw := &noticeGateway{}
		d := dispatch.New(gw)

		d.Dispatch(ctx, &model.Interaction{Kind: model.KindButton, ID: "gone", UserID: "U1"})
		gt.Array(t, gw.ephemeral).Length(0)
		gt.Array(t, gw.dms).Equal([]string{"That action is no longer available."})
	})
}

func TestDispatchErrorNotices(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name   string
		err    error
		expect string
	}{
		{
			name:   "validation",
			err:    goerr.New("bad input", goerr.T(types.ErrTagValidation)),
			expect: "That input doesn't look right. Please check it and try again.",
		},
		{
			name:   "permission",
			err:    goerr.New("nope", goerr.T(types.ErrTagPermission)),
			expect: "You don't have permission to do that. If you believe this is a mistake, contact a moderator.",
		},
		{
			name:   "rate limit",
			err:    goerr.Wrap(types.ErrThrottled, "busy"),
			expect: "The service is busy right now. Please try again in a minute.",
		},
		{
			name:   "upstream",
			err:    goerr.New("directory down", goerr.T(types.ErrTagUpstream)),
			expect: "The membership service is temporarily unavailable. Please try again shortly.",
		},
		{
			name:   "unclassified",
			err:    goerr.New("boom"),
			expect: "Something went wrong while processing that action. Please try again, or contact a moderator if it keeps happening.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &noticeGateway{}
			d := dispatch.New(gw)
			d.Register(model.KindButton, "boom", func(ctx context.Context, ix *model.Interaction) error {
				return tc.err
			})

			d.Dispatch(ctx, buttonIx("boom"))
			gt.Array(t, gw.ephemeral).Equal([]string{tc.expect})
		})
	}
}

func TestDispatchThrottle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	gw := &noticeGateway{}
	auditor := &throttleLog{}
	d := dispatch.New(gw,
		dispatch.WithThrottle(2, 1, time.Minute),
		dispatch.WithThrottleClock(func() time.Time { return now }),
		dispatch.WithAuditor(auditor),
	)

	var handled int
	d.Register(model.KindButton, "verify_start", func(ctx context.Context, ix *model.Interaction) error {
		handled++
		return nil
	})

	d.Dispatch(ctx, buttonIx("verify_start"))
	d.Dispatch(ctx, buttonIx("verify_start"))
	gt.Number(t, handled).Equal(2)
	gt.Array(t, auditor.events).Length(0)

	// burst exhausted: the third action is rejected before routing
	d.Dispatch(ctx, buttonIx("verify_start"))
	gt.Number(t, handled).Equal(2)
	gt.Array(t, auditor.events).Equal([]string{"U1:verify_start"})
	gt.Array(t, gw.ephemeral).Equal([]string{"You're sending actions too quickly. Please wait a moment and try again."})

	// other users keep their own budget
	other := buttonIx("verify_start")
	other.UserID = "U2"
	d.Dispatch(ctx, other)
	gt.Number(t, handled).Equal(3)

	// one interval restores one token
	now = now.Add(time.Minute)
	d.Dispatch(ctx, buttonIx("verify_start"))
	gt.Number(t, handled).Equal(4)

	// after a long idle stretch every bucket is full again and prunable
	now = now.Add(time.Hour)
	gt.Number(t, d.PruneThrottle()).Equal(2)
	gt.Number(t, d.PruneThrottle()).Equal(0)
}
