package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/errutil"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

const (
	defaultSuspicionThreshold = 3
	defaultRecentLimit        = 20
)

// Recorder appends audit events and raises a moderator alert when a user
// accumulates enough suspicious events. Recording failures are logged but
// never propagate into the calling flow.
type Recorder struct {
	repo      interfaces.AuditRepository
	gateway   interfaces.ChatGateway
	alertCh   types.ChannelID
	guildID   string
	threshold int
	clock     func() time.Time
}

// Option configures the recorder
type Option func(*Recorder)

// WithThreshold overrides the suspicious-event count that triggers a
// moderator alert.
func WithThreshold(n int) Option {
	return func(r *Recorder) {
		r.threshold = n
	}
}

// WithClock injects the clock for tests
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// New creates an audit recorder. alertCh is the moderator channel; when it
// is empty no alerts are sent.
func New(repo interfaces.AuditRepository, gateway interfaces.ChatGateway, alertCh types.ChannelID, guildID string, opts ...Option) *Recorder {
	r := &Recorder{
		repo:      repo,
		gateway:   gateway,
		alertCh:   alertCh,
		guildID:   guildID,
		threshold: defaultSuspicionThreshold,
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record appends one event, assigning id and timestamp when absent
func (r *Recorder) Record(ctx context.Context, user types.UserID, eventType types.AuditType, details string) {
	event := &model.AuditEvent{
		ID:        model.NewEventID(),
		UserID:    user,
		Type:      eventType,
		Details:   details,
		GuildID:   r.guildID,
		Timestamp: r.clock(),
	}

	if _, err := r.repo.Append(ctx, event); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to append audit event",
			goerr.V("type", eventType), goerr.V("userID", user)),
			"audit record dropped")
		return
	}

	logging.From(ctx).Info("audit event recorded",
		"type", eventType, "userID", user, "details", details)

	if eventType.Suspicious() {
		r.checkSuspicion(ctx, user)
	}
}

// VerificationOK records a successful membership verification. The email
// address itself is never written to the log.
func (r *Recorder) VerificationOK(ctx context.Context, user types.UserID) {
	r.Record(ctx, user, types.AuditVerificationOK, "membership verified")
}

// VerificationFailed records a failed verification attempt
func (r *Recorder) VerificationFailed(ctx context.Context, user types.UserID, reason string) {
	r.Record(ctx, user, types.AuditVerificationFailed, reason)
}

// RoleChange records a completed role mutation
func (r *Recorder) RoleChange(ctx context.Context, user types.UserID, role types.RoleID, op string) {
	r.Record(ctx, user, types.AuditRoleChange, fmt.Sprintf("%s %s", op, role))
}

// FlowTransition records an onboarding state change
func (r *Recorder) FlowTransition(ctx context.Context, user types.UserID, from, to types.FlowState) {
	r.Record(ctx, user, types.AuditFlowTransition, fmt.Sprintf("%s -> %s", from, to))
}

// AdminDecision records a moderator verdict on a pending user
func (r *Recorder) AdminDecision(ctx context.Context, admin, target types.UserID, decision model.AdminDecision) {
	r.Record(ctx, target, types.AuditAdminDecision, fmt.Sprintf("%s by %s", decision, admin))
}

// Throttled records an interaction rejected by rate limiting
func (r *Recorder) Throttled(ctx context.Context, user types.UserID, interactionID string) {
	r.Record(ctx, user, types.AuditThrottled, "interaction "+interactionID)
}

// checkSuspicion counts the user's recent suspicious events and alerts the
// moderator channel exactly when the count reaches the threshold, not on
// every event beyond it.
func (r *Recorder) checkSuspicion(ctx context.Context, user types.UserID) {
	events, err := r.repo.ListByUser(ctx, user, defaultRecentLimit)
	if err != nil {
		errutil.Handle(ctx, err, "failed to list audit events for suspicion check")
		return
	}

	var suspicious int
	for _, event := range events {
		if event.Type.Suspicious() {
			suspicious++
		}
	}

	if suspicious != r.threshold {
		return
	}

	logging.From(ctx).Warn("suspicion threshold reached", "userID", user, "count", suspicious)

	if r.alertCh == "" {
		return
	}

	msg := model.Message{Text: alertText(user, events)}
	if _, err := r.gateway.PostMessage(ctx, r.alertCh, msg); err != nil {
		errutil.Handle(ctx, err, "failed to post moderator alert")
	}
}

func alertText(user types.UserID, events []*model.AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: Repeated verification failures from <@%s>. Recent activity:\n", user)
	for _, event := range events {
		if !event.Type.Suspicious() {
			continue
		}
		fmt.Fprintf(&b, "• %s %s (%s)\n",
			event.Timestamp.UTC().Format(time.RFC3339), event.Type, event.Details)
	}
	return b.String()
}
