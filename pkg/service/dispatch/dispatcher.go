package dispatch

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
	"github.com/chapterkit/doorman/pkg/utils/errutil"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// Handler processes one inbound interaction
type Handler func(ctx context.Context, ix *model.Interaction) error

// ThrottleAuditor records interactions rejected by rate limiting
type ThrottleAuditor interface {
	Throttled(ctx context.Context, user types.UserID, interactionID string)
}

type matchKey struct {
	kind model.InteractionKind
	id   string
}

type patternRoute struct {
	kind    model.InteractionKind
	re      *regexp.Regexp
	handler Handler
}

// Dispatcher routes interactions to registered handlers. Exact identifier
// matches always win over pattern matches; patterns are tried in
// registration order.
type Dispatcher struct {
	exact    map[matchKey]Handler
	patterns []patternRoute
	gateway  interfaces.ChatGateway
	auditor  ThrottleAuditor
	throttle *throttle
}

// Option configures the dispatcher
type Option func(*Dispatcher)

// WithThrottle sets the per-user rate limit parameters
func WithThrottle(capacity, refill int, interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.throttle = newThrottle(capacity, refill, interval, time.Now)
	}
}

// WithThrottleClock injects the throttle clock for tests
func WithThrottleClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		d.throttle.clock = clock
	}
}

// WithAuditor records throttled interactions
func WithAuditor(a ThrottleAuditor) Option {
	return func(d *Dispatcher) {
		d.auditor = a
	}
}

// New creates a dispatcher. The gateway delivers failure notices back to
// the interacting user.
func New(gateway interfaces.ChatGateway, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exact:    make(map[matchKey]Handler),
		gateway:  gateway,
		throttle: newThrottle(defaultBurst, 1, defaultRefillInterval, time.Now),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Register binds a handler to an exact interaction identifier. Registering
// the same identifier twice replaces the earlier handler.
func (d *Dispatcher) Register(kind model.InteractionKind, id string, h Handler) {
	d.exact[matchKey{kind: kind, id: id}] = h
}

// RegisterPattern binds a handler to a regular expression over interaction
// identifiers. Patterns are consulted only when no exact route matches.
func (d *Dispatcher) RegisterPattern(kind model.InteractionKind, pattern string, h Handler) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return goerr.Wrap(err, "invalid route pattern",
			goerr.T(types.ErrTagValidation), goerr.V("pattern", pattern))
	}

	d.patterns = append(d.patterns, patternRoute{kind: kind, re: re, handler: h})
	return nil
}

func (d *Dispatcher) resolve(kind model.InteractionKind, id string) (Handler, bool) {
	if h, ok := d.exact[matchKey{kind: kind, id: id}]; ok {
		return h, true
	}
	for _, route := range d.patterns {
		if route.kind == kind && route.re.MatchString(id) {
			return route.handler, true
		}
	}
	return nil, false
}

// Dispatch resolves and runs the handler for the interaction. Handler
// errors never escape; they are logged, reported, and translated into an
// ephemeral notice for the user.
func (d *Dispatcher) Dispatch(ctx context.Context, ix *model.Interaction) {
	logger := logging.From(ctx).With("interactionID", ix.ID, "kind", ix.Kind, "userID", ix.UserID)
	ctx = logging.With(ctx, logger)

	if !d.throttle.allow(ix.UserID) {
		logger.Warn("interaction throttled")
		if d.auditor != nil {
			d.auditor.Throttled(ctx, ix.UserID, ix.ID)
		}
		d.notify(ctx, ix, "You're sending actions too quickly. Please wait a moment and try again.")
		return
	}

	handler, ok := d.resolve(ix.Kind, ix.ID)
	if !ok {
		errutil.Handle(ctx, goerr.Wrap(types.ErrNoHandler, "unroutable interaction",
			goerr.T(types.ErrTagNotFound), goerr.V("interactionID", ix.ID), goerr.V("kind", ix.Kind)),
			"failed to route interaction")
		d.notify(ctx, ix, "That action is no longer available.")
		return
	}

	if err := handler(ctx, ix); err != nil {
		errutil.Handle(ctx, err, "interaction handler failed")
		d.notify(ctx, ix, userMessage(err))
	}
}

// userMessage translates a handler error into a safe notice. Internal
// detail never reaches the user.
func userMessage(err error) string {
	switch {
	case goerr.HasTag(err, types.ErrTagValidation):
		return "That input doesn't look right. Please check it and try again."
	case goerr.HasTag(err, types.ErrTagPermission):
		return "You don't have permission to do that. If you believe this is a mistake, contact a moderator."
	case goerr.HasTag(err, types.ErrTagRateLimit), errors.Is(err, types.ErrThrottled):
		return "The service is busy right now. Please try again in a minute."
	case goerr.HasTag(err, types.ErrTagUpstream):
		return "The membership service is temporarily unavailable. Please try again shortly."
	default:
		return "Something went wrong while processing that action. Please try again, or contact a moderator if it keeps happening."
	}
}

// notify sends an ephemeral notice, falling back to a DM when the
// interaction has no channel. Delivery failures are logged and dropped.
func (d *Dispatcher) notify(ctx context.Context, ix *model.Interaction, text string) {
	msg := model.Message{Text: text}

	var err error
	if ix.ChannelID != "" {
		err = d.gateway.PostEphemeral(ctx, ix.ChannelID, ix.UserID, msg)
	} else {
		err = d.gateway.SendDM(ctx, ix.UserID, msg)
	}
	if err != nil {
		logging.From(ctx).Warn("failed to deliver notice", "error", err.Error())
	}
}

// PruneThrottle drops idle rate-limit state. The cleanup worker calls this.
func (d *Dispatcher) PruneThrottle() int {
	return d.throttle.prune()
}
