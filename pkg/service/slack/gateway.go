package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// DefaultGroupCacheTTL bounds how long the usergroup listing is reused
const DefaultGroupCacheTTL = 45 * time.Second

// Gateway adapts the Slack Web API to the chat gateway interface. Roles are
// backed by Slack usergroups; role ranks come from guild configuration since
// Slack has no native role ordering.
type Gateway struct {
	api       *slack.Client
	ranks     map[types.RoleID]int
	botRank   int
	canManage bool
	cacheTTL  time.Duration

	mu          sync.Mutex
	groups      map[types.RoleID]slack.UserGroup
	groupsUntil time.Time

	selfOnce sync.Once
	self     *model.BotIdentity
	selfErr  error
}

// Option is a functional option for gateway configuration
type Option func(*Gateway)

// WithRankTable sets the configured rank for each managed role
func WithRankTable(ranks map[types.RoleID]int) Option {
	return func(g *Gateway) {
		g.ranks = ranks
	}
}

// WithBotRank sets the bot's own configured rank
func WithBotRank(rank int) Option {
	return func(g *Gateway) {
		g.botRank = rank
	}
}

// WithManageRoles declares whether the bot token carries the usergroup
// write scope.
func WithManageRoles(ok bool) Option {
	return func(g *Gateway) {
		g.canManage = ok
	}
}

// WithGroupCacheTTL sets the TTL for the usergroup listing cache
func WithGroupCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		g.cacheTTL = ttl
	}
}

// New creates a Slack gateway with the given bot token
func New(token string, opts ...Option) (*Gateway, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required", goerr.T(types.ErrTagValidation))
	}

	g := &Gateway{
		api:       slack.New(token),
		ranks:     make(map[types.RoleID]int),
		canManage: true,
		cacheTTL:  DefaultGroupCacheTTL,
		groups:    make(map[types.RoleID]slack.UserGroup),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

var _ interfaces.ChatGateway = (*Gateway)(nil)

// wrapAPIError classifies a Slack API failure. Rate limits and vanished
// references get their own classes so retry policies can key off them.
func wrapAPIError(err error, msg string) error {
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return goerr.Wrap(err, msg,
			goerr.T(types.ErrTagRateLimit), goerr.V("retryAfter", rle.RetryAfter))
	}

	switch {
	case strings.Contains(err.Error(), "user_not_found"),
		strings.Contains(err.Error(), "no_such_subteam"),
		strings.Contains(err.Error(), "message_not_found"):
		return goerr.Wrap(types.ErrStaleReference, msg, goerr.V("cause", err.Error()))
	}

	return goerr.Wrap(err, msg, goerr.T(types.ErrTagUpstream))
}

// listGroups returns the usergroup table, refreshing the cache when stale
func (g *Gateway) listGroups(ctx context.Context) (map[types.RoleID]slack.UserGroup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Before(g.groupsUntil) {
		return g.groups, nil
	}

	groups, err := g.api.GetUserGroupsContext(ctx)
	if err != nil {
		return nil, wrapAPIError(err, "failed to list usergroups")
	}

	table := make(map[types.RoleID]slack.UserGroup, len(groups))
	for _, group := range groups {
		table[types.RoleID(group.ID)] = group
	}

	g.groups = table
	g.groupsUntil = now.Add(g.cacheTTL)
	return table, nil
}

// GetMember fetches a fresh member snapshot. Role membership is derived
// from the usergroups the user currently belongs to; the member list itself
// is never cached.
func (g *Gateway) GetMember(ctx context.Context, id types.UserID) (*model.Member, error) {
	user, err := g.api.GetUserInfoContext(ctx, id.String())
	if err != nil {
		return nil, wrapAPIError(err, "failed to fetch user")
	}

	groups, err := g.listGroups(ctx)
	if err != nil {
		return nil, err
	}

	member := &model.Member{
		ID:   id,
		Name: user.Name,
	}
	for roleID := range groups {
		members, err := g.api.GetUserGroupMembersContext(ctx, roleID.String())
		if err != nil {
			return nil, wrapAPIError(err, "failed to list usergroup members")
		}
		for _, m := range members {
			if m == id.String() {
				member.RoleIDs = append(member.RoleIDs, roleID)
				break
			}
		}
	}

	return member, nil
}

// GetRole fetches a role with its configured rank. Roles absent from the
// rank table default to rank 0, the bottom of the ordering.
func (g *Gateway) GetRole(ctx context.Context, id types.RoleID) (*model.Role, error) {
	groups, err := g.listGroups(ctx)
	if err != nil {
		return nil, err
	}

	group, ok := groups[id]
	if !ok {
		return nil, goerr.New("usergroup not found",
			goerr.T(types.ErrTagNotFound), goerr.V("roleID", id))
	}

	return &model.Role{
		ID:   id,
		Name: group.Name,
		Rank: g.ranks[id],
	}, nil
}

// Self returns the bot's own identity. Rank and capability come from
// configuration; only the user id is resolved through the API.
func (g *Gateway) Self(ctx context.Context) (*model.BotIdentity, error) {
	g.selfOnce.Do(func() {
		resp, err := g.api.AuthTestContext(ctx)
		if err != nil {
			g.selfErr = wrapAPIError(err, "auth test failed")
			return
		}
		g.self = &model.BotIdentity{
			ID:             types.UserID(resp.UserID),
			Rank:           g.botRank,
			CanManageRoles: g.canManage,
		}
	})

	return g.self, g.selfErr
}

// CanManageRoles reports whether the user is a workspace admin or owner
func (g *Gateway) CanManageRoles(ctx context.Context, id types.UserID) (bool, error) {
	user, err := g.api.GetUserInfoContext(ctx, id.String())
	if err != nil {
		return false, wrapAPIError(err, "failed to fetch user")
	}
	return user.IsAdmin || user.IsOwner, nil
}

// AddRole adds the user to the usergroup backing the role
func (g *Gateway) AddRole(ctx context.Context, user types.UserID, role types.RoleID) error {
	return g.mutateGroup(ctx, role, func(members []string) []string {
		for _, m := range members {
			if m == user.String() {
				return members
			}
		}
		return append(members, user.String())
	})
}

// RemoveRole removes the user from the usergroup backing the role
func (g *Gateway) RemoveRole(ctx context.Context, user types.UserID, role types.RoleID) error {
	return g.mutateGroup(ctx, role, func(members []string) []string {
		out := members[:0]
		for _, m := range members {
			if m != user.String() {
				out = append(out, m)
			}
		}
		return out
	})
}

// mutateGroup rewrites a usergroup's member list through fn. Slack has no
// incremental membership API, so the full list is read and replaced.
func (g *Gateway) mutateGroup(ctx context.Context, role types.RoleID, fn func([]string) []string) error {
	members, err := g.api.GetUserGroupMembersContext(ctx, role.String())
	if err != nil {
		return wrapAPIError(err, "failed to list usergroup members")
	}

	next := fn(members)
	if len(next) == len(members) && sameMembers(members, next) {
		return nil
	}

	// Slack rejects an empty member list; disable is not what we want, so
	// keep a single removal from a one-member group as a stale state.
	if len(next) == 0 {
		return goerr.Wrap(types.ErrStaleReference, "usergroup would become empty",
			goerr.V("roleID", role))
	}

	if _, err := g.api.UpdateUserGroupMembersContext(ctx, role.String(), strings.Join(next, ",")); err != nil {
		return wrapAPIError(err, "failed to update usergroup members")
	}
	return nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, m := range a {
		seen[m] = true
	}
	for _, m := range b {
		if !seen[m] {
			return false
		}
	}
	return true
}

// SetRoles reconciles the user's membership across every managed usergroup
// so it matches the given role list exactly. Slack offers no single-call
// replacement for this, so it is applied group by group and the first
// failure aborts.
func (g *Gateway) SetRoles(ctx context.Context, user types.UserID, roles []types.RoleID) error {
	groups, err := g.listGroups(ctx)
	if err != nil {
		return err
	}

	want := make(map[types.RoleID]bool, len(roles))
	for _, id := range roles {
		want[id] = true
	}

	for roleID := range groups {
		// Only touch roles the guild config ranks; other usergroups are
		// not ours to manage.
		if _, managed := g.ranks[roleID]; !managed {
			continue
		}
		if want[roleID] {
			if err := g.AddRole(ctx, user, roleID); err != nil {
				return err
			}
		} else if err := g.RemoveRole(ctx, user, roleID); err != nil {
			return err
		}
	}

	return nil
}

// PostMessage posts a channel message and returns its timestamp id
func (g *Gateway) PostMessage(ctx context.Context, channel types.ChannelID, msg model.Message) (types.MessageID, error) {
	_, ts, err := g.api.PostMessageContext(ctx, channel.String(), renderMessage(msg)...)
	if err != nil {
		return "", wrapAPIError(err, "failed to post message")
	}
	return types.MessageID(ts), nil
}

// PostEphemeral posts a message only the given user can see
func (g *Gateway) PostEphemeral(ctx context.Context, channel types.ChannelID, user types.UserID, msg model.Message) error {
	if _, err := g.api.PostEphemeralContext(ctx, channel.String(), user.String(), renderMessage(msg)...); err != nil {
		return wrapAPIError(err, "failed to post ephemeral message")
	}
	return nil
}

// UpdateMessage replaces the content of a previously posted message
func (g *Gateway) UpdateMessage(ctx context.Context, channel types.ChannelID, id types.MessageID, msg model.Message) error {
	if _, _, _, err := g.api.UpdateMessageContext(ctx, channel.String(), id.String(), renderMessage(msg)...); err != nil {
		return wrapAPIError(err, "failed to update message")
	}
	return nil
}

// SendDM opens (or reuses) the bot's DM conversation with the user and
// posts there.
func (g *Gateway) SendDM(ctx context.Context, user types.UserID, msg model.Message) error {
	channel, _, _, err := g.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{user.String()},
	})
	if err != nil {
		return wrapAPIError(err, "failed to open DM conversation")
	}

	if _, _, err := g.api.PostMessageContext(ctx, channel.ID, renderMessage(msg)...); err != nil {
		return wrapAPIError(err, "failed to post DM")
	}
	return nil
}

// OpenModal opens a modal view in response to an interaction
func (g *Gateway) OpenModal(ctx context.Context, triggerID string, modal model.Modal) error {
	if _, err := g.api.OpenViewContext(ctx, triggerID, renderModal(modal)); err != nil {
		return wrapAPIError(err, "failed to open modal")
	}
	return nil
}
