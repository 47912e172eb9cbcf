package interfaces

import (
	"context"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/domain/types"
)

// ChatGateway is the chat platform client. It is an external collaborator:
// the core only references platform objects by id and re-fetches them
// through this interface before acting.
type ChatGateway interface {
	// GetMember fetches the current member snapshot including role ids.
	GetMember(ctx context.Context, id types.UserID) (*model.Member, error)
	// GetRole fetches a role with its rank.
	GetRole(ctx context.Context, id types.RoleID) (*model.Role, error)
	// Self returns the bot's own identity, rank and capability.
	Self(ctx context.Context) (*model.BotIdentity, error)
	// CanManageRoles reports whether the given user holds role-management
	// capability.
	CanManageRoles(ctx context.Context, id types.UserID) (bool, error)

	AddRole(ctx context.Context, user types.UserID, role types.RoleID) error
	RemoveRole(ctx context.Context, user types.UserID, role types.RoleID) error
	// SetRoles replaces the member's full role list in one call.
	SetRoles(ctx context.Context, user types.UserID, roles []types.RoleID) error

	PostMessage(ctx context.Context, channel types.ChannelID, msg model.Message) (types.MessageID, error)
	PostEphemeral(ctx context.Context, channel types.ChannelID, user types.UserID, msg model.Message) error
	UpdateMessage(ctx context.Context, channel types.ChannelID, id types.MessageID, msg model.Message) error
	// SendDM is best effort; callers swallow and log failures.
	SendDM(ctx context.Context, user types.UserID, msg model.Message) error
	OpenModal(ctx context.Context, triggerID string, modal model.Modal) error
}
