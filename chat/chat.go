// chat/chat.go
package chat

import (
	"context"

	"github.com/calltoleap/gatekeeper/model"
)

// Service is the chat-service boundary. Everything the engine needs from
// Discord goes through it, so the core stays testable against a fake.
type Service interface {
	// SendChannelMessage posts to a channel.
	SendChannelMessage(ctx context.Context, channelID, text string) error
	// SendDirectMessage opens (or reuses) a DM channel with the user and
	// sends text.
	SendDirectMessage(ctx context.Context, userID, text string) error
	// DeleteMessage removes a message from a channel. Best-effort callers
	// log and swallow the error.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// ResolveMember looks up a guild member by identity. Returns
	// errors.ErrMemberUnresolvable when the user is no longer in the guild.
	ResolveMember(ctx context.Context, userID string) (*model.Member, error)

	// RoleByName finds a guild role by its display name. Returns
	// errors.ErrRoleNotFound when no role carries the name.
	RoleByName(ctx context.Context, name string) (*model.Role, error)
	// GrantRole attaches a role to a member.
	GrantRole(ctx context.Context, userID, roleID string) error
	// RevokeRole detaches a role from a member.
	RevokeRole(ctx context.Context, userID, roleID string) error
	// HasRole reports whether the member currently holds the role.
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	// MembersWithRole lists every guild member holding the role.
	MembersWithRole(ctx context.Context, roleID string) ([]model.Member, error)

	// BotTopRolePosition returns the hierarchy position of the bot's
	// highest role. The bot can only manage roles strictly below it.
	BotTopRolePosition(ctx context.Context) (int, error)
	// HasManageRoles reports whether the bot holds the manage-roles
	// permission in the guild.
	HasManageRoles(ctx context.Context) (bool, error)
}
