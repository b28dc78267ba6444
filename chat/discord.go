// chat/discord.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	gate_errors "github.com/calltoleap/gatekeeper/errors"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/model"
)

// Discord implements Service on top of a discordgo session scoped to a
// single guild.
type Discord struct {
	session *discordgo.Session
	guildID string

	mu         sync.Mutex
	dmChannels map[string]string // userID -> DM channel ID
}

var _ Service = &Discord{}

func NewDiscord(token, guildID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Discord{
		session:    session,
		guildID:    guildID,
		dmChannels: make(map[string]string),
	}, nil
}

// Open connects the gateway session. Handlers must be registered first.
func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	logger.Info("Connected to Discord gateway", zap.String("guildID", d.guildID))
	return nil
}

func (d *Discord) Close() {
	if err := d.session.Close(); err != nil {
		logger.Error("Error closing discord session", zap.Error(err))
	}
}

// OnMessage registers a callback for inbound messages. Messages from bots
// (including our own) are filtered out before the callback fires.
func (d *Discord) OnMessage(fn func(model.InboundMessage)) {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		fn(model.InboundMessage{
			MessageID:     m.ID,
			ChannelID:     m.ChannelID,
			AuthorID:      m.Author.ID,
			GuildID:       m.GuildID,
			Content:       m.Content,
			DirectMessage: m.GuildID == "",
		})
	})
}

// OnMemberJoin registers a callback for new guild members.
func (d *Discord) OnMemberJoin(fn func(model.MemberJoined)) {
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.GuildID != d.guildID || m.User == nil || m.User.Bot {
			return
		}
		fn(model.MemberJoined{UserID: m.User.ID, Username: m.User.Username})
	})
}

func (d *Discord) SendChannelMessage(ctx context.Context, channelID, text string) error {
	_, err := d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, text string) error {
	channelID, err := d.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	return d.SendChannelMessage(ctx, channelID, text)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return nil
}

func (d *Discord) ResolveMember(ctx context.Context, userID string) (*model.Member, error) {
	member, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, gate_errors.ErrMemberUnresolvable
		}
		return nil, fmt.Errorf("failed to resolve member %s: %w", userID, err)
	}
	return toMember(member), nil
}

func (d *Discord) RoleByName(ctx context.Context, name string) (*model.Role, error) {
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}
	for _, role := range roles {
		if role.Name == name {
			return &model.Role{ID: role.ID, Name: role.Name, Position: role.Position}, nil
		}
	}
	return nil, gate_errors.ErrRoleNotFound
}

func (d *Discord) GrantRole(ctx context.Context, userID, roleID string) error {
	if err := d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to grant role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (d *Discord) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to revoke role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

func (d *Discord) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	member, err := d.ResolveMember(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range member.RoleIDs {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (d *Discord) MembersWithRole(ctx context.Context, roleID string) ([]model.Member, error) {
	var holders []model.Member
	after := ""
	for {
		page, err := d.session.GuildMembers(d.guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			for _, id := range m.Roles {
				if id == roleID {
					holders = append(holders, *toMember(m))
					break
				}
			}
		}
		after = page[len(page)-1].User.ID
		if len(page) < 1000 {
			break
		}
	}
	return holders, nil
}

func (d *Discord) BotTopRolePosition(ctx context.Context) (int, error) {
	me, err := d.session.GuildMember(d.guildID, d.session.State.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve bot member: %w", err)
	}
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to list guild roles: %w", err)
	}

	top := 0
	for _, role := range roles {
		for _, id := range me.Roles {
			if id == role.ID && role.Position > top {
				top = role.Position
			}
		}
	}
	return top, nil
}

func (d *Discord) HasManageRoles(ctx context.Context) (bool, error) {
	me, err := d.session.GuildMember(d.guildID, d.session.State.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to resolve bot member: %w", err)
	}
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to list guild roles: %w", err)
	}

	var perms int64
	for _, role := range roles {
		for _, id := range me.Roles {
			if id == role.ID {
				perms |= role.Permissions
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	return perms&discordgo.PermissionManageRoles != 0, nil
}

func (d *Discord) dmChannel(ctx context.Context, userID string) (string, error) {
	d.mu.Lock()
	channelID, ok := d.dmChannels[userID]
	d.mu.Unlock()
	if ok {
		return channelID, nil
	}

	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel with %s: %w", userID, err)
	}

	d.mu.Lock()
	d.dmChannels[userID] = channel.ID
	d.mu.Unlock()
	return channel.ID, nil
}

func toMember(m *discordgo.Member) *model.Member {
	member := &model.Member{
		RoleIDs: append([]string(nil), m.Roles...),
	}
	if m.User != nil {
		member.ID = m.User.ID
		member.Username = m.User.Username
	}
	return member
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		code := restErr.Message.Code
		return code == discordgo.ErrCodeUnknownMember || code == discordgo.ErrCodeUnknownUser
	}
	return false
}
