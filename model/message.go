// model/message.go
package model

// InboundMessage is a chat message as seen by the dispatcher, reduced to
// what the intake path needs.
type InboundMessage struct {
	MessageID     string
	ChannelID     string
	AuthorID      string
	GuildID       string
	Content       string
	DirectMessage bool
}

// MemberJoined is published when a new member enters the guild.
type MemberJoined struct {
	UserID   string
	Username string
}
