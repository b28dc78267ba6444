// model/member.go
package model

// Member is a resolved chat-service user. ID is the opaque stable identity;
// the email used to establish entitlement is deliberately not part of it.
type Member struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	RoleIDs  []string `json:"role_ids"`
}

// Role is a named privilege the chat service can attach to a member.
// Position is the guild hierarchy position; the bot can only manage roles
// below its own top role.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}
