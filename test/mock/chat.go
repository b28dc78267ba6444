// test/mock/chat.go
package mock

import (
	"context"
	"sync"

	gate_errors "github.com/calltoleap/gatekeeper/errors"
	"github.com/calltoleap/gatekeeper/model"
)

// FakeChatService is a stateful in-memory chat.Service. Tests seed roles
// and members, then assert on the resulting role state and sent messages.
type FakeChatService struct {
	mu sync.Mutex

	roles   map[string]model.Role       // role ID -> role
	members map[string]map[string]bool  // member ID -> set of role IDs
	names   map[string]string           // member ID -> username

	TopPosition int
	ManageRoles bool

	DirectMessages  map[string][]string // member ID -> DMs sent
	ChannelMessages map[string][]string // channel ID -> messages sent
	DeletedMessages []string            // message IDs

	GrantCalls  int
	RevokeCalls int

	GrantErr  error // returned by GrantRole when set
	RevokeErr error // returned by RevokeRole when set
	DirectErr error // returned by SendDirectMessage when set
}

func NewFakeChatService() *FakeChatService {
	return &FakeChatService{
		roles:           make(map[string]model.Role),
		members:         make(map[string]map[string]bool),
		names:           make(map[string]string),
		TopPosition:     100,
		ManageRoles:     true,
		DirectMessages:  make(map[string][]string),
		ChannelMessages: make(map[string][]string),
	}
}

// AddRole seeds a guild role.
func (f *FakeChatService) AddRole(id, name string, position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = model.Role{ID: id, Name: name, Position: position}
}

// AddMember seeds a guild member with the given role IDs.
func (f *FakeChatService) AddMember(id, username string, roleIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(roleIDs))
	for _, roleID := range roleIDs {
		set[roleID] = true
	}
	f.members[id] = set
	f.names[id] = username
}

// RemoveMember drops a member, making it unresolvable.
func (f *FakeChatService) RemoveMember(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, id)
	delete(f.names, id)
}

// MemberHasRole reports the live role state for assertions.
func (f *FakeChatService) MemberHasRole(memberID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[memberID][roleID]
}

func (f *FakeChatService) SendChannelMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChannelMessages[channelID] = append(f.ChannelMessages[channelID], text)
	return nil
}

func (f *FakeChatService) SendDirectMessage(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DirectErr != nil {
		return f.DirectErr
	}
	f.DirectMessages[userID] = append(f.DirectMessages[userID], text)
	return nil
}

func (f *FakeChatService) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedMessages = append(f.DeletedMessages, messageID)
	return nil
}

func (f *FakeChatService) ResolveMember(ctx context.Context, userID string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.members[userID]
	if !ok {
		return nil, gate_errors.ErrMemberUnresolvable
	}
	roleIDs := make([]string, 0, len(set))
	for roleID := range set {
		roleIDs = append(roleIDs, roleID)
	}
	return &model.Member{ID: userID, Username: f.names[userID], RoleIDs: roleIDs}, nil
}

func (f *FakeChatService) RoleByName(ctx context.Context, name string) (*model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.Name == name {
			r := role
			return &r, nil
		}
	}
	return nil, gate_errors.ErrRoleNotFound
}

func (f *FakeChatService) GrantRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GrantCalls++
	if f.GrantErr != nil {
		return f.GrantErr
	}
	set, ok := f.members[userID]
	if !ok {
		return gate_errors.ErrMemberUnresolvable
	}
	set[roleID] = true
	return nil
}

func (f *FakeChatService) RevokeRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RevokeCalls++
	if f.RevokeErr != nil {
		return f.RevokeErr
	}
	set, ok := f.members[userID]
	if !ok {
		return gate_errors.ErrMemberUnresolvable
	}
	delete(set, roleID)
	return nil
}

func (f *FakeChatService) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.members[userID]
	if !ok {
		return false, gate_errors.ErrMemberUnresolvable
	}
	return set[roleID], nil
}

func (f *FakeChatService) MembersWithRole(ctx context.Context, roleID string) ([]model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var holders []model.Member
	for memberID, set := range f.members {
		if set[roleID] {
			holders = append(holders, model.Member{ID: memberID, Username: f.names[memberID]})
		}
	}
	return holders, nil
}

func (f *FakeChatService) BotTopRolePosition(ctx context.Context) (int, error) {
	return f.TopPosition, nil
}

func (f *FakeChatService) HasManageRoles(ctx context.Context) (bool, error) {
	return f.ManageRoles, nil
}
