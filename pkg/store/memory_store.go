package store

import (
	"sort"
	"sync"
	"time"

	"vibechat/internal/util"
	"vibechat/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and dev mode and
// mirrors GormStore semantics exactly.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	messages map[string]domain.Message
	order    []string // message IDs in append order
	groups   map[string]domain.Group
	sess     map[string]string // token -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		messages: make(map[string]domain.Message),
		groups:   make(map[string]domain.Group),
		sess:     make(map[string]string),
	}
}

// SaveUser stores or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsersExcept returns every user except the given one, oldest first.
func (m *MemoryStore) ListUsersExcept(id string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if u.ID != id {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// BlockUser adds a directed block edge.
func (m *MemoryStore) BlockUser(userID, blockedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	for _, id := range u.BlockedUsers {
		if id == blockedID {
			return nil
		}
	}
	u.BlockedUsers = append(append([]string{}, u.BlockedUsers...), blockedID)
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return nil
}

// UnblockUser removes a directed block edge.
func (m *MemoryStore) UnblockUser(userID, blockedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	filtered := make([]string, 0, len(u.BlockedUsers))
	for _, id := range u.BlockedUsers {
		if id != blockedID {
			filtered = append(filtered, id)
		}
	}
	u.BlockedUsers = filtered
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return nil
}

// AppendMessage persists a new message.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.messages[msg.ID]; !exists {
		m.order = append(m.order, msg.ID)
	}
	m.messages[msg.ID] = msg
	return nil
}

// GetMessage returns a message by ID.
func (m *MemoryStore) GetMessage(id string) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	return msg, ok, nil
}

// ListConversation returns direct messages between two users in append order.
func (m *MemoryStore) ListConversation(userID, otherID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Message
	for _, id := range m.order {
		msg := m.messages[id]
		if (msg.SenderID == userID && msg.ReceiverID == otherID) ||
			(msg.SenderID == otherID && msg.ReceiverID == userID) {
			res = append(res, msg)
		}
	}
	return res, nil
}

// MarkMessageSeen flips the seen flag on one message.
func (m *MemoryStore) MarkMessageSeen(id string) (domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return domain.Message{}, false, nil
	}
	msg.Seen = true
	m.messages[id] = msg
	return msg, true, nil
}

// MarkConversationSeen marks all messages from senderID to receiverID seen.
func (m *MemoryStore) MarkConversationSeen(senderID, receiverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, msg := range m.messages {
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && !msg.Seen {
			msg.Seen = true
			m.messages[id] = msg
		}
	}
	return nil
}

// CountUnseen counts unseen direct messages from senderID to receiverID.
func (m *MemoryStore) CountUnseen(senderID, receiverID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, msg := range m.messages {
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && !msg.Seen {
			count++
		}
	}
	return count, nil
}

// SoftDeleteMessages flags the given messages deleted when the user is a
// participant.
func (m *MemoryStore) SoftDeleteMessages(userID string, messageIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range messageIDs {
		msg, ok := m.messages[id]
		if !ok {
			continue
		}
		if msg.SenderID != userID && msg.ReceiverID != userID {
			continue
		}
		msg.IsDeleted = true
		m.messages[id] = msg
	}
	return nil
}

// ClearConversation removes all direct messages between two users.
func (m *MemoryStore) ClearConversation(userID, otherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		msg := m.messages[id]
		between := (msg.SenderID == userID && msg.ReceiverID == otherID) ||
			(msg.SenderID == otherID && msg.ReceiverID == userID)
		if between {
			delete(m.messages, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

// SaveGroup stores or replaces a group record.
func (m *MemoryStore) SaveGroup(g domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

// GetGroup returns a group by ID.
func (m *MemoryStore) GetGroup(id string) (domain.Group, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	return g, ok, nil
}

// ListGroupsByMember returns groups containing the user, most recent first.
func (m *MemoryStore) ListGroupsByMember(userID string) ([]domain.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Group
	for _, g := range m.groups {
		if g.IsMember(userID) {
			res = append(res, g)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// ListGroupMessages returns a group's messages in append order.
func (m *MemoryStore) ListGroupMessages(groupID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []domain.Message
	for _, id := range m.order {
		msg := m.messages[id]
		if msg.GroupID == groupID {
			res = append(res, msg)
		}
	}
	return res, nil
}

// DeleteGroup removes the group record; its messages are kept.
func (m *MemoryStore) DeleteGroup(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, id)
	return nil
}

// NewSession issues an opaque in-memory session token.
func (m *MemoryStore) NewSession(userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := util.NewID()
	m.sess[token] = userID
	return token, nil
}

// GetUserIDByToken resolves a session token.
func (m *MemoryStore) GetUserIDByToken(token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sess[token]
	return id, ok, nil
}

// DeleteSession removes a session token.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}
