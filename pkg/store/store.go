package store

import "vibechat/pkg/domain"

// Store defines persistence operations for users, messages, and groups.
// Lookup methods return (value, found, error); "not found" is not an error.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsersExcept(id string) ([]domain.User, error)
	BlockUser(userID, blockedID string) error
	UnblockUser(userID, blockedID string) error

	// direct messages
	AppendMessage(domain.Message) error
	GetMessage(id string) (domain.Message, bool, error)
	ListConversation(userID, otherID string) ([]domain.Message, error)
	MarkMessageSeen(id string) (domain.Message, bool, error)
	MarkConversationSeen(senderID, receiverID string) error
	CountUnseen(senderID, receiverID string) (int, error)
	SoftDeleteMessages(userID string, messageIDs []string) error
	ClearConversation(userID, otherID string) error

	// groups
	SaveGroup(domain.Group) error
	GetGroup(id string) (domain.Group, bool, error)
	ListGroupsByMember(userID string) ([]domain.Group, error)
	ListGroupMessages(groupID string) ([]domain.Message, error)
	DeleteGroup(id string) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
