package domain

import "time"

// User is a chat participant. The AI assistant is a regular user record with
// IsAI set; it never holds a live connection.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio,omitempty"`
	ProfilePic   string    `json:"profilePic,omitempty"`
	Verified     bool      `json:"verified"`
	IsAI         bool      `json:"isAI"`
	BlockedUsers []string  `json:"blockedUsers"`
	LastLogin    time.Time `json:"lastLogin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasBlocked reports whether this user has a block edge to otherID.
func (u User) HasBlocked(otherID string) bool {
	for _, id := range u.BlockedUsers {
		if id == otherID {
			return true
		}
	}
	return false
}

// Message is immutable once created except for the Seen and IsDeleted flags.
// Exactly one of ReceiverID/GroupID is set.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	GroupID    string    `json:"groupId,omitempty"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Group is a named member set. Admins are a subset of members and the
// creator is always a member.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	ProfilePic  string    `json:"profilePic,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsMember reports whether userID belongs to the group.
func (g Group) IsMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID administers the group.
func (g Group) IsAdmin(userID string) bool {
	for _, id := range g.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
