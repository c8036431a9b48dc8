package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Id-set columns (blocked users, group
// members/admins) are stored as JSON arrays.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Bio          string
	ProfilePic   string
	Verified     bool
	IsAI         bool
	BlockedUsers datatypes.JSON `gorm:"type:jsonb"`
	LastLogin    time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type MessageModel struct {
	ID         string `gorm:"primaryKey"`
	SenderID   string `gorm:"not null;index"`
	ReceiverID string `gorm:"index"`
	GroupID    string `gorm:"index"`
	Text       string
	Image      string
	Seen       bool
	IsDeleted  bool
	CreatedAt  time.Time `gorm:"not null;index"`
}

type GroupModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Members     datatypes.JSON `gorm:"type:jsonb"`
	Admins      datatypes.JSON `gorm:"type:jsonb"`
	ProfilePic  string
	CreatedBy   string    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func idsToJSON(ids []string) datatypes.JSON {
	if ids == nil {
		ids = []string{}
	}
	raw, _ := json.Marshal(ids)
	return datatypes.JSON(raw)
}

func idsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return []string{}
	}
	return ids
}
