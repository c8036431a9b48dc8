package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vibechat/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &MessageModel{}, &GroupModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "bio", "profile_pic", "verified", "is_ai", "blocked_users", "last_login", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsersExcept returns every user except the given one, oldest first.
func (s *GormStore) ListUsersExcept(id string) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Where("id <> ?", id).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// BlockUser adds a directed block edge. Adding an existing edge is a no-op.
func (s *GormStore) BlockUser(userID, blockedID string) error {
	return s.mutateBlocked(userID, func(ids []string) []string {
		for _, id := range ids {
			if id == blockedID {
				return ids
			}
		}
		return append(ids, blockedID)
	})
}

// UnblockUser removes a directed block edge if present.
func (s *GormStore) UnblockUser(userID, blockedID string) error {
	return s.mutateBlocked(userID, func(ids []string) []string {
		out := ids[:0]
		for _, id := range ids {
			if id != blockedID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (s *GormStore) mutateBlocked(userID string, mutate func([]string) []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model UserModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", userID).Error; err != nil {
			return err
		}
		model.BlockedUsers = idsToJSON(mutate(idsFromJSON(model.BlockedUsers)))
		model.UpdatedAt = time.Now().UTC()
		return tx.Model(&UserModel{}).Where("id = ?", userID).Updates(map[string]any{
			"blocked_users": model.BlockedUsers,
			"updated_at":    model.UpdatedAt,
		}).Error
	})
}

// AppendMessage persists a new message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// GetMessage returns a message by ID.
func (s *GormStore) GetMessage(id string) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// ListConversation returns the direct messages between two users in
// chronological order.
func (s *GormStore) ListConversation(userID, otherID string) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, otherID, otherID, userID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return messagesFromModels(models), nil
}

// MarkMessageSeen flips the seen flag on one message.
func (s *GormStore) MarkMessageSeen(id string) (domain.Message, bool, error) {
	res := s.db.Model(&MessageModel{}).Where("id = ?", id).Update("seen", true)
	if res.Error != nil {
		return domain.Message{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Message{}, false, nil
	}
	return s.GetMessage(id)
}

// MarkConversationSeen marks every message from senderID to receiverID seen.
func (s *GormStore) MarkConversationSeen(senderID, receiverID string) error {
	return s.db.Model(&MessageModel{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Update("seen", true).Error
}

// CountUnseen counts unseen direct messages from senderID to receiverID.
func (s *GormStore) CountUnseen(senderID, receiverID string) (int, error) {
	var count int64
	err := s.db.Model(&MessageModel{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Count(&count).Error
	return int(count), err
}

// SoftDeleteMessages flags the given messages deleted, restricted to
// messages the user participates in.
func (s *GormStore) SoftDeleteMessages(userID string, messageIDs []string) error {
	return s.db.Model(&MessageModel{}).
		Where("id IN ? AND (sender_id = ? OR receiver_id = ?)", messageIDs, userID, userID).
		Update("is_deleted", true).Error
}

// ClearConversation physically removes all direct messages between two users.
func (s *GormStore) ClearConversation(userID, otherID string) error {
	return s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, otherID, otherID, userID).
		Delete(&MessageModel{}).Error
}

// SaveGroup stores or updates a group.
func (s *GormStore) SaveGroup(g domain.Group) error {
	model := groupToModel(g)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "members", "admins", "profile_pic", "updated_at"}),
	}).Create(&model).Error
}

// GetGroup returns a group by ID.
func (s *GormStore) GetGroup(id string) (domain.Group, bool, error) {
	var model GroupModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Group{}, false, nil
		}
		return domain.Group{}, false, err
	}
	return groupFromModel(model), true, nil
}

// ListGroupsByMember returns groups containing the user, most recent first.
func (s *GormStore) ListGroupsByMember(userID string) ([]domain.Group, error) {
	var models []GroupModel
	if err := s.db.Where("members @> ?", idsToJSON([]string{userID})).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Group, 0, len(models))
	for _, m := range models {
		res = append(res, groupFromModel(m))
	}
	return res, nil
}

// ListGroupMessages returns a group's messages in chronological order.
func (s *GormStore) ListGroupMessages(groupID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("group_id = ?", groupID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return messagesFromModels(models), nil
}

// DeleteGroup removes the group record. Its messages are kept for history.
func (s *GormStore) DeleteGroup(id string) error {
	return s.db.Delete(&GroupModel{}, "id = ?", id).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Bio:          u.Bio,
		ProfilePic:   u.ProfilePic,
		Verified:     u.Verified,
		IsAI:         u.IsAI,
		BlockedUsers: idsToJSON(u.BlockedUsers),
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Bio:          m.Bio,
		ProfilePic:   m.ProfilePic,
		Verified:     m.Verified,
		IsAI:         m.IsAI,
		BlockedUsers: idsFromJSON(m.BlockedUsers),
		LastLogin:    m.LastLogin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		GroupID:    msg.GroupID,
		Text:       msg.Text,
		Image:      msg.Image,
		Seen:       msg.Seen,
		IsDeleted:  msg.IsDeleted,
		CreatedAt:  msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		IsDeleted:  m.IsDeleted,
		CreatedAt:  m.CreatedAt,
	}
}

func messagesFromModels(models []MessageModel) []domain.Message {
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res
}

func groupToModel(g domain.Group) GroupModel {
	return GroupModel{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Members:     idsToJSON(g.Members),
		Admins:      idsToJSON(g.Admins),
		ProfilePic:  g.ProfilePic,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func groupFromModel(m GroupModel) domain.Group {
	return domain.Group{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Members:     idsFromJSON(m.Members),
		Admins:      idsFromJSON(m.Admins),
		ProfilePic:  m.ProfilePic,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
