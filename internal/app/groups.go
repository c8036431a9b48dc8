package app

import (
	"context"
	"fmt"
	"time"

	"vibechat/internal/util"
	"vibechat/pkg/domain"
	"vibechat/pkg/realtime"
)

// CreateGroup creates a group and notifies every member, creator included.
// The creator is always a member and the sole initial admin.
func (a *App) CreateGroup(ctx context.Context, creatorID, name, description string, members []string, profilePic string) (domain.Group, error) {
	if name == "" || len(members) == 0 {
		return domain.Group{}, fmt.Errorf("name and members are required")
	}
	seen := make(map[string]struct{}, len(members)+1)
	unique := make([]string, 0, len(members)+1)
	for _, id := range append(members, creatorID) {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	picURL, err := a.storeImage(ctx, profilePic)
	if err != nil {
		return domain.Group{}, err
	}
	now := time.Now().UTC()
	group := domain.Group{
		ID:          util.NewID(),
		Name:        name,
		Description: description,
		Members:     unique,
		Admins:      []string{creatorID},
		ProfilePic:  picURL,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveGroup(group); err != nil {
		return domain.Group{}, fmt.Errorf("save group: %w", err)
	}

	a.router.SendToUsers(group.Members, realtime.Event{Type: realtime.EventNewGroup, Payload: group})
	return group, nil
}

// Groups lists the caller's groups, most recently active first.
func (a *App) Groups(userID string) ([]domain.Group, error) {
	groups, err := a.store.ListGroupsByMember(userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GroupMessages returns a group's history. Only members may read it.
func (a *App) GroupMessages(userID, groupID string) ([]domain.Message, error) {
	group, ok, err := a.store.GetGroup(groupID)
	if err != nil {
		return nil, fmt.Errorf("lookup group: %w", err)
	}
	if !ok {
		return nil, ErrGroupNotFound
	}
	if !group.IsMember(userID) {
		return nil, ErrNotGroupMember
	}
	messages, err := a.store.ListGroupMessages(groupID)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return messages, nil
}

// SendGroupMessage persists a group message and fans it out to every member
// with a live connection, sender included; clients de-duplicate by id.
func (a *App) SendGroupMessage(ctx context.Context, senderID, groupID, text, image string) (domain.Message, error) {
	if text == "" && image == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	group, ok, err := a.store.GetGroup(groupID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("lookup group: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrGroupNotFound
	}
	if !group.IsMember(senderID) {
		return domain.Message{}, ErrNotGroupMember
	}

	imageURL, err := a.storeImage(ctx, image)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:        util.NewID(),
		SenderID:  senderID,
		GroupID:   groupID,
		Text:      text,
		Image:     imageURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return domain.Message{}, fmt.Errorf("save group message: %w", err)
	}

	group.UpdatedAt = msg.CreatedAt
	if err := a.store.SaveGroup(group); err != nil {
		return domain.Message{}, fmt.Errorf("touch group: %w", err)
	}

	a.router.SendToUsers(group.Members, realtime.Event{Type: realtime.EventNewGroupMessage, Payload: msg})
	return msg, nil
}

// DeleteGroup removes a group (admins only) and notifies every member.
func (a *App) DeleteGroup(userID, groupID string) error {
	group, ok, err := a.store.GetGroup(groupID)
	if err != nil {
		return fmt.Errorf("lookup group: %w", err)
	}
	if !ok {
		return ErrGroupNotFound
	}
	if !group.IsAdmin(userID) {
		return ErrNotGroupAdmin
	}
	if err := a.store.DeleteGroup(groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	a.router.SendToUsers(group.Members, realtime.Event{Type: realtime.EventGroupDeleted, Payload: groupID})
	return nil
}
