package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vibechat/internal/util"
	"vibechat/pkg/domain"
	"vibechat/pkg/realtime"
)

// SidebarUser is a chat partner plus the number of their messages the caller
// has not seen yet.
type SidebarUser struct {
	User   domain.User `json:"user"`
	Unseen int         `json:"unseen"`
}

// UsersForSidebar lists every other user with unseen-message counts. Counts
// are gathered concurrently, one query per user.
func (a *App) UsersForSidebar(userID string) ([]SidebarUser, error) {
	users, err := a.store.ListUsersExcept(userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	res := make([]SidebarUser, len(users))
	var mu sync.Mutex
	var g errgroup.Group
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			count, err := a.store.CountUnseen(u.ID, userID)
			if err != nil {
				return err
			}
			mu.Lock()
			res[i] = SidebarUser{User: u, Unseen: count}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count unseen: %w", err)
	}
	return res, nil
}

// Conversation returns the direct history with another user and marks their
// messages to the caller as seen.
func (a *App) Conversation(userID, otherID string) ([]domain.Message, error) {
	messages, err := a.store.ListConversation(userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	if err := a.store.MarkConversationSeen(otherID, userID); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	return messages, nil
}

// SendMessage persists a direct message and pushes it to the receiver's live
// connection if one exists. Block edges in either direction reject the send
// before anything is persisted. When the receiver is the AI assistant, a
// detached reply task is scheduled after the send completes.
func (a *App) SendMessage(ctx context.Context, senderID, receiverID, text, image string) (domain.Message, error) {
	if text == "" && image == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	sender, ok, err := a.store.GetUserByID(senderID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("lookup sender: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrUserNotFound
	}
	receiver, ok, err := a.store.GetUserByID(receiverID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("lookup receiver: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrUserNotFound
	}
	if sender.HasBlocked(receiverID) {
		return domain.Message{}, ErrBlockedByYou
	}
	if receiver.HasBlocked(senderID) {
		return domain.Message{}, ErrBlockedByThem
	}

	imageURL, err := a.storeImage(ctx, image)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:         util.NewID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      imageURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}

	a.router.SendToUser(receiverID, realtime.Event{Type: realtime.EventNewMessage, Payload: msg})

	if receiver.IsAI {
		go a.respondAsAI(msg)
	}
	return msg, nil
}

// respondAsAI runs detached from the triggering request. The responder never
// raises: failures resolve to a fallback reply, so the conversation always
// gets exactly one terminal response per triggering message.
func (a *App) respondAsAI(trigger domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), a.aiReplyTimeout)
	defer cancel()
	replyText := a.responder.Reply(ctx, trigger.Text, trigger.Image)
	reply := domain.Message{
		ID:         util.NewID(),
		SenderID:   trigger.ReceiverID, // AI is the sender now
		ReceiverID: trigger.SenderID,
		Text:       replyText,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendMessage(reply); err != nil {
		slog.Error("save ai reply failed", "err", err, "trigger_id", trigger.ID)
		return
	}
	a.router.SendToUser(reply.ReceiverID, realtime.Event{Type: realtime.EventNewMessage, Payload: reply})
}

// MarkMessageSeen flips the seen flag on a single message.
func (a *App) MarkMessageSeen(id string) (domain.Message, error) {
	msg, ok, err := a.store.MarkMessageSeen(id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("mark seen: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

// DeleteMessages soft-deletes the caller's selected messages and notifies
// both chat parties so open clients can hide them immediately.
func (a *App) DeleteMessages(userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return fmt.Errorf("no messages selected")
	}
	if err := a.store.SoftDeleteMessages(userID, messageIDs); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	// Resolve the other chat party from any of the affected messages.
	for _, id := range messageIDs {
		msg, ok, err := a.store.GetMessage(id)
		if err != nil || !ok {
			continue
		}
		otherID := msg.SenderID
		if otherID == userID {
			otherID = msg.ReceiverID
		}
		ev := realtime.Event{
			Type:    realtime.EventMessagesDeleted,
			Payload: realtime.MessagesDeletedPayload{MessageIDs: messageIDs},
		}
		a.router.SendToUser(otherID, ev)
		a.router.SendToUser(userID, ev)
		break
	}
	return nil
}

// ClearChat removes the entire direct history with another user.
func (a *App) ClearChat(userID, otherID string) error {
	if err := a.store.ClearConversation(userID, otherID); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	return nil
}

// BlockUser adds a directed block edge and notifies the blockee.
func (a *App) BlockUser(blockerID, blockedID string) error {
	if _, ok, err := a.store.GetUserByID(blockedID); err != nil {
		return fmt.Errorf("lookup user: %w", err)
	} else if !ok {
		return ErrUserNotFound
	}
	if err := a.store.BlockUser(blockerID, blockedID); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	a.router.SendToUser(blockedID, realtime.Event{
		Type:    realtime.EventUserBlocked,
		Payload: realtime.BlockPayload{BlockerID: blockerID},
	})
	return nil
}

// UnblockUser removes a directed block edge and notifies the unblocked user.
func (a *App) UnblockUser(blockerID, blockedID string) error {
	if err := a.store.UnblockUser(blockerID, blockedID); err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	a.router.SendToUser(blockedID, realtime.Event{
		Type:    realtime.EventUserUnblocked,
		Payload: realtime.BlockPayload{BlockerID: blockerID},
	})
	return nil
}
