package server

import (
	"encoding/json"
	"io"
	"net/http"

	"vibechat/pkg/domain"
)

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type deleteMessagesRequest struct {
	MessageIDs []string `json:"messageIds"`
}

func (s *Server) handleSidebarUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.UsersForSidebar(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	otherID, ok := pathSuffix(r, "/api/messages/")
	if !ok {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	messages, err := s.app.Conversation(user.ID, otherID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	receiverID, ok := pathSuffix(r, "/api/messages/send/")
	if !ok {
		writeError(w, http.StatusBadRequest, "receiver id required")
		return
	}
	var req sendMessageRequest
	// Image attachments arrive as base64 data URLs.
	if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg, err := s.app.SendMessage(r.Context(), user.ID, receiverID, req.Text, req.Image)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	messageID, ok := pathSuffix(r, "/api/messages/mark/")
	if !ok {
		writeError(w, http.StatusBadRequest, "message id required")
		return
	}
	msg, err := s.app.MarkMessageSeen(messageID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) handleDeleteMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req deleteMessagesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.MessageIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no messages selected")
		return
	}
	if err := s.app.DeleteMessages(user.ID, req.MessageIDs); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	otherID, ok := pathSuffix(r, "/api/messages/chat/")
	if !ok {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	if err := s.app.ClearChat(user.ID, otherID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	blockedID, ok := pathSuffix(r, "/api/messages/block/")
	if !ok {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	if err := s.app.BlockUser(user.ID, blockedID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	blockedID, ok := pathSuffix(r, "/api/messages/unblock/")
	if !ok {
		writeError(w, http.StatusBadRequest, "user id required")
		return
	}
	if err := s.app.UnblockUser(user.ID, blockedID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}
