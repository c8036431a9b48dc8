package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"vibechat/pkg/domain"
)

type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
	ProfilePic  string   `json:"profilePic"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req createGroupRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		group, err := s.app.CreateGroup(r.Context(), user.ID, req.Name, req.Description, req.Members, req.ProfilePic)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"group": group})
	case http.MethodGet:
		groups, err := s.app.Groups(user.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
	default:
		methodNotAllowed(w)
	}
}

// handleGroupByID serves /api/groups/{id} and /api/groups/{id}/messages.
func (s *Server) handleGroupByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	groupID, sub, _ := strings.Cut(rest, "/")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "group id required")
		return
	}
	switch {
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteGroup(user.ID, groupID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case sub == "messages" && r.Method == http.MethodGet:
		messages, err := s.app.GroupMessages(user.ID, groupID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
	case sub == "messages" && r.Method == http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		msg, err := s.app.SendGroupMessage(r.Context(), user.ID, groupID, req.Text, req.Image)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
	default:
		methodNotAllowed(w)
	}
}
