package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"vibechat/internal/app"
	"vibechat/internal/ratelimit"
	"vibechat/internal/util"
	"vibechat/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Hub            http.Handler
	AuthLimiter    *ratelimit.FixedWindowLimiter
	FrontendOrigin string
	TrustedProxies *util.TrustedProxies
}

// Server exposes the REST and websocket endpoints.
type Server struct {
	app         *app.App
	hub         http.Handler
	authLimiter *ratelimit.FixedWindowLimiter
	origin      string
	proxies     *util.TrustedProxies
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		hub:         cfg.Hub,
		authLimiter: cfg.AuthLimiter,
		origin:      cfg.FrontendOrigin,
		proxies:     cfg.TrustedProxies,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.origin, util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.Handle("/api/auth/signup", s.rateLimited(http.HandlerFunc(s.handleSignup)))
	s.mux.Handle("/api/auth/login", s.rateLimited(http.HandlerFunc(s.handleLogin)))
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.withUser(s.handleMe))

	// direct messages
	s.mux.Handle("/api/messages/users", s.withUser(s.handleSidebarUsers))
	s.mux.Handle("/api/messages/send/", s.withUser(s.handleSendMessage))
	s.mux.Handle("/api/messages/mark/", s.withUser(s.handleMarkSeen))
	s.mux.Handle("/api/messages/delete", s.withUser(s.handleDeleteMessages))
	s.mux.Handle("/api/messages/chat/", s.withUser(s.handleClearChat))
	s.mux.Handle("/api/messages/block/", s.withUser(s.handleBlock))
	s.mux.Handle("/api/messages/unblock/", s.withUser(s.handleUnblock))
	s.mux.Handle("/api/messages/", s.withUser(s.handleConversation))

	// groups
	s.mux.Handle("/api/groups", s.withUser(s.handleGroups))
	s.mux.Handle("/api/groups/", s.withUser(s.handleGroupByID))

	// realtime
	if s.hub != nil {
		s.mux.Handle("/ws", s.hub)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rateLimited guards an endpoint with the per-IP auth limiter, when one is
// configured.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiter != nil && !s.authLimiter.Allow(util.ClientIP(r, s.proxies)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// withUser resolves the bearer token to its user or rejects with 401.
func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// pathSuffix extracts the remainder of the URL after prefix, rejecting empty
// values.
func pathSuffix(r *http.Request, prefix string) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == "" || rest == r.URL.Path || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
