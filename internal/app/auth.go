package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vibechat/internal/util"
	"vibechat/pkg/auth"
	"vibechat/pkg/domain"
	"vibechat/pkg/queue"
)

// AIUserEmail identifies the synthetic assistant account. Direct messages to
// this user trigger the AI responder instead of human delivery.
const AIUserEmail = "chatgpt@vibechat.ai"

// SignUp registers a user and opens a session.
func (a *App) SignUp(name, email, password, bio string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("name, email, and password are required")
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Bio:          bio,
		BlockedUsers: []string{},
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	// Welcome mail is fire-and-forget; signup never fails on mail problems.
	if err := a.mail.Publish(context.Background(), queue.EmailJob{
		To:      user.Email,
		Subject: "Welcome to VibeChat",
		Body:    fmt.Sprintf("Hi %s, your VibeChat account is ready.", user.Name),
	}); err != nil {
		slog.Warn("publish welcome email failed", "err", err)
	}
	return user, token, nil
}

// Login verifies credentials and opens a session.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user.LastLogin = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("update last login: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a session token to its user.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// UpdateProfile changes the caller's name, bio, and profile picture.
// Empty fields keep their current value; the picture may be a base64 data
// URL, which is stored as an attachment.
func (a *App) UpdateProfile(ctx context.Context, user domain.User, name, bio, profilePic string) (domain.User, error) {
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if bio = strings.TrimSpace(bio); bio != "" {
		user.Bio = bio
	}
	if profilePic != "" {
		url, err := a.storeImage(ctx, profilePic)
		if err != nil {
			return domain.User{}, err
		}
		user.ProfilePic = url
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// EnsureAIUser creates the synthetic assistant account if it does not exist.
func (a *App) EnsureAIUser() error {
	if _, exists, err := a.store.GetUserByEmail(AIUserEmail); err != nil {
		return fmt.Errorf("lookup ai user: %w", err)
	} else if exists {
		return nil
	}
	hash, err := auth.HashPassword(util.NewID())
	if err != nil {
		return fmt.Errorf("hash ai password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         "ChatGPT",
		Email:        AIUserEmail,
		PasswordHash: hash,
		Bio:          "I am your AI assistant.",
		ProfilePic:   "https://upload.wikimedia.org/wikipedia/commons/0/04/ChatGPT_logo.svg",
		Verified:     true,
		IsAI:         true,
		BlockedUsers: []string{},
		LastLogin:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save ai user: %w", err)
	}
	slog.Info("created ai assistant user", "user_id", user.ID)
	return nil
}
