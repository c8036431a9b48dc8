package app

import "errors"

var (
	// ErrUserNotFound indicates an unknown user id.
	ErrUserNotFound = errors.New("user not found")
	// ErrBlockedByYou rejects a send to a user the sender has blocked.
	ErrBlockedByYou = errors.New("you have blocked this user")
	// ErrBlockedByThem rejects a send from a blocked sender.
	ErrBlockedByThem = errors.New("you are blocked by this user")
	// ErrEmptyMessage rejects a message with neither text nor image.
	ErrEmptyMessage = errors.New("message requires text or an image")
	// ErrEmailTaken rejects signup with an existing email.
	ErrEmailTaken = errors.New("user already exists")
	// ErrInvalidCredentials rejects a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrGroupNotFound indicates an unknown group id.
	ErrGroupNotFound = errors.New("group not found")
	// ErrNotGroupMember rejects group operations from non-members.
	ErrNotGroupMember = errors.New("not a group member")
	// ErrNotGroupAdmin rejects group deletion from non-admins.
	ErrNotGroupAdmin = errors.New("only admins can delete the group")
	// ErrMessageNotFound indicates an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
)
