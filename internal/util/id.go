package util

import "github.com/google/uuid"

// NewID returns a new opaque identifier. IDs are assigned at persistence
// time and never reused.
func NewID() string {
	return uuid.NewString()
}
