package util

import "github.com/google/uuid"

// NewID returns a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}
