package common

import (
	"github.com/google/uuid"
)

// NewRunID generates an identifier for one disclosure analysis batch.
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRequestID generates an identifier attached to HTTP responses
func NewRequestID() string {
	return uuid.New().String()
}
