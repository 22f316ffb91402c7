package breeze

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError is a non-success response from the proxy
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("breeze proxy error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError is returned when the local limiter could not admit a call
// before the context ended
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("breeze rate limit exceeded, retry after %v", e.RetryAfter)
}

// ErrorKind is the coarse class of a market data failure shown to users
type ErrorKind string

const (
	ErrorKindNone    ErrorKind = ""
	ErrorKindToken   ErrorKind = "TOKEN"
	ErrorKindNetwork ErrorKind = "NETWORK"
)

// ClassifyError maps a market data error to TOKEN when it mentions the
// broker session or token, NETWORK otherwise
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	msg := strings.ToLower(err.Error())
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = strings.ToLower(apiErr.Message)
	}
	if strings.Contains(msg, "session") || strings.Contains(msg, "token") {
		return ErrorKindToken
	}
	return ErrorKindNetwork
}
