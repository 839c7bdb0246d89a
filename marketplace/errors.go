package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collectibles-market/models"
)

// ErrNotConnected means no usable marketplace credential exists for the
// caller. It is fatal to the whole operation and never retried.
var ErrNotConnected = errors.New("marketplace account not connected")

// ErrInvalidListing is returned when a listing request fails local
// validation before any remote call is made.
var ErrInvalidListing = errors.New("invalid listing request")

// RemoteError is one entry of a marketplace error body.
type RemoteError struct {
	ErrorID     int    `json:"errorId"`
	Domain      string `json:"domain,omitempty"`
	Category    string `json:"category,omitempty"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage,omitempty"`
}

// RemoteRejection is a structured validation error returned by the
// marketplace. Its message is surfaced verbatim so the caller can correct the
// input and resubmit.
type RemoteRejection struct {
	Operation string
	Status    int
	Errors    []RemoteError
}

func (e *RemoteRejection) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s rejected (http %d)", e.Operation, e.Status)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, re := range e.Errors {
		msg := re.LongMessage
		if msg == "" {
			msg = re.Message
		}
		msgs = append(msgs, fmt.Sprintf("[%d] %s", re.ErrorID, msg))
	}
	return fmt.Sprintf("%s rejected (http %d): %s", e.Operation, e.Status, strings.Join(msgs, "; "))
}

// Code returns the first remote error id as text, or the HTTP status.
func (e *RemoteRejection) Code() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%d", e.Errors[0].ErrorID)
	}
	return fmt.Sprintf("http_%d", e.Status)
}

// Message returns the first remote message verbatim.
func (e *RemoteRejection) Message() string {
	if len(e.Errors) == 0 {
		return ""
	}
	if e.Errors[0].LongMessage != "" {
		return e.Errors[0].LongMessage
	}
	return e.Errors[0].Message
}

// HasErrorID reports whether any entry carries the given id.
func (e *RemoteRejection) HasErrorID(id int) bool {
	for _, re := range e.Errors {
		if re.ErrorID == id {
			return true
		}
	}
	return false
}

// RateLimitedError signals external throttling. The caller may retry after
// RetryAfter; the engine itself never does.
type RateLimitedError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %v", e.Operation, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Operation)
}

// PolicyResolutionError means one of the three required business policies
// could not be found or created. Listing publication is not attempted.
type PolicyResolutionError struct {
	Kind  models.PolicyKind
	Cause error
}

func (e *PolicyResolutionError) Error() string {
	return fmt.Sprintf("resolve %s policy: %v", e.Kind, e.Cause)
}

func (e *PolicyResolutionError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is worth retrying inside the search loop.
// Throttling, missing credentials, rejections and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitedError
	var rr *RemoteRejection
	switch {
	case errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrInvalidListing),
		errors.As(err, &rl),
		errors.As(err, &rr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
