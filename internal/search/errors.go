package search

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrQuotaOrAccessDenied  = errors.New("quota exhausted or access denied")
	ErrRequestTimedOut      = errors.New("request timed out")
	ErrSearchAPI            = errors.New("search API error")
	ErrSearchFailed         = errors.New("search failed")
)

// Error is a classified search failure
type Error struct {
	Kind       error
	Query      string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != ErrAuthenticationFailed && e.Kind != ErrQuotaOrAccessDenied {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newInvalidQueryError(q string, reason error) *Error {
	return &Error{
		Kind:    ErrInvalidQuery,
		Query:   q,
		Message: fmt.Sprintf("invalid FOFA query %q", q),
		Err:     reason,
	}
}

func newStatusError(q string, status int, body string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{
			Kind:       ErrAuthenticationFailed,
			Query:      q,
			StatusCode: status,
			Message:    "FOFA authentication failed (HTTP 401): check FOFA_EMAIL and FOFA_KEY",
		}
	case http.StatusForbidden:
		return &Error{
			Kind:       ErrQuotaOrAccessDenied,
			Query:      q,
			StatusCode: status,
			Message:    "FOFA denied the request (HTTP 403): the account quota may be used up or it lacks access to this query",
		}
	default:
		msg := fmt.Sprintf("FOFA search failed with status %d", status)
		if body != "" {
			msg += ": " + body
		}
		return &Error{
			Kind:       ErrSearchFailed,
			Query:      q,
			StatusCode: status,
			Message:    msg,
		}
	}
}
