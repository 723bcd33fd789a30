package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type ErrorCode string

const (
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeUpstreamAuth        ErrorCode = "UPSTREAM_AUTH"
	ErrCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamParse       ErrorCode = "UPSTREAM_PARSE"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeCacheIO             ErrorCode = "CACHE_IO"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
)

// ErrNotFound is returned by the read path while no snapshot has been stored.
var ErrNotFound = &Error{Code: ErrCodeNotFound, Message: "no cached timetable"}

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or "".
func CodeOf(err error) ErrorCode {
	if rl := (*RateLimitedError)(nil); errors.As(err, &rl) {
		return ErrCodeRateLimited
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RateLimitedError rejects a refresh inside the cooldown window. It is an
// expected outcome rather than a fault.
type RateLimitedError struct {
	Remaining   time.Duration
	LastUpdated time.Time
	NextAllowed time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("refresh rate limited, retry in %ds", e.RemainingSeconds())
}

// RemainingSeconds rounds up so a caller never retries a moment too early.
func (e *RateLimitedError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}
