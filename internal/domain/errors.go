package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the store-level sentinel for a missing document.
var ErrNotFound = errors.New("not found")

type Code string

const (
	CodeUnauthenticated    Code = "unauthenticated"
	CodeInvalidArgument    Code = "invalid-argument"
	CodePermissionDenied   Code = "permission-denied"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeResourceExhausted  Code = "resource-exhausted"
	CodeNotFound           Code = "not-found"
	CodeInternal           Code = "internal"
)

// Stable reason strings returned to clients. A client can distinguish
// "retry later" (rate-limited) from "never retry" (permission) from
// "fix your input" without parsing messages.
const (
	ReasonNotAMember      = "not-a-member"
	ReasonBlocked         = "blocked"
	ReasonRateLimited     = "rate-limited"
	ReasonInvalidShape    = "invalid-shape"
	ReasonNotSender       = "not-sender"
	ReasonWindowExpired   = "window-expired"
	ReasonWrongKind       = "wrong-kind"
	ReasonAlreadyDeleted  = "already-deleted"
	ReasonNotAuthorized   = "not-authorized"
	ReasonNotFound        = "not-found"
	ReasonDisallowedEmoji = "disallowed-emoji"
	ReasonMaxEmoji        = "max-emoji-reached"
	ReasonMessageDeleted  = "message-deleted"
	ReasonInternal        = "internal"
)

type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Reason, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func WrapError(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the taxonomy code, defaulting to internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}

// ReasonOf extracts the stable reason string, defaulting to internal.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	if errors.Is(err, ErrNotFound) {
		return ReasonNotFound
	}
	return ReasonInternal
}
