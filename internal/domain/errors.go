package domain

import "errors"

// Sentinel errors for the application. Services return these (possibly
// wrapped); transports map them to status codes or typed error events.
var (
	// ErrUnauthorized: operation attempted before identity binding.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: authenticated but not permitted (not a participant,
	// not the original author).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: referenced conversation, message or user does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidMembership: group creation or update violates membership rules.
	ErrInvalidMembership = errors.New("invalid group membership")
	// ErrEmptyMessage: message has neither content nor attachments.
	ErrEmptyMessage = errors.New("message has no content or attachments")
	// ErrIdentityConflict: connection rebinding to a different user without
	// an intervening unbind.
	ErrIdentityConflict = errors.New("connection already bound to another user")
	// ErrConflict: resource already exists.
	ErrConflict = errors.New("resource already exists")
	// ErrUnavailable: durable store unavailable after retries, or broadcast
	// delivery partially failed.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidInput: malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
)
