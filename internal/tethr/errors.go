// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tethr

import (
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the tethr client.
type ClientError struct {
	Type    ErrorType
	Message string
	Status  int // HTTP status, 0 when no response was received
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches any ClientError of the same Type, so the sentinels below work
// with errors.Is regardless of the message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeUnauthorized
	ErrTypeUnavailable
	ErrTypeNotFound
	ErrTypeInvalidResponse
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeUnauthorized:
		return "unauthorized"
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrConnection      = &ClientError{Type: ErrTypeConnection, Message: "cannot reach the tethr server"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrUnauthorized    = &ClientError{Type: ErrTypeUnauthorized, Message: "invalid credentials"}
	ErrUnavailable     = &ClientError{Type: ErrTypeUnavailable, Message: "service unavailable"}
	ErrNotFound        = &ClientError{Type: ErrTypeNotFound, Message: "not found"}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response"}
)

func errorType(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// IsUnauthorized checks if an error is a rejected login.
func IsUnauthorized(err error) bool {
	return errorType(err) == ErrTypeUnauthorized
}

// IsUnavailable checks if the server reported that it cannot serve chats yet.
func IsUnavailable(err error) bool {
	return errorType(err) == ErrTypeUnavailable
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errorType(err) == ErrTypeTimeout
}

// IsConnection checks if the server could not be reached at all.
func IsConnection(err error) bool {
	return errorType(err) == ErrTypeConnection
}

// IsNotFound checks if the requested resource does not exist.
func IsNotFound(err error) bool {
	return errorType(err) == ErrTypeNotFound
}

// Describe returns the message to show a user for err. For a ClientError
// that is the server's detail or the client's summary, without the cause.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Message != "" {
		return clientErr.Message
	}
	return err.Error()
}
