// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for tethr CLI commands.
//
// Handlers always return errors; the caller prints them once and picks the
// exit code from the error's category.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/tethr-tui/internal/config"
	"github.com/jeranaias/tethr-tui/internal/storage"
	"github.com/jeranaias/tethr-tui/internal/tethr"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected login
	ExitAuthError = 4
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitTurnError indicates the server answered with a failed turn
	ExitTurnError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// TurnError reports a turn the server resolved with an error frame, or
// that ended without one.
type TurnError struct {
	Message string
	Cause   error
}

func (e *TurnError) Error() string {
	return "reply failed: " + e.Message
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// ErrNotLoggedIn is returned by commands that need a stored identity.
var ErrNotLoggedIn = errors.New("not logged in (run 'tethr login' first)")

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{
		Field:   argName,
		Reason:  "required argument missing",
		Example: usage,
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON response in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	var turnErr *TurnError
	if errors.As(err, &turnErr) {
		return ExitTurnError
	}
	var cfgErr config.ValidateErrors
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	if errors.Is(err, ErrNotLoggedIn) || errors.Is(err, storage.ErrNoIdentity) || tethr.IsUnauthorized(err) {
		return ExitAuthError
	}

	switch {
	case tethr.IsConnection(err), tethr.IsUnavailable(err):
		return ExitNetworkError
	case tethr.IsTimeout(err):
		return ExitTimeoutError
	case tethr.IsNotFound(err):
		return ExitNotFoundError
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "config"):
		return ExitConfigError
	case strings.Contains(errMsg, "timed out"), strings.Contains(errMsg, "deadline exceeded"):
		return ExitTimeoutError
	}
	return ExitGeneralError
}

// =============================================================================
// JSON
// =============================================================================

// errorJSON is the JSON body of DisplayError.
func errorJSON(err error) map[string]any {
	out := map[string]any{"error_type": "generic_error"}
	var clientErr *tethr.ClientError
	var validationErr *ValidationError
	var turnErr *TurnError
	switch {
	case errors.As(err, &validationErr):
		out["error_type"] = "validation_error"
		out["field"] = validationErr.Field
	case errors.As(err, &turnErr):
		out["error_type"] = "turn_error"
	case errors.As(err, &clientErr):
		out["error_type"] = clientErr.Type.String()
		if clientErr.Status != 0 {
			out["status"] = clientErr.Status
		}
	}
	return out
}

// marshalIndent is json.MarshalIndent with the CLI's indent.
func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
