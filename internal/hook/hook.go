// Package hook runs workflow-level pre and post hooks. Hooks are small
// scripts attached to a workflow definition; a failing pre-hook aborts the
// execution, a failing post-hook is logged only.
package hook

import (
	"fmt"
	"time"
)

// Type distinguishes pre from post hooks.
type Type string

const (
	// TypePre runs before the workflow's first action.
	TypePre Type = "pre"
	// TypePost runs after the workflow reaches a terminal state.
	TypePost Type = "post"
)

// Result holds the outcome of one hook run.
type Result struct {
	Type      Type
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Output    any
	Error     error
}

// Error wraps a hook failure with its position.
type Error struct {
	Type    Type
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s hook] %s: %v", e.Type, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a hook Error.
func NewError(hookType Type, message string, cause error) *Error {
	return &Error{Type: hookType, Message: message, Cause: cause}
}

// IsError checks if err is a hook Error.
func IsError(err error) bool {
	_, ok := err.(*Error)
	return ok
}
