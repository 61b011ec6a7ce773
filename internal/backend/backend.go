// Package backend defines the action dispatch contract and the registry that
// routes action types to their handlers. The engine only ever asks a backend
// whether an action succeeded; how the action is performed is outside the
// core.
package backend

import (
	"context"
	"fmt"
	"time"
)

// Backend performs actions of one or more types. Implementations are
// stateless per call.
type Backend interface {
	// Dispatch performs one action and reports whether it succeeded. A false
	// return without error means the backend ran the action and it did not
	// take effect.
	Dispatch(ctx context.Context, actionType string, params map[string]any) (bool, error)
}

// HandlerFunc adapts a function to the Backend interface.
type HandlerFunc func(ctx context.Context, actionType string, params map[string]any) (bool, error)

// Dispatch implements Backend.
func (f HandlerFunc) Dispatch(ctx context.Context, actionType string, params map[string]any) (bool, error) {
	return f(ctx, actionType, params)
}

// WaitHandler sleeps for the action's duration parameter (seconds, default
// 1) and succeeds. Registered built-in because feedback adjustment inserts
// wait steps.
func WaitHandler(ctx context.Context, _ string, params map[string]any) (bool, error) {
	seconds := 1.0
	if v, ok := params["duration"]; ok {
		switch n := v.(type) {
		case float64:
			seconds = n
		case int:
			seconds = float64(n)
		case int64:
			seconds = float64(n)
		}
	}
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// VerifyHandler is a no-op success. Inserted verify steps only exist to give
// the verifier a settled frame to compare.
func VerifyHandler(_ context.Context, _ string, _ map[string]any) (bool, error) {
	return true, nil
}

// LoggingHandler returns a dry-run backend that reports every action as
// successful through the given sink. Used by the CLI's single-run mode.
func LoggingHandler(log func(format string, args ...any)) HandlerFunc {
	return func(_ context.Context, actionType string, params map[string]any) (bool, error) {
		log("dry-run dispatch: %s %v", actionType, params)
		return true, nil
	}
}

// NotFoundError indicates no backend is registered for an action type.
type NotFoundError struct {
	ActionType string
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no backend registered for action type: %s", e.ActionType)
}

// NewNotFoundError creates a NotFoundError for the action type.
func NewNotFoundError(actionType string) *NotFoundError {
	return &NotFoundError{ActionType: actionType}
}

// IsNotFoundError reports whether err is a backend NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
