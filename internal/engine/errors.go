package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents the type of engine error.
type ErrorCode string

const (
	// ErrCodeValidation indicates an action failed structural validation.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeSafety indicates a safety mechanism halted the execution.
	ErrCodeSafety ErrorCode = "SAFETY_ERROR"
	// ErrCodeBackend indicates the action backend failed or reported failure.
	ErrCodeBackend ErrorCode = "BACKEND_ERROR"
	// ErrCodeTimeout indicates an action exceeded its type's timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
	// ErrCodeQueue indicates the execution could not be queued.
	ErrCodeQueue ErrorCode = "QUEUE_ERROR"
	// ErrCodeNotFound indicates an unknown execution id.
	ErrCodeNotFound ErrorCode = "EXECUTION_NOT_FOUND"
	// ErrCodeState indicates the execution is not in a state that allows the
	// requested operation.
	ErrCodeState ErrorCode = "INVALID_STATE"
)

// ExecutionError represents an error during workflow execution.
type ExecutionError struct {
	Code        ErrorCode
	ExecutionID string
	ActionIndex int // -1 when not tied to one action
	Message     string
	Cause       error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates a new ExecutionError not tied to one action.
func NewExecutionError(code ErrorCode, executionID, message string, cause error) *ExecutionError {
	return &ExecutionError{
		Code:        code,
		ExecutionID: executionID,
		ActionIndex: -1,
		Message:     message,
		Cause:       cause,
	}
}

// NewValidationError creates an error for an action that failed validation.
func NewValidationError(executionID string, actionIndex int, reason string) *ExecutionError {
	return &ExecutionError{
		Code:        ErrCodeValidation,
		ExecutionID: executionID,
		ActionIndex: actionIndex,
		Message:     fmt.Sprintf("action %d invalid: %s", actionIndex, reason),
	}
}

// NewBackendError creates an error for a failed action dispatch.
func NewBackendError(executionID string, actionIndex int, actionType string, cause error) *ExecutionError {
	return &ExecutionError{
		Code:        ErrCodeBackend,
		ExecutionID: executionID,
		ActionIndex: actionIndex,
		Message:     fmt.Sprintf("action %d (%s) failed", actionIndex, actionType),
		Cause:       cause,
	}
}

// NewTimeoutError creates an error for an action that exceeded its timeout.
func NewTimeoutError(executionID string, actionIndex int, actionType string, timeout time.Duration) *ExecutionError {
	return &ExecutionError{
		Code:        ErrCodeTimeout,
		ExecutionID: executionID,
		ActionIndex: actionIndex,
		Message:     fmt.Sprintf("action %d (%s) exceeded timeout %v", actionIndex, actionType, timeout),
	}
}

// NewNotFoundError creates an error for an unknown execution id.
func NewNotFoundError(executionID string) *ExecutionError {
	return &ExecutionError{
		Code:        ErrCodeNotFound,
		ExecutionID: executionID,
		ActionIndex: -1,
		Message:     fmt.Sprintf("execution not found: %s", executionID),
	}
}

// IsCode checks whether err is an ExecutionError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code == code
	}
	return false
}

// IsNotFoundError checks if the error is an unknown-execution error.
func IsNotFoundError(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool {
	return IsCode(err, ErrCodeValidation)
}

// IsTimeoutError checks if the error is a timeout error.
func IsTimeoutError(err error) bool {
	return IsCode(err, ErrCodeTimeout)
}
