package types

import (
	"fmt"
	"time"
)

// ExecutionState represents the lifecycle state of a workflow execution.
type ExecutionState string

const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StatePaused    ExecutionState = "paused"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
	StateCancelled ExecutionState = "cancelled"
)

// Terminal reports whether the state is a terminal state.
func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// LogEntryStatus values recorded per action attempt.
const (
	LogStatusStarted            = "started"
	LogStatusCompleted          = "completed"
	LogStatusFailed             = "failed"
	LogStatusCancelled          = "cancelled"
	LogStatusTimeout            = "timeout"
	LogStatusVerificationFailed = "verification_failed"
)

// LogEntry records the outcome of a single action attempt.
type LogEntry struct {
	Timestamp              time.Time `json:"timestamp"`
	Step                   int       `json:"step"`
	ActionType             string    `json:"action_type"`
	Status                 string    `json:"status"`
	Error                  string    `json:"error,omitempty"`
	VerificationConfidence *float64  `json:"verification_confidence,omitempty"`
}

// WorkflowExecution represents one run of a workflow through the engine.
//
// Created when queued, mutated only by the engine loop, terminal once the
// state enters {completed, failed, cancelled}.
type WorkflowExecution struct {
	ID                  string                `json:"id"`
	WorkflowID          string                `json:"workflow_id"`
	Workflow            *Workflow             `json:"-"`
	State               ExecutionState        `json:"state"`
	StartTime           time.Time             `json:"start_time,omitzero"`
	EndTime             time.Time             `json:"end_time,omitzero"`
	CurrentStep         int                   `json:"current_step"`
	TotalSteps          int                   `json:"total_steps"`
	Progress            float64               `json:"progress"`
	ErrorMessage        string                `json:"error_message,omitempty"`
	ExecutionLog        []LogEntry            `json:"execution_log"`
	VerificationResults []*VerificationResult `json:"verification_results"`

	// AdjustedWorkflow holds the feedback-adjusted copy of the workflow when
	// the post-run analysis suggested adjustments, for a caller-initiated
	// retry. The engine never retries on its own.
	AdjustedWorkflow *Workflow `json:"-"`
}

// NewWorkflowExecution creates a pending execution for the given workflow.
func NewWorkflowExecution(workflow *Workflow) *WorkflowExecution {
	return &WorkflowExecution{
		ID:         fmt.Sprintf("exec_%s_%s", workflow.ID, time.Now().Format("20060102_150405.000000")),
		WorkflowID: workflow.ID,
		Workflow:   workflow,
		State:      StatePending,
		TotalSteps: len(workflow.Actions),
	}
}

// Snapshot returns a copy of the execution safe to hand out of the engine
// loop. Log and result slices are copied; individual results are immutable
// after creation and are shared.
func (e *WorkflowExecution) Snapshot() *WorkflowExecution {
	out := *e
	out.ExecutionLog = append([]LogEntry(nil), e.ExecutionLog...)
	out.VerificationResults = append([]*VerificationResult(nil), e.VerificationResults...)
	return &out
}
