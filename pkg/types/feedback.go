package types

import "time"

// AdjustmentType classifies a suggested workflow mutation.
type AdjustmentType string

const (
	AdjustmentTiming     AdjustmentType = "timing"
	AdjustmentCoordinate AdjustmentType = "coordinate"
	AdjustmentSelector   AdjustmentType = "selector"
	AdjustmentValidation AdjustmentType = "validation"
)

// Adjustment is a proposed, typed mutation to one action in a workflow,
// generated from a classified failure.
type Adjustment struct {
	ActionIndex    int            `json:"action_index"`
	AdjustmentType AdjustmentType `json:"adjustment_type"`
	OldValue       string         `json:"old_value"`
	NewValue       string         `json:"new_value"`
	Reason         string         `json:"reason"`
	Confidence     float64        `json:"confidence"`
}

// FeedbackAnalysis is the result of analyzing one finished execution.
type FeedbackAnalysis struct {
	ExecutionID          string         `json:"execution_id"`
	WorkflowID           string         `json:"workflow_id"`
	OverallSuccess       bool           `json:"overall_success"`
	Confidence           float64        `json:"confidence"`
	IssuesDetected       []string       `json:"issues_detected"`
	SuggestedAdjustments []Adjustment   `json:"suggested_adjustments"`
	ShouldRetry          bool           `json:"should_retry"`
	RetryDelay           int            `json:"retry_delay"` // seconds
	Timestamp            time.Time      `json:"timestamp"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// ExecutionSummary is the bounded per-execution history record kept by the
// feedback store.
type ExecutionSummary struct {
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Confidence  float64   `json:"confidence"`
	Issues      int       `json:"issues"`
}

// WorkflowStats aggregates the feedback state for one workflow.
type WorkflowStats struct {
	WorkflowID          string  `json:"workflow_id"`
	ExecutionCount      int     `json:"execution_count"`
	SuccessCount        int     `json:"success_count"`
	FailureCount        int     `json:"failure_count"`
	SuccessRate         float64 `json:"success_rate"`
	Confidence          float64 `json:"confidence"`
	AdjustmentsMade     int     `json:"adjustments_made"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
}
