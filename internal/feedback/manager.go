package feedback

import (
	"fmt"
	"strings"
	"time"

	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

// Failure classes assigned by error-text inspection.
const (
	classTiming     = "timing"
	classCoordinate = "coordinate"
	classSelector   = "selector"
	classValidation = "validation"
	classUnknown    = "unknown"
)

// successRateThreshold marks an execution as overall successful.
const successRateThreshold = 0.8

// maxRetryDelay caps the suggested retry backoff.
const maxRetryDelay = 30 // seconds

// Manager is the feedback loop: it turns verification outcomes into
// classified issues, suggested adjustments and confidence updates.
type Manager struct {
	store Store
}

// NewManager creates a Manager backed by the given store. A nil store falls
// back to a fresh in-memory store.
func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store}
}

// Store exposes the backing feedback store.
func (m *Manager) Store() Store { return m.store }

// AnalyzeExecution analyzes a finished execution's verification results and
// produces the feedback for it: overall outcome, classified issues, one
// suggested adjustment per failure, and retry advice based on the workflow's
// consecutive-failure streak.
func (m *Manager) AnalyzeExecution(execution *types.WorkflowExecution, results []*types.VerificationResult) *types.FeedbackAnalysis {
	workflowID := execution.WorkflowID

	successRate := 0.0
	confidence := defaultConfidence
	failed := 0
	if len(results) > 0 {
		successful := 0
		sum := 0.0
		for _, r := range results {
			if r.Success {
				successful++
			}
			sum += r.Confidence
		}
		failed = len(results) - successful
		successRate = float64(successful) / float64(len(results))
		confidence = sum / float64(len(results))
	} else if execution.State == types.StateCompleted {
		successRate = 1.0
	}
	overallSuccess := successRate >= successRateThreshold

	var issues []string
	var adjustments []types.Adjustment
	for i, r := range results {
		if r.Success {
			continue
		}
		class := classifyFailure(r)
		m.store.IncrementFailure(workflowID, class)
		issues = append(issues, fmt.Sprintf("Action %d (%s) failed: %s class", i, r.ActionType, class))
		if adj := suggestAdjustment(i, class, r); adj != nil {
			adjustments = append(adjustments, *adj)
		}
	}

	for _, class := range []string{classTiming, classCoordinate, classSelector, classValidation} {
		if count := m.store.FailureCount(workflowID, class); count >= 3 {
			issues = append(issues, fmt.Sprintf("Recurring %s failures (%d occurrences)", class, count))
		}
	}
	if len(results) > 0 {
		lowConfidence := 0
		for _, r := range results {
			if r.Confidence < 0.6 {
				lowConfidence++
			}
		}
		if lowConfidence > len(results)/2 {
			issues = append(issues, "Most actions completed with low confidence")
		}
	}

	// Retry advice uses the streak before this execution is recorded, so the
	// first failure after a streak of 3 is the one that stops retries.
	priorFailures := m.store.ConsecutiveFailures(workflowID)
	shouldRetry := !overallSuccess && priorFailures < 3
	retryDelay := 5 * (priorFailures + 1)
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	m.store.RecordOutcome(workflowID, types.ExecutionSummary{
		ExecutionID: execution.ID,
		Timestamp:   time.Now(),
		Success:     overallSuccess,
		Confidence:  confidence,
		Issues:      len(issues),
	})

	analysis := &types.FeedbackAnalysis{
		ExecutionID:          execution.ID,
		WorkflowID:           workflowID,
		OverallSuccess:       overallSuccess,
		Confidence:           confidence,
		IssuesDetected:       issues,
		SuggestedAdjustments: adjustments,
		ShouldRetry:          shouldRetry,
		RetryDelay:           retryDelay,
		Timestamp:            time.Now(),
		Metadata: map[string]any{
			"success_rate":  successRate,
			"total_actions": len(results),
			"failed_count":  failed,
		},
	}

	logger.Info("Feedback analysis for %s: success=%v, confidence=%.2f, issues=%d, adjustments=%d",
		execution.ID, overallSuccess, confidence, len(issues), len(adjustments))
	return analysis
}

// UpdateConfidence applies the fixed learning rate to the workflow's
// confidence and returns the new value.
func (m *Manager) UpdateConfidence(workflowID string, success bool) float64 {
	confidence := m.store.Confidence(workflowID)
	if success {
		confidence += 0.1
	} else {
		confidence -= 0.2
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	m.store.SetConfidence(workflowID, confidence)
	logger.Debug("Updated confidence for %s: %.2f (success=%v)", workflowID, confidence, success)
	return confidence
}

// SuggestImprovements derives human-readable suggestions from the workflow's
// accumulated feedback state. Returns a positive message when nothing stands
// out, and a no-data message for workflows that have never run.
func (m *Manager) SuggestImprovements(workflowID string) []string {
	history := m.store.History(workflowID)
	if len(history) == 0 {
		return []string{"No execution history available for analysis"}
	}

	var suggestions []string

	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	successful := 0
	for _, h := range recent {
		if h.Success {
			successful++
		}
	}
	rate := float64(successful) / float64(len(recent))
	if rate < 0.5 {
		suggestions = append(suggestions,
			fmt.Sprintf("Low success rate (%.0f%%): consider re-recording this workflow", rate*100))
	}

	classAdvice := map[string]string{
		classTiming:     "Frequent timing failures: increase delays between actions",
		classCoordinate: "Frequent coordinate failures: re-capture click positions",
		classSelector:   "Frequent selector failures: use more robust element selectors",
		classValidation: "Frequent validation failures: add explicit wait and verify steps",
	}
	for _, class := range []string{classTiming, classCoordinate, classSelector, classValidation} {
		if m.store.FailureCount(workflowID, class) >= 3 {
			suggestions = append(suggestions, classAdvice[class])
		}
	}

	if m.store.ConsecutiveFailures(workflowID) >= 3 {
		suggestions = append(suggestions,
			"Multiple consecutive failures: manual review recommended")
	}
	if len(m.store.Adjustments(workflowID)) > 10 {
		suggestions = append(suggestions,
			"Many automatic adjustments applied: consider parameterizing this workflow")
	}
	if m.store.Confidence(workflowID) < 0.3 {
		suggestions = append(suggestions,
			"Very low confidence: consider rewriting this workflow")
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Workflow is performing well, no improvements needed")
	}
	return suggestions
}

// WorkflowStats aggregates the feedback state for one workflow.
func (m *Manager) WorkflowStats(workflowID string) types.WorkflowStats {
	history := m.store.History(workflowID)
	successes := 0
	for _, h := range history {
		if h.Success {
			successes++
		}
	}
	rate := 0.0
	if len(history) > 0 {
		rate = float64(successes) / float64(len(history))
	}
	return types.WorkflowStats{
		WorkflowID:          workflowID,
		ExecutionCount:      len(history),
		SuccessCount:        successes,
		FailureCount:        len(history) - successes,
		SuccessRate:         rate,
		Confidence:          m.store.Confidence(workflowID),
		AdjustmentsMade:     len(m.store.Adjustments(workflowID)),
		ConsecutiveFailures: m.store.ConsecutiveFailures(workflowID),
	}
}

// ClearHistory drops all accumulated feedback state for one workflow.
func (m *Manager) ClearHistory(workflowID string) {
	m.store.Clear(workflowID)
	logger.Info("Cleared feedback history for workflow %s", workflowID)
}

// classifyFailure assigns a failure class from the result's error text, with
// a low-confidence fallback.
func classifyFailure(r *types.VerificationResult) string {
	errText := strings.ToLower(r.ErrorMessage)
	switch {
	case strings.Contains(errText, "timeout") || strings.Contains(errText, "time"):
		return classTiming
	case strings.Contains(errText, "coordinate") || strings.Contains(errText, "position") ||
		strings.Contains(errText, "bounds"):
		return classCoordinate
	case strings.Contains(errText, "selector") || strings.Contains(errText, "element") ||
		strings.Contains(errText, "not found"):
		return classSelector
	case r.Confidence < 0.5:
		return classValidation
	default:
		return classUnknown
	}
}

// suggestAdjustment produces the fixed heuristic adjustment for one failure
// class, or nil for unclassifiable failures.
func suggestAdjustment(index int, class string, r *types.VerificationResult) *types.Adjustment {
	switch class {
	case classTiming:
		return &types.Adjustment{
			ActionIndex:    index,
			AdjustmentType: types.AdjustmentTiming,
			OldValue:       "0.5s",
			NewValue:       "2.0s",
			Reason:         "Increase delay to allow UI to settle",
			Confidence:     0.8,
		}
	case classCoordinate:
		oldValue := "(unknown)"
		newValue := "(unknown)"
		if loc, ok := r.Metadata["click_location"].(map[string]any); ok {
			x := intValue(loc["x"])
			y := intValue(loc["y"])
			oldValue = fmt.Sprintf("(%d, %d)", x, y)
			newValue = fmt.Sprintf("(%d, %d)", x+5, y+5)
		}
		return &types.Adjustment{
			ActionIndex:    index,
			AdjustmentType: types.AdjustmentCoordinate,
			OldValue:       oldValue,
			NewValue:       newValue,
			Reason:         "Nudge coordinates to compensate for UI drift",
			Confidence:     0.6,
		}
	case classSelector:
		return &types.Adjustment{
			ActionIndex:    index,
			AdjustmentType: types.AdjustmentSelector,
			OldValue:       "current_selector",
			NewValue:       "alternative_selector",
			Reason:         "Try an alternative element selector",
			Confidence:     0.5,
		}
	case classValidation:
		return &types.Adjustment{
			ActionIndex:    index,
			AdjustmentType: types.AdjustmentValidation,
			OldValue:       "none",
			NewValue:       "add_wait_and_verify",
			Reason:         "Insert wait and verification steps",
			Confidence:     0.7,
		}
	default:
		return nil
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
