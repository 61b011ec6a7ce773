package feedback

import (
	"fmt"
	"time"

	"github.com/ohler55/ojg/jp"

	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

// coordinatePaths are the JSON paths where pointer coordinates may live
// inside an action's parameters.
var coordinatePaths = []string{
	"x", "y",
	"coordinates.x", "coordinates.y",
	"target.coordinates.x", "target.coordinates.y",
}

// AdjustWorkflow applies the analysis' suggested adjustments to a deep copy
// of the workflow and returns it. The original is never mutated. Invalid
// action indices are skipped.
func (m *Manager) AdjustWorkflow(workflow *types.Workflow, analysis *types.FeedbackAnalysis) *types.Workflow {
	adjusted := workflow.Clone()
	var applied []types.Adjustment

	for _, adj := range analysis.SuggestedAdjustments {
		if adj.ActionIndex < 0 || adj.ActionIndex >= len(adjusted.Actions) {
			logger.Warn("Skipping adjustment with invalid action index %d (workflow %s has %d actions)",
				adj.ActionIndex, workflow.ID, len(adjusted.Actions))
			continue
		}

		action := &adjusted.Actions[adj.ActionIndex]
		if action.Params == nil {
			action.Params = make(map[string]any)
		}

		switch adj.AdjustmentType {
		case types.AdjustmentTiming:
			applyTiming(action)
		case types.AdjustmentCoordinate:
			applyCoordinate(action, adj.NewValue)
		case types.AdjustmentSelector:
			applySelector(action, adj.NewValue)
		case types.AdjustmentValidation:
			insertValidationSteps(adjusted, adj.ActionIndex)
			action = &adjusted.Actions[adj.ActionIndex]
		default:
			logger.Warn("Unknown adjustment type %q for workflow %s", adj.AdjustmentType, workflow.ID)
			continue
		}

		note := fmt.Sprintf("%s: %s", adj.AdjustmentType, adj.Reason)
		notes, _ := action.Params["adjustment_notes"].([]any)
		action.Params["adjustment_notes"] = append(notes, note)
		applied = append(applied, adj)
	}

	if adjusted.Metadata == nil {
		adjusted.Metadata = make(map[string]any)
	}
	priorCount := intValue(adjusted.Metadata["adjustments_count"])
	adjusted.Metadata["adjustments_count"] = priorCount + len(applied)
	adjusted.Metadata["last_adjusted"] = time.Now().Format(time.RFC3339)
	history, _ := adjusted.Metadata["adjustment_history"].([]any)
	for _, adj := range applied {
		history = append(history, map[string]any{
			"action_index": adj.ActionIndex,
			"type":         string(adj.AdjustmentType),
			"reason":       adj.Reason,
			"confidence":   adj.Confidence,
		})
	}
	adjusted.Metadata["adjustment_history"] = history

	m.store.RecordAdjustments(workflow.ID, applied)
	logger.Info("Applied %d/%d adjustments to workflow %s",
		len(applied), len(analysis.SuggestedAdjustments), workflow.ID)
	return adjusted
}

// applyTiming sets or raises the action's post-delay to 2 seconds.
func applyTiming(action *types.ActionSpec) {
	if action.ParamFloat("delay_after", 0) < 2.0 {
		action.Params["delay_after"] = 2.0
	}
}

// applyCoordinate nudges every coordinate the action carries by +5/+5,
// including the nested coordinates and target.coordinates forms. An action
// with no coordinate fields gets a coordinates map built from the suggested
// value when it parses as "(x, y)".
func applyCoordinate(action *types.ActionSpec, newValue string) {
	nudged := false
	for _, path := range coordinatePaths {
		expr, err := jp.ParseString(path)
		if err != nil {
			continue
		}
		for _, v := range expr.Get(action.Params) {
			f, ok := numericValue(v)
			if !ok {
				continue
			}
			if err := expr.Set(action.Params, f+5); err != nil {
				logger.Warn("Failed to set %s on action %s: %v", path, action.Type, err)
			} else {
				nudged = true
			}
			break
		}
	}
	if nudged {
		return
	}

	var x, y int
	if _, err := fmt.Sscanf(newValue, "(%d, %d)", &x, &y); err != nil {
		return
	}
	action.Params["coordinates"] = map[string]any{"x": float64(x), "y": float64(y)}
}

// applySelector swaps in the alternative selector, preserving the old one.
func applySelector(action *types.ActionSpec, newSelector string) {
	if current := action.ParamString("selector", ""); current != "" {
		action.Params["selector_backup"] = current
	}
	action.Params["selector"] = newSelector
}

// insertValidationSteps inserts a wait step then a verify step immediately
// after the given index and renumbers any explicit step fields.
func insertValidationSteps(workflow *types.Workflow, index int) {
	waitStep := types.ActionSpec{
		Type: "wait",
		Params: map[string]any{
			"duration":             1.0,
			"inserted_by_feedback": true,
		},
	}
	verifyStep := types.ActionSpec{
		Type: "verify",
		Params: map[string]any{
			"target":               "previous_action",
			"inserted_by_feedback": true,
		},
	}

	actions := make([]types.ActionSpec, 0, len(workflow.Actions)+2)
	actions = append(actions, workflow.Actions[:index+1]...)
	actions = append(actions, waitStep, verifyStep)
	actions = append(actions, workflow.Actions[index+1:]...)
	workflow.Actions = actions

	for i := range workflow.Actions {
		if _, ok := workflow.Actions[i].Params["step"]; ok {
			workflow.Actions[i].Params["step"] = i + 1
		}
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
