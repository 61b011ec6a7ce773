package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/automation-engine/pkg/types"
)

func testWorkflow(actions ...types.ActionSpec) *types.Workflow {
	return &types.Workflow{
		ID:      "wf1",
		Name:    "test workflow",
		Actions: actions,
	}
}

func analysisWith(adjustments ...types.Adjustment) *types.FeedbackAnalysis {
	return &types.FeedbackAnalysis{
		ExecutionID:          "exec1",
		WorkflowID:           "wf1",
		SuggestedAdjustments: adjustments,
	}
}

func TestAdjustWorkflow_Timing(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "click",
		Params: map[string]any{"x": 10, "y": 10, "delay_after": 0.5},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentTiming,
		Reason:         "slow UI",
	}))

	assert.Equal(t, 2.0, adjusted.Actions[0].Params["delay_after"])
	// Original untouched.
	assert.Equal(t, 0.5, workflow.Actions[0].Params["delay_after"])

	notes, ok := adjusted.Actions[0].Params["adjustment_notes"].([]any)
	require.True(t, ok)
	assert.Len(t, notes, 1)
}

func TestAdjustWorkflow_TimingNeverLowersDelay(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "click",
		Params: map[string]any{"delay_after": 5.0},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentTiming,
	}))

	assert.Equal(t, 5.0, adjusted.Actions[0].Params["delay_after"])
}

func TestAdjustWorkflow_CoordinateNudgesAllForms(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type: "click",
		Params: map[string]any{
			"x": 100.0,
			"y": 200.0,
			"coordinates": map[string]any{
				"x": 100.0,
				"y": 200.0,
			},
			"target": map[string]any{
				"coordinates": map[string]any{
					"x": 100.0,
					"y": 200.0,
				},
			},
		},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentCoordinate,
	}))

	params := adjusted.Actions[0].Params
	assert.Equal(t, 105.0, params["x"])
	assert.Equal(t, 205.0, params["y"])

	coords := params["coordinates"].(map[string]any)
	assert.Equal(t, 105.0, coords["x"])
	assert.Equal(t, 205.0, coords["y"])

	target := params["target"].(map[string]any)["coordinates"].(map[string]any)
	assert.Equal(t, 105.0, target["x"])
	assert.Equal(t, 205.0, target["y"])

	// Original values are untouched.
	assert.Equal(t, 100.0, workflow.Actions[0].Params["x"])
}

func TestAdjustWorkflow_CoordinateSkipsAbsentPaths(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "click",
		Params: map[string]any{"x": 50.0, "y": 60.0},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentCoordinate,
	}))

	assert.Equal(t, 55.0, adjusted.Actions[0].Params["x"])
	assert.Equal(t, 65.0, adjusted.Actions[0].Params["y"])
	assert.NotContains(t, adjusted.Actions[0].Params, "coordinates")
	assert.NotContains(t, adjusted.Actions[0].Params, "target")
}

func TestAdjustWorkflow_CoordinateCreatesMapWhenActionHasNone(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "click",
		Params: map[string]any{"button": "left"},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentCoordinate,
		NewValue:       "(105, 205)",
	}))

	coords, ok := adjusted.Actions[0].Params["coordinates"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 105.0, coords["x"])
	assert.Equal(t, 205.0, coords["y"])
}

func TestAdjustWorkflow_CoordinateUnparseableValueChangesNothing(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "click",
		Params: map[string]any{"button": "left"},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentCoordinate,
		NewValue:       "(unknown)",
	}))

	assert.NotContains(t, adjusted.Actions[0].Params, "coordinates")
}

func TestAdjustWorkflow_SelectorSwapKeepsBackup(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{
		Type:   "browser_click",
		Params: map[string]any{"selector": "#old"},
	})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentSelector,
		NewValue:       "alternative_selector",
	}))

	assert.Equal(t, "alternative_selector", adjusted.Actions[0].Params["selector"])
	assert.Equal(t, "#old", adjusted.Actions[0].Params["selector_backup"])
}

func TestAdjustWorkflow_ValidationInsertsWaitAndVerify(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(
		types.ActionSpec{Type: "click", Params: map[string]any{"step": 1}},
		types.ActionSpec{Type: "type_text", Params: map[string]any{"step": 2}},
		types.ActionSpec{Type: "press_key", Params: map[string]any{"step": 3}},
	)

	adjusted := m.AdjustWorkflow(workflow, analysisWith(types.Adjustment{
		ActionIndex:    0,
		AdjustmentType: types.AdjustmentValidation,
	}))

	require.Len(t, adjusted.Actions, 5)
	assert.Equal(t, "click", adjusted.Actions[0].Type)
	assert.Equal(t, "wait", adjusted.Actions[1].Type)
	assert.Equal(t, "verify", adjusted.Actions[2].Type)
	assert.Equal(t, "type_text", adjusted.Actions[3].Type)
	assert.Equal(t, "press_key", adjusted.Actions[4].Type)

	assert.Equal(t, 1.0, adjusted.Actions[1].Params["duration"])
	assert.Equal(t, true, adjusted.Actions[1].Params["inserted_by_feedback"])
	assert.Equal(t, "previous_action", adjusted.Actions[2].Params["target"])

	// Explicit step numbers renumbered in order.
	assert.Equal(t, 1, adjusted.Actions[0].Params["step"])
	assert.Equal(t, 4, adjusted.Actions[3].Params["step"])
	assert.Equal(t, 5, adjusted.Actions[4].Params["step"])

	// Original length preserved.
	assert.Len(t, workflow.Actions, 3)
}

func TestAdjustWorkflow_InvalidIndicesSkipped(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(types.ActionSpec{Type: "click", Params: map[string]any{"x": 1.0, "y": 1.0}})

	adjusted := m.AdjustWorkflow(workflow, analysisWith(
		types.Adjustment{ActionIndex: -1, AdjustmentType: types.AdjustmentTiming},
		types.Adjustment{ActionIndex: 5, AdjustmentType: types.AdjustmentTiming},
		types.Adjustment{ActionIndex: 0, AdjustmentType: types.AdjustmentTiming},
	))

	// Only the valid adjustment applied.
	require.Len(t, adjusted.Actions, 1)
	assert.Equal(t, 2.0, adjusted.Actions[0].Params["delay_after"])
	assert.Equal(t, 1, adjusted.Metadata["adjustments_count"])
}

func TestAdjustWorkflow_MetadataSummary(t *testing.T) {
	m := NewManager(nil)
	workflow := testWorkflow(
		types.ActionSpec{Type: "click", Params: map[string]any{"x": 1.0, "y": 1.0}},
		types.ActionSpec{Type: "browser_click", Params: map[string]any{"selector": "#a"}},
	)

	adjusted := m.AdjustWorkflow(workflow, analysisWith(
		types.Adjustment{ActionIndex: 0, AdjustmentType: types.AdjustmentTiming, Reason: "r1"},
		types.Adjustment{ActionIndex: 1, AdjustmentType: types.AdjustmentSelector, NewValue: "#b", Reason: "r2"},
	))

	assert.Equal(t, 2, adjusted.Metadata["adjustments_count"])
	assert.NotEmpty(t, adjusted.Metadata["last_adjusted"])
	history, ok := adjusted.Metadata["adjustment_history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 2)

	// Applied adjustments also land in the bounded store history.
	assert.Len(t, m.Store().Adjustments("wf1"), 2)
}
