package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/automation-engine/pkg/types"
)

func action(actionType string, params map[string]any) types.ActionSpec {
	return types.ActionSpec{Type: actionType, Params: params}
}

func TestGuard_EmergencyStop(t *testing.T) {
	guard := NewGuard(DefaultOptions())

	assert.False(t, guard.CheckEmergencyStop())

	guard.TriggerEmergencyStop()
	assert.True(t, guard.CheckEmergencyStop())

	// Triggering again keeps the flag set.
	guard.TriggerEmergencyStop()
	assert.True(t, guard.CheckEmergencyStop())

	guard.ResetEmergencyStop()
	assert.False(t, guard.CheckEmergencyStop())

	// Reset is idempotent too.
	guard.ResetEmergencyStop()
	assert.False(t, guard.CheckEmergencyStop())
}

func TestGuard_RateLimit(t *testing.T) {
	guard := NewGuard(Options{MaxActionsPerMinute: 60})

	// 60 actions in a fresh window are allowed and recorded.
	for i := 0; i < 60; i++ {
		assert.False(t, guard.CheckRateLimit(), "action %d should be allowed", i)
	}

	// The 61st hits the limit.
	assert.True(t, guard.CheckRateLimit())

	// A rejected call does not consume window capacity: it stays rejected,
	// not growing past the cap.
	assert.True(t, guard.CheckRateLimit())
	assert.Equal(t, 60, guard.Stats().ActionsInLastMinute)
}

func TestGuard_CheckTimeout(t *testing.T) {
	guard := NewGuard(Options{
		TimeoutOverrides: map[string]time.Duration{"click": 10 * time.Millisecond},
	})

	start := time.Now()
	assert.False(t, guard.CheckTimeout("click", start))

	assert.True(t, guard.CheckTimeout("click", start.Add(-20*time.Millisecond)))
}

func TestGuard_TimeoutTable(t *testing.T) {
	guard := NewGuard(DefaultOptions())

	assert.Equal(t, 5*time.Second, guard.Timeout("click"))
	assert.Equal(t, 300*time.Second, guard.Timeout("wait"))
	assert.Equal(t, 30*time.Second, guard.Timeout("browser_navigate"))
	assert.Equal(t, DefaultTimeout, guard.Timeout("something_unknown"))

	guard.SetTimeout("click", 42*time.Second)
	assert.Equal(t, 42*time.Second, guard.Timeout("click"))
}

func TestGuard_ValidateAction_Click(t *testing.T) {
	guard := NewGuard(DefaultOptions())

	ok, reason := guard.ValidateAction(action("click", map[string]any{"x": 100, "y": 200}))
	assert.True(t, ok, reason)

	ok, reason = guard.ValidateAction(action("click", map[string]any{"x": 100}))
	require.False(t, ok)
	assert.Contains(t, reason, "coordinates")

	ok, reason = guard.ValidateAction(action("click", map[string]any{"x": 5000, "y": 200}))
	require.False(t, ok)
	assert.Contains(t, reason, "out of bounds")

	ok, _ = guard.ValidateAction(action("click", map[string]any{"x": -1, "y": 0}))
	assert.False(t, ok)

	// Edge pixels are inside bounds.
	ok, reason = guard.ValidateAction(action("click", map[string]any{"x": 1919, "y": 1079}))
	assert.True(t, ok, reason)
}

func TestGuard_ValidateAction_RequiredParams(t *testing.T) {
	guard := NewGuard(DefaultOptions())

	cases := []struct {
		name   string
		action types.ActionSpec
		valid  bool
	}{
		{"missing type", action("", nil), false},
		{"type_text ok", action("type_text", map[string]any{"text": "hello"}), true},
		{"type_text missing text", action("type_text", map[string]any{}), false},
		{"press_key ok", action("press_key", map[string]any{"key": "enter"}), true},
		{"press_key missing key", action("press_key", map[string]any{}), false},
		{"hotkey ok", action("hotkey", map[string]any{"keys": []any{"ctrl", "c"}}), true},
		{"hotkey empty keys", action("hotkey", map[string]any{"keys": []any{}}), false},
		{"hotkey wrong kind", action("hotkey", map[string]any{"keys": "ctrl+c"}), false},
		{"navigate ok", action("browser_navigate", map[string]any{"url": "https://example.com"}), true},
		{"navigate missing url", action("browser_navigate", map[string]any{}), false},
		{"file_copy ok", action("file_copy", map[string]any{"source": "/a", "destination": "/b"}), true},
		{"file_copy missing destination", action("file_copy", map[string]any{"source": "/a"}), false},
		{"browser_click ok", action("browser_click", map[string]any{"selector": "#btn"}), true},
		{"browser_click missing selector", action("browser_click", map[string]any{}), false},
		{"browser_fill needs text and selector", action("browser_fill", map[string]any{"text": "x"}), false},
		{"excel_write_cell ok", action("excel_write_cell", map[string]any{"cell": "A1"}), true},
		{"excel_write_cell missing cell", action("excel_write_cell", map[string]any{}), false},
		{"unknown type passes", action("custom_thing", nil), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := guard.ValidateAction(tc.action)
			assert.Equal(t, tc.valid, ok, reason)
		})
	}
}

func TestGuard_Stats(t *testing.T) {
	guard := NewGuard(Options{MaxActionsPerMinute: 10, ScreenWidth: 800, ScreenHeight: 600})

	guard.CheckRateLimit()
	guard.CheckRateLimit()
	guard.TriggerEmergencyStop()

	stats := guard.Stats()
	assert.True(t, stats.EmergencyStop)
	assert.Equal(t, 10, stats.MaxActionsPerMinute)
	assert.Equal(t, 2, stats.ActionsInLastMinute)
	assert.Equal(t, 800, stats.ScreenWidth)
	assert.Equal(t, 600, stats.ScreenHeight)
	assert.Greater(t, stats.ConfiguredTimeouts, 0)
}
