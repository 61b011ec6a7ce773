package safety

import (
	"testing"

	"pgregory.net/rapid"

	"argus/automation-engine/pkg/types"
)

// The emergency stop flag must always reflect the last trigger/reset, no
// matter the sequence of calls.
func TestGuard_EmergencyStopSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		guard := NewGuard(DefaultOptions())
		expected := false

		steps := rapid.SliceOfN(rapid.Bool(), 1, 50).Draw(t, "steps")
		for _, trigger := range steps {
			if trigger {
				guard.TriggerEmergencyStop()
				expected = true
			} else {
				guard.ResetEmergencyStop()
				expected = false
			}
			if guard.CheckEmergencyStop() != expected {
				t.Fatalf("flag mismatch after trigger=%v: want %v", trigger, expected)
			}
		}
	})
}

// In-bounds pointer coordinates always validate; out-of-bounds never do.
func TestGuard_ValidateClickBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(1, 4096).Draw(t, "width")
		height := rapid.IntRange(1, 4096).Draw(t, "height")
		guard := NewGuard(Options{ScreenWidth: width, ScreenHeight: height})

		x := rapid.IntRange(-100, 5000).Draw(t, "x")
		y := rapid.IntRange(-100, 5000).Draw(t, "y")

		ok, _ := guard.ValidateAction(types.ActionSpec{
			Type:   "click",
			Params: map[string]any{"x": x, "y": y},
		})
		inBounds := x >= 0 && x < width && y >= 0 && y < height
		if ok != inBounds {
			t.Fatalf("click (%d,%d) on %dx%d: validated=%v, inBounds=%v", x, y, width, height, ok, inBounds)
		}
	})
}

// The rate window never admits more than the configured maximum.
func TestGuard_RateLimitNeverExceedsMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := rapid.IntRange(1, 100).Draw(t, "max")
		calls := rapid.IntRange(1, 300).Draw(t, "calls")
		guard := NewGuard(Options{MaxActionsPerMinute: max})

		allowed := 0
		for i := 0; i < calls; i++ {
			if !guard.CheckRateLimit() {
				allowed++
			}
		}
		if allowed > max {
			t.Fatalf("allowed %d actions with max %d", allowed, max)
		}
		if calls <= max && allowed != calls {
			t.Fatalf("under the limit all calls must pass: allowed %d of %d", allowed, calls)
		}
	})
}
