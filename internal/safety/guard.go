// Package safety provides the safety guard for automation execution:
// emergency stop, rate limiting, timeout detection and action validation.
package safety

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

// DefaultTimeout applies to action types without a table entry.
const DefaultTimeout = 30 * time.Second

// rateWindow is the sliding window used for rate limiting.
const rateWindow = time.Minute

// defaultTimeouts is the per-action-type timeout table.
func defaultTimeouts() map[string]time.Duration {
	return map[string]time.Duration{
		"click":                 5 * time.Second,
		"type_text":             10 * time.Second,
		"press_key":             5 * time.Second,
		"hotkey":                5 * time.Second,
		"move_to":               5 * time.Second,
		"drag_to":               10 * time.Second,
		"scroll":                5 * time.Second,
		"wait":                  300 * time.Second,
		"browser_navigate":      30 * time.Second,
		"browser_click":         10 * time.Second,
		"browser_type":          10 * time.Second,
		"browser_fill":          10 * time.Second,
		"browser_select":        10 * time.Second,
		"browser_check":         10 * time.Second,
		"browser_uncheck":       10 * time.Second,
		"browser_press_key":     5 * time.Second,
		"browser_get_text":      10 * time.Second,
		"browser_screenshot":    15 * time.Second,
		"browser_wait_for":      60 * time.Second,
		"browser_fill_form":     30 * time.Second,
		"browser_submit_form":   30 * time.Second,
		"browser_extract_table": 30 * time.Second,
		"excel_open":            30 * time.Second,
		"excel_create":          10 * time.Second,
		"excel_close":           10 * time.Second,
		"excel_save":            20 * time.Second,
		"excel_read_cell":       5 * time.Second,
		"excel_write_cell":      5 * time.Second,
		"excel_write_range":     30 * time.Second,
		"excel_insert_formula":  10 * time.Second,
		"file_copy":             60 * time.Second,
		"file_move":             60 * time.Second,
		"file_rename":           10 * time.Second,
		"file_delete":           10 * time.Second,
		"folder_create":         10 * time.Second,
		"folder_delete":         30 * time.Second,
		"window_find":           10 * time.Second,
		"window_focus":          5 * time.Second,
		"window_minimize":       5 * time.Second,
		"window_maximize":       5 * time.Second,
	}
}

// Options configures a Guard.
type Options struct {
	// MaxActionsPerMinute caps actions in the sliding rate window.
	MaxActionsPerMinute int
	// ScreenWidth and ScreenHeight bound pointer coordinates.
	ScreenWidth  int
	ScreenHeight int
	// TimeoutOverrides replaces table entries per action type.
	TimeoutOverrides map[string]time.Duration
}

// DefaultOptions returns Guard options with the standard limits.
func DefaultOptions() Options {
	return Options{
		MaxActionsPerMinute: 60,
		ScreenWidth:         1920,
		ScreenHeight:        1080,
	}
}

// Guard enforces execution safety: a process-wide emergency stop flag, a
// sliding-window rate limiter, a per-action-type timeout table and
// structural validation of action parameters.
type Guard struct {
	emergencyStop atomic.Bool

	maxActionsPerMinute int
	screenWidth         int
	screenHeight        int

	rateMu     sync.Mutex
	timestamps []time.Time

	timeoutsMu sync.RWMutex
	timeouts   map[string]time.Duration
}

// NewGuard creates a Guard with the given options. Zero-valued options fall
// back to defaults.
func NewGuard(opts Options) *Guard {
	def := DefaultOptions()
	if opts.MaxActionsPerMinute <= 0 {
		opts.MaxActionsPerMinute = def.MaxActionsPerMinute
	}
	if opts.ScreenWidth <= 0 {
		opts.ScreenWidth = def.ScreenWidth
	}
	if opts.ScreenHeight <= 0 {
		opts.ScreenHeight = def.ScreenHeight
	}

	timeouts := defaultTimeouts()
	for actionType, timeout := range opts.TimeoutOverrides {
		timeouts[actionType] = timeout
	}

	return &Guard{
		maxActionsPerMinute: opts.MaxActionsPerMinute,
		screenWidth:         opts.ScreenWidth,
		screenHeight:        opts.ScreenHeight,
		timeouts:            timeouts,
	}
}

// CheckEmergencyStop reports whether the emergency stop flag is set.
func (g *Guard) CheckEmergencyStop() bool {
	return g.emergencyStop.Load()
}

// TriggerEmergencyStop sets the emergency stop flag. Idempotent.
func (g *Guard) TriggerEmergencyStop() {
	if g.emergencyStop.CompareAndSwap(false, true) {
		logger.Warn("EMERGENCY STOP TRIGGERED - all automations will halt")
	} else {
		logger.Info("Emergency stop already triggered")
	}
}

// ResetEmergencyStop clears the emergency stop flag. Idempotent.
func (g *Guard) ResetEmergencyStop() {
	if g.emergencyStop.CompareAndSwap(true, false) {
		logger.Info("Emergency stop reset - automations can resume")
	}
}

// CheckRateLimit reports whether the rate limit is currently exceeded.
// Timestamps older than the window are evicted first; when the limit is not
// hit, the call records the current action in the window.
func (g *Guard) CheckRateLimit() bool {
	g.rateMu.Lock()
	defer g.rateMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rateWindow)
	kept := g.timestamps[:0]
	for _, ts := range g.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	g.timestamps = kept

	if len(g.timestamps) >= g.maxActionsPerMinute {
		logger.Warn("Rate limit exceeded: %d actions in last minute (max: %d)",
			len(g.timestamps), g.maxActionsPerMinute)
		return true
	}

	g.timestamps = append(g.timestamps, now)
	return false
}

// CheckTimeout reports whether an action that started at startTime has
// exceeded the timeout for its type. The check is after-the-fact: it flags
// slow actions, it does not prevent them.
func (g *Guard) CheckTimeout(actionType string, startTime time.Time) bool {
	timeout := g.Timeout(actionType)
	elapsed := time.Since(startTime)
	if elapsed > timeout {
		logger.Warn("Action timeout detected: %s exceeded %v (elapsed: %v)",
			actionType, timeout, elapsed.Round(100*time.Millisecond))
		return true
	}
	return false
}

// Timeout returns the configured timeout for the action type.
func (g *Guard) Timeout(actionType string) time.Duration {
	g.timeoutsMu.RLock()
	defer g.timeoutsMu.RUnlock()
	if timeout, ok := g.timeouts[actionType]; ok {
		return timeout
	}
	return DefaultTimeout
}

// SetTimeout overrides the timeout for an action type.
func (g *Guard) SetTimeout(actionType string, timeout time.Duration) {
	g.timeoutsMu.Lock()
	defer g.timeoutsMu.Unlock()
	g.timeouts[actionType] = timeout
	logger.Info("Set timeout for %s: %v", actionType, timeout)
}

// ValidateAction performs structural validation of an action's parameters:
// required fields per type, and screen-bounds checks for pointer
// coordinates. It has no side effects.
func (g *Guard) ValidateAction(action types.ActionSpec) (bool, string) {
	if action.Type == "" {
		return false, "missing 'type' field"
	}

	switch action.Type {
	case "click", "move_to", "drag_to":
		x, okX := action.Param("x")
		y, okY := action.Param("y")
		if !okX || !okY {
			return false, fmt.Sprintf("%s missing coordinates", action.Type)
		}
		xi := action.ParamInt("x", -1)
		yi := action.ParamInt("y", -1)
		if !g.checkBounds(xi, yi) {
			return false, fmt.Sprintf("coordinates (%v, %v) out of bounds (screen: %dx%d)",
				x, y, g.screenWidth, g.screenHeight)
		}

	case "type_text", "browser_type", "browser_fill":
		if _, ok := action.Param("text"); !ok {
			return false, fmt.Sprintf("%s missing 'text' parameter", action.Type)
		}

	case "press_key", "browser_press_key":
		if action.ParamString("key", "") == "" {
			return false, fmt.Sprintf("%s missing 'key' parameter", action.Type)
		}

	case "hotkey":
		keys, ok := action.Param("keys")
		if !ok {
			return false, "hotkey missing 'keys' parameter"
		}
		list, isList := keys.([]any)
		if !isList || len(list) == 0 {
			return false, "hotkey has invalid 'keys' parameter"
		}

	case "browser_navigate":
		if action.ParamString("url", "") == "" {
			return false, "browser_navigate missing 'url' parameter"
		}

	case "file_copy", "file_move":
		if action.ParamString("source", "") == "" || action.ParamString("destination", "") == "" {
			return false, fmt.Sprintf("%s missing file paths", action.Type)
		}
	}

	// Selector-driven browser actions need a non-empty selector. browser_type
	// and browser_fill fall through here after the text check above.
	switch action.Type {
	case "browser_click", "browser_type", "browser_fill", "browser_select",
		"browser_check", "browser_uncheck", "browser_get_text", "browser_wait_for":
		if action.ParamString("selector", "") == "" {
			return false, fmt.Sprintf("%s missing 'selector' parameter", action.Type)
		}
	}

	switch action.Type {
	case "excel_write_cell", "excel_read_cell", "excel_insert_formula":
		if action.ParamString("cell", "") == "" {
			return false, fmt.Sprintf("%s missing 'cell' parameter", action.Type)
		}
	}

	return true, ""
}

func (g *Guard) checkBounds(x, y int) bool {
	return x >= 0 && x < g.screenWidth && y >= 0 && y < g.screenHeight
}

// Stats describes the guard's current state.
type Stats struct {
	EmergencyStop       bool `json:"emergency_stop_active"`
	MaxActionsPerMinute int  `json:"max_actions_per_minute"`
	ActionsInLastMinute int  `json:"actions_in_last_minute"`
	ScreenWidth         int  `json:"screen_width"`
	ScreenHeight        int  `json:"screen_height"`
	ConfiguredTimeouts  int  `json:"configured_timeouts"`
}

// Stats returns a snapshot of the guard state.
func (g *Guard) Stats() Stats {
	g.rateMu.Lock()
	inWindow := 0
	cutoff := time.Now().Add(-rateWindow)
	for _, ts := range g.timestamps {
		if ts.After(cutoff) {
			inWindow++
		}
	}
	g.rateMu.Unlock()

	g.timeoutsMu.RLock()
	timeouts := len(g.timeouts)
	g.timeoutsMu.RUnlock()

	return Stats{
		EmergencyStop:       g.emergencyStop.Load(),
		MaxActionsPerMinute: g.maxActionsPerMinute,
		ActionsInLastMinute: inWindow,
		ScreenWidth:         g.screenWidth,
		ScreenHeight:        g.screenHeight,
		ConfiguredTimeouts:  timeouts,
	}
}
