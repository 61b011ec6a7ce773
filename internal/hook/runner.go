package hook

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

// DefaultTimeout bounds one hook script run.
const DefaultTimeout = 10 * time.Second

// Runner executes workflow hooks. Scripts run in a fresh JavaScript VM per
// invocation with a read-only context object and a log function.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a hook Runner with the default timeout.
func NewRunner() *Runner {
	return &Runner{timeout: DefaultTimeout}
}

// RunPreHook executes the workflow's pre-hook if defined. A non-nil error
// means the workflow must not run.
func (r *Runner) RunPreHook(ctx context.Context, workflow *types.Workflow, executionID string) (*Result, error) {
	if workflow.PreHook == nil {
		return nil, nil
	}
	result := r.run(ctx, workflow.PreHook, TypePre, map[string]any{
		"workflow_id":   workflow.ID,
		"workflow_name": workflow.Name,
		"execution_id":  executionID,
	})
	if result.Error != nil {
		return result, fmt.Errorf("workflow pre-hook failed: %w", result.Error)
	}
	return result, nil
}

// RunPostHook executes the workflow's post-hook if defined. Always invoked
// on terminal executions; errors are returned for logging but never change
// the execution outcome.
func (r *Runner) RunPostHook(ctx context.Context, workflow *types.Workflow, executionID string, execErr error) (*Result, error) {
	if workflow.PostHook == nil {
		return nil, nil
	}
	vars := map[string]any{
		"workflow_id":   workflow.ID,
		"workflow_name": workflow.Name,
		"execution_id":  executionID,
	}
	if execErr != nil {
		vars["execution_error"] = execErr.Error()
	}
	result := r.run(ctx, workflow.PostHook, TypePost, vars)
	return result, result.Error
}

func (r *Runner) run(ctx context.Context, h *types.Hook, hookType Type, vars map[string]any) *Result {
	result := &Result{Type: hookType, StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	// Only script hooks are supported; an empty type defaults to script.
	if h.Type != "" && h.Type != "script" {
		result.Error = NewError(hookType, "unsupported hook type", fmt.Errorf("%q", h.Type))
		return result
	}
	script, _ := h.Config["script"].(string)
	if script == "" {
		result.Error = NewError(hookType, "missing script", fmt.Errorf("hook config has no 'script' entry"))
		return result
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if err := vm.Set("context", vars); err != nil {
		result.Error = NewError(hookType, "failed to prepare VM", err)
		return result
	}
	_ = vm.Set("log", func(msg string) {
		logger.Info("[%s hook] %s", hookType, msg)
	})

	done := make(chan struct{})
	defer close(done)
	timer := time.AfterFunc(r.timeout, func() {
		vm.Interrupt("hook timeout")
	})
	defer timer.Stop()
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("execution cancelled")
		case <-done:
		}
	}()

	value, err := vm.RunString(script)
	if err != nil {
		result.Error = NewError(hookType, "script failed", err)
		return result
	}
	if value != nil {
		result.Output = value.Export()
		// A script returning exactly false signals failure.
		if b, ok := result.Output.(bool); ok && !b {
			result.Error = NewError(hookType, "script returned false", nil)
		}
	}
	return result
}
