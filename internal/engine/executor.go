// Package engine contains the automation executor: a single-worker engine
// that pops queued workflow executions, drives each action through the
// safety, dispatch and verification pipeline, and closes the loop with
// post-run feedback analysis.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"argus/automation-engine/internal/backend"
	"argus/automation-engine/internal/feedback"
	"argus/automation-engine/internal/hook"
	"argus/automation-engine/internal/safety"
	"argus/automation-engine/internal/verify"
	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

const (
	// defaultQueueSize bounds the number of pending executions.
	defaultQueueSize = 100

	// rateLimitDelay is slept when the rate limiter rejects an action; the
	// action then proceeds.
	rateLimitDelay = 1 * time.Second

	// settleDelay is slept between dispatching an action and capturing the
	// after-frame, letting the UI settle.
	settleDelay = 300 * time.Millisecond

	// interActionDelay is slept between consecutive actions.
	interActionDelay = 500 * time.Millisecond

	// pausePoll is the wait granularity while an execution is paused.
	pausePoll = 100 * time.Millisecond
)

// ConfidenceStore persists per-workflow confidence after feedback analysis.
// Write-through only; failures are logged and never fatal to an execution.
type ConfidenceStore interface {
	UpdateWorkflowConfidence(workflowID string, confidence float64) error
}

// Config wires an Executor's collaborators. Backend is required; Verifier,
// ConfidenceStore and EventSink are optional.
type Config struct {
	Guard    *safety.Guard
	Verifier *verify.Verifier
	Feedback *feedback.Manager
	Backend  backend.Backend
	Hooks    *hook.Runner

	ConfidenceStore ConfidenceStore
	EventSink       types.EventSink

	QueueSize int
}

// Executor is the workflow automation engine. One background loop consumes
// the queue; at most one execution runs at a time, so execution state is
// mutated only by the loop.
type Executor struct {
	guard    *safety.Guard
	verifier *verify.Verifier
	feedback *feedback.Manager
	backend  backend.Backend
	hooks    *hook.Runner
	store    ConfidenceStore
	sink     types.EventSink

	queue chan *types.WorkflowExecution

	mu         sync.Mutex
	executions map[string]*types.WorkflowExecution
	cancelled  map[string]bool
	paused     map[string]bool
	currentID  string

	histMu     sync.Mutex
	histograms map[string]*hdrhistogram.Histogram
}

// New creates an Executor from the config. Missing optional collaborators
// get inert defaults.
func New(cfg Config) (*Executor, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("engine requires a backend")
	}
	if cfg.Guard == nil {
		cfg.Guard = safety.NewGuard(safety.DefaultOptions())
	}
	if cfg.Feedback == nil {
		cfg.Feedback = feedback.NewManager(nil)
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hook.NewRunner()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &Executor{
		guard:      cfg.Guard,
		verifier:   cfg.Verifier,
		feedback:   cfg.Feedback,
		backend:    cfg.Backend,
		hooks:      cfg.Hooks,
		store:      cfg.ConfidenceStore,
		sink:       cfg.EventSink,
		queue:      make(chan *types.WorkflowExecution, cfg.QueueSize),
		executions: make(map[string]*types.WorkflowExecution),
		cancelled:  make(map[string]bool),
		paused:     make(map[string]bool),
		histograms: make(map[string]*hdrhistogram.Histogram),
	}, nil
}

// Guard exposes the safety guard.
func (e *Executor) Guard() *safety.Guard { return e.guard }

// Feedback exposes the feedback manager.
func (e *Executor) Feedback() *feedback.Manager { return e.feedback }

// QueueExecution validates the workflow, creates a pending execution and
// queues it. Fails when the workflow is structurally invalid or the queue is
// full.
func (e *Executor) QueueExecution(workflow *types.Workflow) (*types.WorkflowExecution, error) {
	if err := workflow.Validate(); err != nil {
		return nil, NewExecutionError(ErrCodeValidation, "", "workflow rejected", err)
	}

	execution := types.NewWorkflowExecution(workflow)

	e.mu.Lock()
	e.executions[execution.ID] = execution
	e.mu.Unlock()

	select {
	case e.queue <- execution:
	default:
		e.mu.Lock()
		delete(e.executions, execution.ID)
		e.mu.Unlock()
		return nil, NewExecutionError(ErrCodeQueue, execution.ID,
			fmt.Sprintf("execution queue is full (%d pending)", cap(e.queue)), nil)
	}

	logger.Info("Queued execution %s for workflow %s (%d actions)",
		execution.ID, workflow.ID, len(workflow.Actions))
	e.publish(types.EventExecutionQueued, execution.ID, e.snapshot(execution))
	return e.snapshot(execution), nil
}

// Run drives the queue until ctx is cancelled. Blocking; callers run it in
// its own goroutine.
func (e *Executor) Run(ctx context.Context) error {
	logger.Info("Automation engine started (queue capacity %d)", cap(e.queue))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Automation engine stopping: %v", ctx.Err())
			return ctx.Err()
		case execution := <-e.queue:
			if e.consumeCancelled(execution) {
				continue
			}
			e.runExecution(ctx, execution)
		}
	}
}

// consumeCancelled discards executions cancelled while still queued.
func (e *Executor) consumeCancelled(execution *types.WorkflowExecution) bool {
	e.mu.Lock()
	wasCancelled := e.cancelled[execution.ID]
	if wasCancelled {
		delete(e.cancelled, execution.ID)
	}
	e.mu.Unlock()
	if wasCancelled {
		logger.Info("Discarding cancelled execution %s", execution.ID)
	}
	return wasCancelled
}

// runExecution drives one execution through to a terminal state and the
// post-run feedback pass.
func (e *Executor) runExecution(ctx context.Context, execution *types.WorkflowExecution) {
	e.mu.Lock()
	e.currentID = execution.ID
	execution.State = types.StateRunning
	execution.StartTime = time.Now()
	e.mu.Unlock()

	logger.Info("Starting execution %s (workflow %s)", execution.ID, execution.WorkflowID)
	e.publish(types.EventExecutionStarted, execution.ID, e.snapshot(execution))

	runErr := e.runActions(ctx, execution)

	e.mu.Lock()
	execution.EndTime = time.Now()
	switch {
	case runErr == nil:
		execution.State = types.StateCompleted
		execution.Progress = 1.0
		execution.CurrentStep = execution.TotalSteps
	case execution.State != types.StateCancelled:
		execution.State = types.StateFailed
		execution.ErrorMessage = runErr.Error()
	}
	state := execution.State
	e.currentID = ""
	delete(e.cancelled, execution.ID)
	delete(e.paused, execution.ID)
	e.mu.Unlock()

	if _, err := e.hooks.RunPostHook(ctx, execution.Workflow, execution.ID, runErr); err != nil {
		logger.Warn("Post-hook failed for execution %s: %v", execution.ID, err)
	}

	switch state {
	case types.StateCompleted:
		logger.Info("Execution %s completed", execution.ID)
		e.publish(types.EventExecutionCompleted, execution.ID, e.snapshot(execution))
	case types.StateFailed:
		logger.Error("Execution %s failed: %v", execution.ID, runErr)
		e.publish(types.EventExecutionFailed, execution.ID, e.snapshot(execution))
	case types.StateCancelled:
		logger.Info("Execution %s cancelled", execution.ID)
		e.publish(types.EventExecutionCancelled, execution.ID, e.snapshot(execution))
	}

	if state == types.StateCompleted || state == types.StateFailed {
		e.finalize(execution)
	}
}

// runActions walks the workflow's actions through the per-action pipeline.
// A nil return means every action ran; the caller decides the terminal
// state. When the execution was cancelled the state is already set. Every
// action attempt appends exactly one log entry carrying its final status.
func (e *Executor) runActions(ctx context.Context, execution *types.WorkflowExecution) error {
	if _, err := e.hooks.RunPreHook(ctx, execution.Workflow, execution.ID); err != nil {
		return NewExecutionError(ErrCodeBackend, execution.ID, "pre-hook failed", err)
	}

	for i, action := range execution.Workflow.Actions {
		if stop := e.checkBoundary(ctx, execution, i); stop != nil {
			return stop
		}

		if e.guard.CheckRateLimit() {
			logger.Warn("Rate limit hit, pausing %v before step %d", rateLimitDelay, i)
			sleepCtx(ctx, rateLimitDelay)
		}

		if ok, reason := e.guard.ValidateAction(action); !ok {
			e.appendLog(execution, i, action.Type, types.LogStatusFailed, reason, nil)
			return NewValidationError(execution.ID, i, reason)
		}

		e.mu.Lock()
		execution.CurrentStep = i
		execution.Progress = float64(i) / float64(execution.TotalSteps)
		e.mu.Unlock()
		e.publish(types.EventExecutionProgress, execution.ID, map[string]any{
			"execution_id": execution.ID,
			"current_step": i,
			"total_steps":  execution.TotalSteps,
			"action_type":  action.Type,
		})

		var beforeKey string
		if e.verifier != nil {
			key, err := e.verifier.CaptureBefore(action)
			if err != nil {
				logger.Warn("Before-capture failed for step %d: %v", i, err)
			} else {
				beforeKey = key
			}
		}

		start := time.Now()
		success, err := e.backend.Dispatch(ctx, action.Type, action.Params)
		e.recordLatency(action.Type, time.Since(start))
		if err != nil {
			e.appendLog(execution, i, action.Type, types.LogStatusFailed, err.Error(), nil)
			return NewBackendError(execution.ID, i, action.Type, err)
		}
		if !success {
			e.appendLog(execution, i, action.Type, types.LogStatusFailed, "backend reported failure", nil)
			return NewBackendError(execution.ID, i, action.Type, fmt.Errorf("backend reported failure"))
		}

		logStatus := types.LogStatusCompleted
		logError := ""
		var logConfidence *float64
		if e.verifier != nil && beforeKey != "" {
			sleepCtx(ctx, settleDelay)
			afterKey, err := e.verifier.CaptureAfter(action)
			if err != nil {
				logger.Warn("After-capture failed for step %d: %v", i, err)
			} else {
				result := e.verifier.VerifyAction(action, beforeKey, afterKey)
				e.mu.Lock()
				execution.VerificationResults = append(execution.VerificationResults, result)
				e.mu.Unlock()
				logConfidence = &result.Confidence
				if !result.Success {
					// Failed verification is recorded, never fatal.
					logStatus = types.LogStatusVerificationFailed
					logError = result.ErrorMessage
				}
			}
		}

		if e.guard.CheckTimeout(action.Type, start) {
			e.appendLog(execution, i, action.Type, types.LogStatusTimeout, "", logConfidence)
			return NewTimeoutError(execution.ID, i, action.Type, e.guard.Timeout(action.Type))
		}

		e.appendLog(execution, i, action.Type, logStatus, logError, logConfidence)
		sleepCtx(ctx, interActionDelay)
	}
	return nil
}

// checkBoundary runs the action-boundary checks: emergency stop,
// cancellation and pause. Pause blocks here until resumed or overridden.
func (e *Executor) checkBoundary(ctx context.Context, execution *types.WorkflowExecution, step int) error {
	for {
		if e.guard.CheckEmergencyStop() {
			e.markCancelled(execution, step, "emergency stop")
			return NewExecutionError(ErrCodeSafety, execution.ID, "emergency stop triggered", nil)
		}

		e.mu.Lock()
		wantCancel := e.cancelled[execution.ID]
		wantPause := e.paused[execution.ID]
		e.mu.Unlock()

		if wantCancel {
			e.markCancelled(execution, step, "cancelled by request")
			return NewExecutionError(ErrCodeSafety, execution.ID, "execution cancelled", nil)
		}
		if !wantPause {
			e.mu.Lock()
			if execution.State == types.StatePaused {
				execution.State = types.StateRunning
				logger.Info("Execution %s resumed at step %d", execution.ID, step)
			}
			e.mu.Unlock()
			return nil
		}

		e.mu.Lock()
		if execution.State != types.StatePaused {
			execution.State = types.StatePaused
			logger.Info("Execution %s paused before step %d", execution.ID, step)
		}
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			e.markCancelled(execution, step, "engine stopping")
			return NewExecutionError(ErrCodeSafety, execution.ID, "engine stopped", ctx.Err())
		case <-time.After(pausePoll):
		}
	}
}

func (e *Executor) markCancelled(execution *types.WorkflowExecution, step int, reason string) {
	e.mu.Lock()
	execution.State = types.StateCancelled
	execution.ErrorMessage = reason
	e.mu.Unlock()
	e.appendLog(execution, step, "", types.LogStatusCancelled, reason, nil)
}

// finalize runs the feedback pass after a terminal execution: analysis,
// confidence write-through, and the adjusted workflow copy for a
// caller-initiated retry.
func (e *Executor) finalize(execution *types.WorkflowExecution) {
	e.mu.Lock()
	results := append([]*types.VerificationResult(nil), execution.VerificationResults...)
	e.mu.Unlock()

	analysis := e.feedback.AnalyzeExecution(execution, results)
	confidence := e.feedback.UpdateConfidence(execution.WorkflowID, analysis.OverallSuccess)

	if e.store != nil {
		if err := e.store.UpdateWorkflowConfidence(execution.WorkflowID, confidence); err != nil {
			logger.Warn("Failed to persist confidence for %s: %v", execution.WorkflowID, err)
		}
	}

	if len(analysis.SuggestedAdjustments) > 0 {
		adjusted := e.feedback.AdjustWorkflow(execution.Workflow, analysis)
		e.mu.Lock()
		execution.AdjustedWorkflow = adjusted
		e.mu.Unlock()
	}

	e.publish(types.EventFeedbackCompleted, execution.ID, analysis)
}

// CancelExecution cancels a queued or running execution. Queued executions
// are marked immediately and discarded when popped; the running execution
// observes the flag at its next action boundary.
func (e *Executor) CancelExecution(executionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, ok := e.executions[executionID]
	if !ok {
		return NewNotFoundError(executionID)
	}
	if execution.State.Terminal() {
		return NewExecutionError(ErrCodeState, executionID,
			fmt.Sprintf("execution already %s", execution.State), nil)
	}

	e.cancelled[executionID] = true
	if execution.State == types.StatePending {
		execution.State = types.StateCancelled
		execution.ErrorMessage = "cancelled while queued"
	}
	logger.Info("Cancellation requested for execution %s", executionID)
	return nil
}

// Pause requests a pause of the given execution; honored at the next action
// boundary.
func (e *Executor) Pause(executionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, ok := e.executions[executionID]
	if !ok {
		return NewNotFoundError(executionID)
	}
	if execution.State != types.StateRunning && execution.State != types.StatePending {
		return NewExecutionError(ErrCodeState, executionID,
			fmt.Sprintf("cannot pause execution in state %s", execution.State), nil)
	}
	e.paused[executionID] = true
	logger.Info("Pause requested for execution %s", executionID)
	return nil
}

// Resume clears a pause request.
func (e *Executor) Resume(executionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	execution, ok := e.executions[executionID]
	if !ok {
		return NewNotFoundError(executionID)
	}
	if !e.paused[executionID] {
		return NewExecutionError(ErrCodeState, executionID,
			fmt.Sprintf("execution is not paused (state %s)", execution.State), nil)
	}
	delete(e.paused, executionID)
	logger.Info("Resume requested for execution %s", executionID)
	return nil
}

// TriggerEmergencyStop sets the guard flag and drains the queue: the running
// execution aborts at its next boundary, queued executions are cancelled.
func (e *Executor) TriggerEmergencyStop() {
	e.guard.TriggerEmergencyStop()

	drained := 0
	for {
		select {
		case execution := <-e.queue:
			e.mu.Lock()
			execution.State = types.StateCancelled
			execution.ErrorMessage = "emergency stop"
			e.mu.Unlock()
			e.publish(types.EventExecutionCancelled, execution.ID, e.snapshot(execution))
			drained++
		default:
			if drained > 0 {
				logger.Warn("Emergency stop drained %d queued executions", drained)
			}
			return
		}
	}
}

// ResetEmergencyStop clears the guard flag so new executions can run.
func (e *Executor) ResetEmergencyStop() {
	e.guard.ResetEmergencyStop()
}

// Status returns a snapshot of the execution.
func (e *Executor) Status(executionID string) (*types.WorkflowExecution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	execution, ok := e.executions[executionID]
	if !ok {
		return nil, NewNotFoundError(executionID)
	}
	return execution.Snapshot(), nil
}

// Executions returns snapshots of all known executions.
func (e *Executor) Executions() []*types.WorkflowExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.WorkflowExecution, 0, len(e.executions))
	for _, execution := range e.executions {
		out = append(out, execution.Snapshot())
	}
	return out
}

func (e *Executor) snapshot(execution *types.WorkflowExecution) *types.WorkflowExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return execution.Snapshot()
}

func (e *Executor) appendLog(execution *types.WorkflowExecution, step int, actionType, status, errMsg string, confidence *float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	execution.ExecutionLog = append(execution.ExecutionLog, types.LogEntry{
		Timestamp:              time.Now(),
		Step:                   step,
		ActionType:             actionType,
		Status:                 status,
		Error:                  errMsg,
		VerificationConfidence: confidence,
	})
}

func (e *Executor) publish(eventType types.EventType, executionID string, data any) {
	if e.sink == nil {
		return
	}
	e.sink.Publish(types.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    executionID,
		Data:      data,
	})
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
