package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"argus/automation-engine/internal/backend"
	"argus/automation-engine/internal/engine"
	"argus/automation-engine/internal/feedback"
	"argus/automation-engine/internal/parser"
	"argus/automation-engine/internal/safety"
	"argus/automation-engine/pkg/logger"
	"argus/automation-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Execute a workflow file once in dry-run mode",
	Long: `Executes a workflow file (JSON or YAML) once. Actions are dispatched to
a logging dry-run backend; screenshot verification is skipped because no
capture source is attached in this mode.`,
	Example: `  automation-engine run workflow.yaml
  automation-engine run --log-level debug exported/login.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workflow, err := parser.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	registry := backend.NewRegistry()
	registry.SetFallback(backend.LoggingHandler(logger.Info))

	eng, err := engine.New(engine.Config{
		Guard: safety.NewGuard(safety.Options{
			MaxActionsPerMinute: cfg.Safety.MaxActionsPerMinute,
			ScreenWidth:         cfg.Safety.ScreenWidth,
			ScreenHeight:        cfg.Safety.ScreenHeight,
			TimeoutOverrides:    cfg.Safety.TimeoutOverrides,
		}),
		Feedback:  feedback.NewManager(nil),
		Backend:   registry,
		QueueSize: 1,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execution, err := eng.QueueExecution(workflow)
	if err != nil {
		return fmt.Errorf("failed to queue workflow: %w", err)
	}

	go func() {
		_ = eng.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		status, err := eng.Status(execution.ID)
		if err != nil {
			return err
		}
		if status.State.Terminal() {
			printExecutionSummary(status)
			if status.State != types.StateCompleted {
				return fmt.Errorf("execution %s: %s", status.State, status.ErrorMessage)
			}
			return nil
		}
	}
}

func printExecutionSummary(execution *types.WorkflowExecution) {
	fmt.Printf("\nExecution %s\n", execution.ID)
	fmt.Printf("  workflow: %s\n", execution.WorkflowID)
	fmt.Printf("  state:    %s\n", execution.State)
	fmt.Printf("  steps:    %d/%d\n", execution.CurrentStep, execution.TotalSteps)
	if !execution.StartTime.IsZero() && !execution.EndTime.IsZero() {
		fmt.Printf("  duration: %v\n", execution.EndTime.Sub(execution.StartTime).Round(time.Millisecond))
	}
	if execution.ErrorMessage != "" {
		fmt.Printf("  error:    %s\n", execution.ErrorMessage)
	}
}
