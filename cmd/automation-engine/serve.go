package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"argus/automation-engine/api/rest"
	"argus/automation-engine/internal/backend"
	"argus/automation-engine/internal/engine"
	"argus/automation-engine/internal/feedback"
	"argus/automation-engine/internal/safety"
	"argus/automation-engine/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its REST API",
	Long: `Starts the execution engine and the REST API server. Action backends are
registered in code by the embedding deployment; without any, actions fall
back to the logging dry-run handler.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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
		QueueSize: cfg.Engine.QueueSize,
	})
	if err != nil {
		return err
	}

	server := rest.NewServer(eng, &rest.Config{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		EnableCORS:   cfg.Server.EnableCORS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := eng.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("REST API listening on %s", cfg.Server.Address)
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down REST API")
		return server.Shutdown()
	})

	return g.Wait()
}
