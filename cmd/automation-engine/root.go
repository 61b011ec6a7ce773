package main

import (
	"github.com/spf13/cobra"

	"argus/automation-engine/internal/config"
	"argus/automation-engine/pkg/logger"
)

// Version is the current version number.
const Version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "automation-engine",
	Short: "Workflow automation execution engine",
	Long: `automation-engine executes recorded automation workflows with safety
checks, screenshot-based verification and a feedback loop that learns
per-workflow confidence and suggests adjustments.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration and applies the log level.
// The --log-level flag wins over the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevelFromString(level)
	return cfg, nil
}
