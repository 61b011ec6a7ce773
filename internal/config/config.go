// Package config loads engine configuration from defaults, a YAML file and
// environment variable overrides, in that precedence order.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for the automation engine.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Engine       EngineConfig       `yaml:"engine"`
	Safety       SafetyConfig       `yaml:"safety"`
	Verification VerificationConfig `yaml:"verification"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"AE_SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"AE_SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"AE_SERVER_WRITE_TIMEOUT"`
	EnableCORS   bool          `yaml:"enable_cors" env:"AE_SERVER_ENABLE_CORS"`
}

// EngineConfig holds execution engine configuration.
type EngineConfig struct {
	QueueSize int `yaml:"queue_size" env:"AE_ENGINE_QUEUE_SIZE"`
}

// SafetyConfig holds safety guard configuration.
type SafetyConfig struct {
	MaxActionsPerMinute int                      `yaml:"max_actions_per_minute" env:"AE_SAFETY_MAX_ACTIONS_PER_MINUTE"`
	ScreenWidth         int                      `yaml:"screen_width" env:"AE_SAFETY_SCREEN_WIDTH"`
	ScreenHeight        int                      `yaml:"screen_height" env:"AE_SAFETY_SCREEN_HEIGHT"`
	TimeoutOverrides    map[string]time.Duration `yaml:"timeout_overrides"`
}

// VerificationConfig holds the verifier's configuration.
type VerificationConfig struct {
	Enabled       bool   `yaml:"enabled" env:"AE_VERIFICATION_ENABLED"`
	ScreenshotDir string `yaml:"screenshot_dir" env:"AE_VERIFICATION_SCREENSHOT_DIR"`
	DiffThreshold int    `yaml:"diff_threshold" env:"AE_VERIFICATION_DIFF_THRESHOLD"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"AE_LOG_LEVEL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   false,
		},
		Engine: EngineConfig{
			QueueSize: 100,
		},
		Safety: SafetyConfig{
			MaxActionsPerMinute: 60,
			ScreenWidth:         1920,
			ScreenHeight:        1080,
		},
		Verification: VerificationConfig{
			Enabled:       true,
			ScreenshotDir: "screenshots",
			DiffThreshold: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive, got %d", c.Engine.QueueSize)
	}
	if c.Safety.MaxActionsPerMinute <= 0 {
		return fmt.Errorf("safety.max_actions_per_minute must be positive, got %d", c.Safety.MaxActionsPerMinute)
	}
	if c.Safety.ScreenWidth <= 0 || c.Safety.ScreenHeight <= 0 {
		return fmt.Errorf("safety screen bounds must be positive, got %dx%d",
			c.Safety.ScreenWidth, c.Safety.ScreenHeight)
	}
	for actionType, timeout := range c.Safety.TimeoutOverrides {
		if timeout <= 0 {
			return fmt.Errorf("safety.timeout_overrides[%s] must be positive, got %v", actionType, timeout)
		}
	}
	if c.Verification.Enabled && c.Verification.ScreenshotDir == "" {
		return fmt.Errorf("verification.screenshot_dir must not be empty when verification is enabled")
	}
	if c.Verification.DiffThreshold < 0 || c.Verification.DiffThreshold > 255 {
		return fmt.Errorf("verification.diff_threshold must be in [0,255], got %d", c.Verification.DiffThreshold)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	return nil
}

// applyEnvToStruct recursively applies `env`-tagged environment variables to
// struct fields.
func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("invalid value for %s: %w", envTag, err)
		}
	}
	return nil
}

// setFieldValue sets a reflect.Value from its string form.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}
