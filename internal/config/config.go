package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Marker and lock file names inside the models directory
const (
	BackupSuffix       = ".backup"
	LockFileName       = ".switch.lock"
	LastSelectedMarker = ".last_selected"
	PreviousMarker     = ".previous_model"
)

// Config holds all application configuration
type Config struct {
	Models    ModelsConfig    `mapstructure:"models"`
	Container ContainerConfig `mapstructure:"container"`
	Health    HealthConfig    `mapstructure:"health"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ModelsConfig holds the model directory layout
type ModelsConfig struct {
	Dir            string `mapstructure:"dir" validate:"required"`
	ActiveLinkName string `mapstructure:"active_link_name" validate:"required"`
}

// ActiveLinkPath is the absolute path of the indirection symlink
func (m ModelsConfig) ActiveLinkPath() string {
	return filepath.Join(m.Dir, m.ActiveLinkName)
}

// BackupPath is the absolute path of the rollback snapshot symlink
func (m ModelsConfig) BackupPath() string {
	return m.ActiveLinkPath() + BackupSuffix
}

// LockPath is the absolute path of the exclusivity lock file
func (m ModelsConfig) LockPath() string {
	return filepath.Join(m.Dir, LockFileName)
}

// ContainerConfig holds the dependent container settings
type ContainerConfig struct {
	Name         string `mapstructure:"name" validate:"required"`
	LogTailLines int    `mapstructure:"log_tail_lines" validate:"gte=1"`
}

// HealthConfig holds the health polling settings
type HealthConfig struct {
	URL                string        `mapstructure:"url" validate:"required,url"`
	WaitBudget         time.Duration `mapstructure:"wait_budget" validate:"gt=0"`
	PollInterval       time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RollbackWaitBudget time.Duration `mapstructure:"rollback_wait_budget" validate:"gt=0"`
}

// MetricsConfig holds the textfile metrics export settings.
// An empty file path disables the export.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration primarily from environment variables
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from .env file if it exists
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Model directory defaults
	v.SetDefault("models.dir", "/opt/llama/models")
	v.SetDefault("models.active_link_name", "current.gguf")

	// Container defaults
	v.SetDefault("container.name", "llama-server")
	v.SetDefault("container.log_tail_lines", 50)

	// Health polling defaults
	v.SetDefault("health.url", "http://localhost:8080/health")
	v.SetDefault("health.wait_budget", 2*time.Minute)
	v.SetDefault("health.poll_interval", 5*time.Second)
	v.SetDefault("health.request_timeout", 3*time.Second)
	v.SetDefault("health.rollback_wait_budget", time.Minute)

	// Metrics export disabled unless a textfile path is given
	v.SetDefault("metrics.file", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("models.dir", "MODELS_DIR")
	bindEnv("models.active_link_name", "ACTIVE_LINK_NAME")

	bindEnv("container.name", "CONTAINER_NAME")
	bindEnv("container.log_tail_lines", "LOG_TAIL_LINES")

	bindEnv("health.url", "HEALTH_URL")
	bindEnv("health.wait_budget", "HEALTH_WAIT_BUDGET")
	bindEnv("health.poll_interval", "HEALTH_POLL_INTERVAL")
	bindEnv("health.request_timeout", "HEALTH_REQUEST_TIMEOUT")
	bindEnv("health.rollback_wait_budget", "ROLLBACK_WAIT_BUDGET")

	bindEnv("metrics.file", "METRICS_FILE")

	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			fe := invalid[0]
			return fmt.Errorf("invalid configuration: %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Health.PollInterval > c.Health.WaitBudget {
		return fmt.Errorf("health.poll_interval (%s) must not exceed health.wait_budget (%s)",
			c.Health.PollInterval, c.Health.WaitBudget)
	}

	return nil
}
