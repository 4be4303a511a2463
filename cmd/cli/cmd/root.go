package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/model-switcher/model-switcher/internal/config"
	"github.com/model-switcher/model-switcher/internal/logging"
)

var (
	cfgFile       string
	outputFormat  string
	modelsDir     string
	containerName string
	healthURL     string
	waitBudget    time.Duration
	pollInterval  time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "modelswitch",
	Short: "modelswitch - hot-swap the active model of a local inference server",
	Long: `modelswitch manages which quantized model a locally hosted llama.cpp
style inference container serves.

It lists the model artifacts in a directory, atomically repoints the
active-model symlink, restarts the dependent container, and waits for
the health endpoint to confirm the new model loaded - rolling back to
the previous model automatically when it does not.

Configuration comes from environment variables (MODELS_DIR,
CONTAINER_NAME, HEALTH_URL, HEALTH_WAIT_BUDGET, ...); flags override.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models-dir", "", "Model artifact directory (default from MODELS_DIR)")
	rootCmd.PersistentFlags().StringVar(&containerName, "container", "", "Dependent container name (default from CONTAINER_NAME)")
	rootCmd.PersistentFlags().StringVar(&healthURL, "health-url", "", "Health endpoint URL (default from HEALTH_URL)")
	rootCmd.PersistentFlags().DurationVar(&waitBudget, "wait-budget", 0, "Total health-poll wait budget (default from HEALTH_WAIT_BUDGET)")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 0, "Interval between health probes (default from HEALTH_POLL_INTERVAL)")
}

// loadConfig builds the effective configuration: env and optional file
// first, then flag overrides, then validation and logger setup.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("models-dir") {
		cfg.Models.Dir = modelsDir
	}
	if cmd.Flags().Changed("container") {
		cfg.Container.Name = containerName
	}
	if cmd.Flags().Changed("health-url") {
		cfg.Health.URL = healthURL
	}
	if cmd.Flags().Changed("wait-budget") {
		cfg.Health.WaitBudget = waitBudget
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.Health.PollInterval = pollInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	return cfg, nil
}
