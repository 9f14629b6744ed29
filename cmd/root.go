package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/config"
	"github.com/kartoza/price-gateway/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "pricegw",
	Short:         "Property price inference gateway",
	Long:          "pricegw serves property price predictions from a persisted regression model over HTTP and the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (default ./.env)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: json or console (overrides LOG_FORMAT)")
	rootCmd.PersistentFlags().String("model", "", "Path to the model artifact (overrides MODEL_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration from defaults, the .env file, the
// environment and finally command-line flags, in increasing priority.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	var envFiles []string
	if f, _ := flags.GetString("env-file"); f != "" {
		envFiles = append(envFiles, f)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}

	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	overrideString(cmd, "model", &cfg.ModelPath)
	overrideString(cmd, "history-driver", &cfg.HistoryDriver)
	overrideString(cmd, "history-dsn", &cfg.HistoryDSN)
	overrideString(cmd, "log-level", &cfg.LogLevel)
	overrideString(cmd, "log-format", &cfg.LogFormat)
	cfg.Version = version

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}
