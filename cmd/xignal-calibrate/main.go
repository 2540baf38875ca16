// Package main provides the xignal-calibrate CLI: offline weight calibration,
// evaluation, single-text inference and embedding ingestion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/config"
	logpkg "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "xignal-calibrate",
	Short: "Offline tooling for the xignal entity ranker",
	Long: "xignal-calibrate searches the scoring weights that maximise Hit@K on a labelled " +
		"validation set, evaluates weight artifacts, explains single rankings and loads entity embeddings.",
	SilenceUsage: true,
}

var (
	rootEnv        string
	rootConfigPath string
	rootLogLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootEnv, "env", "", "Config environment (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVarP(&rootConfigPath, "config", "c", "", "Path to a config file (overrides --env)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from --config, --env or $ENV.
func loadConfig() (config.Config, string, error) {
	env := rootEnv
	if env == "" {
		env = config.GetEnv()
	}
	var (
		cfg config.Config
		err error
	)
	if rootConfigPath != "" {
		cfg, err = config.LoadFile(rootConfigPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	if rootLogLevel != "" {
		cfg.Logging.Level = rootLogLevel
	}
	return cfg, env, nil
}

// setup loads config and builds the logger. The returned context is
// cancelled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, config.Config, *zap.Logger, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return nil, nil, config.Config{}, nil, err
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx = logpkg.ContextWithLogger(ctx, logger)
	return ctx, cancel, cfg, logger, nil
}
