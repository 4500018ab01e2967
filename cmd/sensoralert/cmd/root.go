package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/sensoralert/internal/app"
	"github.com/hamed0406/sensoralert/internal/config"
	"github.com/hamed0406/sensoralert/internal/logging"
)

var (
	// configPath to an optional YAML file; environment variables override it.
	configPath string
	// addr overrides the listen address from config.
	addr string

	rootCmd = &cobra.Command{
		Use:   "sensoralert",
		Short: "Sample sensors, raise threshold alerts and push them to live subscribers.",
		Long: `Runs the sampling loop, the HTTP API and the live alert stream.

Settings come from defaults, then the optional YAML file, then environment
variables (ADDR, STORE, DATABASE_URL, SAMPLE_INTERVAL_MS, ...).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("startup_failed", zap.Error(err))
				return err
			}
			defer a.Close()

			return a.Run(ctx)
		},
	}
)

// Execute runs the service and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sensoralert:", err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config (e.g. :8080)")
}
