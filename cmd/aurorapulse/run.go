package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/aurorapulse/config"
	"github.com/jpalmerr/aurorapulse/host"
)

const (
	shutdownTimeout = 10 * time.Second
)

// runCmd starts the poller.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the inverter and upload readings",
	Long: `Run the aurorapulse poller.

The poller will:
  - Load configuration from the specified YAML file
  - Sleep until sunrise when started at night
  - Poll the inverter during daylight and upload every reading
  - Reconnect when the serial bridge closes the connection

Any other failure ends the process with a non-zero exit code; run it
under a supervisor such as systemd with Restart=always.

The poller runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  aurorapulse run -c config.yaml
  aurorapulse run --config /etc/aurorapulse/config.yaml --log-level debug`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(levelName)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"driver", cfg.Device.Driver,
		"device", cfg.Device.Address,
		"poll_interval", cfg.Poll.Interval.Duration().String(),
		"mqtt", cfg.MQTT.Enabled(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- host.Run(ctx, cfg, logger)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("poller stopped: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("poller stopped: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
