package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/aurorapulse/config"
)

// validateCmd validates a config file without starting the poller.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an aurorapulse configuration file without polling.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  aurorapulse validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mqtt := "disabled"
	if cfg.MQTT.Enabled() {
		mqtt = cfg.MQTT.Broker + " (" + cfg.MQTT.Topic + ")"
	}
	status := "disabled"
	if cfg.Status.Port > 0 {
		status = fmt.Sprintf("port %d", cfg.Status.Port)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Device:        %s %s (bus address %d)\n", cfg.Device.Driver, cfg.Device.Address, cfg.Device.BusAddress)
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval.Duration())
	fmt.Printf("  Timeout:       %s\n", cfg.Poll.Timeout())
	fmt.Printf("  Warm-up:       %d passes\n", cfg.Poll.Warmup())
	fmt.Printf("  Location:      %g, %g (%s)\n", cfg.Location.Latitude, cfg.Location.Longitude, cfg.Location.Zone())
	fmt.Printf("  Status API:    %s\n", status)
	fmt.Printf("  MQTT:          %s\n", mqtt)

	return nil
}
