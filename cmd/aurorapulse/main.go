// Package main is the entry point for the aurorapulse daemon.
//
// Usage:
//
//	aurorapulse run -c config.yaml      # Poll the inverter forever
//	aurorapulse validate -c config.yaml # Validate configuration
//	aurorapulse sun -c config.yaml      # Show today's daylight window
//	aurorapulse version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "aurorapulse",
	Short: "Daylight-aware PV inverter poller",
	Long: `aurorapulse polls a photovoltaic inverter while the sun is up and
uploads daily energy and input voltage to PVOutput.

Quick start:
  1. Create a config file (aurorapulse.yaml)
  2. Run: aurorapulse validate -c aurorapulse.yaml
  3. Run: aurorapulse run -c aurorapulse.yaml

Example config:
  device:
    address: 192.168.1.40:8899
    bus_address: 2
  pvoutput:
    system_id: ${PVOUTPUT_SYSTEM_ID}
    api_key: ${PVOUTPUT_API_KEY}
  location:
    latitude: 51.5
    longitude: -0.12`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this aurorapulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aurorapulse %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
}

// newLogger creates a JSON logger on stderr at the named level.
func newLogger(levelName string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelName))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", levelName)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}
