package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/aurorapulse/config"
	"github.com/jpalmerr/aurorapulse/internal/daylight"
)

// sunCmd prints today's daylight window for the configured location.
var sunCmd = &cobra.Command{
	Use:   "sun",
	Short: "Show today's daylight window",
	Long: `Show today's sunrise and sunset for the configured location, whether
the poller would be active now, and how long it would sleep otherwise.

Example:
  aurorapulse sun -c config.yaml`,
	RunE: runSun,
}

func init() {
	rootCmd.AddCommand(sunCmd)

	sunCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = sunCmd.MarkFlagRequired("config")
}

func runSun(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printSun(time.Now().In(cfg.Location.Zone()), daylight.Location{
		Latitude:  cfg.Location.Latitude,
		Longitude: cfg.Location.Longitude,
		Elevation: cfg.Location.Elevation,
	}, daylight.NOAA)
	return nil
}

func printSun(now time.Time, loc daylight.Location, sun daylight.SunTimes) {
	w := daylight.Today(now, loc, sun)

	fmt.Printf("Now:     %s\n", now.Format(time.RFC3339))
	if !w.Valid() {
		fmt.Printf("Sunrise: none today\n")
		fmt.Printf("Sunset:  none today\n")
	} else {
		fmt.Printf("Sunrise: %s\n", w.Start.Format(time.RFC3339))
		fmt.Printf("Sunset:  %s\n", w.End.Format(time.RFC3339))
	}
	fmt.Printf("Daytime: %t\n", w.Contains(now))
	if sleep := daylight.UntilSunrise(now, loc, sun); sleep > 0 {
		fmt.Printf("Sleep:   %s (until %s)\n", sleep.Round(time.Second), now.Add(sleep).Format(time.RFC3339))
	}
}
