// Package host runs aurorapulse from a configuration file.
//
// It is shared by the cobra daemon and by programs that embed the poller
// and only want a single blocking call with an error result.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/google/uuid"

	"github.com/jpalmerr/aurorapulse"
	"github.com/jpalmerr/aurorapulse/config"
	"github.com/jpalmerr/aurorapulse/internal/mqtt"
)

// Run builds a service from cfg and runs it until ctx ends or a session
// fails fatally. extra options are applied last.
//
// When an MQTT broker is configured, every uploaded reading is mirrored to
// it. The broker connection is established in the background and never
// delays polling.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...aurorapulse.Option) error {
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, aurorapulse.WithLogger(logger))

	pub, err := config.BuildPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build mqtt publisher: %w", err)
	}
	if pub != nil {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := pub.Connect(ctx); err != nil {
				logger.Debug("mqtt connect abandoned", "error", err)
			}
		}()
		defer pub.Close()
		opts = append(opts, aurorapulse.WithReadingCallback(mirror(pub)))
	}

	svc, err := aurorapulse.New(append(opts, extra...)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return svc.Run(ctx)
}

// mirror publishes each reading event.
func mirror(pub *mqtt.Publisher) func(aurorapulse.ReadingEvent) {
	return func(ev aurorapulse.ReadingEvent) {
		pub.Publish(mqtt.Message{
			SessionID:  ev.SessionID,
			EnergyWh:   ev.Reading.CumulativeEnergyWh,
			VoltageV:   ev.Reading.InstantVoltage,
			StatusCode: ev.StatusCode,
			Timestamp:  ev.At,
		})
	}
}

// RunService loads the configuration at configPath and runs the poller
// until SIGINT or SIGTERM, or until a session fails fatally.
//
// It never panics: a panic anywhere in the poller is logged with a
// correlation id and returned as an error.
func RunService(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunServiceContext(ctx, configPath, slog.Default())
}

// RunServiceContext is [RunService] with a caller-controlled lifetime and
// logger.
func RunServiceContext(ctx context.Context, configPath string, logger *slog.Logger, extra ...aurorapulse.Option) (err error) {
	defer func() {
		if r := recover(); r != nil {
			id := uuid.NewString()
			logger.Error("aurorapulse panicked",
				"panic", r,
				"correlation_id", id,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("aurorapulse panicked (correlation id %s): %v", id, r)
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return Run(ctx, cfg, logger, extra...)
}
