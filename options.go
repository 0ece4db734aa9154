package aurorapulse

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
)

// svcConfig holds mutable state during Service construction.
type svcConfig struct {
	dialer           Dialer
	address          DeviceAddress
	uploader         Uploader
	policy           PollPolicy
	location         Location
	locationSet      bool
	sunTimes         SunTimes
	timeZone         *time.Location
	stopAtSunset     bool
	statusPort       int
	clk              clock.Clock
	logger           *slog.Logger
	readingCallbacks []func(ReadingEvent)
}

// Option is a function that configures a [Service] during construction.
//
// Options return an error if validation fails.
//
// Built-in options: [WithDevice], [WithUploader], [WithPollPolicy],
// [WithLocation], [WithSunTimes], [WithTimeZone], [WithStopAtSunset],
// [WithStatusPort], [WithLogger], [WithReadingCallback].
type Option func(*svcConfig) error

// WithDevice sets how the inverter is reached and the bus address it
// answers on. Required.
//
// Example:
//
//	svc, err := aurorapulse.New(
//	    aurorapulse.WithDevice(aurorapulse.AuroraDialer("192.168.1.40:8899"), 2),
//	    aurorapulse.WithUploader(uploader),
//	)
func WithDevice(d Dialer, addr DeviceAddress) Option {
	return func(cfg *svcConfig) error {
		if d == nil {
			return errors.New("device dialer cannot be nil")
		}
		cfg.dialer = d
		cfg.address = addr
		return nil
	}
}

// WithUploader sets where readings are shipped. Required.
func WithUploader(u Uploader) Option {
	return func(cfg *svcConfig) error {
		if u == nil {
			return errors.New("uploader cannot be nil")
		}
		cfg.uploader = u
		return nil
	}
}

// WithPollPolicy sets the session pacing.
//
// Defaults to a 5 minute interval, 2 warm-up passes and a 15 minute
// timeout. Returns an error if the policy is invalid.
func WithPollPolicy(p PollPolicy) Option {
	return func(cfg *svcConfig) error {
		if err := p.Validate(); err != nil {
			return err
		}
		cfg.policy = p
		return nil
	}
}

// WithLocation sets the site used to compute sunrise and sunset. Required.
//
// Returns an error if latitude or longitude are out of range.
func WithLocation(loc Location) Option {
	return func(cfg *svcConfig) error {
		if loc.Latitude < -90 || loc.Latitude > 90 {
			return errors.New("latitude must be between -90 and 90")
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			return errors.New("longitude must be between -180 and 180")
		}
		cfg.location = loc
		cfg.locationSet = true
		return nil
	}
}

// WithSunTimes replaces the solar calculator. Defaults to the NOAA
// algorithm.
func WithSunTimes(fn SunTimes) Option {
	return func(cfg *svcConfig) error {
		if fn == nil {
			return errors.New("sun times function cannot be nil")
		}
		cfg.sunTimes = fn
		return nil
	}
}

// WithTimeZone sets the zone whose calendar date selects the daylight
// window. Defaults to [time.Local].
func WithTimeZone(tz *time.Location) Option {
	return func(cfg *svcConfig) error {
		if tz == nil {
			return errors.New("time zone cannot be nil")
		}
		cfg.timeZone = tz
		return nil
	}
}

// WithStopAtSunset ends each session at sunset instead of waiting for the
// inverter to go quiet. The scheduler then sleeps until the next sunrise.
func WithStopAtSunset() Option {
	return func(cfg *svcConfig) error {
		cfg.stopAtSunset = true
		return nil
	}
}

// WithStatusPort serves the JSON status API and SSE stream on port.
// Disabled by default.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithStatusPort(port int) Option {
	return func(cfg *svcConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.statusPort = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *svcConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithReadingCallback registers a function called after every completed
// upload, accepted or not.
//
// Callbacks run synchronously on the session goroutine and must not
// block; they delay the next poll otherwise. Panics are recovered and
// logged. Nil callbacks are ignored.
//
// Example:
//
//	svc, err := aurorapulse.New(
//	    // ...
//	    aurorapulse.WithReadingCallback(func(ev aurorapulse.ReadingEvent) {
//	        if !ev.Accepted {
//	            log.Printf("upload rejected: %d", ev.StatusCode)
//	        }
//	    }),
//	)
func WithReadingCallback(cb func(ReadingEvent)) Option {
	return func(cfg *svcConfig) error {
		if cb == nil {
			return nil
		}
		cfg.readingCallbacks = append(cfg.readingCallbacks, cb)
		return nil
	}
}

// withClock swaps the time source. Tests only.
func withClock(clk clock.Clock) Option {
	return func(cfg *svcConfig) error {
		cfg.clk = clk
		return nil
	}
}
