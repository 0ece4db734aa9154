package aurorapulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/aurorapulse/internal/clock"
	"github.com/jpalmerr/aurorapulse/internal/daylight"
	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/server"
	"github.com/jpalmerr/aurorapulse/internal/store"
	"github.com/jpalmerr/aurorapulse/internal/stream"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

var errSunset = errors.New("sunset reached")

// Service polls an inverter while the sun is up and uploads each reading.
//
// Service is created with [New] and driven by [Service.Run]. Each daylight
// period is served by one or more sessions; a session opens a device
// connection, paces readings through a rate limiter and a liveness
// timeout, and uploads them in order. Between sunset and sunrise the
// service sleeps.
//
//	svc, err := aurorapulse.New(
//	    aurorapulse.WithDevice(aurorapulse.AuroraDialer("192.168.1.40:8899"), 2),
//	    aurorapulse.WithUploader(aurorapulse.PVOutputUploader("", creds, nil)),
//	    aurorapulse.WithLocation(aurorapulse.Location{Latitude: 51.5, Longitude: -0.12}),
//	)
//	if err != nil {
//	    return err
//	}
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	return svc.Run(ctx)
type Service struct {
	dialer           Dialer
	address          DeviceAddress
	uploader         Uploader
	policy           PollPolicy
	location         Location
	sunTimes         SunTimes
	timeZone         *time.Location
	stopAtSunset     bool
	statusPort       int
	clk              clock.Clock
	logger           *slog.Logger
	readingCallbacks []func(ReadingEvent)

	store *store.MemoryStore

	// mismatches accumulated by finished sessions. Owned by the Run
	// goroutine.
	mismatches uint64
}

// New creates a [Service] with the given options.
//
// [WithDevice], [WithUploader] and [WithLocation] are required. Other
// options have defaults:
//   - Poll policy: 5 minute interval, 2 warm-up passes, 15 minute timeout
//   - Sun times: NOAA solar calculator
//   - Time zone: time.Local
//   - Status API: disabled
func New(opts ...Option) (*Service, error) {
	cfg := &svcConfig{
		policy:   defaultPollPolicy(),
		sunTimes: daylight.NOAA,
		timeZone: time.Local,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.dialer == nil {
		return nil, errors.New("a device is required")
	}
	if cfg.uploader == nil {
		return nil, errors.New("an uploader is required")
	}
	if !cfg.locationSet {
		return nil, errors.New("a location is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.clk
	if clk == nil {
		clk = clock.Real()
	}

	s := &Service{
		dialer:           cfg.dialer,
		address:          cfg.address,
		uploader:         cfg.uploader,
		policy:           cfg.policy,
		location:         cfg.location,
		sunTimes:         cfg.sunTimes,
		timeZone:         cfg.timeZone,
		stopAtSunset:     cfg.stopAtSunset,
		statusPort:       cfg.statusPort,
		clk:              clk,
		logger:           logger,
		readingCallbacks: cfg.readingCallbacks,
		store:            store.NewMemoryStore(),
	}
	s.store.Update(func(snap *store.Snapshot) {
		snap.State = store.StateStarting
		snap.UpdatedAt = s.now()
	})
	return s, nil
}

// Run alternates between polling sessions during daylight and sleeping
// until the next sunrise.
//
// Run blocks until ctx is cancelled, returning nil, or until a session
// ends with a fatal outcome, returning a [*SessionError]. Sessions that
// end because the bridge closed the connection are restarted at once.
// Returns an error if the status server fails to start.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("aurorapulse starting",
		"device_address", s.address,
		"min_interval", s.policy.MinInterval.String(),
		"warmup_passes", s.policy.WarmupPasses,
		"timeout", s.policy.Timeout.String(),
		"latitude", s.location.Latitude,
		"longitude", s.location.Longitude,
	)

	if ctx.Err() != nil {
		return nil
	}

	if s.statusPort > 0 {
		srv := server.NewServer(s.store, s.statusPort, s.logger)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	defer s.store.Update(func(snap *store.Snapshot) {
		snap.State = store.StateStopped
		snap.NextWake = nil
		snap.UpdatedAt = s.now()
	})

	for {
		if ctx.Err() != nil {
			s.logger.Info("aurorapulse stopped")
			return nil
		}

		now := s.now()
		window := daylight.Today(now, s.location, s.sunTimes)
		daytime := window.Contains(now)
		s.logger.Info("is daytime", "daytime", daytime, "sunrise", window.Start, "sunset", window.End)

		if daytime {
			err := s.runSession(ctx, window)
			if ctx.Err() != nil {
				continue
			}
			if IsRecoverable(err) {
				if err != nil {
					s.logger.Warn("device connection closed by peer, reconnecting", "error", err)
				}
				continue
			}
			s.logger.Error("session failed", "error", err)
			s.store.Update(func(snap *store.Snapshot) {
				msg := err.Error()
				snap.LastError = &msg
				snap.UpdatedAt = s.now()
			})
			return err
		}

		sleep := daylight.UntilSunrise(now, s.location, s.sunTimes)
		wake := now.Add(sleep)
		s.store.Update(func(snap *store.Snapshot) {
			snap.State = store.StateSleeping
			snap.Sunrise = window.Start
			snap.Sunset = window.End
			snap.NextWake = &wake
			snap.UpdatedAt = now
		})
		s.logger.Info("sleeping until sunrise", "sleep", sleep.String(), "wake_at", wake)

		// a cancelled sleep is handled at the top of the loop
		_ = clock.Sleep(ctx, s.clk, sleep)
	}
}

// runSession polls the device until the session ends. It returns nil for
// a completed session and a [*SessionError] otherwise.
func (s *Service) runSession(ctx context.Context, window daylight.Window) error {
	id := uuid.NewString()
	logger := s.logger.With("session_id", id)

	s.store.Update(func(snap *store.Snapshot) {
		snap.State = store.StateActive
		snap.SessionID = id
		snap.Sessions++
		snap.Sunrise = window.Start
		snap.Sunset = window.End
		snap.NextWake = nil
		snap.UpdatedAt = s.now()
	})

	sessionCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if s.stopAtSunset {
		t := s.clk.AfterFunc(window.End.Sub(s.now()), func() { cancel(errSunset) })
		defer t.Stop()
	}

	// end turns a session stopped at sunset into a completion
	end := func(err *SessionError) error {
		if errors.Is(context.Cause(sessionCtx), errSunset) && ctx.Err() == nil {
			logger.Info("sunset reached, session ended")
			return nil
		}
		return err
	}

	conn, err := s.dialer.Dial(sessionCtx)
	if err != nil {
		return end(&SessionError{Outcome: OutcomeConnectionLost, SessionID: id, Err: err})
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("device connection close failed", "error", err)
		}
	}()
	logger.Info("connected", "device_address", s.address)

	paired := device.NewPairedSource(conn, s.address, logger)
	limited := stream.RateLimit[Reading](paired, s.policy.MinInterval, s.policy.WarmupPasses, s.clk)
	guarded := stream.Timeout[Reading](limited, s.policy.Timeout, s.clk)
	sink := upload.NewSink(s.uploader, logger, s.observer(id, paired))

	err = sink.Consume(sessionCtx, guarded)
	s.mismatches += paired.Mismatches()
	total := s.mismatches
	s.store.Update(func(snap *store.Snapshot) {
		snap.Mismatches = total
		snap.UpdatedAt = s.now()
	})

	if err == nil {
		logger.Info("session completed")
		return nil
	}
	return end(classify(id, err))
}

// observer records every completed upload in the status store and fans it
// out to the reading callbacks.
func (s *Service) observer(sessionID string, paired *device.PairedSource) upload.Observer {
	return func(r device.Reading, res upload.Result) {
		at := s.now()
		s.store.Update(func(snap *store.Snapshot) {
			snap.Readings++
			if res.OK() {
				snap.Uploads++
			} else {
				snap.RejectedUploads++
			}
			snap.Mismatches = s.mismatches + paired.Mismatches()
			snap.LastReading = &store.Reading{
				EnergyWh: r.CumulativeEnergyWh,
				VoltageV: r.InstantVoltage,
				At:       at,
			}
			snap.LastUpload = &store.Upload{
				StatusCode: res.StatusCode,
				LatencyMs:  res.Latency.Milliseconds(),
				At:         at,
			}
			snap.UpdatedAt = at
		})

		if len(s.readingCallbacks) == 0 {
			return
		}
		ev := ReadingEvent{
			SessionID:  sessionID,
			Reading:    r,
			StatusCode: res.StatusCode,
			Accepted:   res.OK(),
			Latency:    res.Latency,
			At:         at,
		}
		for _, cb := range s.readingCallbacks {
			invokeCallbackSafe(cb, ev, s.logger)
		}
	}
}

func (s *Service) now() time.Time {
	return s.clk.Now().In(s.timeZone)
}

// invokeCallbackSafe calls a reading callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(ReadingEvent), ev ReadingEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reading callback panicked",
				"panic", r,
				"session_id", ev.SessionID,
			)
		}
	}()
	cb(ev)
}
