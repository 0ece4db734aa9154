package upload

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/stream"
)

// Uploader sends one reading. [*Client] is the production implementation.
type Uploader interface {
	Upload(ctx context.Context, r device.Reading) (Result, error)
}

// Observer is told about every completed upload, accepted or not.
// Observers run synchronously on the sink's goroutine and must not block.
type Observer func(r device.Reading, res Result)

// Sink drains a reading source into an [Uploader].
type Sink struct {
	uploader  Uploader
	logger    *slog.Logger
	observers []Observer
}

// NewSink creates a Sink. Nil observers are ignored.
func NewSink(uploader Uploader, logger *slog.Logger, observers ...Observer) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{uploader: uploader, logger: logger}
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
	return s
}

// Consume uploads every reading of src, in order, one at a time.
//
// It returns nil when src ends with [stream.ErrDone], the source's error
// when it fails, a [*TransportError] when an upload cannot be completed,
// and ctx.Err() when ctx is cancelled.
func (s *Sink) Consume(ctx context.Context, src stream.Source[device.Reading]) error {
	for {
		reading, err := src.Next(ctx)
		if errors.Is(err, stream.ErrDone) {
			return nil
		}
		if err != nil {
			return err
		}

		s.logger.Info("reading",
			"energy_wh", reading.CumulativeEnergyWh,
			"voltage_v", reading.InstantVoltage,
		)

		res, err := s.uploader.Upload(ctx, reading)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if !res.OK() {
			s.logger.Warn("upload rejected, continuing",
				"status_code", res.StatusCode,
				"body", string(res.Body),
				"energy_wh", reading.CumulativeEnergyWh,
			)
		} else {
			s.logger.Debug("upload accepted",
				"status_code", res.StatusCode,
				"latency_ms", res.Latency.Milliseconds(),
			)
		}

		for _, o := range s.observers {
			o(reading, res)
		}
	}
}
