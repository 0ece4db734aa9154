package aurorapulse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/store"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedSun rises at 06:00 and sets at 20:00 UTC every day.
func fixedSun(date time.Time, _ Location) (time.Time, time.Time) {
	y, m, d := date.In(time.UTC).Date()
	return time.Date(y, m, d, 6, 0, 0, 0, time.UTC), time.Date(y, m, d, 20, 0, 0, 0, time.UTC)
}

func june(day, hour, minute, sec int) time.Time {
	return time.Date(2026, 6, day, hour, minute, sec, 0, time.UTC)
}

// fakeConn answers energy and voltage requests from a list of readings.
// Once the list is exhausted it returns exhausted, or blocks until the
// call context ends when exhausted is nil.
type fakeConn struct {
	mu        sync.Mutex
	readings  []Reading
	next      int
	exhausted error
	closed    bool
}

func (c *fakeConn) Call(ctx context.Context, _ device.Address, req device.Request) (device.Response, error) {
	c.mu.Lock()
	if c.next >= len(c.readings) {
		err := c.exhausted
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		<-ctx.Done()
		return nil, context.Cause(ctx)
	}
	defer c.mu.Unlock()

	r := c.readings[c.next]
	switch req.(type) {
	case device.CumulativeEnergyRequest:
		return device.CumulativeEnergyResponse{Value: r.CumulativeEnergyWh}, nil
	case device.MeasureRequest:
		c.next++
		return device.MeasureResponse{Value: r.InstantVoltage}, nil
	}
	return nil, errors.New("unexpected request")
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out conns in order, then fails every further dial.
type fakeDialer struct {
	mu      sync.Mutex
	clk     clock.Clock
	conns   []device.Conn
	dialErr error
	dials   []time.Time
}

func (d *fakeDialer) Dial(context.Context) (device.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, d.clk.Now())
	if len(d.conns) == 0 {
		if d.dialErr != nil {
			return nil, d.dialErr
		}
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

type uploaded struct {
	reading Reading
	at      time.Time
}

// fakeUploader records uploads at fake-clock time. statuses are returned
// in order, then 200.
type fakeUploader struct {
	mu       sync.Mutex
	clk      clock.Clock
	statuses []int
	err      error
	ch       chan uploaded
}

func newFakeUploader(clk clock.Clock) *fakeUploader {
	return &fakeUploader{clk: clk, ch: make(chan uploaded, 64)}
}

func (u *fakeUploader) Upload(_ context.Context, r device.Reading) (upload.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return upload.Result{}, u.err
	}
	status := 200
	if len(u.statuses) > 0 {
		status = u.statuses[0]
		u.statuses = u.statuses[1:]
	}
	u.ch <- uploaded{reading: r, at: u.clk.Now()}
	return upload.Result{StatusCode: status, Latency: 20 * time.Millisecond}, nil
}

func (u *fakeUploader) next(t *testing.T) uploaded {
	t.Helper()
	select {
	case up := <-u.ch:
		return up
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upload")
		return uploaded{}
	}
}

func (u *fakeUploader) expectNone(t *testing.T) {
	t.Helper()
	select {
	case up := <-u.ch:
		t.Fatalf("unexpected upload of %v at %v", up.reading, up.at)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestService(t *testing.T, clk clock.Clock, d Dialer, u Uploader, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithDevice(d, 2),
		WithUploader(u),
		WithLocation(Location{Latitude: 51.5, Longitude: -0.12}),
		WithSunTimes(fixedSun),
		WithTimeZone(time.UTC),
		WithLogger(testLogger()),
		withClock(clk),
	}
	svc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func testPolicy(t *testing.T) PollPolicy {
	t.Helper()
	p, err := NewPollPolicy(5*time.Second, 2, 15*time.Second)
	if err != nil {
		t.Fatalf("NewPollPolicy() error = %v", err)
	}
	return p
}

func runAsync(ctx context.Context, svc *Service) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func waitState(t *testing.T, svc *Service, want store.State) store.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := svc.store.Get(); snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never became %q, last %q", want, svc.store.Get().State)
	return store.Snapshot{}
}
