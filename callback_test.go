package aurorapulse

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
	"github.com/jpalmerr/aurorapulse/internal/device"
)

// runTwoReadings runs a session that uploads two readings and then fails
// on a bad device response.
func runTwoReadings(t *testing.T, up *fakeUploader, clk *clock.FakeClock, opts ...Option) *Service {
	t.Helper()
	conn := &fakeConn{
		readings: []Reading{
			{CumulativeEnergyWh: 500, InstantVoltage: 228.5},
			{CumulativeEnergyWh: 512, InstantVoltage: 229.0},
		},
		exhausted: errors.New("checksum mismatch"),
	}
	policy, err := NewPollPolicy(time.Minute, 3, 3*time.Minute)
	if err != nil {
		t.Fatalf("NewPollPolicy() error = %v", err)
	}
	opts = append([]Option{WithPollPolicy(policy)}, opts...)
	svc := newTestService(t, clk, &fakeDialer{clk: clk, conns: []device.Conn{conn}}, up, opts...)
	_ = waitRun(t, runAsync(context.Background(), svc))
	return svc
}

func TestWithReadingCallback_ReceivesCorrectFields(t *testing.T) {
	clk := clock.Fake(june(10, 12, 0, 0))
	up := newFakeUploader(clk)
	up.statuses = []int{503}

	var (
		mu     sync.Mutex
		events []ReadingEvent
	)
	svc := runTwoReadings(t, up, clk, WithReadingCallback(func(ev ReadingEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first, second := events[0], events[1]
	if first.Reading.CumulativeEnergyWh != 500 || first.Reading.InstantVoltage != 228.5 {
		t.Errorf("first Reading = %+v", first.Reading)
	}
	if first.StatusCode != 503 || first.Accepted {
		t.Errorf("first StatusCode = %d, Accepted = %v, want 503 and false", first.StatusCode, first.Accepted)
	}
	if second.StatusCode != 200 || !second.Accepted {
		t.Errorf("second StatusCode = %d, Accepted = %v, want 200 and true", second.StatusCode, second.Accepted)
	}
	if first.SessionID == "" || first.SessionID != second.SessionID {
		t.Errorf("SessionIDs = %q, %q, want equal and non-empty", first.SessionID, second.SessionID)
	}
	if first.SessionID != svc.store.Get().SessionID {
		t.Errorf("SessionID = %q, want %q from status", first.SessionID, svc.store.Get().SessionID)
	}
	if !first.At.Equal(june(10, 12, 0, 0)) {
		t.Errorf("At = %v", first.At)
	}
	if first.Latency != 20*time.Millisecond {
		t.Errorf("Latency = %v, want 20ms", first.Latency)
	}
}

func TestWithReadingCallback_PanicRecovery(t *testing.T) {
	var normalCalls atomic.Int32

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	clk := clock.Fake(june(10, 12, 0, 0))
	runTwoReadings(t, newFakeUploader(clk), clk,
		WithReadingCallback(func(ReadingEvent) { panic("intentional test panic") }),
		WithReadingCallback(func(ReadingEvent) { normalCalls.Add(1) }),
		WithLogger(logger),
	)

	if got := normalCalls.Load(); got != 2 {
		t.Errorf("subsequent callback ran %d times, want 2", got)
	}
	if !strings.Contains(logBuf.String(), "reading callback panicked") {
		t.Error("panic should have been logged")
	}
}

func TestWithReadingCallback_NilIsSafe(t *testing.T) {
	if _, err := New(append(validOptions(), WithReadingCallback(nil))...); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}

func TestWithReadingCallback_ExecutionOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
	)
	record := func(n int) func(ReadingEvent) {
		return func(ReadingEvent) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, n)
		}
	}

	clk := clock.Fake(june(10, 12, 0, 0))
	runTwoReadings(t, newFakeUploader(clk), clk,
		WithReadingCallback(record(1)),
		WithReadingCallback(record(2)),
		WithReadingCallback(record(3)),
	)

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 3, 1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRun_StatusPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	clk := clock.Fake(june(10, 12, 0, 0))
	dialer := &fakeDialer{clk: clk}
	svc := newTestService(t, clk, dialer, newFakeUploader(clk), WithStatusPort(port))

	err = waitRun(t, runAsync(context.Background(), svc))
	if err == nil || !strings.Contains(err.Error(), "failed to start status server") {
		t.Errorf("Run() error = %v, want status server failure", err)
	}
	if n := len(dialer.dialTimes()); n != 0 {
		t.Errorf("dials = %d, want 0", n)
	}
}
