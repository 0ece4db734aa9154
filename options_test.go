package aurorapulse

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
)

func validOptions() []Option {
	clk := clock.Fake(june(10, 12, 0, 0))
	return []Option{
		WithDevice(&fakeDialer{clk: clk}, 2),
		WithUploader(newFakeUploader(clk)),
		WithLocation(Location{Latitude: 51.5, Longitude: -0.12}),
	}
}

func TestNew_Valid(t *testing.T) {
	svc, err := New(validOptions()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if svc.policy != defaultPollPolicy() {
		t.Errorf("policy = %+v, want default %+v", svc.policy, defaultPollPolicy())
	}
	if svc.address != 2 {
		t.Errorf("address = %d, want 2", svc.address)
	}
	if svc.timeZone != time.Local {
		t.Errorf("timeZone = %v, want Local", svc.timeZone)
	}
	if svc.statusPort != 0 {
		t.Errorf("statusPort = %d, want 0 (disabled)", svc.statusPort)
	}
	if svc.logger == nil {
		t.Error("logger is nil, want slog.Default()")
	}
}

func TestNew_MissingRequired(t *testing.T) {
	clk := clock.Fake(june(10, 12, 0, 0))
	dev := WithDevice(&fakeDialer{clk: clk}, 2)
	up := WithUploader(newFakeUploader(clk))
	loc := WithLocation(Location{Latitude: 51.5})

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no device", []Option{up, loc}, "device"},
		{"no uploader", []Option{dev, loc}, "uploader"},
		{"no location", []Option{dev, up}, "location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("New() error = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil dialer", WithDevice(nil, 2)},
		{"nil uploader", WithUploader(nil)},
		{"latitude too high", WithLocation(Location{Latitude: 91})},
		{"longitude too low", WithLocation(Location{Longitude: -181})},
		{"nil sun times", WithSunTimes(nil)},
		{"nil time zone", WithTimeZone(nil)},
		{"port zero", WithStatusPort(0)},
		{"port too high", WithStatusPort(65536)},
		{"nil logger", WithLogger(nil)},
		{"timeout not above interval", WithPollPolicy(PollPolicy{MinInterval: time.Minute, Timeout: time.Minute})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(append(validOptions(), tt.opt)...); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestNewPollPolicy(t *testing.T) {
	tests := []struct {
		name        string
		minInterval time.Duration
		warmup      int
		timeout     time.Duration
		wantErr     bool
	}{
		{"valid", 5 * time.Minute, 2, 15 * time.Minute, false},
		{"no warm-up", time.Second, 0, 2 * time.Second, false},
		{"zero interval", 0, 2, time.Minute, true},
		{"negative interval", -time.Second, 2, time.Minute, true},
		{"negative warm-up", time.Second, -1, time.Minute, true},
		{"timeout equals interval", time.Minute, 2, time.Minute, true},
		{"timeout below interval", time.Minute, 2, time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPollPolicy(tt.minInterval, tt.warmup, tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPollPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (p.MinInterval != tt.minInterval || p.WarmupPasses != tt.warmup || p.Timeout != tt.timeout) {
				t.Errorf("NewPollPolicy() = %+v", p)
			}
		})
	}
}

func TestPollPolicyFromMultiplier(t *testing.T) {
	p, err := PollPolicyFromMultiplier(5*time.Second, 2, 3)
	if err != nil {
		t.Fatalf("PollPolicyFromMultiplier() error = %v", err)
	}
	if p.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", p.Timeout)
	}

	if _, err := PollPolicyFromMultiplier(5*time.Second, 2, 1); err == nil {
		t.Error("multiplier 1 accepted, want error")
	}
}

func TestWithLogger_UsedByRun(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	clk := clock.Fake(june(10, 22, 0, 0))
	svc, err := New(append(validOptions(),
		WithLogger(logger),
		WithSunTimes(fixedSun),
		WithTimeZone(time.UTC),
		withClock(clk),
	)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, svc)
	clk.WaitForTimers(1)
	cancel()
	_ = waitRun(t, errc)

	out := buf.String()
	for _, want := range []string{"aurorapulse starting", "is daytime", "daytime=false", "sleeping until sunrise"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
