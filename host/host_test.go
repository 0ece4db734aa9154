package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/aurorapulse"
	"github.com/jpalmerr/aurorapulse/config"
	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/device/aurora"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// allDay puts the whole UTC day inside the daylight window.
func allDay(date time.Time, _ aurorapulse.Location) (time.Time, time.Time) {
	y, m, d := date.In(time.UTC).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Nanosecond)
}

// startInverter serves simulated Aurora frames on a loopback listener.
func startInverter(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
	})

	var energy atomic.Uint32
	energy.Store(1000)
	respond := func(_ device.Address, req device.Request) (device.Response, error) {
		switch req.(type) {
		case device.CumulativeEnergyRequest:
			return device.CumulativeEnergyResponse{Value: energy.Add(5)}, nil
		case device.MeasureRequest:
			return device.MeasureResponse{Value: 231.5}, nil
		}
		return nil, fmt.Errorf("unsupported request %T", req)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { _ = aurora.Serve(ctx, conn, respond) }()
		}
	}()
	return ln.Addr().String()
}

type pvoutputRecorder struct {
	mu    sync.Mutex
	forms []map[string]string
	got   chan struct{}
}

func startPVOutput(t *testing.T) (*httptest.Server, *pvoutputRecorder) {
	t.Helper()
	rec := &pvoutputRecorder{got: make(chan struct{}, 64)}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Pvoutput-Apikey") != "secret" || r.Header.Get("X-Pvoutput-SystemId") != "42" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		rec.mu.Lock()
		rec.forms = append(rec.forms, form)
		rec.mu.Unlock()
		rec.got <- struct{}{}
		_, _ = w.Write([]byte("OK 200: Added Status"))
	}))
	t.Cleanup(ts.Close)
	return ts, rec
}

func writeConfig(t *testing.T, inverter, pvoutputURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
device:
  address: %s
  bus_address: 2
  request_timeout: 2s
poll:
  interval: 1h
  timeout_multiplier: 2
  warmup_passes: 2
pvoutput:
  url: %s
  system_id: "42"
  api_key: secret
location:
  latitude: 51.5
  longitude: -0.12
  timezone: UTC
`, inverter, pvoutputURL)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunServiceContext_UploadsFromSimulatedInverter(t *testing.T) {
	ts, rec := startPVOutput(t)
	path := writeConfig(t, startInverter(t), ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- RunServiceContext(ctx, path, testLogger(), aurorapulse.WithSunTimes(allDay))
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-rec.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("upload %d never arrived", i+1)
		}
	}
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("RunServiceContext() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunServiceContext() did not return after cancel")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.forms[0]["v1"] != "1005" || rec.forms[1]["v1"] != "1010" {
		t.Errorf("energy fields = %q, %q, want 1005, 1010", rec.forms[0]["v1"], rec.forms[1]["v1"])
	}
	if rec.forms[0]["v6"] != "231.5" {
		t.Errorf("voltage field = %q, want 231.5", rec.forms[0]["v6"])
	}
	if len(rec.forms[0]["d"]) != 8 || len(rec.forms[0]["t"]) != 5 {
		t.Errorf("date/time fields = %q %q", rec.forms[0]["d"], rec.forms[0]["t"])
	}
}

func TestRunServiceContext_RefusedDeviceIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ts, _ := startPVOutput(t)
	path := writeConfig(t, addr, ts.URL)

	err = RunServiceContext(context.Background(), path, testLogger(), aurorapulse.WithSunTimes(allDay))
	var se *aurorapulse.SessionError
	if !errors.As(err, &se) {
		t.Fatalf("RunServiceContext() error = %v, want *SessionError", err)
	}
	if se.Outcome != aurorapulse.OutcomeConnectionLost {
		t.Errorf("Outcome = %v, want %v", se.Outcome, aurorapulse.OutcomeConnectionLost)
	}
}

func TestRunServiceContext_MissingConfig(t *testing.T) {
	err := RunServiceContext(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), testLogger())
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("RunServiceContext() error = %v, want load failure", err)
	}
}

func TestRunServiceContext_PanicBecomesError(t *testing.T) {
	ts, _ := startPVOutput(t)
	path := writeConfig(t, "127.0.0.1:1", ts.URL)

	boom := func(time.Time, aurorapulse.Location) (time.Time, time.Time) {
		panic("solar calculator exploded")
	}

	err := RunServiceContext(context.Background(), path, testLogger(), aurorapulse.WithSunTimes(boom))
	if err == nil {
		t.Fatal("RunServiceContext() error = nil, want panic error")
	}
	if !strings.Contains(err.Error(), "solar calculator exploded") || !strings.Contains(err.Error(), "correlation id") {
		t.Errorf("error = %v, want panic value and correlation id", err)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	cfg := &config.Config{}
	if err := Run(context.Background(), cfg, testLogger()); err == nil {
		t.Error("Run() with an unvalidated empty config expected error, got nil")
	}
}
