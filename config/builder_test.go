package config

import (
	"testing"
	"time"

	"github.com/jpalmerr/aurorapulse"
	"github.com/jpalmerr/aurorapulse/internal/device/aurora"
	"github.com/jpalmerr/aurorapulse/internal/device/modbus"
)

func mustParse(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBuildOptions_ConstructsService(t *testing.T) {
	cfg := mustParse(t, minimalYAML+"status:\n  port: 18181\npoll:\n  stop_at_sunset: true\n")

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := aurorapulse.New(opts...); err != nil {
		t.Fatalf("New() with built options error = %v", err)
	}
}

func TestBuildOptions_WarmupZero(t *testing.T) {
	cfg := mustParse(t, minimalYAML+"poll:\n  interval: 30s\n  warmup_passes: 0\n")

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := aurorapulse.New(opts...); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}

func TestBuildDialer(t *testing.T) {
	t.Run("aurora", func(t *testing.T) {
		cfg := mustParse(t, minimalYAML)
		d, err := buildDialer(cfg.Device)
		if err != nil {
			t.Fatalf("buildDialer() error = %v", err)
		}
		ad, ok := d.(aurora.Dialer)
		if !ok {
			t.Fatalf("buildDialer() = %T, want aurora.Dialer", d)
		}
		if ad.Address != "192.168.1.40:8899" {
			t.Errorf("Address = %q", ad.Address)
		}
		if ad.DialTimeout != 10*time.Second || ad.RequestTimeout != 5*time.Second {
			t.Errorf("timeouts = %v / %v, want 10s / 5s", ad.DialTimeout, ad.RequestTimeout)
		}
	})

	t.Run("modbus", func(t *testing.T) {
		cfg := mustParse(t, `
device:
  driver: modbus
  address: 10.0.0.5:502
  request_timeout: 2s
  modbus:
    energy_register: 100
    voltage_register: 102
    voltage_scale: 0.1
pvoutput:
  system_id: "1"
  api_key: k
location:
  latitude: 10
`)
		d, err := buildDialer(cfg.Device)
		if err != nil {
			t.Fatalf("buildDialer() error = %v", err)
		}
		md, ok := d.(modbus.Dialer)
		if !ok {
			t.Fatalf("buildDialer() = %T, want modbus.Dialer", d)
		}
		if md.Timeout != 2*time.Second {
			t.Errorf("Timeout = %v, want 2s", md.Timeout)
		}
		if md.Registers.EnergyRegister != 100 || md.Registers.VoltageRegister != 102 || md.Registers.VoltageScale != 0.1 {
			t.Errorf("Registers = %+v", md.Registers)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := buildDialer(DeviceConfig{Driver: "sunspec"}); err == nil {
			t.Error("buildDialer() expected error for unknown driver, got nil")
		}
	})
}

func TestBuildPublisher(t *testing.T) {
	pub, err := BuildPublisher(mustParse(t, minimalYAML), nil)
	if err != nil {
		t.Fatalf("BuildPublisher() error = %v", err)
	}
	if pub != nil {
		t.Error("BuildPublisher() returned a publisher without a broker")
	}

	pub, err = BuildPublisher(mustParse(t, minimalYAML+"mqtt:\n  broker: tcp://localhost:1883\n"), nil)
	if err != nil {
		t.Fatalf("BuildPublisher() error = %v", err)
	}
	if pub == nil {
		t.Error("BuildPublisher() = nil with a broker configured")
	}
}
