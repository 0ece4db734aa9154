package config

import (
	"fmt"
	"log/slog"

	"github.com/jpalmerr/aurorapulse"
	"github.com/jpalmerr/aurorapulse/internal/device/aurora"
	"github.com/jpalmerr/aurorapulse/internal/device/modbus"
	"github.com/jpalmerr/aurorapulse/internal/mqtt"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

// BuildOptions converts parsed configuration into SDK options.
//
// Logging, callbacks and the MQTT mirror are left to the caller.
func BuildOptions(cfg *Config) ([]aurorapulse.Option, error) {
	dialer, err := buildDialer(cfg.Device)
	if err != nil {
		return nil, err
	}

	policy, err := aurorapulse.NewPollPolicy(cfg.Poll.Interval.Duration(), cfg.Poll.Warmup(), cfg.Poll.Timeout())
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}

	tz := cfg.Location.Zone()
	uploader := upload.NewClient(upload.ClientConfig{
		URL: cfg.PVOutput.URL,
		Credentials: upload.Credentials{
			SystemID: cfg.PVOutput.SystemID,
			APIKey:   cfg.PVOutput.APIKey,
		},
		Timeout:  cfg.PVOutput.Timeout.Duration(),
		Location: tz,
	})

	opts := []aurorapulse.Option{
		aurorapulse.WithDevice(dialer, aurorapulse.DeviceAddress(cfg.Device.BusAddress)),
		aurorapulse.WithUploader(uploader),
		aurorapulse.WithPollPolicy(policy),
		aurorapulse.WithLocation(aurorapulse.Location{
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
			Elevation: cfg.Location.Elevation,
		}),
		aurorapulse.WithTimeZone(tz),
	}
	if cfg.Poll.StopAtSunset {
		opts = append(opts, aurorapulse.WithStopAtSunset())
	}
	if cfg.Status.Port > 0 {
		opts = append(opts, aurorapulse.WithStatusPort(cfg.Status.Port))
	}
	return opts, nil
}

// buildDialer returns the device dialer for the configured driver.
func buildDialer(dc DeviceConfig) (aurorapulse.Dialer, error) {
	switch dc.Driver {
	case DriverAurora:
		return aurora.Dialer{
			Address:        dc.Address,
			DialTimeout:    dc.DialTimeout.Duration(),
			RequestTimeout: dc.RequestTimeout.Duration(),
		}, nil
	case DriverModbus:
		return modbus.Dialer{
			Address: dc.Address,
			Timeout: dc.RequestTimeout.Duration(),
			Registers: modbus.RegisterMap{
				EnergyRegister:  dc.Modbus.EnergyRegister,
				VoltageRegister: dc.Modbus.VoltageRegister,
				EnergyScale:     dc.Modbus.EnergyScale,
				VoltageScale:    dc.Modbus.VoltageScale,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown device driver %q", dc.Driver)
	}
}

// BuildPublisher returns the MQTT mirror, or nil when no broker is
// configured.
func BuildPublisher(cfg *Config, logger *slog.Logger) (*mqtt.Publisher, error) {
	if !cfg.MQTT.Enabled() {
		return nil, nil
	}
	return mqtt.New(mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      byte(cfg.MQTT.QoS),
	}, logger)
}
