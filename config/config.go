// Package config provides YAML configuration parsing for aurorapulse.
//
// This package enables running aurorapulse as a standalone daemon with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	device:
//	  driver: aurora
//	  address: 192.168.1.40:8899
//	  bus_address: 2
//
//	poll:
//	  interval: 5m
//	  timeout_multiplier: 3
//	  warmup_passes: 2
//
//	pvoutput:
//	  system_id: ${PVOUTPUT_SYSTEM_ID}
//	  api_key: ${PVOUTPUT_API_KEY}
//
//	location:
//	  latitude: 51.5
//	  longitude: -0.12
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Device drivers.
const (
	DriverAurora = "aurora"
	DriverModbus = "modbus"
)

// minPollInterval keeps a typo from hammering the serial bus.
const minPollInterval = 1 * time.Second

const (
	defaultDialTimeout       = 10 * time.Second
	defaultRequestTimeout    = 5 * time.Second
	defaultPollInterval      = 5 * time.Minute
	defaultTimeoutMultiplier = 3
	defaultWarmupPasses      = 2
	defaultUploadTimeout     = 30 * time.Second
	defaultMQTTTopic         = "aurorapulse/readings"
	defaultMQTTClientID      = "aurorapulse"
)

// Config is the root configuration structure for aurorapulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Poll     PollConfig     `yaml:"poll"`
	PVOutput PVOutputConfig `yaml:"pvoutput"`
	Location LocationConfig `yaml:"location"`
	Status   StatusConfig   `yaml:"status"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// DeviceConfig describes how the inverter is reached.
type DeviceConfig struct {
	// Driver is "aurora" (default) or "modbus".
	Driver string `yaml:"driver"`

	// Address is the host:port of the serial bridge or Modbus endpoint.
	// Supports environment variable substitution.
	Address string `yaml:"address"`

	// BusAddress is the Aurora address or Modbus unit id, 0-255.
	BusAddress int `yaml:"bus_address"`

	// DialTimeout bounds connection establishment. Defaults to 10s.
	DialTimeout Duration `yaml:"dial_timeout"`

	// RequestTimeout bounds each device exchange. Defaults to 5s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Modbus locates the measurements for driver: modbus.
	Modbus ModbusConfig `yaml:"modbus"`
}

// ModbusConfig maps energy and voltage onto holding registers.
type ModbusConfig struct {
	EnergyRegister  uint16  `yaml:"energy_register"`
	VoltageRegister uint16  `yaml:"voltage_register"`
	EnergyScale     float64 `yaml:"energy_scale"`
	VoltageScale    float64 `yaml:"voltage_scale"`
}

// PollConfig controls session pacing.
type PollConfig struct {
	// Interval is the minimum spacing between polls. Defaults to 5m.
	Interval Duration `yaml:"interval"`

	// TimeoutMultiplier scales Interval into the liveness timeout.
	// Defaults to 3 and must be at least 2.
	TimeoutMultiplier int `yaml:"timeout_multiplier"`

	// WarmupPasses readings are taken back to back at session start.
	// Defaults to 2; set 0 explicitly to disable.
	WarmupPasses *int `yaml:"warmup_passes"`

	// StopAtSunset ends sessions at sunset instead of on device silence.
	StopAtSunset bool `yaml:"stop_at_sunset"`
}

// PVOutputConfig configures uploads.
type PVOutputConfig struct {
	// URL defaults to the public add-status endpoint.
	URL string `yaml:"url"`

	SystemID string `yaml:"system_id"`
	APIKey   string `yaml:"api_key"`

	// Timeout bounds each upload. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`
}

// LocationConfig is the site used for sunrise and sunset.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Elevation float64 `yaml:"elevation"`

	// TimeZone is an IANA zone name for the calendar date and the upload
	// time fields. Defaults to the host's local zone.
	TimeZone string `yaml:"timezone"`
}

// StatusConfig configures the status API.
type StatusConfig struct {
	// Port serves /api/status and /api/sse. Zero disables.
	Port int `yaml:"port"`
}

// MQTTConfig configures the optional reading mirror.
type MQTTConfig struct {
	// Broker is a URL such as tcp://localhost:1883. Empty disables MQTT.
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates.
//
// Environment variables are expanded in the device address, the PVOutput
// URL and credentials, and the MQTT broker and credentials.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.Driver == "" {
		c.Device.Driver = DriverAurora
	}
	if c.Device.DialTimeout == 0 {
		c.Device.DialTimeout = Duration(defaultDialTimeout)
	}
	if c.Device.RequestTimeout == 0 {
		c.Device.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(defaultPollInterval)
	}
	if c.Poll.TimeoutMultiplier == 0 {
		c.Poll.TimeoutMultiplier = defaultTimeoutMultiplier
	}
	if c.Poll.WarmupPasses == nil {
		n := defaultWarmupPasses
		c.Poll.WarmupPasses = &n
	}
	if c.PVOutput.Timeout == 0 {
		c.PVOutput.Timeout = Duration(defaultUploadTimeout)
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = defaultMQTTTopic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = defaultMQTTClientID
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	expandable := []struct {
		field string
		value *string
	}{
		{"device.address", &c.Device.Address},
		{"pvoutput.url", &c.PVOutput.URL},
		{"pvoutput.system_id", &c.PVOutput.SystemID},
		{"pvoutput.api_key", &c.PVOutput.APIKey},
		{"mqtt.broker", &c.MQTT.Broker},
		{"mqtt.username", &c.MQTT.Username},
		{"mqtt.password", &c.MQTT.Password},
	}
	for _, e := range expandable {
		expanded, err := expandEnvVars(*e.value)
		if err != nil {
			return fmt.Errorf("%s: %w", e.field, err)
		}
		*e.value = expanded
	}

	if err := c.Device.validate(); err != nil {
		return err
	}
	if err := c.Poll.validate(); err != nil {
		return err
	}
	if err := c.PVOutput.validate(); err != nil {
		return err
	}
	if err := c.Location.validate(); err != nil {
		return err
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 0 and 65535, got %d", c.Status.Port)
	}
	return c.MQTT.validate()
}

func (d *DeviceConfig) validate() error {
	switch d.Driver {
	case DriverAurora:
	case DriverModbus:
		if d.Modbus.EnergyRegister == d.Modbus.VoltageRegister {
			return errors.New("device.modbus: energy_register and voltage_register must differ")
		}
		if d.Modbus.EnergyScale < 0 || d.Modbus.VoltageScale < 0 {
			return errors.New("device.modbus: scales cannot be negative")
		}
	default:
		return fmt.Errorf("device.driver must be %q or %q, got %q", DriverAurora, DriverModbus, d.Driver)
	}

	if d.Address == "" {
		return errors.New("device.address is required")
	}
	if d.BusAddress < 0 || d.BusAddress > 255 {
		return fmt.Errorf("device.bus_address must be between 0 and 255, got %d", d.BusAddress)
	}
	if d.DialTimeout.Duration() < 0 {
		return fmt.Errorf("device.dial_timeout cannot be negative, got %s", d.DialTimeout.Duration())
	}
	if d.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("device.request_timeout cannot be negative, got %s", d.RequestTimeout.Duration())
	}
	return nil
}

func (p *PollConfig) validate() error {
	if p.Interval.Duration() < minPollInterval {
		return fmt.Errorf("poll.interval must be at least %s, got %s", minPollInterval, p.Interval.Duration())
	}
	if p.TimeoutMultiplier < 2 {
		return fmt.Errorf("poll.timeout_multiplier must be at least 2, got %d", p.TimeoutMultiplier)
	}
	if p.Warmup() < 0 {
		return fmt.Errorf("poll.warmup_passes cannot be negative, got %d", p.Warmup())
	}
	return nil
}

// Warmup returns the configured warm-up passes, or the default when unset.
func (p PollConfig) Warmup() int {
	if p.WarmupPasses == nil {
		return defaultWarmupPasses
	}
	return *p.WarmupPasses
}

// Timeout is the session liveness timeout.
func (p PollConfig) Timeout() time.Duration {
	return p.Interval.Duration() * time.Duration(p.TimeoutMultiplier)
}

func (p *PVOutputConfig) validate() error {
	if p.SystemID == "" {
		return errors.New("pvoutput.system_id is required")
	}
	if p.APIKey == "" {
		return errors.New("pvoutput.api_key is required")
	}
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("pvoutput.url: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("pvoutput.url scheme must be http or https, got %q", u.Scheme)
		}
	}
	if p.Timeout.Duration() < time.Second {
		return fmt.Errorf("pvoutput.timeout must be at least 1s, got %s", p.Timeout.Duration())
	}
	return nil
}

func (l *LocationConfig) validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("location.latitude must be between -90 and 90, got %g", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("location.longitude must be between -180 and 180, got %g", l.Longitude)
	}
	if l.TimeZone != "" {
		if _, err := time.LoadLocation(l.TimeZone); err != nil {
			return fmt.Errorf("location.timezone: %w", err)
		}
	}
	return nil
}

// Zone returns the configured time zone, or time.Local.
func (l LocationConfig) Zone() *time.Location {
	if l.TimeZone == "" {
		return time.Local
	}
	tz, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return time.Local
	}
	return tz
}

func (m *MQTTConfig) validate() error {
	if !m.Enabled() {
		return nil
	}
	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: invalid url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("mqtt.broker scheme must be tcp, ssl, tls, ws, wss, mqtt or mqtts, got %q", u.Scheme)
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", m.QoS)
	}
	return nil
}
