package aurorapulse

import (
	"time"

	"github.com/jpalmerr/aurorapulse/internal/device/aurora"
	"github.com/jpalmerr/aurorapulse/internal/device/modbus"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultRequestTimeout = 5 * time.Second
)

// ModbusRegisters locates energy and voltage in a Modbus holding register
// table. Zero scales mean 1.
type ModbusRegisters = modbus.RegisterMap

// AuroraDialer returns a [Dialer] for an Aurora inverter behind a TCP
// serial bridge at address (host:port).
func AuroraDialer(address string) Dialer {
	return aurora.Dialer{
		Address:        address,
		DialTimeout:    defaultDialTimeout,
		RequestTimeout: defaultRequestTimeout,
	}
}

// ModbusDialer returns a [Dialer] for an inverter exposing its counters as
// Modbus TCP holding registers.
func ModbusDialer(address string, regs ModbusRegisters) Dialer {
	return modbus.Dialer{
		Address:   address,
		Timeout:   defaultRequestTimeout,
		Registers: regs,
	}
}

// PVOutputUploader returns an [Uploader] posting to the PVOutput add-status
// service. An empty url selects the public endpoint; tz sets the zone of
// the date and time fields and defaults to [time.Local].
func PVOutputUploader(url string, creds Credentials, tz *time.Location) Uploader {
	return upload.NewClient(upload.ClientConfig{
		URL:         url,
		Credentials: creds,
		Location:    tz,
	})
}
