package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// ErrPeerClosed marks a connection that the remote bridge terminated
// cleanly. Drivers wrap it around EOF, broken pipe and reset errors; the
// scheduler treats it as recoverable.
var ErrPeerClosed = errors.New("device: connection closed by peer")

// IsPeerClosed reports whether err means the remote end dropped the
// connection: EOF mid-exchange, a closed pipe, broken pipe or connection
// reset.
func IsPeerClosed(err error) bool {
	return errors.Is(err, ErrPeerClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Address identifies an inverter on the bus. It is passed unchanged to
// every call.
type Address uint8

// Period selects the accumulation window of a cumulative energy request.
type Period uint8

// Cumulative energy periods.
const (
	PeriodDaily   Period = 0
	PeriodWeekly  Period = 1
	PeriodMonthly Period = 3
	PeriodYearly  Period = 4
	PeriodTotal   Period = 5
	PeriodPartial Period = 6
)

// MeasurementType selects a DSP measurement.
type MeasurementType uint8

// DSP measurement types used by aurorapulse.
const (
	MeasureGridVoltage   MeasurementType = 1
	MeasureGridPower     MeasurementType = 3
	MeasureInput1Voltage MeasurementType = 23
	MeasureInput1Current MeasurementType = 25
)

// Request is one of the request variants understood by a [Client].
type Request interface {
	isRequest()
}

// CumulativeEnergyRequest asks for the energy produced over Period, in Wh.
type CumulativeEnergyRequest struct {
	Period Period
}

// MeasureRequest asks for an instantaneous DSP measurement. Global selects
// the global (module) value rather than the single-inverter one.
type MeasureRequest struct {
	Type   MeasurementType
	Global bool
}

func (CumulativeEnergyRequest) isRequest() {}
func (MeasureRequest) isRequest()          {}

// Response is one of the response variants returned by a [Client].
type Response interface {
	isResponse()
}

// CumulativeEnergyResponse carries the energy in Wh.
type CumulativeEnergyResponse struct {
	Value uint32
}

// MeasureResponse carries a measurement value in its natural unit.
type MeasureResponse struct {
	Value float32
}

func (CumulativeEnergyResponse) isResponse() {}
func (MeasureResponse) isResponse()          {}

// Client issues a request to the inverter at addr and returns its response.
// Implementations serialise calls; at most one request is in flight.
type Client interface {
	Call(ctx context.Context, addr Address, req Request) (Response, error)
}

// Conn is a Client bound to one live connection.
type Conn interface {
	Client
	io.Closer
}

// Dialer opens a new device connection. Each session dials once.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to a [Dialer].
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// CallError reports a failed device call. It wraps the driver error so
// errors.Is(err, ErrPeerClosed) keeps working.
type CallError struct {
	Request Request
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("device call %T: %v", e.Request, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Reading is one combined measurement: daily cumulative energy and
// instantaneous input voltage.
type Reading struct {
	CumulativeEnergyWh uint32  `json:"cumulative_energy_wh"`
	InstantVoltage     float32 `json:"instant_voltage_v"`
}

func (r Reading) String() string {
	return fmt.Sprintf("%dWh, %gV", r.CumulativeEnergyWh, r.InstantVoltage)
}
