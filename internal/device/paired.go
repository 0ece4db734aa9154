package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// PairedSource yields one [Reading] per cycle by issuing a daily
// cumulative energy request followed by an input voltage request.
//
// A call error ends the source with a [*CallError]; no partial reading is
// emitted. A response of the wrong variant drops the cycle, is logged at
// debug level and counted, and the next cycle starts immediately.
type PairedSource struct {
	client     Client
	addr       Address
	logger     *slog.Logger
	mismatches atomic.Uint64
}

// NewPairedSource returns a PairedSource polling addr through client.
func NewPairedSource(client Client, addr Address, logger *slog.Logger) *PairedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PairedSource{client: client, addr: addr, logger: logger}
}

// Next runs cycles until one produces a Reading or fails.
func (p *PairedSource) Next(ctx context.Context) (Reading, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Reading{}, err
		}
		reading, ok, err := p.cycle(ctx)
		if err != nil {
			return Reading{}, err
		}
		if ok {
			return reading, nil
		}
	}
}

func (p *PairedSource) cycle(ctx context.Context) (Reading, bool, error) {
	energyReq := CumulativeEnergyRequest{Period: PeriodDaily}
	resp, err := p.client.Call(ctx, p.addr, energyReq)
	if err != nil {
		return Reading{}, false, &CallError{Request: energyReq, Err: err}
	}
	energy, ok := resp.(CumulativeEnergyResponse)
	if !ok {
		p.mismatch(energyReq, resp)
		return Reading{}, false, nil
	}

	voltageReq := MeasureRequest{Type: MeasureInput1Voltage, Global: true}
	resp, err = p.client.Call(ctx, p.addr, voltageReq)
	if err != nil {
		return Reading{}, false, &CallError{Request: voltageReq, Err: err}
	}
	voltage, ok := resp.(MeasureResponse)
	if !ok {
		p.mismatch(voltageReq, resp)
		return Reading{}, false, nil
	}

	return Reading{CumulativeEnergyWh: energy.Value, InstantVoltage: voltage.Value}, true, nil
}

func (p *PairedSource) mismatch(req Request, resp Response) {
	n := p.mismatches.Add(1)
	p.logger.Debug("unexpected response variant, skipping cycle",
		"request", req,
		"response_type", fmt.Sprintf("%T", resp),
		"mismatches", n,
	)
}

// Mismatches returns the number of cycles dropped because a response did
// not match its request.
func (p *PairedSource) Mismatches() uint64 {
	return p.mismatches.Load()
}
