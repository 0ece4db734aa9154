// Package simulator provides a fake Aurora inverter and a fake PVOutput
// endpoint for demos and manual testing.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/device/aurora"
)

// Inverter simulates an Aurora inverter behind a TCP serial bridge.
//
// Daily energy grows by a few Wh per energy request and input voltage
// wanders around 230V. When DropEvery is positive the bridge closes the
// connection after that many requests, the way cheap serial bridges do.
type Inverter struct {
	DropEvery int
	Logger    *slog.Logger

	mu       sync.Mutex
	energy   uint32
	requests int
}

// ListenAndServe accepts bridge connections on addr until ctx is done.
func (inv *Inverter) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("simulator: listen %s: %w", addr, err)
	}
	return inv.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. It closes ln.
func (inv *Inverter) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	logger := inv.logger()
	logger.Info("simulated inverter listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		logger.Info("bridge connection opened", "remote", conn.RemoteAddr().String())
		go func() {
			if err := aurora.Serve(ctx, conn, inv.respond); err != nil {
				logger.Info("bridge connection dropped", "reason", err)
			}
		}()
	}
}

var errDrop = errors.New("simulated bridge drop")

func (inv *Inverter) respond(_ device.Address, req device.Request) (device.Response, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.requests++
	if inv.DropEvery > 0 && inv.requests%inv.DropEvery == 0 {
		return nil, errDrop
	}

	switch r := req.(type) {
	case device.CumulativeEnergyRequest:
		if r.Period == device.PeriodDaily {
			inv.energy += uint32(1 + rand.Intn(9))
		}
		return device.CumulativeEnergyResponse{Value: inv.energy}, nil
	case device.MeasureRequest:
		return device.MeasureResponse{Value: 225 + 10*rand.Float32()}, nil
	}
	return nil, fmt.Errorf("unsupported request %T", req)
}

func (inv *Inverter) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}

// PVOutputHandler accepts add-status uploads, logs them, and rejects
// roughly one in rejectOneIn with 400 when rejectOneIn is positive.
func PVOutputHandler(logger *slog.Logger, rejectOneIn int) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Pvoutput-Apikey") == "" || r.Header.Get("X-Pvoutput-SystemId") == "" {
			http.Error(w, "Unauthorized 401: Invalid API Key", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request 400: "+err.Error(), http.StatusBadRequest)
			return
		}

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		if rejectOneIn > 0 && rand.Intn(rejectOneIn) == 0 {
			http.Error(w, "Bad request 400: Moon Powered", http.StatusBadRequest)
			return
		}

		logger.Info("status added",
			"date", r.PostForm.Get("d"),
			"time", r.PostForm.Get("t"),
			"energy_wh", r.PostForm.Get("v1"),
			"voltage_v", r.PostForm.Get("v6"),
		)
		_, _ = w.Write([]byte("OK 200: Added Status"))
	})
}
