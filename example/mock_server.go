package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jpalmerr/aurorapulse/internal/simulator"
)

// startMocks runs a simulated inverter bridge and a PVOutput stand-in.
// The bridge drops its connection every 25 requests and about one upload
// in ten is rejected, so reconnects and rejections show up in the demo.
func startMocks(ctx context.Context, inverterAddr, pvoutputAddr string) {
	inv := &simulator.Inverter{DropEvery: 25}
	go func() {
		if err := inv.ListenAndServe(ctx, inverterAddr); err != nil {
			slog.Error("simulated inverter failed", "error", err)
		}
	}()

	srv := &http.Server{Addr: pvoutputAddr, Handler: simulator.PVOutputHandler(nil, 10)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock pvoutput failed", "error", err)
		}
	}()
	context.AfterFunc(ctx, func() { _ = srv.Close() })
}
