// Standalone simulated inverter and PVOutput stand-in for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/aurorapulse run -c example/config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/aurorapulse/internal/simulator"
)

func main() {
	fmt.Println("Simulated inverter bridge on :8899, PVOutput stand-in on :9999")
	fmt.Println("The bridge drops its connection every 25 requests")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: ":9999", Handler: simulator.PVOutputHandler(nil, 10)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock pvoutput failed", "error", err)
			os.Exit(1)
		}
	}()
	context.AfterFunc(ctx, func() { _ = srv.Close() })

	inv := &simulator.Inverter{DropEvery: 25}
	if err := inv.ListenAndServe(ctx, ":8899"); err != nil {
		slog.Error("simulated inverter failed", "error", err)
		os.Exit(1)
	}
}
