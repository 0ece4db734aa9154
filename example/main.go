package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/aurorapulse"
)

// alwaysDay keeps the demo active whatever the hour.
func alwaysDay(date time.Time, _ aurorapulse.Location) (time.Time, time.Time) {
	y, m, d := date.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Second)
}

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start simulated inverter and collector (see mock_server.go)
	startMocks(ctx, "127.0.0.1:8899", "127.0.0.1:9999")
	time.Sleep(100 * time.Millisecond)

	policy, err := aurorapulse.PollPolicyFromMultiplier(5*time.Second, 2, 3)
	if err != nil {
		slog.Error("invalid poll policy", "error", err)
		os.Exit(1)
	}

	svc, err := aurorapulse.New(
		aurorapulse.WithDevice(aurorapulse.AuroraDialer("127.0.0.1:8899"), 2),
		aurorapulse.WithUploader(aurorapulse.PVOutputUploader(
			"http://127.0.0.1:9999/service/r2/addstatus.jsp",
			aurorapulse.Credentials{SystemID: "demo", APIKey: "demo"},
			time.UTC,
		)),
		aurorapulse.WithLocation(aurorapulse.Location{Latitude: 51.5, Longitude: -0.12}),
		aurorapulse.WithSunTimes(alwaysDay),
		aurorapulse.WithTimeZone(time.UTC),
		aurorapulse.WithPollPolicy(policy),
		aurorapulse.WithStatusPort(8080),
		aurorapulse.WithReadingCallback(func(ev aurorapulse.ReadingEvent) {
			if !ev.Accepted {
				fmt.Printf("  upload of %s rejected with %d\n", ev.Reading, ev.StatusCode)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  aurorapulse demo")
	fmt.Println()
	fmt.Println("  Simulated inverter:  127.0.0.1:8899 (drops every 25 requests)")
	fmt.Println("  Mock PVOutput:       http://127.0.0.1:9999")
	fmt.Println("  Status:              http://localhost:8080/api/status")
	fmt.Println("  Live updates:        curl -N http://localhost:8080/api/sse")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := svc.Run(ctx); err != nil {
		var se *aurorapulse.SessionError
		if errors.As(err, &se) {
			slog.Error("session failed", "outcome", se.Outcome.String(), "error", se.Err)
		} else {
			slog.Error("aurorapulse error", "error", err)
		}
		os.Exit(1)
	}
}
