// Package aurorapulse polls a photovoltaic inverter while the sun is up
// and uploads each reading to PVOutput.
//
// aurorapulse is SDK-first: the daemon in cmd/aurorapulse is a thin
// wrapper around [Service], which can be embedded in any program.
//
// # Quick Start
//
//	svc, err := aurorapulse.New(
//	    aurorapulse.WithDevice(aurorapulse.AuroraDialer("192.168.1.40:8899"), 2),
//	    aurorapulse.WithUploader(aurorapulse.PVOutputUploader("", aurorapulse.Credentials{
//	        APIKey:   os.Getenv("PVOUTPUT_API_KEY"),
//	        SystemID: os.Getenv("PVOUTPUT_SYSTEM_ID"),
//	    }, nil)),
//	    aurorapulse.WithLocation(aurorapulse.Location{Latitude: 51.5, Longitude: -0.12}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Sessions
//
// During daylight the service runs sessions. A session opens one device
// connection and repeats a polling cycle: daily energy, then input
// voltage, combined into a [Reading]. The first warm-up readings are
// uploaded back to back; after that polls are spaced by the policy
// interval. A session that produces nothing for the policy timeout ends
// with [OutcomeTimedOut].
//
// Only a connection closed by the bridge is recovered from, by starting a
// new session at once. Every other failure ends [Service.Run] with a
// [*SessionError]; run under a supervisor that restarts the process.
//
// # Architecture
//
//   - internal/stream: pull sources with rate limiting and a liveness timeout
//   - internal/device: request/response model and the paired reading source
//   - internal/device/aurora: Aurora binary protocol over a TCP serial bridge
//   - internal/device/modbus: Modbus TCP register reader
//   - internal/upload: PVOutput client and the upload sink
//   - internal/daylight: sunrise/sunset windows
//   - internal/store, internal/server: status snapshot, REST API and SSE
//   - internal/mqtt: optional MQTT publication of readings
//   - internal/clock: real and fake time
package aurorapulse
