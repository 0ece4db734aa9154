// Package server exposes the poller status over HTTP.
//
//   - REST API: JSON snapshot at "/api/status"
//   - Server-Sent Events: live snapshots at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the aurorapulse library should not need to interact with this
// package directly. It is started by the service when a status port is
// configured.
package server
