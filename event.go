package aurorapulse

import "time"

// ReadingEvent describes one reading and the upload that carried it.
type ReadingEvent struct {
	// SessionID identifies the polling session that produced the reading.
	SessionID string

	Reading Reading

	// StatusCode is the HTTP status returned by the collection service.
	StatusCode int

	// Accepted is true for a 2xx response.
	Accepted bool

	Latency time.Duration
	At      time.Time
}
