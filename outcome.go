package aurorapulse

import (
	"errors"
	"fmt"

	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/stream"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

// Outcome classifies how a polling session ended.
type Outcome int

const (
	// OutcomeCompleted means the reading source ended normally.
	OutcomeCompleted Outcome = iota

	// OutcomeTimedOut means no reading was produced within the policy
	// timeout.
	OutcomeTimedOut

	// OutcomeConnectionLost means the device connection could not be
	// opened or a device call failed.
	OutcomeConnectionLost

	// OutcomeUploadTransportFailed means an upload got no HTTP response.
	OutcomeUploadTransportFailed

	// OutcomeOther covers every other failure.
	OutcomeOther
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeConnectionLost:
		return "connection_lost"
	case OutcomeUploadTransportFailed:
		return "upload_transport_failed"
	default:
		return "other"
	}
}

// SessionError is returned by [Service.Run] when a session ends with a
// fatal outcome. It wraps the underlying cause.
type SessionError struct {
	Outcome   Outcome
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Outcome, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// PeerClosed reports whether the session lost its device connection
// because the bridge closed it.
func (e *SessionError) PeerClosed() bool {
	return e.Outcome == OutcomeConnectionLost && errors.Is(e.Err, device.ErrPeerClosed)
}

// IsRecoverable reports whether the scheduler should start a new session
// after err: a normal completion or a connection closed by the peer.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var se *SessionError
	if !errors.As(err, &se) {
		return false
	}
	return se.Outcome == OutcomeCompleted || se.PeerClosed()
}

// classify maps the error a session ended with onto its outcome.
func classify(sessionID string, err error) *SessionError {
	if err == nil {
		return &SessionError{Outcome: OutcomeCompleted, SessionID: sessionID}
	}

	outcome := OutcomeOther
	var (
		transportErr *upload.TransportError
		callErr      *device.CallError
	)
	switch {
	case errors.Is(err, stream.ErrTimedOut):
		outcome = OutcomeTimedOut
	case errors.As(err, &transportErr):
		outcome = OutcomeUploadTransportFailed
	case errors.As(err, &callErr):
		outcome = OutcomeConnectionLost
	}
	return &SessionError{Outcome: outcome, SessionID: sessionID, Err: err}
}
