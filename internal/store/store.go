package store

import "time"

// State is the scheduler's current phase.
type State string

// Scheduler states.
const (
	StateStarting State = "starting"
	StateActive   State = "active"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
)

// Reading is the storage representation of the last reading.
type Reading struct {
	EnergyWh uint32    `json:"energy_wh"`
	VoltageV float32   `json:"voltage_v"`
	At       time.Time `json:"at"`
}

// Upload is the storage representation of the last upload round trip.
type Upload struct {
	StatusCode int       `json:"status_code"`
	LatencyMs  int64     `json:"latency_ms"`
	At         time.Time `json:"at"`
}

// Snapshot is the full status exposed by the REST API and SSE.
//
// Pointer fields are replaced on update, never mutated, so a copied
// Snapshot is safe to hand to other goroutines.
type Snapshot struct {
	State State `json:"state"`

	// Sunrise and Sunset bound today's active window. Zero before the
	// first window computation.
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`

	// NextWake is set while sleeping.
	NextWake *time.Time `json:"next_wake,omitempty"`

	// SessionID identifies the running (or last) polling session.
	SessionID string `json:"session_id,omitempty"`

	Sessions        int    `json:"sessions"`
	Readings        uint64 `json:"readings"`
	Uploads         uint64 `json:"uploads"`
	RejectedUploads uint64 `json:"rejected_uploads"`

	// Mismatches counts polling cycles dropped because the device answered
	// with an unexpected response variant.
	Mismatches uint64 `json:"mismatches"`

	LastReading *Reading `json:"last_reading,omitempty"`
	LastUpload  *Upload  `json:"last_upload,omitempty"`

	// LastError holds the outcome of the last failed session.
	LastError *string `json:"last_error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines snapshot storage with update subscription.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update applies fn to the snapshot under the store lock and notifies
	// all subscribers with the result.
	Update(fn func(*Snapshot))

	// Get returns a copy of the current snapshot.
	Get() Snapshot

	// Subscribe returns a channel that receives every new snapshot.
	// Slow consumers may miss updates. Caller must call Unsubscribe.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
