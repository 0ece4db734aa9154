package store

import (
	"sync"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a store whose snapshot starts in [StateStarting].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snap:        Snapshot{State: StateStarting},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Update applies fn and publishes the new snapshot.
func (m *MemoryStore) Update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snap)
	snap := m.snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Get returns a copy of the current snapshot.
func (m *MemoryStore) Get() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends snap to all subscribers without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}
