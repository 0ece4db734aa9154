// Package store holds the live status of the poller and fans updates out
// to subscribers.
//
// The main components are:
//
//   - [Store]: interface defining snapshot access and subscription
//   - [MemoryStore]: in-memory implementation with pub/sub
//   - [Snapshot]: the scheduler state, daylight window, session counters
//     and the last reading and upload
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers miss updates rather than block the poller).
//
// Users of the aurorapulse library should not need to interact with this
// package directly. The service updates it as it runs.
package store
