// Package store persists debate sessions behind a backend-neutral
// interface. Implementations exist for process-local memory, redis, and
// postgres; Open selects one from configuration.
//
// All backends share the same concurrency contract: Save applies a
// snapshot only when the stored version is strictly lower than the
// snapshot's version, so a writer holding stale state fails with
// ErrVersionConflict instead of clobbering newer data. The session
// registry serializes writers per session, which makes the version guard
// a split-brain tripwire rather than a merge mechanism.
//
// Sessions are stored as a single JSON document per session. Listing
// reads summary fields only; the full transcript is loaded on demand.
package store
