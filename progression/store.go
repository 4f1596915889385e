/*
store.go - Persistence contract for the event ledger

PURPOSE:
  Defines the interface between the engine/service and storage. The ledger
  is append-only: stores expose Append and reads, nothing else. Sequence
  numbers are assigned by the store inside Append so that concurrent
  writers for the same user can never interleave numbering.

APPEND-ONLY CONTRACT:
  - Append(): the only write
  - NO update or delete methods exist
  - corrections are compensating events

IDEMPOTENCY:
  Every event carries a client request id, unique per user. A store must
  reject a second append with the same (user, request id) pair with
  ErrDuplicateRequestID, and must be able to return the original event so
  retried calls can be answered with the original result.

IMPLEMENTATIONS:
  - progression/store: in-memory, for tests and dev
  - store/sqlite: durable, WAL-mode SQLite

SEE ALSO:
  - service/service.go: the only writer
*/
package progression

import "context"

// =============================================================================
// EVENT STORE
// =============================================================================

// EventStore persists the per-user event ledger.
type EventStore interface {
	// Append persists the event and returns its assigned sequence number.
	// Atomic per user: either the event is fully recorded with the next
	// sequence number, or nothing is written.
	Append(ctx context.Context, ev *Event) (int64, error)

	// ReadAll returns every event for the user in sequence order.
	ReadAll(ctx context.Context, userID string) ([]Event, error)

	// ReadFrom returns events with Seq > afterSeq, in sequence order.
	// Used to roll a snapshot forward without a full replay.
	ReadFrom(ctx context.Context, userID string, afterSeq int64) ([]Event, error)

	// FindByRequestID returns the already-applied event for a request id,
	// or nil when the request id has not been seen for this user.
	FindByRequestID(ctx context.Context, userID, requestID string) (*Event, error)
}

// =============================================================================
// SNAPSHOT STORE - Optional projection cache persistence
// =============================================================================

// SnapshotStore persists projection snapshots keyed by user. Snapshots are
// a cache, never authoritative: the event ledger always wins. Stores may
// implement this in addition to EventStore; the service detects it.
type SnapshotStore interface {
	// SaveSnapshot stores the serialized projection at the given sequence.
	SaveSnapshot(ctx context.Context, userID string, seq int64, data []byte) error

	// LoadSnapshot returns the latest snapshot, or ok=false when none exists.
	LoadSnapshot(ctx context.Context, userID string) (seq int64, data []byte, ok bool, err error)
}
