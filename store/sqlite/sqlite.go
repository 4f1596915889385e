/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements progression.EventStore and progression.SnapshotStore on
  SQLite. The same patterns apply to PostgreSQL in production - only minor
  SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch the events table
  - Sequence numbers are assigned inside a database transaction:
    SELECT MAX(seq) and INSERT commit together or not at all
  - UNIQUE(user_id, seq) rejects interleaved numbering
  - UNIQUE(user_id, request_id) rejects replayed request ids

KEY TABLES:
  events:                Immutable per-user ledger
  projection_snapshots:  Cached projections keyed by user (never
                         authoritative - the ledger always wins)

WAL MODE:
  The database is opened with WAL so readers don't block behind the
  single writer and crash recovery is clean.

USAGE:
  st, err := sqlite.New("./data/loyalty.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()

SEE ALSO:
  - progression/store.go: interface definitions
  - progression/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Events (append-only ledger)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		achievement_id TEXT,
		delta INTEGER NOT NULL DEFAULT 0,
		reward_id TEXT,
		request_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Strict per-user ordering: one event per sequence number
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_user_seq
		ON events(user_id, seq);

	-- Idempotency: one effect per client request id
	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_user_request
		ON events(user_id, request_id);

	-- Projection snapshots (cache, never authoritative)
	CREATE TABLE IF NOT EXISTS projection_snapshots (
		user_id TEXT PRIMARY KEY,
		last_seq INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (progression.EventStore interface)
// =============================================================================

// Append persists the event with the next per-user sequence number.
// The MAX(seq) read and the INSERT commit atomically.
func (s *Store) Append(ctx context.Context, ev *progression.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var last int64
	err = sqlTx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM events WHERE user_id = ?", ev.UserID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}

	seq := last + 1
	if ev.Seq != 0 && ev.Seq != seq {
		return 0, progression.ErrSequenceConflict
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO events
		(id, user_id, seq, event_type, achievement_id, delta, reward_id, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.UserID,
		seq,
		ev.Type,
		nullString(string(ev.AchievementID)),
		ev.Delta,
		nullString(string(ev.RewardID)),
		ev.RequestID,
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "request_id") {
				return 0, progression.ErrDuplicateRequestID
			}
			return 0, progression.ErrSequenceConflict
		}
		return 0, fmt.Errorf("failed to append event: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}
	return seq, nil
}

// ReadAll returns every event for the user in sequence order.
func (s *Store) ReadAll(ctx context.Context, userID string) ([]progression.Event, error) {
	return s.readFrom(ctx, userID, 0)
}

// ReadFrom returns events with seq > afterSeq, in sequence order.
func (s *Store) ReadFrom(ctx context.Context, userID string, afterSeq int64) ([]progression.Event, error) {
	return s.readFrom(ctx, userID, afterSeq)
}

func (s *Store) readFrom(ctx context.Context, userID string, afterSeq int64) ([]progression.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, seq, event_type, achievement_id, delta, reward_id, request_id, created_at
		FROM events
		WHERE user_id = ? AND seq > ?
		ORDER BY seq ASC`,
		userID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []progression.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// FindByRequestID returns the already-applied event for a request id, or nil.
func (s *Store) FindByRequestID(ctx context.Context, userID, requestID string) (*progression.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, seq, event_type, achievement_id, delta, reward_id, request_id, created_at
		FROM events
		WHERE user_id = ? AND request_id = ?`,
		userID, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query request id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ev, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func scanEvent(rows *sql.Rows) (progression.Event, error) {
	var (
		ev            progression.Event
		achievementID sql.NullString
		rewardID      sql.NullString
		createdAt     string
	)

	err := rows.Scan(
		&ev.ID, &ev.UserID, &ev.Seq, &ev.Type,
		&achievementID, &ev.Delta, &rewardID, &ev.RequestID, &createdAt,
	)
	if err != nil {
		return ev, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.AchievementID = catalog.AchievementID(achievementID.String)
	ev.RewardID = catalog.RewardID(rewardID.String)
	ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ev, fmt.Errorf("failed to parse event timestamp: %w", err)
	}
	return ev, nil
}

// =============================================================================
// SNAPSHOT STORE (progression.SnapshotStore interface)
// =============================================================================

// SaveSnapshot stores the serialized projection at the given sequence.
func (s *Store) SaveSnapshot(ctx context.Context, userID string, seq int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projection_snapshots (user_id, last_seq, snapshot_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_seq = excluded.last_seq,
			snapshot_json = excluded.snapshot_json,
			updated_at = excluded.updated_at`,
		userID, seq, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// LoadSnapshot returns the latest snapshot for a user.
func (s *Store) LoadSnapshot(ctx context.Context, userID string) (int64, []byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		seq  int64
		data string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT last_seq, snapshot_json FROM projection_snapshots WHERE user_id = ?",
		userID,
	).Scan(&seq, &data)

	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	return seq, []byte(data), true, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ progression.EventStore    = (*Store)(nil)
	_ progression.SnapshotStore = (*Store)(nil)
)
