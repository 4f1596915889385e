// Package store provides EventStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/wandertrip/loyalty-engine/progression"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	events    map[string][]progression.Event // userID -> ordered events
	byRequest map[requestKey]int             // index into events slice
}

type requestKey struct {
	UserID    string
	RequestID string
}

func NewMemory() *Memory {
	return &Memory{
		events:    make(map[string][]progression.Event),
		byRequest: make(map[requestKey]int),
	}
}

// Append records the event, assigning the next per-user sequence number.
func (m *Memory) Append(_ context.Context, ev *progression.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := requestKey{UserID: ev.UserID, RequestID: ev.RequestID}
	if ev.RequestID != "" {
		if _, dup := m.byRequest[k]; dup {
			return 0, progression.ErrDuplicateRequestID
		}
	}

	next := int64(len(m.events[ev.UserID])) + 1
	if ev.Seq != 0 && ev.Seq != next {
		return 0, progression.ErrSequenceConflict
	}

	stored := *ev
	stored.Seq = next
	m.events[ev.UserID] = append(m.events[ev.UserID], stored)
	if ev.RequestID != "" {
		m.byRequest[k] = len(m.events[ev.UserID]) - 1
	}
	return next, nil
}

func (m *Memory) ReadAll(_ context.Context, userID string) ([]progression.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]progression.Event, len(m.events[userID]))
	copy(out, m.events[userID])
	return out, nil
}

func (m *Memory) ReadFrom(_ context.Context, userID string, afterSeq int64) ([]progression.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []progression.Event
	for _, ev := range m.events[userID] {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) FindByRequestID(_ context.Context, userID, requestID string) (*progression.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byRequest[requestKey{UserID: userID, RequestID: requestID}]
	if !ok {
		return nil, nil
	}
	ev := m.events[userID][i]
	return &ev, nil
}

var _ progression.EventStore = (*Memory)(nil)
