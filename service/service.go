/*
Package service is the mutation boundary of the loyalty ledger.

PURPOSE:
  Serializes mutations per user, runs engine validation, appends to the
  event store, and keeps the projection cache fresh. Everything above this
  package (HTTP handlers, CLIs) is a pure caller; everything below it
  (engine, stores) is pure or single-purpose.

CONCURRENCY MODEL:
  One mutex per user id, held for the whole Submit: validate, append,
  apply, cache refresh. Different users never contend - the lock table is
  a sharded concurrent map, so throughput scales with user count. Reads hit
  the cache without taking a user lock; cold rebuilds for the same user are
  collapsed through singleflight.

IDEMPOTENCY:
  Every submission carries a client request id. A request id that was
  already applied is answered with the already-produced result: no second
  append, no double XP, no double charge.

ALL-OR-NOTHING:
  Validation happens before the append; a rejected event leaves the ledger
  and the cache untouched and returns the prior projection alongside the
  error. Append either fully persists the event or fails cleanly.

SEE ALSO:
  - progression/engine.go: Validate/Fold semantics
  - progression/store.go: storage contract
  - api/handlers.go: the HTTP caller
*/
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service owns all writes to the event ledger.
type Service struct {
	store   progression.EventStore
	snaps   progression.SnapshotStore // nil when the store has no snapshot support
	catalog *catalog.Catalog

	locks  cmap.ConcurrentMap[string, *sync.Mutex]
	cache  cmap.ConcurrentMap[string, *progression.Projection]
	flight singleflight.Group
}

// New creates a service over the given store and catalog. If the store also
// implements progression.SnapshotStore, projections are persisted as a
// cold-start cache.
func New(store progression.EventStore, cat *catalog.Catalog) *Service {
	s := &Service{
		store:   store,
		catalog: cat,
		locks:   cmap.New[*sync.Mutex](),
		cache:   cmap.New[*progression.Projection](),
	}
	if snaps, ok := store.(progression.SnapshotStore); ok {
		s.snaps = snaps
	}
	return s
}

// Catalog returns the immutable catalog the service validates against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) userLock(userID string) *sync.Mutex {
	if mu, ok := s.locks.Get(userID); ok {
		return mu
	}
	s.locks.SetIfAbsent(userID, &sync.Mutex{})
	mu, _ := s.locks.Get(userID)
	return mu
}

// =============================================================================
// SUBMIT - Mutations
// =============================================================================

// SubmitProgress grants progress on an achievement. Returns the fresh
// projection on success; on validation failure the prior projection is
// returned unchanged alongside the error.
func (s *Service) SubmitProgress(ctx context.Context, userID string, achievementID catalog.AchievementID, delta int64, requestID string) (*progression.Projection, error) {
	if requestID == "" {
		return nil, progression.ErrMissingRequestID
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.projectionLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Retry of an already-applied request: answer with current state.
	prior, err := s.store.FindByRequestID(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return cur.Clone(), nil
	}

	ev := progression.NewProgressGrant(userID, achievementID, delta, requestID)
	if err := progression.Validate(ev, cur, s.catalog); err != nil {
		return cur.Clone(), err
	}

	next, err := s.appendLocked(ctx, cur, ev)
	if err != nil {
		if progression.IsConflict(err) {
			// Another process applied this request id first; same outcome.
			return cur.Clone(), nil
		}
		return nil, err
	}
	return next.Clone(), nil
}

// SubmitRedemption spends points on a reward. On success the new projection
// and the redemption record are returned. A retried request id returns the
// original record with no second charge.
func (s *Service) SubmitRedemption(ctx context.Context, userID string, rewardID catalog.RewardID, requestID string) (*progression.Projection, *progression.RedemptionRecord, error) {
	if requestID == "" {
		return nil, nil, progression.ErrMissingRequestID
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.projectionLocked(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	prior, err := s.store.FindByRequestID(ctx, userID, requestID)
	if err != nil {
		return nil, nil, err
	}
	if prior != nil {
		return cur.Clone(), findRedemption(cur, requestID), nil
	}

	ev := progression.NewRedemption(userID, rewardID, requestID)
	if err := progression.Validate(ev, cur, s.catalog); err != nil {
		return cur.Clone(), nil, err
	}

	next, err := s.appendLocked(ctx, cur, ev)
	if err != nil {
		if progression.IsConflict(err) {
			return cur.Clone(), findRedemption(cur, requestID), nil
		}
		return nil, nil, err
	}
	return next.Clone(), findRedemption(next, requestID), nil
}

// appendLocked persists the event, applies it to a copy of the projection,
// and swaps the cache. Caller holds the user lock.
func (s *Service) appendLocked(ctx context.Context, cur *progression.Projection, ev *progression.Event) (*progression.Projection, error) {
	seq, err := s.store.Append(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.Seq = seq

	next := cur.Clone()
	if err := next.Apply(ev, s.catalog); err != nil {
		// Ledger and projection disagree; drop the cache so the next read
		// replays from the ledger, which is authoritative.
		s.cache.Remove(ev.UserID)
		return nil, fmt.Errorf("apply appended event: %w", err)
	}

	s.cache.Set(ev.UserID, next)
	s.saveSnapshot(ctx, next)
	return next, nil
}

func findRedemption(p *progression.Projection, requestID string) *progression.RedemptionRecord {
	for i := range p.Redemptions {
		if p.Redemptions[i].RequestID == requestID {
			r := p.Redemptions[i]
			return &r
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// GetState returns the user's current projection. Cached reads never block
// behind another user's mutation; concurrent cold rebuilds for the same
// user are collapsed into one replay.
func (s *Service) GetState(ctx context.Context, userID string) (*progression.Projection, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p.Clone(), nil
	}

	// The rebuild is shared by every collapsed caller, so it must not die
	// with whichever caller happened to start it.
	rebuildCtx := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(userID, func() (interface{}, error) {
		p, err := s.rebuild(rebuildCtx, userID)
		if err != nil {
			return nil, err
		}
		// Keep whichever projection is further along; a concurrent Submit
		// may have refreshed the cache while we replayed.
		res := s.cache.Upsert(userID, p, func(exist bool, inMap, newV *progression.Projection) *progression.Projection {
			if exist && inMap.Seq >= newV.Seq {
				return inMap
			}
			return newV
		})
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*progression.Projection).Clone(), nil
}

// History returns the raw event ledger for a user, for audit and replay.
func (s *Service) History(ctx context.Context, userID string) ([]progression.Event, error) {
	return s.store.ReadAll(ctx, userID)
}

// projectionLocked returns the current projection, rebuilding from storage
// on a cache miss. Caller holds the user lock.
func (s *Service) projectionLocked(ctx context.Context, userID string) (*progression.Projection, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, nil
	}
	p, err := s.rebuild(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(userID, p)
	return p, nil
}

// rebuild reconstructs the projection from the snapshot plus the ledger
// tail, or by full replay when no snapshot exists.
func (s *Service) rebuild(ctx context.Context, userID string) (*progression.Projection, error) {
	p := progression.NewProjection(userID, s.catalog)

	if s.snaps != nil {
		seq, data, ok, err := s.snaps.LoadSnapshot(ctx, userID)
		if err == nil && ok {
			if jsonErr := json.Unmarshal(data, p); jsonErr != nil || p.Seq != seq {
				// Corrupt or stale snapshot: fall back to full replay.
				p = progression.NewProjection(userID, s.catalog)
			}
		}
	}

	events, err := s.store.ReadFrom(ctx, userID, p.Seq)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if err := p.Apply(&events[i], s.catalog); err != nil {
			return nil, fmt.Errorf("replay seq %d: %w", events[i].Seq, err)
		}
	}
	return p, nil
}

// saveSnapshot persists the projection cache. Best effort: a failed save
// only costs a replay on the next cold start.
func (s *Service) saveSnapshot(ctx context.Context, p *progression.Projection) {
	if s.snaps == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = s.snaps.SaveSnapshot(ctx, p.UserID, p.Seq, data)
}
