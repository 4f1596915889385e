/*
events.go - The ledger primitive

PURPOSE:
  An Event is the only persisted, state-changing record in the system.
  Everything a user "has" - progress counts, completions, XP, level, badge
  unlocks, balance, redemption history - is a pure fold over that user's
  ordered event sequence. Events are appended once and never edited;
  corrections are compensating events.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. ORDERED: per-user sequence numbers assigned by the store, gap-free
  3. IDEMPOTENT: one request id, one effect - retries are no-ops

SEE ALSO:
  - engine.go: Validate and Fold over events
  - store.go: persistence contract
*/
package progression

import (
	"time"

	"github.com/google/uuid"

	"github.com/wandertrip/loyalty-engine/catalog"
)

// =============================================================================
// EVENT
// =============================================================================

type EventType string

const (
	// EventProgressGrant increments an achievement's progress count.
	EventProgressGrant EventType = "progress_grant"

	// EventRedemption spends points on a catalog reward.
	EventRedemption EventType = "redemption"
)

// Event is an immutable ledger record.
//
// Seq is zero until the store assigns it on append. All other fields are
// fixed at construction.
type Event struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Seq    int64     `json:"seq"`
	Type   EventType `json:"type"`

	// Progress grant payload
	AchievementID catalog.AchievementID `json:"achievement_id,omitempty"`
	Delta         int64                 `json:"delta,omitempty"`

	// Redemption payload
	RewardID catalog.RewardID `json:"reward_id,omitempty"`

	// RequestID is the client-supplied idempotency token.
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProgressGrant builds an unsequenced progress-grant event.
func NewProgressGrant(userID string, achievementID catalog.AchievementID, delta int64, requestID string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          EventProgressGrant,
		AchievementID: achievementID,
		Delta:         delta,
		RequestID:     requestID,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewRedemption builds an unsequenced redemption event.
func NewRedemption(userID string, rewardID catalog.RewardID, requestID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      EventRedemption,
		RewardID:  rewardID,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
}
