/*
engine.go - Validation and fold

PURPOSE:
  The engine is the pure core: no I/O, no clocks, no locks. Validate
  decides whether an event may be admitted against the catalog and the
  user's current projection; Fold (and the incremental Apply) turns an
  ordered event sequence into that projection.

KEY PROPERTIES:
  - Deterministic: same events in, same projection out, every time
  - Monotonic: counts, XP, completions, and unlocks never regress
  - Clamped: over-grants cap at the achievement target instead of
    failing, so duplicate or late grants are safe to replay
  - All-or-nothing: a rejected event changes nothing

COMPLETION FLOW:
  When a grant pushes a count to its target for the first time:
  1. Completed flips true; the completion timestamp is the event that
     caused the clamp to hit target
  2. The achievement's XP reward is credited to total XP (cumulative)
     and to the points balance (spendable)
  3. Every badge referencing the achievement re-checks its unlock rule
  4. The membership level is recomputed from the tier table

POINTS vs XP:
  Total XP only ever grows and drives the membership level. Points are
  the spendable currency: earned on achievement completion (same amount
  as the XP reward), spent on redemptions.

SEE ALSO:
  - events.go: the Event type
  - catalog/catalog.go: definitions validated against
*/
package progression

import (
	"fmt"
	"time"

	"github.com/wandertrip/loyalty-engine/catalog"
)

// =============================================================================
// PROJECTION - Derived user state
// =============================================================================

// AchievementProgress is the per-achievement slice of the projection.
type AchievementProgress struct {
	AchievementID catalog.AchievementID `json:"achievement_id"`
	Count         int64                 `json:"count"`
	Completed     bool                  `json:"completed"`
	CompletedAt   time.Time             `json:"completed_at,omitempty"`
	Level         int                   `json:"level"`
}

// BadgeUnlock records a badge that has been unlocked. Locked badges have no
// entry; absence means locked.
type BadgeUnlock struct {
	BadgeID    catalog.BadgeID `json:"badge_id"`
	UnlockedAt time.Time       `json:"unlocked_at"`
}

// RedemptionRecord is one entry of the append-only redemption history.
type RedemptionRecord struct {
	RewardID         catalog.RewardID `json:"reward_id"`
	PointsSpent      int64            `json:"points_spent"`
	At               time.Time        `json:"at"`
	ResultingBalance int64            `json:"resulting_balance"`
	RequestID        string           `json:"request_id"`
	Seq              int64            `json:"seq"`
}

// Projection is the full derived state for one user: a pure function of the
// user's event sequence and the catalog.
type Projection struct {
	UserID string `json:"user_id"`

	// Seq is the sequence number of the last applied event.
	Seq int64 `json:"seq"`

	TotalXP       int64 `json:"total_xp"`
	CurrentLevel  int   `json:"current_level"`
	PointsBalance int64 `json:"points_balance"`

	Achievements map[catalog.AchievementID]*AchievementProgress `json:"achievements"`
	Badges       map[catalog.BadgeID]*BadgeUnlock               `json:"badges"`
	Redemptions  []RedemptionRecord                             `json:"redemptions"`
}

// NewProjection returns the empty state for a user: no progress, level 1.
func NewProjection(userID string, cat *catalog.Catalog) *Projection {
	return &Projection{
		UserID:       userID,
		CurrentLevel: cat.LevelFor(0),
		Achievements: make(map[catalog.AchievementID]*AchievementProgress),
		Badges:       make(map[catalog.BadgeID]*BadgeUnlock),
	}
}

// Clone returns a deep copy. Callers hold projections across lock
// boundaries, so shared internals are never handed out.
func (p *Projection) Clone() *Projection {
	cp := &Projection{
		UserID:        p.UserID,
		Seq:           p.Seq,
		TotalXP:       p.TotalXP,
		CurrentLevel:  p.CurrentLevel,
		PointsBalance: p.PointsBalance,
		Achievements:  make(map[catalog.AchievementID]*AchievementProgress, len(p.Achievements)),
		Badges:        make(map[catalog.BadgeID]*BadgeUnlock, len(p.Badges)),
	}
	for id, ap := range p.Achievements {
		c := *ap
		cp.Achievements[id] = &c
	}
	for id, b := range p.Badges {
		c := *b
		cp.Badges[id] = &c
	}
	if len(p.Redemptions) > 0 {
		cp.Redemptions = make([]RedemptionRecord, len(p.Redemptions))
		copy(cp.Redemptions, p.Redemptions)
	}
	return cp
}

// Progress returns the progress entry for an achievement, zero-valued when
// the user has never been granted progress on it.
func (p *Projection) Progress(id catalog.AchievementID) AchievementProgress {
	if ap, ok := p.Achievements[id]; ok {
		return *ap
	}
	return AchievementProgress{AchievementID: id}
}

// Unlocked reports whether a badge has been unlocked.
func (p *Projection) Unlocked(id catalog.BadgeID) bool {
	_, ok := p.Badges[id]
	return ok
}

// =============================================================================
// VALIDATE - Admission control, pure CPU
// =============================================================================

// Validate decides whether an event may be appended, given the user's
// current projection and the catalog. A nil result admits the event.
//
// An over-grant (delta pushing past the target) is admitted: the fold clamps
// it. Rejecting would make legitimate retries and late deliveries unsafe.
func Validate(ev *Event, prior *Projection, cat *catalog.Catalog) error {
	switch ev.Type {
	case EventProgressGrant:
		if _, ok := cat.Achievement(ev.AchievementID); !ok {
			return fmt.Errorf("achievement %q: %w", ev.AchievementID, ErrUnknownAchievement)
		}
		if ev.Delta <= 0 {
			return fmt.Errorf("delta %d: %w", ev.Delta, ErrInvalidDelta)
		}
		return nil

	case EventRedemption:
		r, ok := cat.Reward(ev.RewardID)
		if !ok {
			return fmt.Errorf("reward %q: %w", ev.RewardID, ErrUnknownReward)
		}
		if !r.Available {
			return fmt.Errorf("reward %q: %w", ev.RewardID, ErrRewardUnavailable)
		}
		if prior.PointsBalance < r.Cost {
			return &InsufficientPointsError{
				Balance:   prior.PointsBalance,
				Cost:      r.Cost,
				Shortfall: r.Cost - prior.PointsBalance,
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// =============================================================================
// FOLD - Deterministic reduction
// =============================================================================

// Apply folds a single event into the projection, in place. The event must
// have been validated and sequenced. Apply is only legal on a projection
// whose Seq precedes the event's.
func (p *Projection) Apply(ev *Event, cat *catalog.Catalog) error {
	if ev.Seq <= p.Seq {
		return fmt.Errorf("event seq %d already applied (at %d): %w", ev.Seq, p.Seq, ErrSequenceConflict)
	}

	switch ev.Type {
	case EventProgressGrant:
		a, ok := cat.Achievement(ev.AchievementID)
		if !ok {
			return fmt.Errorf("achievement %q: %w", ev.AchievementID, ErrUnknownAchievement)
		}
		ap := p.Achievements[ev.AchievementID]
		if ap == nil {
			ap = &AchievementProgress{AchievementID: ev.AchievementID}
			p.Achievements[ev.AchievementID] = ap
		}

		// Clamp before adding: a delta of any magnitude lands on the
		// target without overflowing int64.
		var count int64
		if ev.Delta >= a.Target-ap.Count {
			count = a.Target
		} else {
			count = ap.Count + ev.Delta
		}
		ap.Count = count
		ap.Level = achievementLevel(count, a)

		if count == a.Target && !ap.Completed {
			ap.Completed = true
			ap.CompletedAt = ev.CreatedAt
			p.TotalXP += a.XPReward
			p.PointsBalance += a.XPReward
			p.CurrentLevel = cat.LevelFor(p.TotalXP)
			p.checkBadges(ev.AchievementID, ev.CreatedAt, cat)
		}

	case EventRedemption:
		r, ok := cat.Reward(ev.RewardID)
		if !ok {
			return fmt.Errorf("reward %q: %w", ev.RewardID, ErrUnknownReward)
		}
		p.PointsBalance -= r.Cost
		p.Redemptions = append(p.Redemptions, RedemptionRecord{
			RewardID:         ev.RewardID,
			PointsSpent:      r.Cost,
			At:               ev.CreatedAt,
			ResultingBalance: p.PointsBalance,
			RequestID:        ev.RequestID,
			Seq:              ev.Seq,
		})

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	p.Seq = ev.Seq
	return nil
}

// checkBadges re-evaluates every badge referencing the just-completed
// achievement. Unlocks only ever go one way.
func (p *Projection) checkBadges(completed catalog.AchievementID, at time.Time, cat *catalog.Catalog) {
	for _, b := range cat.BadgesReferencing(completed) {
		if p.Unlocked(b.ID) {
			continue
		}
		done := 0
		for _, id := range b.Rule.AchievementIDs {
			if ap, ok := p.Achievements[id]; ok && ap.Completed {
				done++
			}
		}
		if done >= b.Rule.RequiredCompletions {
			p.Badges[b.ID] = &BadgeUnlock{BadgeID: b.ID, UnlockedAt: at}
		}
	}
}

// Fold replays an ordered event sequence into a fresh projection.
// Used for cold starts, audits, and projection-logic migrations.
func Fold(userID string, events []Event, cat *catalog.Catalog) (*Projection, error) {
	p := NewProjection(userID, cat)
	for i := range events {
		if err := p.Apply(&events[i], cat); err != nil {
			return nil, fmt.Errorf("fold seq %d: %w", events[i].Seq, err)
		}
	}
	return p, nil
}

// achievementLevel maps a progress count onto the achievement's level scale.
// Level maxLevel is reached exactly at the target.
func achievementLevel(count int64, a catalog.Achievement) int {
	l := int(count * int64(a.MaxLevel) / a.Target)
	if l > a.MaxLevel {
		l = a.MaxLevel
	}
	return l
}
