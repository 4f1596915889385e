/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients, decoupled from the
  domain types. Responses join projection state with catalog metadata
  (names, categories, thresholds) so clients never need a second lookup.

CONVENTIONS:
  - snake_case JSON field names
  - Timestamps in RFC 3339
  - Omitted fields via omitempty where absence is meaningful

SEE ALSO:
  - handlers.go: where these are populated
  - progression/engine.go: the domain types they mirror
*/
package api

import (
	"time"

	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ProgressRequest grants progress on an achievement.
type ProgressRequest struct {
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Delta         int64  `json:"delta"`
	RequestID     string `json:"request_id"`
}

// RedeemRequest spends points on a reward.
type RedeemRequest struct {
	UserID    string `json:"user_id"`
	RewardID  string `json:"reward_id"`
	RequestID string `json:"request_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// AchievementProgressDTO is one achievement's progress joined with its
// catalog entry.
type AchievementProgressDTO struct {
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Count         int64  `json:"count"`
	Target        int64  `json:"target"`
	Level         int    `json:"level"`
	MaxLevel      int    `json:"max_level"`
	Completed     bool   `json:"completed"`
	CompletedAt   string `json:"completed_at,omitempty"`
	XPReward      int64  `json:"xp_reward"`
}

// BadgeDTO is an unlocked badge with its catalog metadata.
type BadgeDTO struct {
	BadgeID    string `json:"badge_id"`
	Name       string `json:"name"`
	Tier       int    `json:"tier"`
	UnlockedAt string `json:"unlocked_at"`
}

// RedemptionDTO is one entry of the user's redemption history.
type RedemptionDTO struct {
	RewardID         string `json:"reward_id"`
	RewardName       string `json:"reward_name"`
	PointsSpent      int64  `json:"points_spent"`
	ResultingBalance int64  `json:"resulting_balance"`
	At               string `json:"at"`
	RequestID        string `json:"request_id"`
}

// StateDTO is the full derived state for one user.
type StateDTO struct {
	UserID        string                   `json:"user_id"`
	Seq           int64                    `json:"seq"`
	TotalXP       int64                    `json:"total_xp"`
	CurrentLevel  int                      `json:"current_level"`
	Benefits      []string                 `json:"benefits"`
	NextThreshold *int64                   `json:"next_level_threshold,omitempty"`
	LevelProgress float64                  `json:"level_progress_pct"`
	PointsBalance int64                    `json:"points_balance"`
	Achievements  []AchievementProgressDTO `json:"achievements"`
	Badges        []BadgeDTO               `json:"badges"`
	Redemptions   []RedemptionDTO          `json:"redemptions"`
}

// RedeemResponseDTO wraps the redemption outcome with the new state.
type RedeemResponseDTO struct {
	Redemption *RedemptionDTO `json:"redemption,omitempty"`
	State      StateDTO       `json:"state"`
}

// EventDTO is one ledger entry, for the audit endpoint.
type EventDTO struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	Type          string `json:"type"`
	AchievementID string `json:"achievement_id,omitempty"`
	Delta         int64  `json:"delta,omitempty"`
	RewardID      string `json:"reward_id,omitempty"`
	RequestID     string `json:"request_id"`
	CreatedAt     string `json:"created_at"`
}

// AchievementDTO is a catalog achievement definition.
type AchievementDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Target   int64  `json:"target"`
	XPReward int64  `json:"xp_reward"`
	MaxLevel int    `json:"max_level"`
}

// BadgeDefDTO is a catalog badge definition with its unlock rule.
type BadgeDefDTO struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Tier         int      `json:"tier"`
	Achievements []string `json:"achievements"`
	Required     int      `json:"required"`
}

// TierDTO is a catalog reward tier.
type TierDTO struct {
	Level     int      `json:"level"`
	Threshold int64    `json:"threshold"`
	Benefits  []string `json:"benefits"`
}

// RewardDTO is a catalog reward.
type RewardDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Cost      int64  `json:"cost"`
	Available bool   `json:"available"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toStateDTO(p *progression.Projection, cat *catalog.Catalog) StateDTO {
	dto := StateDTO{
		UserID:        p.UserID,
		Seq:           p.Seq,
		TotalXP:       p.TotalXP,
		CurrentLevel:  p.CurrentLevel,
		PointsBalance: p.PointsBalance,
		Achievements:  make([]AchievementProgressDTO, 0, len(p.Achievements)),
		Badges:        make([]BadgeDTO, 0, len(p.Badges)),
		Redemptions:   make([]RedemptionDTO, 0, len(p.Redemptions)),
	}

	if tier, ok := cat.TierFor(p.CurrentLevel); ok {
		dto.Benefits = tier.Benefits
	}
	if next, ok := cat.NextThreshold(p.TotalXP); ok {
		dto.NextThreshold = &next
		cur := int64(0)
		if tier, ok := cat.TierFor(p.CurrentLevel); ok {
			cur = tier.Threshold
		}
		if next > cur {
			dto.LevelProgress = float64(p.TotalXP-cur) / float64(next-cur) * 100
		}
	} else {
		dto.LevelProgress = 100
	}

	// Emit achievements in catalog order so the payload is stable.
	for _, a := range cat.Achievements() {
		ap, ok := p.Achievements[a.ID]
		if !ok {
			continue
		}
		d := AchievementProgressDTO{
			AchievementID: string(a.ID),
			Name:          a.Name,
			Category:      string(a.Category),
			Count:         ap.Count,
			Target:        a.Target,
			Level:         ap.Level,
			MaxLevel:      a.MaxLevel,
			Completed:     ap.Completed,
			XPReward:      a.XPReward,
		}
		if !ap.CompletedAt.IsZero() {
			d.CompletedAt = ap.CompletedAt.Format(time.RFC3339)
		}
		dto.Achievements = append(dto.Achievements, d)
	}

	for _, b := range cat.Badges() {
		u, ok := p.Badges[b.ID]
		if !ok {
			continue
		}
		dto.Badges = append(dto.Badges, BadgeDTO{
			BadgeID:    string(b.ID),
			Name:       b.Name,
			Tier:       b.Tier,
			UnlockedAt: u.UnlockedAt.Format(time.RFC3339),
		})
	}

	for _, rec := range p.Redemptions {
		dto.Redemptions = append(dto.Redemptions, toRedemptionDTO(&rec, cat))
	}

	return dto
}

func toRedemptionDTO(rec *progression.RedemptionRecord, cat *catalog.Catalog) RedemptionDTO {
	name := string(rec.RewardID)
	if rw, ok := cat.Reward(rec.RewardID); ok {
		name = rw.Name
	}
	return RedemptionDTO{
		RewardID:         string(rec.RewardID),
		RewardName:       name,
		PointsSpent:      rec.PointsSpent,
		ResultingBalance: rec.ResultingBalance,
		At:               rec.At.Format(time.RFC3339),
		RequestID:        rec.RequestID,
	}
}

func toEventDTO(ev *progression.Event) EventDTO {
	return EventDTO{
		ID:            ev.ID,
		Seq:           ev.Seq,
		Type:          string(ev.Type),
		AchievementID: string(ev.AchievementID),
		Delta:         ev.Delta,
		RewardID:      string(ev.RewardID),
		RequestID:     ev.RequestID,
		CreatedAt:     ev.CreatedAt.Format(time.RFC3339),
	}
}
