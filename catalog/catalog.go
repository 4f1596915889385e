/*
Package catalog defines the immutable configuration of the loyalty program:
achievements, badges, reward tiers, and redeemable rewards.

PURPOSE:
  The catalog is loaded once at startup (from YAML or the built-in default)
  and never mutated afterwards. Every other component treats it as read-only
  reference data: the progression engine validates events against it, the
  service folds events with it, and the API renders it.

KEY CONCEPTS IN THIS FILE (catalog.go):
  - Achievement: a countable goal with an XP reward on completion
  - Badge: unlocked when enough referenced achievements are completed
  - Tier: an XP threshold that maps total XP to a membership level
  - Reward: a redeemable item with a point cost and availability flag

DESIGN PRINCIPLES:
  1. Immutability: exported accessors return copies; internal maps are
     never exposed
  2. Validation at load time: a catalog that passes New() cannot produce
     an inconsistent projection later
  3. Type safety: distinct ID types prevent mixing achievement, badge,
     and reward identifiers

USAGE:
  cat, err := catalog.New(achievements, badges, tiers, rewards)
  level := cat.LevelFor(totalXP)
  a, ok := cat.Achievement("dawn-patrol")

SEE ALSO:
  - load.go: YAML catalog files
  - default.go: built-in travel-themed catalog
  - progression/engine.go: validation and fold against the catalog
*/
package catalog

import (
	"fmt"
	"sort"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AchievementID string
type BadgeID string
type RewardID string

// Category groups achievements by travel style.
type Category string

const (
	CategoryExplorer   Category = "explorer"
	CategoryAdventurer Category = "adventurer"
	CategoryCultural   Category = "cultural"
	CategoryLuxury     Category = "luxury"
	CategorySocial     Category = "social"
)

var validCategories = map[Category]bool{
	CategoryExplorer:   true,
	CategoryAdventurer: true,
	CategoryCultural:   true,
	CategoryLuxury:     true,
	CategorySocial:     true,
}

// =============================================================================
// ACHIEVEMENT - Countable goal with an XP reward
// =============================================================================

type Achievement struct {
	ID       AchievementID
	Name     string
	Category Category

	// Target is the count at which the achievement completes. Always > 0.
	Target int64

	// XPReward is credited once, when the count reaches Target.
	XPReward int64

	// MaxLevel partitions progress into display levels. Always >= 1.
	MaxLevel int
}

// =============================================================================
// BADGE - Unlocked by completing referenced achievements
// =============================================================================

// UnlockRule names the achievements a badge watches and how many of them
// must be completed before the badge unlocks.
type UnlockRule struct {
	AchievementIDs      []AchievementID
	RequiredCompletions int
}

type Badge struct {
	ID   BadgeID
	Name string
	Tier int
	Rule UnlockRule
}

// =============================================================================
// TIER - XP threshold defining a membership level
// =============================================================================

type Tier struct {
	Level     int
	Threshold int64
	Benefits  []string
}

// =============================================================================
// REWARD - Redeemable item with a point cost
// =============================================================================

type Reward struct {
	ID   RewardID
	Name string
	Cost int64

	// Available is admin-controlled and independent of any user state.
	Available bool
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the validated, immutable set of program definitions.
type Catalog struct {
	achievements        map[AchievementID]Achievement
	achievementOrder    []AchievementID
	badges              []Badge
	badgesByAchievement map[AchievementID][]int // indexes into badges
	tiers               []Tier                  // sorted by level
	rewards             map[RewardID]Reward
	rewardOrder         []RewardID
}

// New validates the definitions and builds the lookup structures.
//
// Rules enforced here:
//   - achievement: unique id, known category, target > 0, xp >= 0, maxLevel >= 1
//   - badge: unique id, tier >= 1, references only known achievements,
//     0 < requiredCompletions <= len(achievementIDs)
//   - tiers: at least one, levels strictly increasing from 1, thresholds
//     strictly increasing, first threshold == 0
//   - reward: unique id, cost > 0
func New(achievements []Achievement, badges []Badge, tiers []Tier, rewards []Reward) (*Catalog, error) {
	c := &Catalog{
		achievements:        make(map[AchievementID]Achievement, len(achievements)),
		badgesByAchievement: make(map[AchievementID][]int),
		rewards:             make(map[RewardID]Reward, len(rewards)),
	}

	for _, a := range achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement with empty id")
		}
		if _, dup := c.achievements[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement %q", a.ID)
		}
		if !validCategories[a.Category] {
			return nil, fmt.Errorf("achievement %q: unknown category %q", a.ID, a.Category)
		}
		if a.Target <= 0 {
			return nil, fmt.Errorf("achievement %q: target must be > 0, got %d", a.ID, a.Target)
		}
		if a.XPReward < 0 {
			return nil, fmt.Errorf("achievement %q: xp reward must be >= 0, got %d", a.ID, a.XPReward)
		}
		if a.MaxLevel < 1 {
			return nil, fmt.Errorf("achievement %q: max level must be >= 1, got %d", a.ID, a.MaxLevel)
		}
		c.achievements[a.ID] = a
		c.achievementOrder = append(c.achievementOrder, a.ID)
	}

	seenBadges := make(map[BadgeID]bool, len(badges))
	for _, b := range badges {
		if b.ID == "" {
			return nil, fmt.Errorf("badge with empty id")
		}
		if seenBadges[b.ID] {
			return nil, fmt.Errorf("duplicate badge %q", b.ID)
		}
		seenBadges[b.ID] = true
		if b.Tier < 1 {
			return nil, fmt.Errorf("badge %q: tier must be >= 1, got %d", b.ID, b.Tier)
		}
		if len(b.Rule.AchievementIDs) == 0 {
			return nil, fmt.Errorf("badge %q: unlock rule references no achievements", b.ID)
		}
		for _, id := range b.Rule.AchievementIDs {
			if _, ok := c.achievements[id]; !ok {
				return nil, fmt.Errorf("badge %q: unknown achievement %q", b.ID, id)
			}
		}
		if b.Rule.RequiredCompletions == 0 {
			// Default: all referenced achievements must be completed.
			b.Rule.RequiredCompletions = len(b.Rule.AchievementIDs)
		}
		if b.Rule.RequiredCompletions < 0 || b.Rule.RequiredCompletions > len(b.Rule.AchievementIDs) {
			return nil, fmt.Errorf("badge %q: required completions %d out of range [1,%d]",
				b.ID, b.Rule.RequiredCompletions, len(b.Rule.AchievementIDs))
		}
		idx := len(c.badges)
		c.badges = append(c.badges, b)
		for _, id := range b.Rule.AchievementIDs {
			c.badgesByAchievement[id] = append(c.badgesByAchievement[id], idx)
		}
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one reward tier is required")
	}
	c.tiers = append(c.tiers, tiers...)
	sort.Slice(c.tiers, func(i, j int) bool { return c.tiers[i].Level < c.tiers[j].Level })
	if c.tiers[0].Level != 1 {
		return nil, fmt.Errorf("first tier must be level 1, got %d", c.tiers[0].Level)
	}
	if c.tiers[0].Threshold != 0 {
		return nil, fmt.Errorf("tier 1 threshold must be 0, got %d", c.tiers[0].Threshold)
	}
	for i := 1; i < len(c.tiers); i++ {
		if c.tiers[i].Level <= c.tiers[i-1].Level {
			return nil, fmt.Errorf("tier levels must be strictly increasing: %d after %d",
				c.tiers[i].Level, c.tiers[i-1].Level)
		}
		if c.tiers[i].Threshold <= c.tiers[i-1].Threshold {
			return nil, fmt.Errorf("tier thresholds must be strictly increasing: %d after %d",
				c.tiers[i].Threshold, c.tiers[i-1].Threshold)
		}
	}

	for _, r := range rewards {
		if r.ID == "" {
			return nil, fmt.Errorf("reward with empty id")
		}
		if _, dup := c.rewards[r.ID]; dup {
			return nil, fmt.Errorf("duplicate reward %q", r.ID)
		}
		if r.Cost <= 0 {
			return nil, fmt.Errorf("reward %q: cost must be > 0, got %d", r.ID, r.Cost)
		}
		c.rewards[r.ID] = r
		c.rewardOrder = append(c.rewardOrder, r.ID)
	}

	return c, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Achievement returns the achievement with the given id.
func (c *Catalog) Achievement(id AchievementID) (Achievement, bool) {
	a, ok := c.achievements[id]
	return a, ok
}

// Achievements returns all achievements in declaration order.
func (c *Catalog) Achievements() []Achievement {
	out := make([]Achievement, 0, len(c.achievementOrder))
	for _, id := range c.achievementOrder {
		out = append(out, c.achievements[id])
	}
	return out
}

// Badges returns all badges.
func (c *Catalog) Badges() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// BadgesReferencing returns the badges whose unlock rule references the
// given achievement. Used by the fold to re-check unlocks after a completion.
func (c *Catalog) BadgesReferencing(id AchievementID) []Badge {
	idxs := c.badgesByAchievement[id]
	out := make([]Badge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.badges[i])
	}
	return out
}

// Reward returns the reward with the given id.
func (c *Catalog) Reward(id RewardID) (Reward, bool) {
	r, ok := c.rewards[id]
	return r, ok
}

// Rewards returns all rewards in declaration order.
func (c *Catalog) Rewards() []Reward {
	out := make([]Reward, 0, len(c.rewardOrder))
	for _, id := range c.rewardOrder {
		out = append(out, c.rewards[id])
	}
	return out
}

// Tiers returns the tier table sorted by level.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// =============================================================================
// LEVEL MATH
// =============================================================================

// LevelFor returns the highest tier level whose threshold is <= totalXP.
// Binary search over the sorted threshold table.
func (c *Catalog) LevelFor(totalXP int64) int {
	// First tier above totalXP; the answer is the one before it.
	i := sort.Search(len(c.tiers), func(i int) bool {
		return c.tiers[i].Threshold > totalXP
	})
	if i == 0 {
		return c.tiers[0].Level
	}
	return c.tiers[i-1].Level
}

// TierFor returns the tier definition for a level.
func (c *Catalog) TierFor(level int) (Tier, bool) {
	i := sort.Search(len(c.tiers), func(i int) bool {
		return c.tiers[i].Level >= level
	})
	if i < len(c.tiers) && c.tiers[i].Level == level {
		return c.tiers[i], true
	}
	return Tier{}, false
}

// NextThreshold returns the XP threshold of the next tier above totalXP.
// ok is false when totalXP is already at or beyond the top tier.
func (c *Catalog) NextThreshold(totalXP int64) (int64, bool) {
	i := sort.Search(len(c.tiers), func(i int) bool {
		return c.tiers[i].Threshold > totalXP
	})
	if i == len(c.tiers) {
		return 0, false
	}
	return c.tiers[i].Threshold, true
}
