/*
load.go - YAML catalog files

PURPOSE:
  Deployments ship the catalog as a YAML file so program changes (new
  achievements, reward pricing, tier thresholds) don't require a rebuild.
  Parsing goes through New(), so a file that loads is a file that satisfies
  every catalog invariant.

FORMAT:
  achievements:
    - id: dawn-patrol
      name: Dawn Patrol
      category: adventurer
      target: 3
      xp_reward: 150
      max_level: 3
  badges:
    - id: sunrise-bronze
      name: Sunrise Chaser
      tier: 1
      achievements: [dawn-patrol]
      required: 1
  tiers:
    - level: 1
      threshold: 0
      benefits: ["Member rates"]
  rewards:
    - id: lounge-pass
      name: Airport Lounge Pass
      cost: 300
      available: true

SEE ALSO:
  - catalog.go: validation rules applied after parsing
  - default.go: the catalog used when no file is configured
*/
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML SCHEMA
// =============================================================================

type fileSchema struct {
	Achievements []achievementYAML `yaml:"achievements"`
	Badges       []badgeYAML       `yaml:"badges"`
	Tiers        []tierYAML        `yaml:"tiers"`
	Rewards      []rewardYAML      `yaml:"rewards"`
}

type achievementYAML struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Target   int64  `yaml:"target"`
	XPReward int64  `yaml:"xp_reward"`
	MaxLevel int    `yaml:"max_level"`
}

type badgeYAML struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Tier         int      `yaml:"tier"`
	Achievements []string `yaml:"achievements"`
	Required     int      `yaml:"required"`
}

type tierYAML struct {
	Level     int      `yaml:"level"`
	Threshold int64    `yaml:"threshold"`
	Benefits  []string `yaml:"benefits"`
}

type rewardYAML struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Cost      int64  `yaml:"cost"`
	Available bool   `yaml:"available"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}

	achievements := make([]Achievement, 0, len(f.Achievements))
	for _, a := range f.Achievements {
		ml := a.MaxLevel
		if ml == 0 {
			ml = 1
		}
		achievements = append(achievements, Achievement{
			ID:       AchievementID(a.ID),
			Name:     a.Name,
			Category: Category(a.Category),
			Target:   a.Target,
			XPReward: a.XPReward,
			MaxLevel: ml,
		})
	}

	badges := make([]Badge, 0, len(f.Badges))
	for _, b := range f.Badges {
		ids := make([]AchievementID, 0, len(b.Achievements))
		for _, id := range b.Achievements {
			ids = append(ids, AchievementID(id))
		}
		badges = append(badges, Badge{
			ID:   BadgeID(b.ID),
			Name: b.Name,
			Tier: b.Tier,
			Rule: UnlockRule{AchievementIDs: ids, RequiredCompletions: b.Required},
		})
	}

	tiers := make([]Tier, 0, len(f.Tiers))
	for _, t := range f.Tiers {
		tiers = append(tiers, Tier{Level: t.Level, Threshold: t.Threshold, Benefits: t.Benefits})
	}

	rewards := make([]Reward, 0, len(f.Rewards))
	for _, r := range f.Rewards {
		rewards = append(rewards, Reward{
			ID:        RewardID(r.ID),
			Name:      r.Name,
			Cost:      r.Cost,
			Available: r.Available,
		})
	}

	return New(achievements, badges, tiers, rewards)
}

// LoadFile reads and parses a catalog YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}
