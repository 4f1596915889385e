/*
default.go - Built-in catalog

PURPOSE:
  A complete, validated catalog used when no catalog file is configured.
  Mirrors the travel-themed program the product ships with: achievements
  across the five categories, bronze through platinum badges, four
  membership tiers, and a small redemption storefront.

SEE ALSO:
  - load.go: file-based catalogs override this
*/
package catalog

// Default returns the built-in travel catalog.
// The definitions here pass New(), so Default never fails.
func Default() *Catalog {
	achievements := []Achievement{
		{ID: "dawn-patrol", Name: "Dawn Patrol", Category: CategoryAdventurer, Target: 3, XPReward: 150, MaxLevel: 3},
		{ID: "summit-seeker", Name: "Summit Seeker", Category: CategoryAdventurer, Target: 5, XPReward: 300, MaxLevel: 5},
		{ID: "city-wanderer", Name: "City Wanderer", Category: CategoryExplorer, Target: 10, XPReward: 250, MaxLevel: 5},
		{ID: "hidden-gems", Name: "Hidden Gems", Category: CategoryExplorer, Target: 7, XPReward: 200, MaxLevel: 3},
		{ID: "street-food-scout", Name: "Street Food Scout", Category: CategoryCultural, Target: 8, XPReward: 180, MaxLevel: 4},
		{ID: "museum-marathon", Name: "Museum Marathon", Category: CategoryCultural, Target: 5, XPReward: 220, MaxLevel: 5},
		{ID: "five-star-nights", Name: "Five-Star Nights", Category: CategoryLuxury, Target: 3, XPReward: 400, MaxLevel: 3},
		{ID: "spa-sojourner", Name: "Spa Sojourner", Category: CategoryLuxury, Target: 4, XPReward: 260, MaxLevel: 2},
		{ID: "travel-storyteller", Name: "Travel Storyteller", Category: CategorySocial, Target: 6, XPReward: 160, MaxLevel: 3},
		{ID: "group-guide", Name: "Group Guide", Category: CategorySocial, Target: 4, XPReward: 240, MaxLevel: 4},
	}

	badges := []Badge{
		{ID: "first-light", Name: "First Light", Tier: 1,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"dawn-patrol"}, RequiredCompletions: 1}},
		{ID: "trailblazer", Name: "Trailblazer", Tier: 2,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"dawn-patrol", "summit-seeker"}, RequiredCompletions: 2}},
		{ID: "pathfinder", Name: "Pathfinder", Tier: 2,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"city-wanderer", "hidden-gems"}, RequiredCompletions: 1}},
		{ID: "culture-keeper", Name: "Culture Keeper", Tier: 3,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"street-food-scout", "museum-marathon"}, RequiredCompletions: 2}},
		{ID: "gilded-globetrotter", Name: "Gilded Globetrotter", Tier: 3,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"five-star-nights", "spa-sojourner"}, RequiredCompletions: 2}},
		{ID: "world-voice", Name: "World Voice", Tier: 4,
			Rule: UnlockRule{AchievementIDs: []AchievementID{"travel-storyteller", "group-guide", "city-wanderer"}, RequiredCompletions: 3}},
	}

	tiers := []Tier{
		{Level: 1, Threshold: 0, Benefits: []string{"Member rates", "Trip wishlists"}},
		{Level: 2, Threshold: 500, Benefits: []string{"Priority support", "Early itinerary access"}},
		{Level: 3, Threshold: 1200, Benefits: []string{"Free cancellation", "Partner hotel upgrades"}},
		{Level: 4, Threshold: 2500, Benefits: []string{"Dedicated concierge", "Annual companion voucher"}},
	}

	rewards := []Reward{
		{ID: "lounge-pass", Name: "Airport Lounge Pass", Cost: 300, Available: true},
		{ID: "seat-upgrade", Name: "Seat Upgrade Voucher", Cost: 550, Available: true},
		{ID: "late-checkout", Name: "Guaranteed Late Checkout", Cost: 200, Available: true},
		{ID: "city-tour", Name: "Private City Tour", Cost: 800, Available: true},
		{ID: "heli-transfer", Name: "Helicopter Transfer", Cost: 2000, Available: false},
	}

	c, err := New(achievements, badges, tiers, rewards)
	if err != nil {
		// Unreachable for the definitions above; keeps the signature simple.
		panic("catalog: invalid default catalog: " + err.Error())
	}
	return c
}
