package domain

import (
	"sort"
	"time"
)

// Badge rarity tiers
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityUncommon  BadgeRarity = "uncommon"
	RarityRare      BadgeRarity = "rare"
	RarityLegendary BadgeRarity = "legendary"
)

// Badge is an immutable achievement definition.
type Badge struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Category    string      `json:"category,omitempty"`
	Rarity      BadgeRarity `json:"rarity,omitempty"`
	XPReward    int         `json:"xp_reward"`
}

// EarnedBadge joins a badge definition with the earn timestamp for one user.
// The earn relation is append-only from the client's perspective.
type EarnedBadge struct {
	Badge
	EarnedAt time.Time `json:"earned_at"`
}

// RecentBadgesLimit is how many earned badges the recent-badges projection
// keeps.
const RecentBadgesLimit = 3

// RecentBadges returns the most recently earned badges, newest first,
// truncated to RecentBadgesLimit. The input is not modified.
func RecentBadges(earned []EarnedBadge) []EarnedBadge {
	out := append([]EarnedBadge(nil), earned...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EarnedAt.After(out[j].EarnedAt)
	})
	if len(out) > RecentBadgesLimit {
		out = out[:RecentBadgesLimit]
	}
	return out
}

// BadgeNames projects earned badges to their definition names, preserving
// order.
func BadgeNames(earned []EarnedBadge) []string {
	names := make([]string, len(earned))
	for i, b := range earned {
		names[i] = b.Name
	}
	return names
}
