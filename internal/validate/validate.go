// Package validate normalizes raw records from any data source into fully
// populated domain values. Every function is pure, substitutes documented
// defaults for missing fields, and never fails except for the one
// non-defaultable invariant: a profile must carry a user identifier.
package validate

import (
	"time"

	"github.com/profile-sync/internal/domain"
)

// DefaultDisplayName is used when a source returns a profile without a name.
const DefaultDisplayName = "Player"

// Profile normalizes a raw profile record. It returns false only when the
// record lacks a user identifier, since an identity cannot be fabricated
// client-side. Re-validating an already valid profile returns an identical
// record.
func Profile(raw *domain.Profile) (*domain.Profile, bool) {
	if raw == nil || raw.ID == "" {
		return nil, false
	}
	p := raw.Clone()
	if p.DisplayName == "" {
		p.DisplayName = DefaultDisplayName
	}
	if p.Attributes == nil {
		p.Attributes = map[string]interface{}{}
	}
	if p.CurrentLevel < 1 {
		p.CurrentLevel = domain.LevelForXP(p.TotalXP)
	}
	if p.TotalXP < 0 {
		p.TotalXP = 0
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return p, true
}

// Stats normalizes a raw stats record. A nil input yields the canonical
// zero-state record. Level progress and points-to-next-level are always
// recomputed from the point total; the badge count is always resynchronized
// with the badge list.
func Stats(raw *domain.Stats) *domain.Stats {
	if raw == nil {
		return DefaultStats()
	}
	s := raw.Clone()
	if s.TotalXP < 0 {
		s.TotalXP = 0
	}
	if s.CurrentLevel < 1 {
		s.CurrentLevel = domain.LevelForXP(s.TotalXP)
	}
	s.LevelProgress = domain.ProgressForXP(s.TotalXP)
	s.XPToNextLevel = domain.XPPerLevel - int64(s.LevelProgress)
	if s.BadgesList == nil {
		s.BadgesList = []string{}
	}
	s.BadgesCount = len(s.BadgesList)
	if s.Rank < 0 {
		s.Rank = 0
	}
	if s.WeeklyXP < 0 {
		s.WeeklyXP = 0
	}
	if s.MonthlyXP < 0 {
		s.MonthlyXP = 0
	}
	if s.ActivityCount < 0 {
		s.ActivityCount = 0
	}
	if s.StreakDays < 0 {
		s.StreakDays = 0
	}
	return s
}

// Badges normalizes a raw earned-badge list. Entries without a definition
// name are dropped; a nil list becomes an empty one.
func Badges(raw []domain.EarnedBadge) []domain.EarnedBadge {
	out := make([]domain.EarnedBadge, 0, len(raw))
	for _, b := range raw {
		if b.Name == "" {
			continue
		}
		if b.Rarity == "" {
			b.Rarity = domain.RarityCommon
		}
		if b.EarnedAt.IsZero() {
			b.EarnedAt = time.Unix(0, 0).UTC()
		}
		out = append(out, b)
	}
	return out
}

// DefaultStats returns the canonical zero-state stats record used whenever no
// data source yields anything: level 1, zero points, no badges.
func DefaultStats() *domain.Stats {
	return &domain.Stats{
		TotalXP:       0,
		CurrentLevel:  1,
		LevelProgress: 0,
		BadgesCount:   0,
		BadgesList:    []string{},
		XPToNextLevel: domain.XPPerLevel,
	}
}
