package domain

// XPPerLevel is the flat point threshold between levels. Level progress is
// always recomputed from TotalXP so the two can never drift apart.
const XPPerLevel = 100

// Stats is the derived, denormalized aggregate for a user. It is absent until
// the first successful fetch and may be synthesized locally with zero values
// when every remote source fails.
type Stats struct {
	UserID        string   `json:"user_id"`
	TotalXP       int64    `json:"total_xp"`
	CurrentLevel  int      `json:"current_level"`
	LevelProgress int      `json:"level_progress"`
	BadgesCount   int      `json:"badges_count"`
	BadgesList    []string `json:"badges_list"`
	Rank          int64    `json:"rank"`
	WeeklyXP      int64    `json:"weekly_xp"`
	MonthlyXP     int64    `json:"monthly_xp"`
	XPToNextLevel int64    `json:"xp_to_next_level"`
	ActivityCount int64    `json:"activity_count"`
	StreakDays    int      `json:"streak_days"`
}

// Clone returns a copy with its own badge list.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return nil
	}
	cp := *s
	if s.BadgesList != nil {
		cp.BadgesList = append([]string(nil), s.BadgesList...)
	}
	return &cp
}

// LevelForXP returns the level implied by a point total.
func LevelForXP(totalXP int64) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return int(totalXP/XPPerLevel) + 1
}

// ProgressForXP returns the 0-100 progress within the current level.
func ProgressForXP(totalXP int64) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return int(totalXP % XPPerLevel)
}
