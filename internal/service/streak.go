package service

import (
	"time"

	"power6/internal/model"
)

// DefaultStreakThreshold is how many streak-bound completions make a day count.
const DefaultStreakThreshold = 6

// Streak is the current run of consecutive met days ending today (UTC).
type Streak struct {
	Count             int  `json:"streak_count"`
	TodayCount        int  `json:"today_count"`
	HasCompletedToday bool `json:"has_completed_today"`
	Threshold         int  `json:"threshold"`
}

// ComputeStreak walks back from the UTC date of now while each day has at
// least threshold completions in counts (keyed YYYY-MM-DD). The first day
// below the threshold ends the streak, today included.
func ComputeStreak(counts map[string]int, now time.Time, threshold int) Streak {
	if threshold < 1 {
		threshold = 1
	}

	today := startOfDay(now)
	todayCount := counts[model.DateKey(today)]

	streak := 0
	for day := today; counts[model.DateKey(day)] >= threshold; day = day.AddDate(0, 0, -1) {
		streak++
	}

	return Streak{
		Count:             streak,
		TodayCount:        todayCount,
		HasCompletedToday: todayCount >= threshold,
		Threshold:         threshold,
	}
}
