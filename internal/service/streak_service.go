package service

import (
	"context"
	"time"
)

// CompletionCounter aggregates qualifying completions per UTC day.
type CompletionCounter interface {
	DailyCompletionCounts(ctx context.Context, userID uint) (map[string]int, error)
}

// StreakService recomputes streaks from stored completions on every call.
// Nothing about a streak is persisted.
type StreakService struct {
	counter   CompletionCounter
	threshold int
	now       Clock
}

func NewStreakService(counter CompletionCounter, threshold int, clock Clock) *StreakService {
	if threshold <= 0 {
		threshold = DefaultStreakThreshold
	}
	if clock == nil {
		clock = time.Now
	}
	return &StreakService{counter: counter, threshold: threshold, now: clock}
}

func (s *StreakService) Threshold() int {
	return s.threshold
}

func (s *StreakService) GetStreak(ctx context.Context, userID uint) (Streak, error) {
	counts, err := s.counter.DailyCompletionCounts(ctx, userID)
	if err != nil {
		return Streak{}, err
	}
	return ComputeStreak(counts, s.now(), s.threshold), nil
}

// Refresh is an explicit recompute for clients that want one; it is the same
// read as GetStreak.
func (s *StreakService) Refresh(ctx context.Context, userID uint) (Streak, error) {
	return s.GetStreak(ctx, userID)
}
