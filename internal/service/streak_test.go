package service

import (
	"context"
	"testing"
	"time"
)

func TestComputeStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 20, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		counts map[string]int
		now    time.Time
		want   Streak
	}{
		{
			name: "three met days then a short one",
			counts: map[string]int{
				"2025-08-20": 6,
				"2025-08-19": 7,
				"2025-08-18": 6,
				"2025-08-17": 3,
				"2025-08-16": 6,
			},
			now:  now,
			want: Streak{Count: 3, TodayCount: 6, HasCompletedToday: true, Threshold: 6},
		},
		{
			name:   "no completions",
			counts: map[string]int{},
			now:    now,
			want:   Streak{Count: 0, TodayCount: 0, HasCompletedToday: false, Threshold: 6},
		},
		{
			name:   "today one short",
			counts: map[string]int{"2025-08-20": 5, "2025-08-19": 6},
			now:    now,
			want:   Streak{Count: 0, TodayCount: 5, HasCompletedToday: false, Threshold: 6},
		},
		{
			name:   "same data as of yesterday",
			counts: map[string]int{"2025-08-20": 5, "2025-08-19": 6},
			now:    now.AddDate(0, 0, -1),
			want:   Streak{Count: 1, TodayCount: 6, HasCompletedToday: true, Threshold: 6},
		},
		{
			name:   "gap day ends the walk",
			counts: map[string]int{"2025-08-20": 6, "2025-08-18": 6},
			now:    now,
			want:   Streak{Count: 1, TodayCount: 6, HasCompletedToday: true, Threshold: 6},
		},
		{
			name:   "now in another zone uses the UTC date",
			counts: map[string]int{"2025-08-20": 6},
			now:    time.Date(2025, 8, 21, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			want:   Streak{Count: 1, TodayCount: 6, HasCompletedToday: true, Threshold: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStreak(tt.counts, tt.now, 6)
			if got != tt.want {
				t.Errorf("ComputeStreak = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeStreakClampsThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	got := ComputeStreak(map[string]int{"2025-08-20": 1, "2025-08-19": 2}, now, 0)
	if got.Count != 2 || got.Threshold != 1 {
		t.Errorf("ComputeStreak = %+v", got)
	}
}

func TestStreakServiceFromStore(t *testing.T) {
	now := time.Date(2025, 8, 20, 18, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	empty, err := env.streaks.GetStreak(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("GetStreak: %v", err)
	}
	if empty.Count != 0 || empty.HasCompletedToday {
		t.Errorf("empty streak = %+v", empty)
	}

	day := func(offset int) time.Time {
		return time.Date(2025, 8, 20+offset, 8, 0, 0, 0, time.UTC)
	}
	env.seedCompletions(t, env.user.ID, day(0), 6)
	env.seedCompletions(t, env.user.ID, day(-1), 6)
	env.seedCompletions(t, env.user.ID, day(-2), 8)
	env.seedCompletions(t, env.user.ID, day(-3), 3)

	other := env.newUser(t)
	env.seedCompletions(t, other.ID, day(-3), 6)

	got, err := env.streaks.GetStreak(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("GetStreak: %v", err)
	}
	want := Streak{Count: 3, TodayCount: 6, HasCompletedToday: true, Threshold: 6}
	if got != want {
		t.Errorf("GetStreak = %+v, want %+v", got, want)
	}

	again, err := env.streaks.Refresh(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if again != got {
		t.Errorf("Refresh = %+v, want %+v", again, got)
	}
}

func TestStreakServiceIgnoresReopenedTasks(t *testing.T) {
	now := time.Date(2025, 8, 20, 18, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	env.seedCompletions(t, env.user.ID, now.Add(-6*time.Hour), 6)

	tasks, err := env.taskSvc.ListTasks(ctx, env.user.ID, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.taskSvc.ToggleTask(ctx, env.user.ID, tasks[0].ID); err != nil {
		t.Fatal(err)
	}

	got, err := env.streaks.GetStreak(ctx, env.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count != 0 || got.TodayCount != 5 {
		t.Errorf("GetStreak after reopen = %+v", got)
	}
}
