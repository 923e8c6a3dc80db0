package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"power6/internal/model"
)

// SummaryService builds human-readable summaries for daily notifications.
type SummaryService struct {
	tasks   *TaskService
	streaks *StreakService
}

func NewSummaryService(tasks *TaskService, streaks *StreakService) *SummaryService {
	return &SummaryService{tasks: tasks, streaks: streaks}
}

// DailySummary renders the user's streak, today's progress and open tasks as
// Telegram HTML.
func (s *SummaryService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	streak, err := s.streaks.GetStreak(ctx, user.ID)
	if err != nil {
		return "", err
	}
	open, err := s.tasks.TodayTasks(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))
	builder.WriteString(FormatStreak(streak))
	builder.WriteString("\n\n🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing open, well done\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task, now))
		}
	}
	if free := s.tasks.ActiveLimit() - len(open); free > 0 {
		builder.WriteString(fmt.Sprintf("\n➕ Room for %d more task(s) today.", free))
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatStreak renders a streak as two lines of Telegram HTML.
func FormatStreak(streak Streak) string {
	var sb strings.Builder
	switch streak.Count {
	case 0:
		sb.WriteString("🔥 No active streak yet.")
	case 1:
		sb.WriteString("🔥 Streak: <b>1 day</b>")
	default:
		sb.WriteString(fmt.Sprintf("🔥 Streak: <b>%d days</b>", streak.Count))
	}
	mark := "⏳"
	if streak.HasCompletedToday {
		mark = "✅"
	}
	sb.WriteString(fmt.Sprintf("\n%s Today: %d/%d streak tasks done", mark, streak.TodayCount, streak.Threshold))
	return sb.String()
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	switch task.Priority {
	case model.PriorityHigh:
		icon = "🔴"
	case model.PriorityLow:
		icon = "⚪"
	}
	if task.ScheduledFor != nil && now.After(*task.ScheduledFor) && task.DayKey() != model.DateKey(now) {
		icon = "⚠️"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, title))
	if task.StreakBound {
		sb.WriteString(" 🔗")
	}

	if task.ScheduledFor != nil {
		sb.WriteString(fmt.Sprintf("\n   📆 %s", task.ScheduledFor.UTC().Format(time.DateOnly)))
	}
	if task.Notes != nil && strings.TrimSpace(*task.Notes) != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(*task.Notes))))
	}

	sb.WriteByte('\n')
	return sb.String()
}
