package model

import "time"

// Task is a single item on a user's list.
type Task struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index;index:ix_tasks_user_completed,priority:1;index:ix_tasks_user_streak,priority:1;index:ix_tasks_user_completed_at,priority:1" json:"user_id"`
	Title        string     `gorm:"not null" json:"title"`
	Notes        *string    `json:"notes"`
	Priority     Priority   `gorm:"not null;check:ck_tasks_priority_range,priority IN (0,1,2)" json:"priority"`
	ScheduledFor *time.Time `gorm:"index" json:"scheduled_for"`
	StreakBound  bool       `gorm:"not null;default:false;index:ix_tasks_user_streak,priority:2" json:"streak_bound"`
	Completed    bool       `gorm:"not null;default:false;index:ix_tasks_user_completed,priority:2;index:ix_tasks_user_streak,priority:3" json:"completed"`
	CompletedAt  *time.Time `gorm:"index:ix_tasks_user_completed_at,priority:2" json:"completed_at"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"-"`
}

// DayKey is the UTC calendar date the task belongs to: the scheduled date when
// set, otherwise the creation date.
func (t Task) DayKey() string {
	if t.ScheduledFor != nil {
		return DateKey(*t.ScheduledFor)
	}
	return DateKey(t.CreatedAt)
}

// DateKey formats the UTC calendar date of ts as YYYY-MM-DD.
func DateKey(ts time.Time) string {
	return ts.UTC().Format(time.DateOnly)
}
