package service

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"power6/internal/model"
)

const maxTitleLength = 200

// Field is an optional value for nullable columns: Present tells "not sent"
// apart from "sent as null".
type Field[T any] struct {
	Present bool
	Value   T
}

// Value returns a present Field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: v}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Present = true
	return json.Unmarshal(data, &f.Value)
}

// TaskPatch is a partial update. Nil pointers and absent Fields leave the
// column untouched.
type TaskPatch struct {
	Title        *string              `json:"title"`
	Notes        Field[*string]       `json:"notes"`
	Priority     *model.PriorityValue `json:"priority"`
	ScheduledFor Field[*time.Time]    `json:"scheduled_for"`
	StreakBound  *bool                `json:"streak_bound"`
	Completed    *bool                `json:"completed"`
	CompletedAt  Field[*time.Time]    `json:"completed_at"`
	ReviewedAt   Field[*time.Time]    `json:"reviewed_at"`
}

// Validate checks the patch on its own, before it touches a task.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if _, err := normalizeTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Completed != nil && !*p.Completed && p.CompletedAt.Present && p.CompletedAt.Value != nil {
		return invalid("completed_at", "cannot be set on a task marked not completed")
	}
	return nil
}

// completion resolves the requested completion state. A completed_at sent
// without completed decides it: a timestamp completes the task, null reopens it.
func (p TaskPatch) completion() (requested *bool, stamp *time.Time) {
	if p.CompletedAt.Present {
		stamp = p.CompletedAt.Value
	}
	if p.Completed != nil {
		return p.Completed, stamp
	}
	if p.CompletedAt.Present {
		done := stamp != nil
		return &done, stamp
	}
	return nil, nil
}

// ApplyPatch applies patch to task and keeps Completed and CompletedAt in
// step: CompletedAt is set exactly when Completed is true. Only a change of
// the completion state moves the timestamp.
func ApplyPatch(task *model.Task, patch TaskPatch, now time.Time) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	previous := task.Completed

	if patch.Title != nil {
		task.Title, _ = normalizeTitle(*patch.Title)
	}
	if patch.Notes.Present {
		task.Notes = patch.Notes.Value
	}
	if patch.Priority != nil {
		task.Priority = patch.Priority.Priority
	}
	if patch.ScheduledFor.Present {
		task.ScheduledFor = utcPtr(patch.ScheduledFor.Value)
	}
	if patch.StreakBound != nil {
		task.StreakBound = *patch.StreakBound
	}
	if patch.ReviewedAt.Present {
		task.ReviewedAt = utcPtr(patch.ReviewedAt.Value)
	}

	requested, stamp := patch.completion()
	if requested == nil {
		return nil
	}
	switch {
	case *requested && !previous:
		if stamp != nil {
			task.CompletedAt = utcPtr(stamp)
		}
		markCompleted(task, now)
	case !*requested && previous:
		markOpen(task)
	case *requested && previous && stamp != nil:
		task.CompletedAt = utcPtr(stamp)
	}
	return nil
}

// Toggle flips the completion state with the same transition rules as ApplyPatch.
func Toggle(task *model.Task, now time.Time) {
	if task.Completed {
		markOpen(task)
		return
	}
	markCompleted(task, now)
}

// markCompleted keeps an existing completion timestamp so retried requests do
// not move it.
func markCompleted(task *model.Task, now time.Time) {
	task.Completed = true
	if task.CompletedAt == nil {
		ts := now.UTC()
		task.CompletedAt = &ts
	}
}

func markOpen(task *model.Task) {
	task.Completed = false
	task.CompletedAt = nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", invalid("title", "must be at most %d characters", maxTitleLength)
	}
	return title, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
