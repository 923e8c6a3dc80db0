package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"power6/internal/model"
	"power6/internal/repository"
)

const (
	// DefaultActiveTaskLimit is the number of uncompleted tasks a user may hold.
	DefaultActiveTaskLimit = 6

	defaultListLimit = 50
	maxListLimit     = 200
	historyDays      = 30
)

var orderColumns = map[string]bool{
	"id":            true,
	"title":         true,
	"priority":      true,
	"created_at":    true,
	"scheduled_for": true,
	"completed_at":  true,
}

// Clock returns the current time.
type Clock func() time.Time

// TaskStore is the persistence the task service needs.
type TaskStore interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, userID, taskID uint) error
	CountActive(ctx context.Context, userID uint) (int64, error)
	List(ctx context.Context, userID uint, filter repository.TaskFilter) ([]model.Task, error)
	ListOpenCreatedBefore(ctx context.Context, userID uint, before time.Time) ([]model.Task, error)
	ListCompletedBetween(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error)
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title        string
	Notes        *string
	Priority     model.Priority
	ScheduledFor *time.Time
	StreakBound  bool
	Completed    *bool
	CompletedAt  *time.Time
}

// ListOptions filters and pages ListTasks. Day matches the UTC creation date.
type ListOptions struct {
	Day       *time.Time
	Completed *bool
	Limit     int
	Offset    int
	Order     string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store       TaskStore
	activeLimit int
	now         Clock
}

func NewTaskService(store TaskStore, activeLimit int, clock Clock) *TaskService {
	if activeLimit <= 0 {
		activeLimit = DefaultActiveTaskLimit
	}
	if clock == nil {
		clock = time.Now
	}
	return &TaskService{store: store, activeLimit: activeLimit, now: clock}
}

// ActiveLimit is the configured cap on uncompleted tasks.
func (s *TaskService) ActiveLimit() int {
	return s.activeLimit
}

// CreateTask stores a new task unless the user is already at the active-task cap.
func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput) (*model.Task, error) {
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if input.Completed != nil && !*input.Completed && input.CompletedAt != nil {
		return nil, invalid("completed_at", "cannot be set on a task marked not completed")
	}

	now := s.now().UTC()
	task := &model.Task{
		UserID:       userID,
		Title:        title,
		Notes:        input.Notes,
		Priority:     model.PriorityFromInt(int(input.Priority)),
		ScheduledFor: utcPtr(input.ScheduledFor),
		StreakBound:  input.StreakBound,
		CreatedAt:    now,
	}
	switch {
	case input.CompletedAt != nil:
		task.Completed = true
		task.CompletedAt = utcPtr(input.CompletedAt)
	case input.Completed != nil && *input.Completed:
		markCompleted(task, now)
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkActiveLimit(ctx, userID); err != nil {
			return err
		}
		return s.store.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[info] task created id=%d user=%d streak_bound=%t", task.ID, userID, task.StreakBound)
	return task, nil
}

func (s *TaskService) checkActiveLimit(ctx context.Context, userID uint) error {
	active, err := s.store.CountActive(ctx, userID)
	if err != nil {
		return err
	}
	if active >= int64(s.activeLimit) {
		return fmt.Errorf("%w (%d): complete or remove a task to add a new one", ErrCapacityExceeded, s.activeLimit)
	}
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	return s.findTask(ctx, userID, taskID)
}

// PatchTask applies a partial update in one transaction.
func (s *TaskService) PatchTask(ctx context.Context, userID, taskID uint, patch TaskPatch) (*model.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *model.Task
	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		task, err := s.findTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if err := ApplyPatch(task, patch, s.now()); err != nil {
			return err
		}
		updated = task
		return s.store.Save(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ToggleTask flips the completion state of a task.
func (s *TaskService) ToggleTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var toggled *model.Task
	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		task, err := s.findTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		Toggle(task, s.now())
		toggled = task
		return s.store.Save(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[info] task toggled id=%d user=%d completed=%t", toggled.ID, userID, toggled.Completed)
	return toggled, nil
}

// DeleteTask removes a task owned by the user.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, userID, taskID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}
	log.Printf("[info] task deleted id=%d user=%d", taskID, userID)
	return nil
}

// ListTasks returns the user's tasks filtered and paged by opts.
func (s *TaskService) ListTasks(ctx context.Context, userID uint, opts ListOptions) ([]model.Task, error) {
	filter := repository.TaskFilter{
		Completed: opts.Completed,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}

	switch {
	case filter.Limit == 0:
		filter.Limit = defaultListLimit
	case filter.Limit < 1 || filter.Limit > maxListLimit:
		return nil, invalid("limit", "must be between 1 and %d", maxListLimit)
	}
	if filter.Offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}

	order := opts.Order
	if order == "" {
		order = "-created_at"
	}
	filter.Descending = strings.HasPrefix(order, "-")
	filter.OrderColumn = strings.TrimPrefix(order, "-")
	if !orderColumns[filter.OrderColumn] {
		return nil, invalid("order", "unknown field %q", filter.OrderColumn)
	}

	if opts.Day != nil {
		from := startOfDay(*opts.Day)
		to := from.AddDate(0, 0, 1)
		filter.CreatedFrom, filter.CreatedTo = &from, &to
	}

	return s.store.List(ctx, userID, filter)
}

// TodayTasks returns open tasks created up to the end of the current UTC day,
// highest priority first.
func (s *TaskService) TodayTasks(ctx context.Context, userID uint) ([]model.Task, error) {
	tomorrow := startOfDay(s.now()).AddDate(0, 0, 1)
	return s.store.ListOpenCreatedBefore(ctx, userID, tomorrow)
}

// History returns tasks completed between the from and to dates, inclusive.
// Missing bounds default to the last 30 days.
func (s *TaskService) History(ctx context.Context, userID uint, from, to *time.Time) ([]model.Task, error) {
	today := startOfDay(s.now())
	fromDay := today.AddDate(0, 0, -historyDays)
	toDay := today
	if from != nil {
		fromDay = startOfDay(*from)
	}
	if to != nil {
		toDay = startOfDay(*to)
	}
	if fromDay.After(toDay) {
		return nil, invalid("from_date", "must not be after to_date")
	}
	return s.store.ListCompletedBetween(ctx, userID, fromDay, toDay.AddDate(0, 0, 1))
}

func (s *TaskService) findTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.store.FindByID(ctx, userID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
