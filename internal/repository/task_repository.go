package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"power6/internal/model"
)

// TaskFilter narrows a task listing. Zero values mean "no filter".
type TaskFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Completed   *bool
	OrderColumn string
	Descending  bool
	Limit       int
	Offset      int
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithinTransaction runs fn atomically; repository calls made with the
// context passed to fn take part in the same transaction.
func (r *TaskRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinTransaction(ctx, r.db, fn)
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := conn(ctx, r.db).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := conn(ctx, r.db).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// Save writes every column of task, including cleared optional fields.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := conn(ctx, r.db).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Delete removes a task owned by userID.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	res := conn(ctx, r.db).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive counts the user's tasks that are not completed.
func (r *TaskRepository) CountActive(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Task{}).
		Where("user_id = ? AND completed = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count active tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) List(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	q := conn(ctx, r.db).Where("user_id = ?", userID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at < ?", filter.CreatedTo.UTC())
	}

	column := filter.OrderColumn
	if column == "" {
		column = "created_at"
	}
	order := column + " ASC"
	if filter.Descending {
		order = column + " DESC"
	}
	q = q.Order(order).Order("id ASC")

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListOpenCreatedBefore returns uncompleted tasks created before the given
// instant, most important first.
func (r *TaskRepository) ListOpenCreatedBefore(ctx context.Context, userID uint, before time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).
		Where("user_id = ? AND completed = ? AND created_at < ?", userID, false, before.UTC()).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

// ListCompletedBetween returns tasks completed in [from, to), newest first.
func (r *TaskRepository) ListCompletedBetween(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := conn(ctx, r.db).
		Where("user_id = ? AND completed = ? AND completed_at >= ? AND completed_at < ?", userID, true, from.UTC(), to.UTC()).
		Order("completed_at DESC, id DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	return tasks, nil
}

// DailyCompletionCounts groups the user's completed, streak-bound tasks by the
// UTC calendar date of completed_at and returns YYYY-MM-DD -> count.
func (r *TaskRepository) DailyCompletionCounts(ctx context.Context, userID uint) (map[string]int, error) {
	var rows []struct {
		Day   string
		Total int
	}
	if err := conn(ctx, r.db).Model(&model.Task{}).
		Select(r.completionDayExpr()+" AS day, COUNT(*) AS total").
		Where("user_id = ? AND completed = ? AND streak_bound = ? AND completed_at IS NOT NULL", userID, true, true).
		Group("day").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count completions by day: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Day == "" {
			continue
		}
		counts[row.Day] = row.Total
	}
	return counts, nil
}

func (r *TaskRepository) completionDayExpr() string {
	if r.db.Dialector.Name() == "postgres" {
		return "to_char(completed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	}
	return "date(completed_at)"
}
