package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"power6/internal/model"
	"power6/internal/repository"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	tasks   *repository.TaskRepository
	users   *repository.UserRepository
	clock   *fakeClock
	taskSvc *TaskService
	streaks *StreakService
	user    *model.User
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "power6.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		tasks: repository.NewTaskRepository(db),
		users: repository.NewUserRepository(db),
		clock: &fakeClock{t: now},
	}
	env.taskSvc = NewTaskService(env.tasks, DefaultActiveTaskLimit, env.clock.Now)
	env.streaks = NewStreakService(env.tasks, DefaultStreakThreshold, env.clock.Now)
	env.user = env.newUser(t)
	return env
}

func (e *testEnv) newUser(t *testing.T) *model.User {
	t.Helper()
	user := &model.User{Username: "tester"}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// seedCompletions stores n completed streak-bound tasks finished at the given time.
func (e *testEnv) seedCompletions(t *testing.T, userID uint, at time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		done := at.Add(time.Duration(i) * time.Minute)
		task := &model.Task{
			UserID:      userID,
			Title:       "bound",
			StreakBound: true,
			Completed:   true,
			CompletedAt: &done,
			CreatedAt:   done.Add(-time.Hour),
		}
		if err := e.tasks.Create(context.Background(), task); err != nil {
			t.Fatalf("seed completion: %v", err)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func assertInvariant(t *testing.T, task *model.Task) {
	t.Helper()
	if task.Completed != (task.CompletedAt != nil) {
		t.Fatalf("completion invariant broken: completed=%t completed_at=%v", task.Completed, task.CompletedAt)
	}
}
