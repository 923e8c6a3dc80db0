package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"power6/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	user := &model.User{Username: "tester"}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func completedTask(userID uint, at time.Time, bound bool) *model.Task {
	return &model.Task{
		UserID:      userID,
		Title:       "done",
		Priority:    model.PriorityNormal,
		StreakBound: bound,
		Completed:   true,
		CompletedAt: &at,
		CreatedAt:   at.Add(-time.Hour),
	}
}

func TestTaskRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	repo := NewTaskRepository(db)

	notes := "buy oat milk"
	task := &model.Task{UserID: user.ID, Title: "groceries", Notes: &notes, Priority: model.PriorityHigh, CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := repo.FindByID(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "groceries" || got.Priority != model.PriorityHigh || got.Notes == nil || *got.Notes != notes {
		t.Errorf("unexpected task: %+v", got)
	}

	if _, err := repo.FindByID(ctx, user.ID+1, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID for another user: got %v, want ErrNotFound", err)
	}

	got.Notes = nil
	got.Title = "groceries!"
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := repo.FindByID(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if reloaded.Notes != nil || reloaded.Title != "groceries!" {
		t.Errorf("Save did not persist cleared notes: %+v", reloaded)
	}

	if err := repo.Delete(ctx, user.ID+1, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete for another user: got %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, user.ID, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, user.ID, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestTaskRepositoryCountActive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	other := newTestUser(t, db)
	repo := NewTaskRepository(db)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &model.Task{UserID: user.ID, Title: "open", CreatedAt: now}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(ctx, completedTask(user.ID, now, true)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &model.Task{UserID: other.ID, Title: "someone else", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}

	count, err := repo.CountActive(ctx, user.ID)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 3 {
		t.Errorf("CountActive = %d, want 3", count)
	}
}

func TestTaskRepositoryDailyCompletionCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	other := newTestUser(t, db)
	repo := NewTaskRepository(db)

	day1 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 5, 2, 23, 59, 59, 500, time.UTC)
	fixtures := []*model.Task{
		completedTask(user.ID, day1, true),
		completedTask(user.ID, day1.Add(2*time.Hour), true),
		completedTask(user.ID, day1.Add(3*time.Hour), false),
		completedTask(user.ID, day2, true),
		completedTask(other.ID, day2, true),
		{UserID: user.ID, Title: "open", StreakBound: true, CreatedAt: day1},
	}
	for _, task := range fixtures {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := repo.DailyCompletionCounts(ctx, user.ID)
	if err != nil {
		t.Fatalf("DailyCompletionCounts: %v", err)
	}
	want := map[string]int{"2025-05-01": 2, "2025-05-02": 1}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v, want %v", counts, want)
	}
	for day, n := range want {
		if counts[day] != n {
			t.Errorf("counts[%s] = %d, want %d", day, counts[day], n)
		}
	}
}

func TestTaskRepositoryListings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	repo := NewTaskRepository(db)

	base := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	low := &model.Task{UserID: user.ID, Title: "low", Priority: model.PriorityLow, CreatedAt: base}
	high := &model.Task{UserID: user.ID, Title: "high", Priority: model.PriorityHigh, CreatedAt: base.Add(time.Hour)}
	tomorrow := &model.Task{UserID: user.ID, Title: "tomorrow", Priority: model.PriorityHigh, CreatedAt: base.Add(24 * time.Hour)}
	done := completedTask(user.ID, base.Add(2*time.Hour), false)
	for _, task := range []*model.Task{low, high, tomorrow, done} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	open, err := repo.ListOpenCreatedBefore(ctx, user.ID, base.Add(16*time.Hour))
	if err != nil {
		t.Fatalf("ListOpenCreatedBefore: %v", err)
	}
	if len(open) != 2 || open[0].Title != "high" || open[1].Title != "low" {
		t.Errorf("open tasks = %+v", open)
	}

	completed, err := repo.ListCompletedBetween(ctx, user.ID, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListCompletedBetween: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Errorf("completed tasks = %+v", completed)
	}

	from := base.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	notDone := false
	listed, err := repo.List(ctx, user.ID, TaskFilter{
		CreatedFrom: &from,
		CreatedTo:   &to,
		Completed:   &notDone,
		OrderColumn: "priority",
		Descending:  true,
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 || listed[0].Title != "high" {
		t.Errorf("listed = %+v", listed)
	}

	page, err := repo.List(ctx, user.ID, TaskFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 1 || page[0].Title != "high" {
		t.Errorf("page = %+v", page)
	}
}

func TestTaskRepositoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := newTestUser(t, db)
	repo := NewTaskRepository(db)

	boom := errors.New("boom")
	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, &model.Task{UserID: user.ID, Title: "ghost", CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTransaction error = %v", err)
	}

	count, err := repo.CountActive(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rolled back task is visible, count = %d", count)
	}
}

func TestUserRepositoryUpsertFromTelegram(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	first, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "", "ada")
	if err != nil {
		t.Fatalf("UpsertFromTelegram: %v", err)
	}
	second, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "Lovelace", "ada")
	if err != nil {
		t.Fatalf("UpsertFromTelegram: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("upsert created a second user: %d vs %d", first.ID, second.ID)
	}

	loaded, err := repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if loaded.LastName != "Lovelace" {
		t.Errorf("LastName = %q", loaded.LastName)
	}

	if err := repo.Create(ctx, &model.User{Username: "api-only"}); err != nil {
		t.Fatal(err)
	}
	linked, err := repo.ListTelegramLinked(ctx)
	if err != nil {
		t.Fatalf("ListTelegramLinked: %v", err)
	}
	if len(linked) != 1 || linked[0].ID != first.ID {
		t.Errorf("linked = %+v", linked)
	}

	if _, err := repo.FindByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID missing: %v", err)
	}
}

func TestIsPostgresDSN(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"postgres://u:p@localhost/db":      true,
		"postgresql://localhost/db":        true,
		"power6.db":                        false,
		"file:data/power6.db?cache=shared": false,
	}
	for dsn, want := range cases {
		if got := isPostgresDSN(dsn); got != want {
			t.Errorf("isPostgresDSN(%q) = %t, want %t", dsn, got, want)
		}
	}
}
