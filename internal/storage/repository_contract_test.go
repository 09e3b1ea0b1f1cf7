package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

// repositoryContract runs the behaviour every Repository implementation must
// share. newRepo must return an empty, migrated store.
func repositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("TaskCRUDAndList", func(t *testing.T) { contractTaskCRUD(t, newRepo(t)) })
	t.Run("ListFiltersAndOrder", func(t *testing.T) { contractListOrder(t, newRepo(t)) })
	t.Run("FindByContentAndSection", func(t *testing.T) { contractFind(t, newRepo(t)) })
	t.Run("NextPosition", func(t *testing.T) { contractNextPosition(t, newRepo(t)) })
	t.Run("ConstraintViolation", func(t *testing.T) { contractConstraint(t, newRepo(t)) })
	t.Run("HistoryAndCascade", func(t *testing.T) { contractHistory(t, newRepo(t)) })
	t.Run("Tags", func(t *testing.T) { contractTags(t, newRepo(t)) })
	t.Run("SectionStats", func(t *testing.T) { contractStats(t, newRepo(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { contractTxRollback(t, newRepo(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { contractTxCommit(t, newRepo(t)) })
}

func mustCreate(t *testing.T, repo Repository, task model.Task) int64 {
	t.Helper()
	id, err := repo.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("create task %q: %v", task.Content, err)
	}
	return id
}

func contractTaskCRUD(t *testing.T, repo Repository) {
	ctx := context.Background()
	created := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	epic := "Launch"

	id := mustCreate(t, repo, model.Task{Content: "Write schema", Priority: model.PriorityHigh, Epic: &epic, CreatedAt: created})

	got, err := repo.GetTask(ctx, id)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Content != "Write schema" || got.Section != model.SectionBacklog || got.Owner != model.OwnerAgent {
		t.Fatalf("unexpected task get result: %#v", got)
	}
	if got.Area != model.DefaultArea || got.OccurrenceCount != 1 || got.EpicOrEmpty() != "Launch" {
		t.Fatalf("unexpected defaults: %#v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}

	done := created.Add(time.Hour)
	got.Section = model.SectionCompleted
	got.Status = model.StatusCompleted
	got.CompletedAt = &done
	if err := repo.UpdateTask(ctx, got); err != nil {
		t.Fatalf("update task: %v", err)
	}

	completed, err := repo.ListTasks(ctx, TaskListFilter{Status: model.StatusCompleted})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != id || completed[0].CompletedAt == nil || !completed[0].CompletedAt.Equal(done) {
		t.Fatalf("unexpected completed list: %#v", completed)
	}

	if err := repo.DeleteTask(ctx, id); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := repo.GetTask(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := repo.DeleteTask(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
	}
	got.ID = id
	if err := repo.UpdateTask(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got: %v", err)
	}
}

func contractListOrder(t *testing.T, repo Repository) {
	ctx := context.Background()
	mustCreate(t, repo, model.Task{Content: "done", Section: model.SectionCompleted, Status: model.StatusCompleted})
	mustCreate(t, repo, model.Task{Content: "todo-1", Section: model.SectionToDo, Position: 1, Priority: model.PriorityLow})
	mustCreate(t, repo, model.Task{Content: "todo-0", Section: model.SectionToDo, Position: 0, Priority: model.PriorityHigh})
	mustCreate(t, repo, model.Task{Content: "backlog", Section: model.SectionBacklog})

	all, err := repo.ListTasks(ctx, TaskListFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	want := []string{"backlog", "todo-0", "todo-1", "done"}
	if len(all) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(all))
	}
	for i, content := range want {
		if all[i].Content != content {
			t.Fatalf("position %d = %q, want %q", i, all[i].Content, content)
		}
	}

	high, err := repo.ListTasks(ctx, TaskListFilter{Section: model.SectionToDo, Priority: model.PriorityHigh})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(high) != 1 || high[0].Content != "todo-0" {
		t.Fatalf("unexpected filtered list: %#v", high)
	}

	page, err := repo.ListTasks(ctx, TaskListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].Content != "todo-0" || page[1].Content != "todo-1" {
		t.Fatalf("unexpected page: %#v", page)
	}

	tail, err := repo.ListTasks(ctx, TaskListFilter{Offset: 3})
	if err != nil {
		t.Fatalf("list offset only: %v", err)
	}
	if len(tail) != 1 || tail[0].Content != "done" {
		t.Fatalf("unexpected tail: %#v", tail)
	}
}

func contractFind(t *testing.T, repo Repository) {
	ctx := context.Background()
	id := mustCreate(t, repo, model.Task{Content: "Ship release", Section: model.SectionInProgress})

	got, err := repo.FindByContentAndSection(ctx, "Ship release", model.SectionInProgress)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != id {
		t.Fatalf("found id %d, want %d", got.ID, id)
	}
	if _, err := repo.FindByContentAndSection(ctx, "Ship release", model.SectionBacklog); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other section, got %v", err)
	}
	if _, err := repo.FindByContentAndSection(ctx, "ship release", model.SectionInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected case-sensitive match, got %v", err)
	}
}

func contractNextPosition(t *testing.T, repo Repository) {
	ctx := context.Background()
	next, err := repo.NextPosition(ctx, model.SectionToDo)
	if err != nil {
		t.Fatalf("next position: %v", err)
	}
	if next != 0 {
		t.Fatalf("empty section next = %d, want 0", next)
	}
	mustCreate(t, repo, model.Task{Content: "a", Section: model.SectionToDo, Position: 4})
	next, err = repo.NextPosition(ctx, model.SectionToDo)
	if err != nil {
		t.Fatalf("next position: %v", err)
	}
	if next != 5 {
		t.Fatalf("next = %d, want 5", next)
	}
}

func contractConstraint(t *testing.T, repo Repository) {
	ctx := context.Background()
	_, err := repo.CreateTask(ctx, model.Task{Content: "bad", Section: "Someday"})
	if !errors.Is(err, ErrConstraint) || !errors.Is(err, model.ErrInvalidSection) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if _, err := repo.AppendHistory(ctx, model.HistoryEntry{TaskID: 9999, Action: model.ActionUpdated, ChangedBy: "agent"}); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected foreign key violation as ErrConstraint, got %v", err)
	}
}

func contractHistory(t *testing.T, repo Repository) {
	ctx := context.Background()
	id := mustCreate(t, repo, model.Task{Content: "audited"})
	base := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	oldValue, newValue := "Backlog", "To Do"

	if _, err := repo.AppendHistory(ctx, model.HistoryEntry{TaskID: id, Action: model.ActionCreated, ChangedBy: "agent", ChangedAt: base}); err != nil {
		t.Fatalf("append created: %v", err)
	}
	if _, err := repo.AppendHistory(ctx, model.HistoryEntry{TaskID: id, Action: model.ActionMoved, OldValue: &oldValue, NewValue: &newValue, ChangedBy: "user", ChangedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("append moved: %v", err)
	}

	history, err := repo.ListHistory(ctx, id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Action != model.ActionMoved || history[0].NewValue == nil || *history[0].NewValue != "To Do" {
		t.Fatalf("expected newest entry first: %#v", history[0])
	}
	if history[1].OldValue != nil {
		t.Fatalf("expected nil old value: %#v", history[1])
	}

	if err := repo.DeleteTask(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	history, err = repo.ListHistory(ctx, id)
	if err != nil {
		t.Fatalf("list history after delete: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected history to cascade, got %d entries", len(history))
	}
}

func contractTags(t *testing.T, repo Repository) {
	ctx := context.Background()
	first := mustCreate(t, repo, model.Task{Content: "first"})
	second := mustCreate(t, repo, model.Task{Content: "second"})

	tag, err := repo.AddTag(ctx, first, "ops", "")
	if err != nil {
		t.Fatalf("add tag: %v", err)
	}
	if tag.Color != model.DefaultTagColor || tag.ID == 0 {
		t.Fatalf("unexpected tag: %#v", tag)
	}
	if _, err := repo.AddTag(ctx, first, "ops", "#ff0000"); err != nil {
		t.Fatalf("re-add tag: %v", err)
	}
	if _, err := repo.AddTag(ctx, second, "ops", ""); err != nil {
		t.Fatalf("tag second: %v", err)
	}
	if _, err := repo.AddTag(ctx, second, "billing", "#00ff00"); err != nil {
		t.Fatalf("tag second billing: %v", err)
	}
	if _, err := repo.AddTag(ctx, 9999, "ops", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing task, got %v", err)
	}

	task, err := repo.GetTask(ctx, second)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if len(task.Tags) != 2 || task.Tags[0] != "billing" || task.Tags[1] != "ops" {
		t.Fatalf("unexpected task tags: %v", task.Tags)
	}

	tags, err := repo.ListTags(ctx)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 2 || tags[1].Name != "ops" || tags[1].TaskCount != 2 || tags[1].Color != model.DefaultTagColor {
		t.Fatalf("unexpected tags: %#v", tags)
	}

	if err := repo.RemoveTag(ctx, first, "ops"); err != nil {
		t.Fatalf("remove tag: %v", err)
	}
	if err := repo.RemoveTag(ctx, first, "ops"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	listed, err := repo.ListTasks(ctx, TaskListFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	for _, item := range listed {
		if item.ID == first && len(item.Tags) != 0 {
			t.Fatalf("expected first task untagged, got %v", item.Tags)
		}
	}
}

func contractStats(t *testing.T, repo Repository) {
	ctx := context.Background()
	mustCreate(t, repo, model.Task{Content: "a", Section: model.SectionToDo, Priority: model.PriorityHigh})
	mustCreate(t, repo, model.Task{Content: "b", Section: model.SectionToDo, Priority: model.PriorityLow})
	mustCreate(t, repo, model.Task{Content: "c", Section: model.SectionBacklog})

	stats, err := repo.SectionStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != len(model.Sections) {
		t.Fatalf("expected all sections, got %d", len(stats))
	}
	for i, s := range stats {
		if s.Section != model.Sections[i] {
			t.Fatalf("stats[%d] section = %q", i, s.Section)
		}
	}
	todo := stats[1]
	if todo.Count != 2 || todo.HighPriority != 1 || todo.LowPriority != 1 || todo.MediumPriority != 0 {
		t.Fatalf("unexpected To Do stats: %#v", todo)
	}
	if stats[0].MediumPriority != 1 || stats[3].Count != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func contractTxRollback(t *testing.T, repo Repository) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.CreateTask(ctx, model.Task{Content: "inside"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	tasks, err := repo.ListTasks(ctx, TaskListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected rollback, found %d tasks", len(tasks))
	}
}

func contractTxCommit(t *testing.T, repo Repository) {
	ctx := context.Background()
	err := repo.WithTx(ctx, func(tx Repository) error {
		id, err := tx.CreateTask(ctx, model.Task{Content: "inside"})
		if err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		if _, err := tx.FindByContentAndSection(ctx, "inside", model.SectionBacklog); err != nil {
			return err
		}
		return tx.WithTx(ctx, func(nested Repository) error {
			_, err := nested.AddTag(ctx, id, "nested", "")
			return err
		})
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}
	task, err := repo.FindByContentAndSection(ctx, "inside", model.SectionBacklog)
	if err != nil {
		t.Fatalf("find after commit: %v", err)
	}
	full, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get after commit: %v", err)
	}
	if len(full.Tags) != 1 || full.Tags[0] != "nested" {
		t.Fatalf("unexpected tags after commit: %v", full.Tags)
	}
}
