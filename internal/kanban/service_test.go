package kanban

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/storage"
)

var fixedNow = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func setupService(t *testing.T) *Service {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "kanban-service.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return NewService(repo, WithClock(func() time.Time { return fixedNow }))
}

func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, svc *Service, in CreateInput) model.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), in, "user")
	if err != nil {
		t.Fatalf("create %q: %v", in.Content, err)
	}
	return task
}

func TestCreateAppliesDefaultsAndAppendsPositions(t *testing.T) {
	svc := setupService(t)

	first := mustCreate(t, svc, CreateInput{Content: "  first  "})
	if first.Content != "first" || first.Priority != model.PriorityMedium || first.Owner != model.OwnerAgent {
		t.Fatalf("unexpected defaults: %#v", first)
	}
	if first.Section != model.SectionBacklog || first.Area != model.DefaultArea || first.Position != 0 {
		t.Fatalf("unexpected defaults: %#v", first)
	}
	second := mustCreate(t, svc, CreateInput{Content: "second", Tags: []string{"ops"}})
	if second.Position != 1 {
		t.Fatalf("second position = %d, want 1", second.Position)
	}
	if len(second.Tags) != 1 || second.Tags[0] != "ops" {
		t.Fatalf("expected tag on create, got %v", second.Tags)
	}
	other := mustCreate(t, svc, CreateInput{Content: "other", Section: model.SectionToDo})
	if other.Position != 0 {
		t.Fatalf("position in empty section = %d, want 0", other.Position)
	}

	history, err := svc.History(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected created and tagged entries, got %#v", history)
	}
	for _, h := range history {
		if h.ChangedBy != "user" {
			t.Fatalf("unexpected actor: %#v", h)
		}
	}
}

func TestCreateIntoCompletedStampsCompletion(t *testing.T) {
	svc := setupService(t)
	task := mustCreate(t, svc, CreateInput{Content: "already done", Section: model.SectionCompleted})
	if task.Status != model.StatusCompleted || task.CompletedAt == nil || !task.CompletedAt.Equal(fixedNow) {
		t.Fatalf("unexpected completion: %#v", task)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	cases := []CreateInput{
		{Content: "   "},
		{Content: strings.Repeat("x", MaxContentLen+1)},
		{Content: "ok", Epic: strPtr(strings.Repeat("e", MaxEpicLen+1))},
		{Content: "ok", Area: strings.Repeat("a", MaxAreaLen+1)},
		{Content: "ok", Priority: "urgent"},
		{Content: "ok", Section: "Someday"},
		{Content: "ok", Owner: "robot"},
		{Content: "ok", Tags: []string{""}},
	}
	for i, in := range cases {
		if _, err := svc.Create(ctx, in, "user"); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if _, err := svc.Create(ctx, CreateInput{Content: strings.Repeat("ü", MaxContentLen)}, "user"); err != nil {
		t.Fatalf("content limit counts characters, not bytes: %v", err)
	}
}

func TestUpdateStatusStampsAndClearsCompletion(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, CreateInput{Content: "work"})

	completed := model.StatusCompleted
	got, err := svc.Update(ctx, task.ID, UpdateInput{Status: &completed}, "agent")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed_at stamped: %#v", got)
	}
	if got.Section != model.SectionBacklog {
		t.Fatalf("status update must not move the task: %q", got.Section)
	}

	pending := model.StatusPending
	got, err = svc.Update(ctx, task.ID, UpdateInput{Status: &pending}, "agent")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared: %v", got.CompletedAt)
	}
}

func TestUpdateFieldsAndHistory(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, CreateInput{Content: "draft", Epic: strPtr("Docs")})

	high := model.PriorityHigh
	got, err := svc.Update(ctx, task.ID, UpdateInput{
		Content:  strPtr("final"),
		Priority: &high,
		Epic:     strPtr(""),
		Area:     strPtr("writing"),
	}, "user")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != "final" || got.Priority != model.PriorityHigh || got.Epic != nil || got.Area != "writing" {
		t.Fatalf("unexpected update result: %#v", got)
	}

	history, err := svc.History(ctx, task.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	actions := map[model.HistoryAction]int{}
	for _, h := range history {
		actions[h.Action]++
	}
	if actions[model.ActionUpdated] != 3 || actions[model.ActionPriority] != 1 || actions[model.ActionCreated] != 1 {
		t.Fatalf("unexpected history actions: %v", actions)
	}

	if _, err := svc.Update(ctx, task.ID, UpdateInput{Content: strPtr("")}, "user"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty content, got %v", err)
	}
	if _, err := svc.Update(ctx, 9999, UpdateInput{}, "user"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveIntoAndOutOfCompleted(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, CreateInput{Content: "ship it", Section: model.SectionInProgress})

	zero := 0
	done, err := svc.Move(ctx, task.ID, model.SectionCompleted, &zero, "user")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if done.Status != model.StatusCompleted || done.CompletedAt == nil || done.Section != model.SectionCompleted {
		t.Fatalf("unexpected completed move: %#v", done)
	}

	back, err := svc.Move(ctx, task.ID, model.SectionToDo, nil, "user")
	if err != nil {
		t.Fatalf("move back: %v", err)
	}
	if back.Status != model.StatusPending || back.CompletedAt != nil || back.Section != model.SectionToDo {
		t.Fatalf("unexpected reopened task: %#v", back)
	}

	history, err := svc.History(ctx, task.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history[0].Action != model.ActionMoved || *history[0].OldValue != "Completed#0" || *history[0].NewValue != "To Do#0" {
		t.Fatalf("unexpected latest history: %#v", history[0])
	}

	if _, err := svc.Move(ctx, task.ID, "Someday", nil, "user"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad section, got %v", err)
	}
	negative := -1
	if _, err := svc.Move(ctx, task.ID, model.SectionBacklog, &negative, "user"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative position, got %v", err)
	}
}

func TestMoveWithoutPositionAppends(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	mustCreate(t, svc, CreateInput{Content: "a", Section: model.SectionToDo})
	mustCreate(t, svc, CreateInput{Content: "b", Section: model.SectionToDo})
	task := mustCreate(t, svc, CreateInput{Content: "c"})

	moved, err := svc.Move(ctx, task.ID, model.SectionToDo, nil, "user")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != 2 {
		t.Fatalf("position = %d, want 2", moved.Position)
	}
}

func TestSetPriorityAndComplete(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, CreateInput{Content: "triage"})

	got, err := svc.SetPriority(ctx, task.ID, model.PriorityLow, "user")
	if err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if got.Priority != model.PriorityLow {
		t.Fatalf("priority = %q", got.Priority)
	}
	if _, err := svc.SetPriority(ctx, task.ID, "urgent", "user"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	done, err := svc.Complete(ctx, task.ID, "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.StatusCompleted || done.Section != model.SectionCompleted || done.CompletedAt == nil || !done.CompletedAt.Equal(fixedNow) {
		t.Fatalf("unexpected completed task: %#v", done)
	}
	if _, err := svc.Complete(ctx, 9999, "user"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTagUntagAndTags(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, CreateInput{Content: "tag me"})

	got, err := svc.Tag(ctx, task.ID, "billing", "#112233", "user")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "billing" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if _, err := svc.Tag(ctx, task.ID, "x", "red", "user"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad color, got %v", err)
	}
	tags, err := svc.Tags(ctx)
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 1 || tags[0].Color != "#112233" || tags[0].TaskCount != 1 {
		t.Fatalf("unexpected tag list: %#v", tags)
	}

	got, err = svc.Untag(ctx, task.ID, "billing", "user")
	if err != nil {
		t.Fatalf("untag: %v", err)
	}
	if len(got.Tags) != 0 {
		t.Fatalf("expected no tags, got %v", got.Tags)
	}
	if _, err := svc.Untag(ctx, task.ID, "billing", "user"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListBoardStatsDeleteHealth(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	mustCreate(t, svc, CreateInput{Content: "a", Section: model.SectionToDo, Priority: model.PriorityHigh})
	b := mustCreate(t, svc, CreateInput{Content: "b", Section: model.SectionInProgress})

	list, err := svc.List(ctx, storage.TaskListFilter{Section: model.SectionToDo})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Content != "a" {
		t.Fatalf("unexpected list: %#v", list)
	}
	if _, err := svc.List(ctx, storage.TaskListFilter{Priority: "urgent"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad filter, got %v", err)
	}

	board, err := svc.Board(ctx)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board) != 4 || len(board[1].Tasks) != 1 || len(board[2].Tasks) != 1 || len(board[0].Tasks) != 0 {
		t.Fatalf("unexpected board: %#v", board)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[1].HighPriority != 1 || stats[2].MediumPriority != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	if err := svc.Delete(ctx, b.ID, "user"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, b.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := svc.History(ctx, b.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for history of deleted task, got %v", err)
	}
	if err := svc.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}
