package storage

import (
	"context"
	"errors"

	"github.com/worldchanger/management-systems/internal/model"
)

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrConstraint = errors.New("storage: constraint violation")
)

// Repository is the task store. Every implementation keeps kanban_tasks,
// its history and tags in the same transactional scope.
type Repository interface {
	CreateTask(ctx context.Context, in model.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (model.Task, error)
	UpdateTask(ctx context.Context, in model.Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error)
	FindByContentAndSection(ctx context.Context, content string, section model.Section) (model.Task, error)
	NextPosition(ctx context.Context, section model.Section) (int, error)

	AppendHistory(ctx context.Context, in model.HistoryEntry) (int64, error)
	ListHistory(ctx context.Context, taskID int64) ([]model.HistoryEntry, error)

	AddTag(ctx context.Context, taskID int64, name, color string) (model.Tag, error)
	RemoveTag(ctx context.Context, taskID int64, name string) error
	ListTags(ctx context.Context) ([]model.Tag, error)

	SectionStats(ctx context.Context) ([]model.SectionStats, error)

	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Nested calls reuse the outer transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}
