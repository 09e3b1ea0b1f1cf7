// Package reconcile imports parsed TODO.md records into the task store,
// skipping records whose (content, section) pair already exists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/worldchanger/management-systems/internal/logging"
	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/storage"
	"github.com/worldchanger/management-systems/internal/todo"
)

// Store is the slice of storage.Repository the reconciler needs.
type Store interface {
	WithTx(ctx context.Context, fn func(storage.Repository) error) error
}

type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeSkipped  Outcome = "skipped"
)

type Decision struct {
	Line    int
	Content string
	Section model.Section
	Outcome Outcome
	// TaskID is the new row for inserted records and the existing row for
	// skipped ones. It is zero in dry runs.
	TaskID int64
}

// TimestampIssue records a metadata timestamp that could not be parsed and
// was replaced by the store default.
type TimestampIssue struct {
	Line    int
	Content string
	Field   string
	Value   string
	Err     error
}

func (i TimestampIssue) String() string {
	return fmt.Sprintf("line %d %q: %s %q: %v", i.Line, i.Content, i.Field, i.Value, i.Err)
}

type Report struct {
	Found           int
	BySection       map[model.Section]int
	Inserted        int
	Skipped         int
	Decisions       []Decision
	TimestampIssues []TimestampIssue
	DryRun          bool
}

type Reconciler struct {
	store  Store
	logger *log.Logger
	actor  string
	dryRun bool
}

type Option func(*Reconciler)

func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logging.OrDiscard(logger)
	}
}

// WithActor sets changed_by on the import history entries.
func WithActor(actor string) Option {
	return func(r *Reconciler) {
		if actor != "" {
			r.actor = actor
		}
	}
}

// WithDryRun makes Reconcile compute the full report against the store and
// then roll the batch back.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) {
		r.dryRun = dryRun
	}
}

func New(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, logger: logging.Discard(), actor: string(model.OwnerAgent)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errRollbackDryRun = errors.New("reconcile: dry run rollback")

// Reconcile inserts every record whose (content, section) is not yet stored.
// The batch is atomic: any failure rolls back every insert and the returned
// report describes nothing persisted.
func (r *Reconciler) Reconcile(ctx context.Context, records []todo.Record) (Report, error) {
	var report Report
	err := r.store.WithTx(ctx, func(tx storage.Repository) error {
		var err error
		report, err = r.apply(ctx, tx, records)
		if err != nil {
			return err
		}
		if r.dryRun {
			return errRollbackDryRun
		}
		return nil
	})
	if errors.Is(err, errRollbackDryRun) {
		err = nil
	}
	if err != nil {
		return Report{}, err
	}

	r.logger.Info("reconciliation finished",
		"found", report.Found,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"timestamp_issues", len(report.TimestampIssues),
		"dry_run", report.DryRun,
	)
	return report, nil
}

func (r *Reconciler) apply(ctx context.Context, tx storage.Repository, records []todo.Record) (Report, error) {
	report := Report{
		Found:     len(records),
		BySection: todo.SectionCounts(records),
		Decisions: make([]Decision, 0, len(records)),
		DryRun:    r.dryRun,
	}
	for _, rec := range records {
		decision := Decision{Line: rec.Line, Content: rec.Content, Section: rec.Section}

		// Inserts earlier in the batch are visible here, so repeats inside
		// one document are skipped as well.
		existing, err := tx.FindByContentAndSection(ctx, rec.Content, rec.Section)
		switch {
		case err == nil:
			decision.Outcome = OutcomeSkipped
			decision.TaskID = existing.ID
			report.Skipped++
			report.Decisions = append(report.Decisions, decision)
			r.logger.Debug("skip existing task", "line", rec.Line, "section", rec.Section, "content", rec.Content, "task_id", existing.ID)
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return Report{}, fmt.Errorf("line %d: lookup %q: %w", rec.Line, rec.Content, err)
		}

		task, issues := r.taskFor(rec)
		report.TimestampIssues = append(report.TimestampIssues, issues...)
		for _, issue := range issues {
			r.logger.Warn("unparseable timestamp, using store default", "line", issue.Line, "field", issue.Field, "value", issue.Value)
		}

		id, err := tx.CreateTask(ctx, task)
		if err != nil {
			return Report{}, fmt.Errorf("line %d: create %q: %w", rec.Line, rec.Content, err)
		}
		if _, err := tx.AppendHistory(ctx, r.importEntry(id, rec)); err != nil {
			return Report{}, fmt.Errorf("line %d: record history: %w", rec.Line, err)
		}
		if !r.dryRun {
			decision.TaskID = id
		}
		decision.Outcome = OutcomeInserted
		report.Inserted++
		report.Decisions = append(report.Decisions, decision)
		r.logger.Debug("added task", "line", rec.Line, "section", rec.Section, "content", rec.Content)
	}
	return report, nil
}

func (r *Reconciler) taskFor(rec todo.Record) (model.Task, []TimestampIssue) {
	task := rec.Task()
	var issues []TimestampIssue
	override := func(field, raw string, set func(time.Time)) {
		if raw == "" {
			return
		}
		tm, err := todo.ParseTimestamp(raw)
		if err != nil {
			issues = append(issues, TimestampIssue{Line: rec.Line, Content: rec.Content, Field: field, Value: raw, Err: err})
			return
		}
		set(tm.UTC())
	}
	override("created_at", rec.CreatedAt, func(tm time.Time) {
		task.CreatedAt = tm
	})
	override("completed_at", rec.CompletedAt, func(tm time.Time) {
		task.CompletedAt = &tm
	})
	return task, issues
}

func (r *Reconciler) importEntry(taskID int64, rec todo.Record) model.HistoryEntry {
	source := fmt.Sprintf("line %d", rec.Line)
	section := string(rec.Section)
	return model.HistoryEntry{
		TaskID:    taskID,
		Action:    model.ActionImported,
		OldValue:  &source,
		NewValue:  &section,
		ChangedBy: r.actor,
	}
}
