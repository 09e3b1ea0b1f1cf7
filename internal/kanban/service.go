// Package kanban holds the board operations shared by the HTTP API and the
// terminal board. Every mutation runs in one store transaction together with
// its history entry.
package kanban

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/worldchanger/management-systems/internal/logging"
	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/storage"
)

var ErrInvalidInput = errors.New("kanban: invalid input")

const (
	MaxContentLen = 1000
	MaxEpicLen    = 100
	MaxAreaLen    = 50
	MaxTagLen     = 50
)

var tagColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type CreateInput struct {
	Content  string
	Priority model.Priority
	Owner    model.Owner
	Section  model.Section
	Epic     *string
	Area     string
	Tags     []string
}

// UpdateInput changes only the non-nil fields. An empty Epic clears it.
type UpdateInput struct {
	Content  *string
	Priority *model.Priority
	Owner    *model.Owner
	Status   *model.Status
	Epic     *string
	Area     *string
}

type Column struct {
	Section model.Section
	Tasks   []model.Task
}

type Service struct {
	repo   storage.Repository
	logger *log.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrDiscard(logger)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logging.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (model.Task, error) {
	task := model.Task{
		Content:  strings.TrimSpace(in.Content),
		Priority: in.Priority,
		Owner:    in.Owner,
		Section:  in.Section,
		Epic:     normalizeEpic(in.Epic),
		Area:     strings.TrimSpace(in.Area),
	}.WithDefaults()
	if err := validateFields(task); err != nil {
		return model.Task{}, err
	}
	for _, name := range in.Tags {
		if err := validateTag(name, ""); err != nil {
			return model.Task{}, err
		}
	}
	if task.Section == model.SectionCompleted {
		task.Status = model.StatusCompleted
		now := s.now()
		task.CompletedAt = &now
	}

	var id int64
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		pos, err := tx.NextPosition(ctx, task.Section)
		if err != nil {
			return err
		}
		task.Position = pos
		task.CreatedAt = s.now()
		if id, err = tx.CreateTask(ctx, task); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, id, model.ActionCreated, nil, &task.Content, actor); err != nil {
			return err
		}
		for _, name := range in.Tags {
			if err := s.tag(ctx, tx, id, name, "", actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Info("task created", "id", id, "section", task.Section, "actor", actor)
	return s.repo.GetTask(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.repo.GetTask(ctx, id)
}

func (s *Service) List(ctx context.Context, filter storage.TaskListFilter) ([]model.Task, error) {
	if filter.Section != "" && !filter.Section.IsValid() {
		return nil, invalid("section %q", filter.Section)
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return nil, invalid("priority %q", filter.Priority)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, invalid("status %q", filter.Status)
	}
	return s.repo.ListTasks(ctx, filter)
}

// Board returns every task grouped into the four columns in board order.
func (s *Service) Board(ctx context.Context) ([]Column, error) {
	tasks, err := s.repo.ListTasks(ctx, storage.TaskListFilter{})
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(model.Sections))
	index := make(map[model.Section]int, len(model.Sections))
	for i, section := range model.Sections {
		cols[i] = Column{Section: section, Tasks: make([]model.Task, 0)}
		index[section] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Section]; ok {
			cols[i].Tasks = append(cols[i].Tasks, t)
		}
	}
	return cols, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, actor string) (model.Task, error) {
	var out model.Task
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		before := task
		type change struct {
			action   model.HistoryAction
			field    string
			from, to string
		}
		var changes []change
		if in.Content != nil {
			task.Content = strings.TrimSpace(*in.Content)
			if task.Content != before.Content {
				changes = append(changes, change{model.ActionUpdated, "content", before.Content, task.Content})
			}
		}
		if in.Priority != nil && *in.Priority != before.Priority {
			task.Priority = *in.Priority
			changes = append(changes, change{model.ActionPriority, "", string(before.Priority), string(task.Priority)})
		}
		if in.Owner != nil && *in.Owner != before.Owner {
			task.Owner = *in.Owner
			changes = append(changes, change{model.ActionUpdated, "owner", string(before.Owner), string(task.Owner)})
		}
		if in.Epic != nil {
			task.Epic = normalizeEpic(in.Epic)
			if task.EpicOrEmpty() != before.EpicOrEmpty() {
				changes = append(changes, change{model.ActionUpdated, "epic", before.EpicOrEmpty(), task.EpicOrEmpty()})
			}
		}
		if in.Area != nil {
			task.Area = strings.TrimSpace(*in.Area)
			if task.Area == "" {
				task.Area = model.DefaultArea
			}
			if task.Area != before.Area {
				changes = append(changes, change{model.ActionUpdated, "area", before.Area, task.Area})
			}
		}
		if in.Status != nil && *in.Status != before.Status {
			task.Status = *in.Status
			action := model.ActionUpdated
			if task.Status == model.StatusCompleted {
				action = model.ActionCompleted
			}
			changes = append(changes, change{action, "status", string(before.Status), string(task.Status)})
		}
		if err := validateFields(task); err != nil {
			return err
		}
		s.settleCompletion(before, &task)

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		for _, c := range changes {
			oldValue, newValue := c.from, c.to
			if c.field != "" {
				oldValue, newValue = c.field+"="+c.from, c.field+"="+c.to
			}
			if err := s.audit(ctx, tx, id, c.action, &oldValue, &newValue, actor); err != nil {
				return err
			}
		}
		out, err = tx.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	return out, nil
}

// Move places a task in section at position, or at the end of the section
// when position is nil. Entering Completed completes the task; leaving it
// reopens the task.
func (s *Service) Move(ctx context.Context, id int64, section model.Section, position *int, actor string) (model.Task, error) {
	if !section.IsValid() {
		return model.Task{}, invalid("section %q", section)
	}
	if position != nil && *position < 0 {
		return model.Task{}, invalid("position must not be negative, got %d", *position)
	}
	var out model.Task
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		before := task
		if position != nil {
			task.Position = *position
		} else if section != before.Section {
			if task.Position, err = tx.NextPosition(ctx, section); err != nil {
				return err
			}
		}
		task.Section = section
		if section == model.SectionCompleted {
			task.Status = model.StatusCompleted
		} else if before.Section == model.SectionCompleted {
			task.Status = model.StatusPending
		}
		s.settleCompletion(before, &task)

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		oldValue := string(before.Section) + "#" + strconv.Itoa(before.Position)
		newValue := string(task.Section) + "#" + strconv.Itoa(task.Position)
		if err := s.audit(ctx, tx, id, model.ActionMoved, &oldValue, &newValue, actor); err != nil {
			return err
		}
		out, err = tx.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Debug("task moved", "id", id, "section", section, "actor", actor)
	return out, nil
}

func (s *Service) SetPriority(ctx context.Context, id int64, priority model.Priority, actor string) (model.Task, error) {
	if !priority.IsValid() {
		return model.Task{}, invalid("priority %q", priority)
	}
	return s.Update(ctx, id, UpdateInput{Priority: &priority}, actor)
}

// Complete marks the task completed, moves it to Completed and stamps
// completed_at with the current time.
func (s *Service) Complete(ctx context.Context, id int64, actor string) (model.Task, error) {
	var out model.Task
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		before := task
		if task.Section != model.SectionCompleted {
			if task.Position, err = tx.NextPosition(ctx, model.SectionCompleted); err != nil {
				return err
			}
		}
		now := s.now()
		task.Status = model.StatusCompleted
		task.Section = model.SectionCompleted
		task.CompletedAt = &now
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		oldValue, newValue := string(before.Status), string(task.Status)
		if err := s.audit(ctx, tx, id, model.ActionCompleted, &oldValue, &newValue, actor); err != nil {
			return err
		}
		out, err = tx.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Info("task completed", "id", id, "actor", actor)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "id", id, "actor", actor)
	return nil
}

func (s *Service) History(ctx context.Context, id int64) ([]model.HistoryEntry, error) {
	if _, err := s.repo.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

func (s *Service) Tag(ctx context.Context, id int64, name, color, actor string) (model.Task, error) {
	name = strings.TrimSpace(name)
	if err := validateTag(name, color); err != nil {
		return model.Task{}, err
	}
	var out model.Task
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		if err := s.tag(ctx, tx, id, name, color, actor); err != nil {
			return err
		}
		var err error
		out, err = tx.GetTask(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) Untag(ctx context.Context, id int64, name, actor string) (model.Task, error) {
	name = strings.TrimSpace(name)
	var out model.Task
	err := s.repo.WithTx(ctx, func(tx storage.Repository) error {
		if err := tx.RemoveTag(ctx, id, name); err != nil {
			return err
		}
		if err := s.audit(ctx, tx, id, model.ActionUntagged, &name, nil, actor); err != nil {
			return err
		}
		var err error
		out, err = tx.GetTask(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) Tags(ctx context.Context) ([]model.Tag, error) {
	return s.repo.ListTags(ctx)
}

func (s *Service) Stats(ctx context.Context) ([]model.SectionStats, error) {
	return s.repo.SectionStats(ctx)
}

// Health reports whether the store answers.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) tag(ctx context.Context, tx storage.Repository, id int64, name, color, actor string) error {
	if _, err := tx.AddTag(ctx, id, name, color); err != nil {
		return err
	}
	return s.audit(ctx, tx, id, model.ActionTagged, nil, &name, actor)
}

// settleCompletion keeps completed_at consistent with status: newly
// completed tasks are stamped, pending tasks never carry a completion time.
func (s *Service) settleCompletion(before model.Task, task *model.Task) {
	switch {
	case task.Status == model.StatusPending:
		task.CompletedAt = nil
	case !before.IsCompleted() && task.CompletedAt == nil:
		now := s.now()
		task.CompletedAt = &now
	}
}

func (s *Service) audit(ctx context.Context, tx storage.Repository, id int64, action model.HistoryAction, oldValue, newValue *string, actor string) error {
	if actor == "" {
		actor = string(model.OwnerAgent)
	}
	_, err := tx.AppendHistory(ctx, model.HistoryEntry{
		TaskID:    id,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: actor,
		ChangedAt: s.now(),
	})
	return err
}

func normalizeEpic(epic *string) *string {
	if epic == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*epic)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validateFields(t model.Task) error {
	n := utf8.RuneCountInString(t.Content)
	if n == 0 || n > MaxContentLen {
		return invalid("content must be 1-%d characters, got %d", MaxContentLen, n)
	}
	if utf8.RuneCountInString(t.EpicOrEmpty()) > MaxEpicLen {
		return invalid("epic must be at most %d characters", MaxEpicLen)
	}
	if utf8.RuneCountInString(t.Area) > MaxAreaLen {
		return invalid("area must be at most %d characters", MaxAreaLen)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func validateTag(name, color string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > MaxTagLen {
		return invalid("tag name must be 1-%d characters", MaxTagLen)
	}
	if color != "" && !tagColorPattern.MatchString(color) {
		return invalid("tag color must look like #rrggbb, got %q", color)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
