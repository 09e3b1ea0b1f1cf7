package board

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/model"
)

func (m Model) loadBoard() tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		cols, err := svc.Board(ctx)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("load board: %w", err)}
		}
		return boardLoadedMsg{Columns: cols}
	}
}

func (m Model) loadDetail(id int64) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	task, ok := m.findTask(id)
	return func() tea.Msg {
		if !ok {
			return AppErrorMsg{Err: fmt.Errorf("task %d is not on the board", id)}
		}
		history, err := svc.History(ctx, id)
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("load history: %w", err)}
		}
		return detailLoadedMsg{TaskID: id, Markdown: taskMarkdown(task, history)}
	}
}

// mutate runs op off the update loop and reports the changed task.
func (m Model) mutate(verb string, op func() (model.Task, error)) tea.Cmd {
	return func() tea.Msg {
		task, err := op()
		if err != nil {
			return AppErrorMsg{Err: fmt.Errorf("%s: %w", verb, err)}
		}
		return taskChangedMsg{Text: fmt.Sprintf("%s task %d", verb, task.ID), TaskID: task.ID}
	}
}

func (m Model) createTask(in kanban.CreateInput) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("added", func() (model.Task, error) {
		return svc.Create(ctx, in, actor)
	})
}

func (m Model) moveTask(task model.Task, section model.Section) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("moved", func() (model.Task, error) {
		return svc.Move(ctx, task.ID, section, nil, actor)
	})
}

func (m Model) setPriority(task model.Task, p model.Priority) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("reprioritized", func() (model.Task, error) {
		return svc.SetPriority(ctx, task.ID, p, actor)
	})
}

func (m Model) completeTask(task model.Task) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("completed", func() (model.Task, error) {
		return svc.Complete(ctx, task.ID, actor)
	})
}

func (m Model) setEpic(task model.Task, epic string) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("updated", func() (model.Task, error) {
		return svc.Update(ctx, task.ID, kanban.UpdateInput{Epic: &epic}, actor)
	})
}

func (m Model) tagTask(task model.Task, name string) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("tagged", func() (model.Task, error) {
		return svc.Tag(ctx, task.ID, name, "", actor)
	})
}

func (m Model) untagTask(task model.Task, name string) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return m.mutate("untagged", func() (model.Task, error) {
		return svc.Untag(ctx, task.ID, name, actor)
	})
}

func (m Model) deleteTask(id int64) tea.Cmd {
	svc, ctx, actor := m.svc, m.ctx, m.actor
	return func() tea.Msg {
		if err := svc.Delete(ctx, id, actor); err != nil {
			return AppErrorMsg{Err: fmt.Errorf("delete: %w", err)}
		}
		return taskChangedMsg{Text: fmt.Sprintf("deleted task %d", id)}
	}
}

func (m Model) findTask(id int64) (model.Task, bool) {
	for _, col := range m.Columns {
		for _, t := range col.Tasks {
			if t.ID == id {
				return t, true
			}
		}
	}
	return model.Task{}, false
}
