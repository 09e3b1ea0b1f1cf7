package board

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/worldchanger/management-systems/internal/commands"
	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/views"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	if msg.Type == tea.KeyRunes {
		m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
		m.Palette.Input = m.commandInput.Value()
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m *Model) closePalette() {
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var next tea.Cmd
	selected := func() (model.Task, error) {
		task, ok := m.Selected()
		if !ok {
			return model.Task{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "no task selected"}
		}
		return task, nil
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			next = m.createTask(kanban.CreateInput{
				Content:  a.Content,
				Priority: a.Priority,
				Owner:    model.OwnerUser,
				Section:  m.section(),
			})
			return commands.Result{Message: fmt.Sprintf("adding to %s: %s", m.section(), a.Content)}, nil
		},
		Move: func(a commands.MoveArgs) (commands.Result, error) {
			task, err := selected()
			if err != nil {
				return commands.Result{}, err
			}
			next = m.moveTask(task, a.Section)
			return commands.Result{Message: fmt.Sprintf("moving task %d to %s", task.ID, a.Section)}, nil
		},
		Priority: func(a commands.PriorityArgs) (commands.Result, error) {
			task, err := selected()
			if err != nil {
				return commands.Result{}, err
			}
			next = m.setPriority(task, a.Priority)
			return commands.Result{Message: fmt.Sprintf("setting task %d priority to %s", task.ID, a.Priority)}, nil
		},
		Epic: func(a commands.EpicArgs) (commands.Result, error) {
			task, err := selected()
			if err != nil {
				return commands.Result{}, err
			}
			next = m.setEpic(task, a.Name)
			if a.Name == "" {
				return commands.Result{Message: fmt.Sprintf("clearing epic of task %d", task.ID)}, nil
			}
			return commands.Result{Message: fmt.Sprintf("setting epic of task %d to %s", task.ID, a.Name)}, nil
		},
		Tag: func(a commands.TagArgs) (commands.Result, error) {
			task, err := selected()
			if err != nil {
				return commands.Result{}, err
			}
			next = m.tagTask(task, a.Name)
			return commands.Result{Message: fmt.Sprintf("tagging task %d with %s", task.ID, a.Name)}, nil
		},
		Untag: func(a commands.TagArgs) (commands.Result, error) {
			task, err := selected()
			if err != nil {
				return commands.Result{}, err
			}
			next = m.untagTask(task, a.Name)
			return commands.Result{Message: fmt.Sprintf("removing tag %s from task %d", a.Name, task.ID)}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	return m, next
}

func (m Model) renderPalette() string {
	return views.RenderCommandPalette(m.Palette.Active, m.commandInput.View())
}
