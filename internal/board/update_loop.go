package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/views"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.loadSpinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = typed.Width, typed.Height
		m.detailView.Width = max(40, typed.Width/3)
		m.detailView.Height = max(10, typed.Height-8)
		return m, nil
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case spinner.TickMsg:
		if m.Loading {
			var cmd tea.Cmd
			m.loadSpinner, cmd = m.loadSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case boardLoadedMsg:
		m.Loading = false
		m.Columns = typed.Columns
		if m.focusID != 0 {
			m.selectTask(m.focusID)
			m.focusID = 0
		}
		m.clampCursors()
		if m.Detail.Visible {
			if !m.hasTaskOnBoard(m.Detail.TaskID) {
				m.Detail = DetailState{}
				return m, nil
			}
			return m, m.loadDetail(m.Detail.TaskID)
		}
		return m, nil
	case taskChangedMsg:
		m.Status = StatusBar{Text: typed.Text}
		m.focusID = typed.TaskID
		return m, m.loadBoard()
	case detailLoadedMsg:
		m.Detail = DetailState{Visible: true, TaskID: typed.TaskID, Markdown: typed.Markdown}
		m.detailView.SetContent(views.RenderDetail(views.DetailData{Markdown: typed.Markdown}, m.detailView.Width))
		m.detailView.GotoTop()
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case AppErrorMsg:
		m.Loading = false
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.logger.Warn("board action failed", "err", typed.Err)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingDelete != 0 {
		id := m.pendingDelete
		m.pendingDelete = 0
		if key.Matches(msg, m.Keys.Delete) {
			return m, m.deleteTask(id)
		}
		m.Status = StatusBar{Text: "delete cancelled"}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case key.Matches(msg, m.Keys.Palette):
		m.Palette = CommandPaletteState{Active: true}
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case key.Matches(msg, m.Keys.Close):
		m.Detail.Visible = false
		m.HelpVisible = false
		return m, nil
	case key.Matches(msg, m.Keys.Reload):
		m.Loading = true
		return m, m.loadBoard()
	case key.Matches(msg, m.Keys.Left):
		if m.Col > 0 {
			m.Col--
		}
		return m, nil
	case key.Matches(msg, m.Keys.Right):
		if m.Col < len(m.Columns)-1 {
			m.Col++
		}
		return m, nil
	case key.Matches(msg, m.Keys.Up):
		if m.Cursors[m.Col] > 0 {
			m.Cursors[m.Col]--
		}
		return m, nil
	case key.Matches(msg, m.Keys.Down):
		if m.Cursors[m.Col] < len(m.Columns[m.Col].Tasks)-1 {
			m.Cursors[m.Col]++
		}
		return m, nil
	case key.Matches(msg, m.Keys.ScrollUp), key.Matches(msg, m.Keys.ScrollDown):
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd
	}

	task, ok := m.Selected()
	if !ok {
		if isTaskKey(m.Keys, msg) {
			m.Status = StatusBar{Text: "no task selected", IsError: true}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.MoveNext):
		if m.Col >= len(model.Sections)-1 {
			return m, nil
		}
		return m, m.moveTask(task, model.Sections[m.Col+1])
	case key.Matches(msg, m.Keys.MovePrev):
		if m.Col == 0 {
			return m, nil
		}
		return m, m.moveTask(task, model.Sections[m.Col-1])
	case key.Matches(msg, m.Keys.Priority):
		return m, m.setPriority(task, task.Priority.Next())
	case key.Matches(msg, m.Keys.Complete):
		return m, m.completeTask(task)
	case key.Matches(msg, m.Keys.Delete):
		m.pendingDelete = task.ID
		m.Status = StatusBar{Text: fmt.Sprintf("delete task %d? press x again to confirm", task.ID)}
		return m, nil
	case key.Matches(msg, m.Keys.Detail):
		if m.Detail.Visible && m.Detail.TaskID == task.ID {
			m.Detail.Visible = false
			return m, nil
		}
		return m, m.loadDetail(task.ID)
	}
	return m, nil
}

func isTaskKey(k KeyMap, msg tea.KeyMsg) bool {
	return key.Matches(msg, k.MoveNext, k.MovePrev, k.Priority, k.Complete, k.Delete, k.Detail)
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	colWidth := 28
	if m.width > 0 {
		avail := m.width
		if m.Detail.Visible || m.HelpVisible {
			avail -= m.detailView.Width + 4
		}
		colWidth = max(20, avail/len(m.Columns)-2)
	}

	cols := make([]views.ColumnData, len(m.Columns))
	for i, col := range m.Columns {
		cards := make([]views.CardData, len(col.Tasks))
		for j, t := range col.Tasks {
			cards[j] = views.CardData{
				ID:       t.ID,
				Content:  t.Content,
				Priority: string(t.Priority),
				Epic:     t.EpicOrEmpty(),
				Tags:     t.Tags,
				Done:     t.IsCompleted(),
			}
		}
		cols[i] = views.ColumnData{Title: string(col.Section), Cards: cards, Cursor: m.Cursors[i], Focused: i == m.Col}
	}

	side := ""
	switch {
	case m.HelpVisible:
		side = m.renderHelpView()
	case m.Detail.Visible:
		side = m.detailView.View()
	}

	status := m.Status.Text
	if m.Loading {
		status = strings.TrimSpace(m.loadSpinner.View() + " loading board " + status)
	}

	return views.RenderApp(views.AppData{
		Header:     fmt.Sprintf("kanban | column: %s | tasks: %d", m.section(), m.taskCount()),
		Board:      views.RenderBoard(views.BoardData{Columns: cols, ColumnWidth: colWidth}),
		SidePane:   side,
		Palette:    m.renderPalette(),
		StatusLine: status,
		IsError:    m.Status.IsError,
		Footer:     m.helpModel.ShortHelpView(m.Keys.ShortHelp()),
	})
}

func (m Model) renderHelpView() string {
	bindings := make([]string, 0, len(paletteHelp))
	for _, line := range paletteHelp {
		bindings = append(bindings, "/"+line)
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: bindings,
		HelpView: m.helpModel.FullHelpView(m.Keys.FullHelp()),
	})
}

func (m Model) hasTaskOnBoard(id int64) bool {
	_, ok := m.findTask(id)
	return ok
}

func (m Model) taskCount() int {
	n := 0
	for _, col := range m.Columns {
		n += len(col.Tasks)
	}
	return n
}
