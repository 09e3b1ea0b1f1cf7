// Package board is the interactive terminal kanban board.
package board

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/log"

	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/logging"
	"github.com/worldchanger/management-systems/internal/model"
)

// Service is the part of kanban.Service the board drives.
type Service interface {
	Board(ctx context.Context) ([]kanban.Column, error)
	Create(ctx context.Context, in kanban.CreateInput, actor string) (model.Task, error)
	Update(ctx context.Context, id int64, in kanban.UpdateInput, actor string) (model.Task, error)
	Move(ctx context.Context, id int64, section model.Section, position *int, actor string) (model.Task, error)
	SetPriority(ctx context.Context, id int64, priority model.Priority, actor string) (model.Task, error)
	Complete(ctx context.Context, id int64, actor string) (model.Task, error)
	Delete(ctx context.Context, id int64, actor string) error
	Tag(ctx context.Context, id int64, name, color, actor string) (model.Task, error)
	Untag(ctx context.Context, id int64, name, actor string) (model.Task, error)
	History(ctx context.Context, id int64) ([]model.HistoryEntry, error)
}

type StatusBar struct {
	Text    string
	IsError bool
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type DetailState struct {
	Visible  bool
	TaskID   int64
	Markdown string
}

type Model struct {
	Columns     []kanban.Column
	Col         int
	Cursors     []int
	Palette     CommandPaletteState
	Detail      DetailState
	HelpVisible bool
	Status      StatusBar
	Keys        KeyMap
	Loading     bool
	Quitting    bool
	LastError   error

	// pendingDelete is the task awaiting a second delete keypress.
	pendingDelete int64
	// focusID is re-selected after the next board load.
	focusID int64

	svc    Service
	ctx    context.Context
	actor  string
	logger *log.Logger

	commandInput textinput.Model
	helpModel    help.Model
	detailView   viewport.Model
	loadSpinner  spinner.Model
	width        int
	height       int
}

type Options struct {
	Actor  string
	Logger *log.Logger
}

type boardLoadedMsg struct {
	Columns []kanban.Column
}

type taskChangedMsg struct {
	Text   string
	TaskID int64
}

type detailLoadedMsg struct {
	TaskID   int64
	Markdown string
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type AppErrorMsg struct {
	Err error
}

func NewModel(ctx context.Context, svc Service, opts Options) Model {
	if opts.Actor == "" {
		opts.Actor = string(model.OwnerUser)
	}
	m := Model{
		Columns: emptyColumns(),
		Cursors: make([]int, len(model.Sections)),
		Keys:    DefaultKeyMap(),
		Loading: true,
		svc:     svc,
		ctx:     ctx,
		actor:   opts.Actor,
		logger:  logging.OrDiscard(opts.Logger),
	}
	m.initBubbleComponents()
	return m
}

func (m *Model) initBubbleComponents() {
	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.helpModel = help.New()
	m.helpModel.ShowAll = true

	m.detailView = viewport.New(56, 18)

	m.loadSpinner = spinner.New()
	m.loadSpinner.Spinner = spinner.Dot
}

func emptyColumns() []kanban.Column {
	cols := make([]kanban.Column, len(model.Sections))
	for i, s := range model.Sections {
		cols[i] = kanban.Column{Section: s}
	}
	return cols
}

// Selected returns the task under the cursor in the focused column.
func (m Model) Selected() (model.Task, bool) {
	if m.Col < 0 || m.Col >= len(m.Columns) {
		return model.Task{}, false
	}
	tasks := m.Columns[m.Col].Tasks
	cur := m.Cursors[m.Col]
	if cur < 0 || cur >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[cur], true
}

func (m Model) section() model.Section {
	return model.Sections[m.Col]
}

func (m *Model) clampCursors() {
	for i := range m.Cursors {
		n := 0
		if i < len(m.Columns) {
			n = len(m.Columns[i].Tasks)
		}
		switch {
		case n == 0:
			m.Cursors[i] = 0
		case m.Cursors[i] >= n:
			m.Cursors[i] = n - 1
		case m.Cursors[i] < 0:
			m.Cursors[i] = 0
		}
	}
}

// selectTask focuses the column and row holding id, if present.
func (m *Model) selectTask(id int64) bool {
	for c, col := range m.Columns {
		for r, t := range col.Tasks {
			if t.ID == id {
				m.Col = c
				m.Cursors[c] = r
				return true
			}
		}
	}
	return false
}
