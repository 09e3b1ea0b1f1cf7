package board

import (
	"github.com/charmbracelet/bubbles/key"
)

type KeyMap struct {
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	MoveNext   key.Binding
	MovePrev   key.Binding
	Priority   key.Binding
	Complete   key.Binding
	Delete     key.Binding
	Detail     key.Binding
	Close      key.Binding
	Reload     key.Binding
	Palette    key.Binding
	Help       key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "previous column")),
		Right:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next column")),
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		MoveNext:   key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "move to next section")),
		MovePrev:   key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "move to previous section")),
		Priority:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle priority")),
		Complete:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		Delete:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x x", "delete")),
		Detail:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Close:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Palette:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command palette")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll details")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll details")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Palette, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MoveNext, k.MovePrev, k.Priority, k.Complete, k.Delete},
		{k.Detail, k.Reload, k.Palette, k.Help, k.Quit},
	}
}

var paletteHelp = []string{
	"add <text> [!high|!medium|!low]",
	"move <section>",
	"priority <high|medium|low>",
	"epic [name]",
	"tag <name>",
	"untag <name>",
}
