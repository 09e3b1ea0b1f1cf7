package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type CardData struct {
	ID       int64
	Content  string
	Priority string
	Epic     string
	Tags     []string
	Done     bool
}

type ColumnData struct {
	Title   string
	Cards   []CardData
	Cursor  int
	Focused bool
}

type BoardData struct {
	Columns     []ColumnData
	ColumnWidth int
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

type DetailData struct {
	Markdown string
}

var (
	columnStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	focusedColumnStyle = columnStyle.BorderForeground(lipgloss.Color("12"))
	columnTitleStyle   = lipgloss.NewStyle().Bold(true)
	selectedCardStyle  = lipgloss.NewStyle().Reverse(true)
	doneCardStyle      = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
)

var priorityStyles = map[string]lipgloss.Style{
	"high":   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	"medium": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"low":    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

func RenderBoard(data BoardData) string {
	width := data.ColumnWidth
	if width <= 0 {
		width = 28
	}
	cols := make([]string, 0, len(data.Columns))
	for _, col := range data.Columns {
		cols = append(cols, renderColumn(col, width))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(col ColumnData, width int) string {
	var b strings.Builder
	b.WriteString(columnTitleStyle.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Cards))))
	b.WriteString("\n")
	if len(col.Cards) == 0 {
		b.WriteString("  (empty)")
	}
	for i, card := range col.Cards {
		line := renderCard(card, width-2)
		if col.Focused && i == col.Cursor {
			line = selectedCardStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(col.Cards)-1 {
			b.WriteString("\n")
		}
	}
	style := columnStyle
	if col.Focused {
		style = focusedColumnStyle
	}
	return style.Width(width).Render(b.String())
}

func renderCard(card CardData, width int) string {
	badge := priorityStyles[card.Priority].Render(priorityBadge(card.Priority))
	text := card.Content
	if card.Epic != "" {
		text = card.Epic + ": " + text
	}
	if len(card.Tags) > 0 {
		text += " #" + strings.Join(card.Tags, " #")
	}
	if limit := width - 4; limit > 3 && lipgloss.Width(text) > limit {
		runes := []rune(text)
		if len(runes) > limit-1 {
			text = string(runes[:limit-1]) + "…"
		}
	}
	if card.Done {
		text = doneCardStyle.Render(text)
	}
	return badge + " " + text
}

func priorityBadge(p string) string {
	switch p {
	case "high":
		return "[H]"
	case "low":
		return "[L]"
	default:
		return "[M]"
	}
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s\n\n%s",
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}

func RenderDetail(data DetailData, width int) string {
	if strings.TrimSpace(data.Markdown) == "" {
		return "detail:\n(no task selected)"
	}
	return RenderMarkdownWidth(data.Markdown, width)
}
