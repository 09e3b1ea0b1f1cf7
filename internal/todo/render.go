package todo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

// Render writes tasks as a TODO.md document that Parse reads back into the
// same sections, order, status, priority and epic. Tasks are grouped by
// section in board order and keep their relative order within a section.
//
// The format has no escape syntax, so content that itself contains marker
// text (a {...} object, "(high)" or "(id:N)") is written verbatim and will
// not parse back to the same record. HasMarkers detects such content.
func Render(title string, tasks []model.Task) string {
	bySection := make(map[model.Section][]model.Task, len(model.Sections))
	for _, t := range tasks {
		bySection[t.Section] = append(bySection[t.Section], t)
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, section := range model.Sections {
		items := bySection[section]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", section)
		for _, t := range items {
			b.WriteString(renderLine(t))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderLine(t model.Task) string {
	box := " "
	if t.IsCompleted() {
		box = "x"
	}
	line := fmt.Sprintf("- [%s] %s (%s)", box, t.Content, t.Priority)
	if t.ID > 0 {
		line += fmt.Sprintf(" (id:%d)", t.ID)
	}
	if meta, ok := renderMetadata(t); ok {
		line += " " + meta
	}
	return line
}

func renderMetadata(t model.Task) (string, bool) {
	meta := Metadata{Epic: t.EpicOrEmpty()}
	if t.OccurrenceCount > 1 {
		count := t.OccurrenceCount
		meta.OccurrenceCount = &count
	}
	if !t.CreatedAt.IsZero() {
		meta.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	if t.CompletedAt != nil && t.IsCompleted() {
		meta.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339)
	}
	if meta == (Metadata{}) {
		return "", false
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// HasMarkers reports whether content contains text Parse would read as
// inline metadata, a priority marker or an id marker.
func HasMarkers(content string) bool {
	return metadataPattern.MatchString(content) ||
		priorityPattern.MatchString(content) ||
		idPattern.MatchString(content)
}
