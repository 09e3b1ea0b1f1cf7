package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

// taskMarkdown describes a task and its audit trail for the detail pane.
func taskMarkdown(t model.Task, history []model.HistoryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Content)
	fmt.Fprintf(&b, "- **id:** %d\n", t.ID)
	fmt.Fprintf(&b, "- **section:** %s (position %d)\n", t.Section, t.Position)
	fmt.Fprintf(&b, "- **status:** %s\n", t.Status)
	fmt.Fprintf(&b, "- **priority:** %s\n", t.Priority)
	fmt.Fprintf(&b, "- **owner:** %s\n", t.Owner)
	if epic := t.EpicOrEmpty(); epic != "" {
		fmt.Fprintf(&b, "- **epic:** %s\n", epic)
	}
	fmt.Fprintf(&b, "- **area:** %s\n", t.Area)
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "- **tags:** %s\n", strings.Join(t.Tags, ", "))
	}
	fmt.Fprintf(&b, "- **created:** %s\n", t.CreatedAt.Format(time.DateTime))
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "- **completed:** %s\n", t.CompletedAt.Format(time.DateTime))
	}

	b.WriteString("\n## History\n\n")
	if len(history) == 0 {
		b.WriteString("_no changes recorded_\n")
		return b.String()
	}
	b.WriteString("| when | action | change | by |\n|---|---|---|---|\n")
	for _, h := range history {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			h.ChangedAt.Format(time.DateTime), h.Action, describeChange(h), h.ChangedBy)
	}
	return b.String()
}

func describeChange(h model.HistoryEntry) string {
	from, to := deref(h.OldValue), deref(h.NewValue)
	switch {
	case from == "" && to == "":
		return ""
	case from == "":
		return escapeCell(to)
	case to == "":
		return "~~" + escapeCell(from) + "~~"
	default:
		return escapeCell(from) + " → " + escapeCell(to)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
