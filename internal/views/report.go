package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type SectionCount struct {
	Section string
	Count   int
}

type MigrationReportData struct {
	Source          string
	DryRun          bool
	Found           int
	BySection       []SectionCount
	Inserted        int
	Skipped         int
	TimestampIssues []string
	BackupPath      string
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	reportLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(18)
	reportWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// RenderSectionDistribution lists how many parsed records fall in each section.
func RenderSectionDistribution(counts []SectionCount) string {
	var b strings.Builder
	b.WriteString(reportTitleStyle.Render("Section distribution"))
	for _, c := range counts {
		b.WriteString("\n")
		b.WriteString(reportLabelStyle.Render(c.Section))
		b.WriteString(fmt.Sprintf("%d", c.Count))
	}
	return b.String()
}

func RenderMigrationReport(data MigrationReportData) string {
	title := "Migration summary"
	if data.DryRun {
		title += " (dry run, nothing written)"
	}
	rows := [][2]string{
		{"source", data.Source},
		{"tasks found", fmt.Sprint(data.Found)},
		{"inserted", fmt.Sprint(data.Inserted)},
		{"skipped", fmt.Sprint(data.Skipped)},
	}
	if data.BackupPath != "" {
		rows = append(rows, [2]string{"backup", data.BackupPath})
	}

	var b strings.Builder
	b.WriteString(reportTitleStyle.Render(title))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(reportLabelStyle.Render(row[0]))
		b.WriteString(row[1])
	}
	if len(data.BySection) > 0 {
		b.WriteString("\n\n")
		b.WriteString(RenderSectionDistribution(data.BySection))
	}
	if len(data.TimestampIssues) > 0 {
		b.WriteString("\n\n")
		b.WriteString(reportWarnStyle.Render(fmt.Sprintf("%d timestamp(s) could not be parsed; store defaults used:", len(data.TimestampIssues))))
		for _, issue := range data.TimestampIssues {
			b.WriteString("\n  - " + issue)
		}
	}
	return panelStyle.Render(b.String())
}
