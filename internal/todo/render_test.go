package todo

import (
	"strings"
	"testing"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

func strPtr(s string) *string { return &s }

func TestRenderRoundTripsThroughParse(t *testing.T) {
	created := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	done := created.Add(48 * time.Hour)
	tasks := []model.Task{
		{ID: 3, Content: "Plan sprint", Status: model.StatusPending, Priority: model.PriorityHigh, Section: model.SectionToDo, OccurrenceCount: 1, CreatedAt: created},
		{ID: 4, Content: "Write runbook", Status: model.StatusPending, Priority: model.PriorityLow, Section: model.SectionToDo, Epic: strPtr("Ops"), OccurrenceCount: 2},
		{ID: 7, Content: "Ship release", Status: model.StatusCompleted, Priority: model.PriorityMedium, Section: model.SectionCompleted, Epic: strPtr("Launch"), OccurrenceCount: 1, CompletedAt: &done},
		{ID: 1, Content: "Triage inbox", Status: model.StatusPending, Priority: model.PriorityMedium, Section: model.SectionBacklog, OccurrenceCount: 1},
	}

	doc := Render("TODO", tasks)
	if !strings.HasPrefix(doc, "# TODO\n\n## Backlog\n") {
		t.Fatalf("unexpected document head:\n%s", doc)
	}

	records := Parse(doc)
	if len(records) != len(tasks) {
		t.Fatalf("expected %d records, got %d:\n%s", len(tasks), len(records), doc)
	}

	byContent := make(map[string]Record, len(records))
	for _, r := range records {
		byContent[r.Content] = r
	}
	for _, task := range tasks {
		r, ok := byContent[task.Content]
		if !ok {
			t.Fatalf("task %q missing after round trip:\n%s", task.Content, doc)
		}
		if r.Section != task.Section || r.Priority != task.Priority || r.Status != task.Status {
			t.Fatalf("task %q changed: %+v", task.Content, r)
		}
		if task.EpicOrEmpty() != "" && (r.Epic == nil || *r.Epic != task.EpicOrEmpty()) {
			t.Fatalf("task %q epic changed: %v", task.Content, r.Epic)
		}
		if r.OriginalID == nil || int64(*r.OriginalID) != task.ID {
			t.Fatalf("task %q original id = %v, want %d", task.Content, r.OriginalID, task.ID)
		}
		if r.OccurrenceCount != task.OccurrenceCount {
			t.Fatalf("task %q occurrence = %d, want %d", task.Content, r.OccurrenceCount, task.OccurrenceCount)
		}
	}

	if byContent["Plan sprint"].Position != 0 || byContent["Write runbook"].Position != 1 {
		t.Fatalf("section order not preserved:\n%s", doc)
	}
	if byContent["Ship release"].CompletedAt != "2026-02-11T12:00:00Z" {
		t.Fatalf("completed_at = %q", byContent["Ship release"].CompletedAt)
	}
}

func TestRenderSkipsEmptySections(t *testing.T) {
	doc := Render("", []model.Task{{Content: "Only one", Status: model.StatusPending, Priority: model.PriorityMedium, Section: model.SectionInProgress, OccurrenceCount: 1}})
	if strings.Contains(doc, "## Backlog") || !strings.Contains(doc, "## In Progress") {
		t.Fatalf("unexpected sections:\n%s", doc)
	}
	if strings.Contains(doc, "{") {
		t.Fatalf("expected no metadata for plain task:\n%s", doc)
	}
}

func TestHasMarkers(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{content: "Ship release", want: false},
		{content: "Call Bob (maybe)", want: false},
		{content: "(high)", want: true},
		{content: "see (id:12)", want: true},
		{content: `raw {"epic":"x"} text`, want: true},
	}
	for _, tc := range cases {
		if got := HasMarkers(tc.content); got != tc.want {
			t.Fatalf("HasMarkers(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestRenderMarkerContentDoesNotRoundTrip(t *testing.T) {
	task := model.Task{ID: 3, Content: "(high)", Section: model.SectionToDo, Status: model.StatusPending, Priority: model.PriorityLow}
	records := Parse(Render("", []model.Task{task}))
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Content == task.Content && records[0].Priority == task.Priority {
		t.Fatalf("marker content unexpectedly round-tripped: %+v", records[0])
	}
	if !HasMarkers(task.Content) {
		t.Fatal("HasMarkers should flag content that cannot round-trip")
	}
}
