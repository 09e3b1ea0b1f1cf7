// Package todo converts TODO.md task lists into structured task records and
// renders stored tasks back into the same markdown format.
package todo

import (
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

// Record is one task line parsed from a TODO.md document. Records are built
// once per line and never mutated afterwards.
type Record struct {
	Line            int
	Content         string
	Status          model.Status
	Priority        model.Priority
	Section         model.Section
	Epic            *string
	Area            string
	OccurrenceCount int
	Position        int
	OriginalID      *int
	// CreatedAt and CompletedAt keep the raw metadata text; parsing them is
	// left to the consumer so failures can be reported instead of lost.
	CreatedAt   string
	CompletedAt string
}

func (r Record) IsCompleted() bool {
	return r.Status == model.StatusCompleted
}

// Task converts the record into a store entity. Timestamps are left zero so
// the store assigns its own defaults.
func (r Record) Task() model.Task {
	return model.Task{
		Content:         r.Content,
		Status:          r.Status,
		Priority:        r.Priority,
		Owner:           model.OwnerAgent,
		Section:         r.Section,
		Epic:            r.Epic,
		Area:            r.Area,
		OccurrenceCount: r.OccurrenceCount,
		Position:        r.Position,
	}
}

// SectionCounts tallies records per section in board order.
func SectionCounts(records []Record) map[model.Section]int {
	out := make(map[model.Section]int, len(model.Sections))
	for _, r := range records {
		out[r.Section]++
	}
	return out
}

// ParseTimestamp accepts the ISO-8601 shapes the TODO.md metadata uses:
// RFC 3339 with or without zone, optionally with fractional seconds, or a
// bare date.
func ParseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		tm, err := time.Parse(layout, raw)
		if err == nil {
			return tm, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}
