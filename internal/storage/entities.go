package storage

import (
	"fmt"
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

type TaskListFilter struct {
	Section  model.Section
	Priority model.Priority
	Status   model.Status
	Epic     string
	Limit    int
	Offset   int
}

// sectionOrder sorts rows in board order instead of alphabetically.
const sectionOrder = `CASE section WHEN 'Backlog' THEN 0 WHEN 'To Do' THEN 1 WHEN 'In Progress' THEN 2 ELSE 3 END`

func validateTask(in model.Task) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return nil
}

// stampNew fills defaults and creation timestamps on a task about to be
// inserted.
func stampNew(in model.Task, now time.Time) model.Task {
	in = in.WithDefaults()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}
	return in
}

func sectionStatsSkeleton() ([]model.SectionStats, map[model.Section]int) {
	out := make([]model.SectionStats, len(model.Sections))
	index := make(map[model.Section]int, len(model.Sections))
	for i, s := range model.Sections {
		out[i] = model.SectionStats{Section: s}
		index[s] = i
	}
	return out, index
}

func tagColor(color string) string {
	if color == "" {
		return model.DefaultTagColor
	}
	return color
}
