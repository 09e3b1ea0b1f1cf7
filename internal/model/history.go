package model

import "time"

type HistoryAction string

const (
	ActionCreated   HistoryAction = "created"
	ActionUpdated   HistoryAction = "updated"
	ActionMoved     HistoryAction = "moved"
	ActionPriority  HistoryAction = "priority_changed"
	ActionCompleted HistoryAction = "completed"
	ActionTagged    HistoryAction = "tagged"
	ActionUntagged  HistoryAction = "untagged"
	ActionImported  HistoryAction = "imported"
)

type HistoryEntry struct {
	ID        int64
	TaskID    int64
	Action    HistoryAction
	OldValue  *string
	NewValue  *string
	ChangedBy string
	ChangedAt time.Time
}

const DefaultTagColor = "#6c757d"

type Tag struct {
	ID        int64
	Name      string
	Color     string
	CreatedAt time.Time
	TaskCount int
}
