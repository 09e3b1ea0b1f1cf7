package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("model: invalid task status")
	ErrInvalidPriority = errors.New("model: invalid task priority")
	ErrInvalidSection  = errors.New("model: invalid task section")
	ErrInvalidOwner    = errors.New("model: invalid task owner")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Next cycles high -> medium -> low -> high.
func (p Priority) Next() Priority {
	switch p {
	case PriorityHigh:
		return PriorityMedium
	case PriorityMedium:
		return PriorityLow
	default:
		return PriorityHigh
	}
}

type Section string

const (
	SectionBacklog    Section = "Backlog"
	SectionToDo       Section = "To Do"
	SectionInProgress Section = "In Progress"
	SectionCompleted  Section = "Completed"
)

// Sections lists the board columns in workflow order.
var Sections = []Section{SectionBacklog, SectionToDo, SectionInProgress, SectionCompleted}

func (s Section) IsValid() bool {
	switch s {
	case SectionBacklog, SectionToDo, SectionInProgress, SectionCompleted:
		return true
	default:
		return false
	}
}

// ParseSection matches a section name case-insensitively.
func ParseSection(raw string) (Section, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Sections {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSection, raw)
}

type Owner string

const (
	OwnerUser  Owner = "user"
	OwnerAgent Owner = "agent"
)

func (o Owner) IsValid() bool {
	switch o {
	case OwnerUser, OwnerAgent:
		return true
	default:
		return false
	}
}

const (
	DefaultArea            = "general"
	DefaultOccurrenceCount = 1
)

type Task struct {
	ID              int64
	Content         string
	Status          Status
	Priority        Priority
	Owner           Owner
	Section         Section
	Epic            *string
	Area            string
	OccurrenceCount int
	Position        int
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

func (t Task) EpicOrEmpty() string {
	if t.Epic == nil {
		return ""
	}
	return *t.Epic
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return errors.New("model: task content is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if !t.Section.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSection, t.Section)
	}
	if !t.Owner.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, t.Owner)
	}
	if t.OccurrenceCount < 1 {
		return fmt.Errorf("model: occurrence_count must be positive, got %d", t.OccurrenceCount)
	}
	if t.Position < 0 {
		return fmt.Errorf("model: position must not be negative, got %d", t.Position)
	}
	return nil
}

// WithDefaults fills zero-valued enum and counter fields with the store defaults.
func (t Task) WithDefaults() Task {
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Owner == "" {
		t.Owner = OwnerAgent
	}
	if t.Section == "" {
		t.Section = SectionBacklog
	}
	if t.Area == "" {
		t.Area = DefaultArea
	}
	if t.OccurrenceCount == 0 {
		t.OccurrenceCount = DefaultOccurrenceCount
	}
	return t
}

type SectionStats struct {
	Section        Section
	Count          int
	HighPriority   int
	MediumPriority int
	LowPriority    int
}
