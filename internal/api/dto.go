package api

import (
	"time"

	"github.com/worldchanger/management-systems/internal/model"
)

type taskResponse struct {
	ID              int64    `json:"id"`
	Content         string   `json:"content"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	Owner           string   `json:"owner"`
	Section         string   `json:"section"`
	Epic            *string  `json:"epic"`
	Area            string   `json:"area"`
	OccurrenceCount int      `json:"occurrence_count"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	CompletedAt     *string  `json:"completed_at"`
	Position        int      `json:"position"`
	Tags            []string `json:"tags"`
}

func newTaskResponse(t model.Task) taskResponse {
	out := taskResponse{
		ID:              t.ID,
		Content:         t.Content,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		Owner:           string(t.Owner),
		Section:         string(t.Section),
		Epic:            t.Epic,
		Area:            t.Area,
		OccurrenceCount: t.OccurrenceCount,
		CreatedAt:       formatTime(t.CreatedAt),
		UpdatedAt:       formatTime(t.UpdatedAt),
		Position:        t.Position,
		Tags:            t.Tags,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		out.CompletedAt = &s
	}
	return out
}

func newTaskResponses(tasks []model.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}
	return out
}

type historyResponse struct {
	ID        int64   `json:"id"`
	TaskID    int64   `json:"task_id"`
	Action    string  `json:"action"`
	OldValue  *string `json:"old_value"`
	NewValue  *string `json:"new_value"`
	ChangedBy string  `json:"changed_by"`
	ChangedAt string  `json:"changed_at"`
}

func newHistoryResponses(entries []model.HistoryEntry) []historyResponse {
	out := make([]historyResponse, len(entries))
	for i, h := range entries {
		out[i] = historyResponse{
			ID:        h.ID,
			TaskID:    h.TaskID,
			Action:    string(h.Action),
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			ChangedBy: h.ChangedBy,
			ChangedAt: formatTime(h.ChangedAt),
		}
	}
	return out
}

type tagResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	TaskCount int    `json:"task_count"`
	CreatedAt string `json:"created_at"`
}

func newTagResponses(tags []model.Tag) []tagResponse {
	out := make([]tagResponse, len(tags))
	for i, t := range tags {
		out[i] = tagResponse{ID: t.ID, Name: t.Name, Color: t.Color, TaskCount: t.TaskCount, CreatedAt: formatTime(t.CreatedAt)}
	}
	return out
}

type sectionStatsResponse struct {
	Section        string `json:"section"`
	Count          int    `json:"count"`
	HighPriority   int    `json:"high_priority"`
	MediumPriority int    `json:"medium_priority"`
	LowPriority    int    `json:"low_priority"`
}

func newStatsResponses(stats []model.SectionStats) []sectionStatsResponse {
	out := make([]sectionStatsResponse, len(stats))
	for i, s := range stats {
		out[i] = sectionStatsResponse{
			Section:        string(s.Section),
			Count:          s.Count,
			HighPriority:   s.HighPriority,
			MediumPriority: s.MediumPriority,
			LowPriority:    s.LowPriority,
		}
	}
	return out
}

type createTaskRequest struct {
	Content  string   `json:"content" binding:"required"`
	Priority string   `json:"priority"`
	Owner    string   `json:"owner"`
	Section  string   `json:"section"`
	Epic     *string  `json:"epic"`
	Area     string   `json:"area"`
	Tags     []string `json:"tags"`
}

type updateTaskRequest struct {
	Content  *string `json:"content"`
	Priority *string `json:"priority"`
	Owner    *string `json:"owner"`
	Status   *string `json:"status"`
	Epic     *string `json:"epic"`
	Area     *string `json:"area"`
}

type moveTaskRequest struct {
	Section  string `json:"section" binding:"required"`
	Position *int   `json:"position"`
}

type priorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

type tagRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
