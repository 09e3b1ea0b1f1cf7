package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/model"
	"github.com/worldchanger/management-systems/internal/storage"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func (s *Server) handleListTasks(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		badRequest(c, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must not be negative")
		return
	}
	filter := storage.TaskListFilter{
		Section:  model.Section(c.Query("section")),
		Priority: model.Priority(c.Query("priority")),
		Status:   model.Status(c.Query("status")),
		Epic:     c.Query("epic"),
		Limit:    limit,
		Offset:   offset,
	}
	tasks, err := s.svc.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponses(tasks))
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Create(c.Request.Context(), kanban.CreateInput{
		Content:  req.Content,
		Priority: model.Priority(req.Priority),
		Owner:    model.Owner(req.Owner),
		Section:  model.Section(req.Section),
		Epic:     req.Epic,
		Area:     req.Area,
		Tags:     req.Tags,
	}, actorOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := s.svc.Get(c.Request.Context(), id)
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	in := kanban.UpdateInput{Content: req.Content, Epic: req.Epic, Area: req.Area}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.Owner != nil {
		o := model.Owner(*req.Owner)
		in.Owner = &o
	}
	if req.Status != nil {
		st := model.Status(*req.Status)
		in.Status = &st
	}
	task, err := s.svc.Update(c.Request.Context(), id, in, actorOf(c))
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := s.svc.Delete(c.Request.Context(), id, actorOf(c)); err != nil {
		s.taskError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMoveTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req moveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Move(c.Request.Context(), id, model.Section(req.Section), req.Position, actorOf(c))
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleSetPriority(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.SetPriority(c.Request.Context(), id, model.Priority(req.Priority), actorOf(c))
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := s.svc.Complete(c.Request.Context(), id, actorOf(c))
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleTaskHistory(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	entries, err := s.svc.History(c.Request.Context(), id)
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newHistoryResponses(entries))
}

func (s *Server) handleAddTag(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.svc.Tag(c.Request.Context(), id, req.Name, req.Color, actorOf(c))
	if err != nil {
		s.taskError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleRemoveTag(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	name := c.Param("name")
	task, err := s.svc.Untag(c.Request.Context(), id, name, actorOf(c))
	if errors.Is(err, storage.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Detail: "Tag " + strconv.Quote(name) + " not found on task " + formatID(id)})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.svc.Tags(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTagResponses(tags))
}

func (s *Server) handleSections(c *gin.Context) {
	names := make([]string, len(model.Sections))
	for i, section := range model.Sections {
		names[i] = string(section)
	}
	c.JSON(http.StatusOK, names)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.svc.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatsResponses(stats))
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.svc.Health(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
}

// taskError reports a missing task with its id and defers to fail otherwise.
func (s *Server) taskError(c *gin.Context, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.notFound(c, "Task", id)
		return
	}
	s.fail(c, err)
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid task id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func actorOf(c *gin.Context) string {
	return c.GetString(ctxActor)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
