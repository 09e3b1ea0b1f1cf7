// Package api serves the kanban board over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/worldchanger/management-systems/internal/kanban"
	"github.com/worldchanger/management-systems/internal/logging"
	"github.com/worldchanger/management-systems/internal/model"
)

const BasePath = "/api/v1/kanban"

type Options struct {
	// Token is the static bearer token required on every route except
	// /health. Empty disables authentication.
	Token        string
	DefaultActor string
	Logger       *log.Logger
}

type Server struct {
	svc    *kanban.Service
	router *gin.Engine
	logger *log.Logger
}

func NewServer(svc *kanban.Service, opts Options) *Server {
	if opts.DefaultActor == "" {
		opts.DefaultActor = string(model.OwnerAgent)
	}
	logger := logging.OrDiscard(opts.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(logger))

	s := &Server{svc: svc, router: router, logger: logger}

	board := router.Group(BasePath)
	board.GET("/health", s.handleHealth)

	authed := board.Group("", bearerAuth(opts.Token), actor(opts.DefaultActor))
	{
		authed.GET("/tasks", s.handleListTasks)
		authed.POST("/tasks", s.handleCreateTask)
		authed.GET("/tasks/:id", s.handleGetTask)
		authed.PUT("/tasks/:id", s.handleUpdateTask)
		authed.DELETE("/tasks/:id", s.handleDeleteTask)
		authed.POST("/tasks/:id/move", s.handleMoveTask)
		authed.POST("/tasks/:id/priority", s.handleSetPriority)
		authed.POST("/tasks/:id/complete", s.handleCompleteTask)
		authed.GET("/tasks/:id/history", s.handleTaskHistory)
		authed.POST("/tasks/:id/tags", s.handleAddTag)
		authed.DELETE("/tasks/:id/tags/:name", s.handleRemoveTag)
		authed.GET("/tags", s.handleListTags)
		authed.GET("/sections", s.handleSections)
		authed.GET("/stats", s.handleStats)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
