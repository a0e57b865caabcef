// Package web serves the board over HTTP: a JSON API for tasks and projects,
// plus server-sent event and websocket streams of change notifications.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/notify"
	"github.com/valter-silva-au/mdboard/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// Deps groups the collaborators of a Server. Activity may be nil, in which
// case the activity route is not registered.
type Deps struct {
	Board    core.Board
	Projects core.ProjectRegistry
	Hub      *notify.Hub
	Activity observability.ActivityCalculator
	Logger   *slog.Logger
}

// Server is the board HTTP server.
type Server struct {
	board    core.Board
	projects core.ProjectRegistry
	hub      *notify.Hub
	activity observability.ActivityCalculator
	logger   *slog.Logger
	router   *gin.Engine
}

// NewServer creates a Server and registers every route.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	s := &Server{
		board:    deps.Board,
		projects: deps.Projects,
		hub:      deps.Hub,
		activity: deps.Activity,
		logger:   logger,
		router:   router,
	}

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		if s.activity != nil {
			api.GET("/activity", s.handleActivity)
		}

		tasks := api.Group("/tasks")
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.POST("/move", s.handleMoveTask)
		tasks.POST("/reorder", s.handleReorderTasks)
		tasks.GET("/config", s.handleGetConfig)
		tasks.PUT("/config", s.handleUpdateConfig)
		tasks.GET("/notes", s.handleGetNotes)
		tasks.PUT("/notes", s.handleUpdateNotes)
		tasks.GET("/events", s.handleEvents)
		tasks.GET("/ws", s.handleWebsocket)
		tasks.GET("/:status/:filename", s.handleGetTask)
		tasks.PUT("/:status/:filename", s.handleUpdateTask)
		tasks.DELETE("/:status/:filename", s.handleDeleteTask)

		projects := api.Group("/projects")
		projects.GET("", s.handleListProjects)
		projects.POST("", s.handleAddProject)
		projects.GET("/current", s.handleCurrentProject)
		projects.POST("/validate-path", s.handleValidatePath)
		projects.GET("/:id", s.handleGetProject)
		projects.PUT("/:id", s.handleUpdateProject)
		projects.DELETE("/:id", s.handleRemoveProject)
		projects.POST("/:id/switch", s.handleSwitchProject)
	}

	return s
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then disconnects
// stream subscribers and shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleActivity(c *gin.Context) {
	window := 24 * time.Hour
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a positive duration such as 24h"})
			return
		}
		window = d
	}

	activity, err := s.activity.Calculate(time.Now().Add(-window))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}
