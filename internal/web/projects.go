package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

type addProjectRequest struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	CreateTasksDir bool   `json:"createTasksDir"`
}

type addProjectResponse struct {
	models.Project
	TasksCreated bool `json:"tasksCreated"`
}

type updateProjectRequest struct {
	Name string `json:"name"`
}

type validatePathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.projects.List()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCurrentProject(c *gin.Context) {
	project, err := s.projects.Current()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.projects.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleAddProject validates the path, optionally creating its tasks tree,
// before registering the project.
func (s *Server) handleAddProject(c *gin.Context) {
	var req addProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid project: "+err.Error())
		return
	}
	if req.Name == "" || req.Path == "" {
		badRequest(c, "name and path are required")
		return
	}

	validation, err := s.projects.ValidatePath(req.Path, req.CreateTasksDir)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !validation.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     validation.Error,
			"canCreate": validation.CanCreate,
		})
		return
	}

	project, err := s.projects.Add(req.Name, req.Path)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addProjectResponse{Project: *project, TasksCreated: validation.Created})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid project update: "+err.Error())
		return
	}
	project, err := s.projects.Update(c.Param("id"), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleRemoveProject unregisters a project. When the current project is
// removed the board follows the registry to its new current project.
func (s *Server) handleRemoveProject(c *gin.Context) {
	id := c.Param("id")
	wasCurrent := false
	if current, err := s.projects.Current(); err == nil {
		wasCurrent = current.ID == id
	}

	if _, err := s.projects.Remove(id); err != nil {
		s.respondError(c, err)
		return
	}

	if wasCurrent {
		next, err := s.projects.Current()
		switch {
		case err == nil:
			if _, err := s.board.SwitchProject(next.ID); err != nil {
				s.logger.Warn("switching to remaining project", "id", next.ID, "error", err)
			}
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("reading current project", "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSwitchProject(c *gin.Context) {
	project, err := s.board.SwitchProject(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) handleValidatePath(c *gin.Context) {
	var req validatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, "path is required")
		return
	}
	validation, err := s.projects.ValidatePath(req.Path, false)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}
