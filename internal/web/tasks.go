package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

type moveRequest struct {
	FromStatus models.Status `json:"fromStatus"`
	Filename   string        `json:"filename"`
	ToStatus   models.Status `json:"toStatus"`
	Position   *int          `json:"position"`
}

type reorderRequest struct {
	Status     models.Status `json:"status"`
	OrderedIDs []string      `json:"orderedIds"`
}

type notesBody struct {
	Content string `json:"content"`
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.board.ListTasks()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.board.GetTask(models.Status(c.Param("status")), c.Param("filename"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var draft models.TaskDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid task: "+err.Error())
		return
	}
	task, err := s.board.CreateTask(draft)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid task update: "+err.Error())
		return
	}
	task, err := s.board.UpdateTask(models.Status(c.Param("status")), c.Param("filename"), patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleMoveTask(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid move: "+err.Error())
		return
	}
	if req.Filename == "" {
		badRequest(c, "filename is required")
		return
	}
	task, err := s.board.MoveTask(req.FromStatus, req.Filename, req.ToStatus, req.Position)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleReorderTasks(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid reorder: "+err.Error())
		return
	}
	if req.OrderedIDs == nil {
		badRequest(c, "orderedIds is required")
		return
	}
	tasks, err := s.board.ReorderTasks(req.Status, req.OrderedIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.board.DeleteTask(models.Status(c.Param("status")), c.Param("filename")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := s.board.GetConfig()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var updates storage.ProjectConfig
	if err := c.ShouldBindJSON(&updates); err != nil {
		badRequest(c, "invalid config: "+err.Error())
		return
	}
	cfg, err := s.board.UpdateConfig(updates)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleGetNotes(c *gin.Context) {
	notes, err := s.board.GetNotes()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notesBody{Content: notes})
}

func (s *Server) handleUpdateNotes(c *gin.Context) {
	var body notesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid notes: "+err.Error())
		return
	}
	if err := s.board.UpdateNotes(body.Content); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}
