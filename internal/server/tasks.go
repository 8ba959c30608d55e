package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Utre17/tasksmart/internal/models"
)

type registerRequest struct {
	Name string `json:"name"`
}

// handleRegister creates an account and returns its bearer token. Token
// issuance here is the minimal stand-in for the external identity broker.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required", "field": "name"})
		return
	}

	token := uuid.NewString()
	id, err := s.store.CreateAccount(c.Request.Context(), req.Name, token)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{
		"account": fmt.Sprintf("account-%d", id),
		"token":   token,
	})
}

type createTaskRequest struct {
	models.Draft
	Fingerprint string `json:"fingerprint,omitempty"`
}

// handleListTasks returns the calling principal's tasks.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), s.principal(c))
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task for the calling principal. A
// fingerprint, when present, lets migration retries skip items that were
// already transferred.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), s.principal(c), req.Draft, req.Fingerprint)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask merges partial changes into an existing task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var changes models.Changes
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), s.principal(c), id, changes)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

type completeRequest struct {
	Completed bool `json:"completed"`
}

// handleCompleteTask flips the completed flag only.
func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), s.principal(c), id, models.Changes{Completed: &req.Completed})
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), s.principal(c), id); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleClearCompleted bulk-deletes completed tasks and reports the count.
func (s *Server) handleClearCompleted(c *gin.Context) {
	removed, err := s.store.ClearCompleted(c.Request.Context(), s.principal(c))
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"removed": removed})
}
