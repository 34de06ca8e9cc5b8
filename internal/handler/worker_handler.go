package handler

import (
	"net/http"

	"statusboard/internal/middleware"
	"statusboard/internal/service"

	"github.com/gin-gonic/gin"
)

type WorkerHandler struct {
	status  *service.StatusService
	workers *service.WorkerService
}

func NewWorkerHandler(status *service.StatusService, workers *service.WorkerService) *WorkerHandler {
	return &WorkerHandler{status: status, workers: workers}
}

// List returns every worker ordered by display name.
func (h *WorkerHandler) List(c *gin.Context) {
	list, err := h.status.List()
	if err != nil {
		respondError(c, "list workers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": list})
}

func (h *WorkerHandler) Get(c *gin.Context) {
	w, err := h.status.Get(c.Param("id"))
	if err != nil {
		respondError(c, "get worker", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w})
}

type SetStatusRequest struct {
	Status          string  `json:"status" binding:"required"`
	DurationMinutes int     `json:"duration_minutes"`
	Note            *string `json:"note"`
}

func (h *WorkerHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.status.SetStatus(actorFrom(c), c.Param("id"), req.Status, req.DurationMinutes, req.Note)
	if err != nil {
		respondError(c, "set status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w})
}

// Expire resets an elapsed busy timer; it is a no-op when there is nothing to reset.
func (h *WorkerHandler) Expire(c *gin.Context) {
	w, changed, err := h.status.Expire(actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, "expire status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w, "changed": changed})
}

func (h *WorkerHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.workers.UpdateProfile(middleware.GetWorkerID(c), req.DisplayName)
	if err != nil {
		respondError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w})
}

type CreateWorkerRequest struct {
	Username    string `json:"username" binding:"required,min=2,max=64"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

func (h *WorkerHandler) Create(c *gin.Context) {
	var req CreateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.workers.Create(actorFrom(c), service.CreateWorkerInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
	})
	if err != nil {
		respondError(c, "create worker", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"worker": w})
}

type UpdateWorkerRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	Password    *string `json:"password"`
}

func (h *WorkerHandler) Update(c *gin.Context) {
	var req UpdateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.workers.Update(actorFrom(c), c.Param("id"), service.UpdateWorkerInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		Password:    req.Password,
	})
	if err != nil {
		respondError(c, "update worker", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w})
}

func (h *WorkerHandler) Delete(c *gin.Context) {
	if err := h.workers.Delete(actorFrom(c), c.Param("id")); err != nil {
		respondError(c, "delete worker", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
