package handler

import (
	"net/http"

	"statusboard/internal/middleware"
	"statusboard/internal/models"
	"statusboard/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc    *service.AuthService
	status *service.StatusService
	audit  service.AuditStore
}

func NewAuthHandler(svc *service.AuthService, status *service.StatusService, audit service.AuditStore) *AuthHandler {
	return &AuthHandler{svc: svc, status: status, audit: audit}
}

type LoginRequest struct {
	// Username may also be an email address.
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, access, err := h.svc.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	h.auditLog(w.ID, "login", c)
	c.JSON(http.StatusOK, gin.H{"worker": w, "access_token": access})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if id := middleware.GetWorkerID(c); id != "" {
		h.auditLog(id, "logout", c)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	w, err := h.status.Get(middleware.GetWorkerID(c))
	if err != nil {
		respondError(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker": w})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	workerID := middleware.GetWorkerID(c)
	if workerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.ChangePassword(workerID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, "change password", err)
		return
	}
	h.auditLog(workerID, "password_change", c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) auditLog(workerID, action string, c *gin.Context) {
	if h.audit == nil {
		return
	}
	id := workerID
	_ = h.audit.Create(&models.AuditLog{
		WorkerID:  &id,
		Action:    action,
		Resource:  "auth",
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
