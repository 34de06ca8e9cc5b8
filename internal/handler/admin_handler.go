package handler

import (
	"net/http"
	"strconv"

	"statusboard/internal/models"

	"github.com/gin-gonic/gin"
)

// AuditLister is implemented by repository.AuditLogRepository.
type AuditLister interface {
	ListByAction(action string, limit int) ([]models.AuditLog, error)
}

type AdminHandler struct {
	audit AuditLister
}

func NewAdminHandler(audit AuditLister) *AdminHandler {
	return &AdminHandler{audit: audit}
}

// AuditLog lists recent entries for one action, integrity violations by default.
func (h *AdminHandler) AuditLog(c *gin.Context) {
	action := c.DefaultQuery("action", "integrity_violation")
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.audit.ListByAction(action, limit)
	if err != nil {
		respondError(c, "audit log", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list})
}
