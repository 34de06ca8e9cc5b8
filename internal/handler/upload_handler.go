package handler

import (
	"net/http"

	"statusboard/internal/middleware"
	"statusboard/internal/service"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	avatars *service.AvatarService
	workers *service.WorkerService
}

func NewUploadHandler(avatars *service.AvatarService, workers *service.WorkerService) *UploadHandler {
	return &UploadHandler{avatars: avatars, workers: workers}
}

// UploadAvatar stores the "file" form field as the caller's avatar.
func (h *UploadHandler) UploadAvatar(c *gin.Context) {
	workerID := middleware.GetWorkerID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	url, err := h.avatars.Store(c.Request.Context(), workerID, f, file.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, "upload avatar", err)
		return
	}
	w, err := h.workers.SetAvatar(workerID, url)
	if err != nil {
		respondError(c, "upload avatar", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "worker": w})
}
