package handler

import (
	"errors"
	"net/http"

	"statusboard/internal/domain"
	"statusboard/internal/middleware"
	"statusboard/internal/presence"
	"statusboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		WorkerID:  middleware.GetWorkerID(c),
		Admin:     middleware.IsAdmin(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// respondError maps service and validation errors to status codes.
func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, presence.ErrInvalidDuration),
		errors.Is(err, presence.ErrInvalidStatus),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrDisplayNameEmpty),
		errors.Is(err, service.ErrAvatarType),
		errors.Is(err, service.ErrNoPasswordAccount),
		errors.Is(err, domain.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAvatarTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCreds):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrSelfDelete):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrWorkerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUsernameExists), errors.Is(err, service.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIntegrity):
		c.JSON(http.StatusConflict, gin.H{"error": "integrity check failed"})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
