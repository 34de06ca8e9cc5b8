package router

import (
	"time"

	"statusboard/config"
	"statusboard/internal/handler"
	"statusboard/internal/logging"
	"statusboard/internal/middleware"
	"statusboard/internal/repository"
	"statusboard/internal/service"
	"statusboard/internal/ws"
	"statusboard/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Stores are the persistence collaborators behind the HTTP surface.
type Stores struct {
	Workers service.WorkerStore
	Audit   interface {
		service.AuditStore
		handler.AuditLister
	}
}

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client, logger zerolog.Logger) (*gin.Engine, *ws.FeedHub, error) {
	return New(cfg, Stores{
		Workers: repository.NewWorkerRepository(db),
		Audit:   repository.NewAuditLogRepository(db),
	}, cloud, logger)
}

// New wires handlers over the given stores. cloud may be nil.
func New(cfg *config.Config, stores Stores, cloud cloudinary.Client, logger zerolog.Logger) (*gin.Engine, *ws.FeedHub, error) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise
	limiter := middleware.NewInMemoryRateLimiter(300, 60*time.Second)
	r.Use(middleware.RateLimit(limiter))

	hub := ws.NewFeedHub(logging.Component(logger, "feed"))

	// Services
	statusSvc, err := service.NewStatusService(cfg, stores.Workers, stores.Audit, hub, logging.Component(logger, "status"))
	if err != nil {
		limiter.Close()
		return nil, nil, err
	}
	workerSvc := service.NewWorkerService(stores.Workers, stores.Audit, hub)
	authSvc := service.NewAuthService(cfg, stores.Workers, hub)
	avatarSvc := service.NewAvatarService(cfg, cloud, logging.Component(logger, "avatar"))

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, statusSvc, stores.Audit)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, stores.Audit)
	workerHandler := handler.NewWorkerHandler(statusSvc, workerSvc)
	uploadHandler := handler.NewUploadHandler(avatarSvc, workerSvc)
	adminHandler := handler.NewAdminHandler(stores.Audit)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
		}

		// The board is readable without signing in.
		api.GET("/workers", workerHandler.List)
		api.GET("/workers/:id", workerHandler.Get)
		api.PATCH("/workers/:id/status", authMw, workerHandler.SetStatus)
		api.POST("/workers/:id/expire", authMw, workerHandler.Expire)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", authHandler.Me)
			me.PATCH("/profile", workerHandler.UpdateProfile)
			me.PATCH("/password", authHandler.ChangePassword)
			me.POST("/avatar", uploadHandler.UploadAvatar)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.POST("/workers", workerHandler.Create)
			admin.PATCH("/workers/:id", workerHandler.Update)
			admin.DELETE("/workers/:id", workerHandler.Delete)
			admin.GET("/audit", adminHandler.AuditLog)
		}
	}

	r.GET("/ws/workers", ws.UpgradeFeedWS(&cfg.JWT, hub))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "subscribers": hub.ClientCount()})
	})

	return r, hub, nil
}
