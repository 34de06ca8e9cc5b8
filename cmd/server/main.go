package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statusboard/config"
	"statusboard/internal/database"
	"statusboard/internal/logging"
	"statusboard/internal/router"
	"statusboard/pkg/cloudinary"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadFile(os.Getenv("STATUSBOARD_CONFIG"))
	if err != nil {
		logging.Setup("info", "development")
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Server.Env)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if err := database.SeedAdmin(db, os.Getenv("STATUSBOARD_ADMIN_USER"), os.Getenv("STATUSBOARD_ADMIN_PASSWORD")); err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}

	var cloud cloudinary.Client
	if cfg.Cloudinary.CloudName != "" {
		cloud, err = cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatal().Err(err).Msg("cloudinary")
		}
	} else {
		log.Info().Msg("cloudinary not configured; avatars stored inline")
	}

	engine, _, err := router.Setup(cfg, db, cloud, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("router")
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}
