package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cinescript-backend/internal/config"
	"cinescript-backend/internal/database"
	"cinescript-backend/internal/handlers"
	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/queue"
	"cinescript-backend/internal/repository"
	"cinescript-backend/internal/router"
	"cinescript-backend/internal/services"
	"cinescript-backend/internal/websocket"
	"cinescript-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger.Init(cfg.LogLevel, cfg.LogPath)
	defer logger.Sync()
	sugar := logger.S()
	sugar.Info("starting CineScript backend")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalw("postgres connection failed", "error", err)
	}
	defer pool.Close()
	sugar.Info("postgres connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		sugar.Fatalw("redis connection failed", "error", err)
	}
	defer redisClients.Close()
	sugar.Info("redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		sugar.Fatalw("database migration failed", "error", err)
	}
	sugar.Info("database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	projectRepo := repository.NewProjectRepo(pool)
	videoRepo := repository.NewVideoRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth)

	translatorService, err := services.NewTranslatorService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
	if err != nil {
		sugar.Fatalw("translation client initialization failed", "error", err)
	}
	defer translatorService.Close()

	transcriberService := services.NewTranscriberService(cfg.WhisperAPIURL, cfg.WhisperAPIKey, cfg.WhisperModel)
	mediaService := services.NewMediaService(cfg.FFmpegPath, cfg.FFprobePath)
	youtubeService := services.NewYouTubeService()

	storageService, err := services.NewStorageService(
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		sugar.Fatalw("object storage initialization failed", "error", err)
	}
	sugar.Info("object storage ready")

	jobQueue := queue.NewRedisQueue(redisClients.Queue)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectRepo, videoRepo, cfg.StoragePath)
	videoHandler := handlers.NewVideoHandler(videoRepo, projectRepo, mediaService, youtubeService,
		storageService, cfg.StoragePath, cfg.MaxUploadBytes)
	lifecycleHandler := handlers.NewLifecycleHandler(videoRepo, jobRepo, jobQueue)
	subtitleHandler := handlers.NewSubtitleHandler(videoRepo)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		videoRepo,
		jobRepo,
		transcriberService,
		translatorService,
		mediaService,
		storageService,
		youtubeService,
		cfg.StoragePath,
		cfg.OutputPath,
		cfg.WorkerCount,
	)
	workerPool.Start()

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		projectHandler,
		videoHandler,
		lifecycleHandler,
		subtitleHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		sugar.Info("shutting down")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	sugar.Infow("server ready", "port", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		sugar.Fatalw("server error", "error", err)
	}
}
