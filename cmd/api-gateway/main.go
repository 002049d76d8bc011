package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studygen-api/api/swagger"
	"github.com/noah-isme/studygen-api/internal/handler"
	"github.com/noah-isme/studygen-api/internal/llm"
	internalmiddleware "github.com/noah-isme/studygen-api/internal/middleware"
	"github.com/noah-isme/studygen-api/internal/repository"
	"github.com/noah-isme/studygen-api/internal/service"
	"github.com/noah-isme/studygen-api/pkg/cache"
	"github.com/noah-isme/studygen-api/pkg/config"
	"github.com/noah-isme/studygen-api/pkg/database"
	"github.com/noah-isme/studygen-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studygen-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studygen-api/pkg/middleware/requestid"
	"github.com/noah-isme/studygen-api/pkg/sharetoken"
)

// @title StudyGen API
// @version 1.0.0
// @description Turns uploaded documents into flashcards, summaries, Cornell notes and quizzes.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to migrate schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()

	documentRepo := repository.NewDocumentRepository(db, metrics)
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Cache.DocumentTTL, logr, cfg.Cache.Enabled)

	var sessions service.FeynmanSessionStore
	if cfg.Feynman.SessionStore == config.SessionStoreRedis && redisClient != nil {
		sessions = repository.NewRedisSessionStore(redisClient, cfg.Feynman.SessionTTL)
	} else {
		sessions = repository.NewMemorySessionStore(cfg.Feynman.SessionTTL)
	}

	selector := llm.NewSelector(cfg.Azure, cfg.Anthropic)
	factory := llm.ClientFactory{HTTPClient: &http.Client{Timeout: 2 * cfg.Generation.Timeout}}
	generator := service.NewGenerator(cfg.Generation, metrics)
	pipeline := service.NewPipeline(selector, factory, generator, cfg.Generation, metrics, logr)

	documentSvc := service.NewDocumentService(documentRepo, pipeline, cacheSvc, sharetoken.NewSigner(cfg.Share.Secret, cfg.Share.TTL), service.NewDocumentServiceConfig(cfg), logr)
	chatSvc := service.NewChatService(documentSvc, selector, factory, cfg.Chat, cfg.Generation, metrics, logr)
	feynmanSvc := service.NewFeynmanService(documentSvc, sessions, selector, factory, cfg.Feynman, cfg.Generation, metrics, logr)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	documentHandler := handler.NewDocumentHandler(documentSvc, cfg.Uploads.MaxBytes)
	chatHandler := handler.NewChatHandler(chatSvc)
	feynmanHandler := handler.NewFeynmanHandler(feynmanSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.GET("/system/metrics", metricsHandler.Summary)

	documents := api.Group("/documents")
	documents.POST("", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.GET("/:id/export", documentHandler.Export)
	documents.POST("/:id/share", documentHandler.Share)
	documents.POST("/:id/chat", chatHandler.Chat)
	documents.POST("/:id/feynman", feynmanHandler.Start)
	documents.GET("/:id/feynman", feynmanHandler.Session)
	documents.POST("/:id/feynman/answers", feynmanHandler.Answer)

	api.GET("/shared/:token", documentHandler.Shared)

	if cfg.Env != config.EnvProduction {
		api.PUT("/debug/documents/:id", documentHandler.Seed)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "session_store", sessionStoreName(sessions))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func sessionStoreName(store service.FeynmanSessionStore) string {
	switch store.(type) {
	case *repository.RedisSessionStore:
		return config.SessionStoreRedis
	default:
		return config.SessionStoreMemory
	}
}

