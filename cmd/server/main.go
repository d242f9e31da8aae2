// Package main runs the media gallery HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-media/gallery/config"
	"github.com/aura-media/gallery/internal/app"
	"github.com/aura-media/gallery/internal/auth"
	"github.com/aura-media/gallery/internal/media"
	"github.com/aura-media/gallery/internal/middleware"
	"github.com/aura-media/gallery/internal/realtime"
	"github.com/aura-media/gallery/internal/worker"
	"github.com/aura-media/gallery/pkg/queue"
	"github.com/aura-media/gallery/pkg/redis"
	"github.com/aura-media/gallery/pkg/response"
	"github.com/aura-media/gallery/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := app.NewCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("catalog", zap.Error(err))
	}
	defer closeStore()

	adapter, err := app.NewStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	logger.Info("storage backend ready", zap.String("backend", adapter.Name()))

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	svc := media.NewService(store, adapter, logger)

	// Deferred cleanup; the embedded worker drains the queue alongside any cmd/worker instances.
	if cfg.Cleanup.Queue == config.BackendRedis {
		jobQueue := queue.NewQueue(rdb.Client, logger)
		svc.WithCleanupQueue(jobQueue)
		go worker.NewCleanupProcessor(adapter, jobQueue, logger).Run(workerCtx)
		logger.Info("cleanup worker started")
	}

	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		var bridge realtime.Bridge
		if cfg.Realtime.RedisBridge {
			bridge = realtime.NewRedisPubSub(rdb.Client, logger)
		}
		hub = realtime.NewHub(bridge, logger)
		svc.WithEvents(hub)
		go func() {
			if err := hub.Run(workerCtx); err != nil {
				logger.Error("realtime bridge stopped", zap.Error(err))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local, ok := adapter.(*storage.Local); ok {
		router.Static(storage.LocalURLPrefix, local.Dir())
	}

	api := router.Group("/api")

	var guard gin.HandlerFunc
	if cfg.Auth.Enabled {
		creds, err := auth.NewCredentialStore(cfg.Auth.AdminPassHash, cfg.Auth.AdminPassword)
		if err != nil {
			logger.Fatal("credentials", zap.Error(err))
		}
		var sessions auth.SessionStore
		if cfg.Auth.SessionBackend == config.BackendRedis {
			sessions = auth.NewRedisSessions(rdb.Client)
		} else {
			sessions = auth.NewMemorySessions(cfg.Auth.SessionTTL())
		}
		jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
		authHandler := auth.NewHandler(creds, sessions, jwtService, logger)
		guard = middleware.RequireSession(jwtService, sessions, logger)

		api.POST("/login", authHandler.Login)
		api.POST("/logout", guard, authHandler.Logout)
		api.PUT("/password", guard, authHandler.ChangePassword)
		logger.Info("access gate enabled", zap.String("sessions", cfg.Auth.SessionBackend))
	}

	media.NewHandler(svc, cfg.Server.MaxUploadBytes(), logger).RegisterRoutes(api, guard)

	if hub != nil {
		router.GET("/ws", realtime.ServeWs(hub, logger))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
