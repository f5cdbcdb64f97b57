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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/clearconf/config-engine/api/swagger"
	"github.com/clearconf/config-engine/internal/events"
	"github.com/clearconf/config-engine/internal/handler"
	"github.com/clearconf/config-engine/internal/middleware"
	"github.com/clearconf/config-engine/internal/repository"
	"github.com/clearconf/config-engine/internal/service"
	"github.com/clearconf/config-engine/pkg/cache"
	"github.com/clearconf/config-engine/pkg/config"
	"github.com/clearconf/config-engine/pkg/database"
	"github.com/clearconf/config-engine/pkg/logger"
	corsmiddleware "github.com/clearconf/config-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/clearconf/config-engine/pkg/middleware/requestid"
)

const apiVersion = "1.0.0"

// @title Configuration Engine API
// @version 1.0.0
// @description CRUD service for hierarchical, typed configuration entries
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, message publishing and caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()

	bus := events.NewBus(events.BusConfig{
		BufferSize: cfg.Events.BufferSize,
		Logger:     logr,
		Metrics:    metricsSvc,
	})

	auditRepo := repository.NewAuditRepository(db)
	events.NewAuditRecorder(auditRepo, logr).Register(bus)

	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr, metricsSvc)
		if cfg.Events.PublisherEnabled {
			events.NewRedisPublisher(redisClient, cfg.Events.ChannelPrefix, logr).Register(bus)
		}
		if cfg.Cache.Enabled {
			events.NewCacheInvalidator(cacheRepo, logr).Register(bus)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	bus.Start(rootCtx)

	configRepo := repository.NewConfigurationRepository(db)
	var entityCache *repository.CacheRepository
	if cfg.Cache.Enabled {
		entityCache = cacheRepo
	}
	configSvc := newConfigurationService(configRepo, bus, entityCache, auditRepo, logr, cfg)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "config-engine", "version": apiVersion})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.NewConfigurationHandler(configSvc).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	bus.Publish(events.Lifecycle{Topic: events.KindSystemStarted, At: time.Now().UTC()})

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http server shutdown", zap.Error(err))
	}

	bus.Publish(events.Lifecycle{Topic: events.KindSystemStopped, At: time.Now().UTC()})
	bus.Stop()

	logr.Info("config-engine stopped")
}

func newConfigurationService(repo *repository.ConfigurationRepository, bus *events.Bus, cacheRepo *repository.CacheRepository, auditRepo *repository.AuditRepository, logr *zap.Logger, cfg *config.Config) *service.ConfigurationService {
	validate := validator.New()
	svcCfg := service.ConfigurationServiceConfig{CacheTTL: cfg.Cache.TTL}
	if cacheRepo != nil {
		return service.NewConfigurationService(repo, bus, cacheRepo, auditRepo, validate, logr, svcCfg)
	}
	return service.NewConfigurationService(repo, bus, nil, auditRepo, validate, logr, svcCfg)
}
