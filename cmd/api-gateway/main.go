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

	_ "github.com/noah-isme/sma-advisor-api/api/swagger"
	"github.com/noah-isme/sma-advisor-api/internal/generator"
	"github.com/noah-isme/sma-advisor-api/internal/handler"
	"github.com/noah-isme/sma-advisor-api/internal/middleware"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	"github.com/noah-isme/sma-advisor-api/internal/repository"
	"github.com/noah-isme/sma-advisor-api/internal/service"
	"github.com/noah-isme/sma-advisor-api/pkg/cache"
	"github.com/noah-isme/sma-advisor-api/pkg/config"
	"github.com/noah-isme/sma-advisor-api/pkg/database"
	"github.com/noah-isme/sma-advisor-api/pkg/jobs"
	"github.com/noah-isme/sma-advisor-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-advisor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-advisor-api/pkg/middleware/requestid"
)

// @title SMA Advisor API
// @version 0.1.0
// @description Role-gated advisory layer over school records
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	privDB, err := database.NewPrivilegedPostgres(cfg.Database, cfg.Actions.Privileged)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect privileged pool", "error", err)
	}
	defer privDB.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, session cache disabled", "error", err)
		redisClient = nil
	}

	genClient, err := generator.NewGenAIClient(ctx, cfg.Advisor.GeneratorAPIKey, cfg.Advisor.GeneratorModel)
	if err != nil {
		logr.Sugar().Fatalw("failed to create generator client", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	recordsRepo := repository.NewRecordsRepository(db)
	actionRepo := repository.NewActionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	privRepo := repository.NewPrivilegedRepository(privDB)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authz := service.NewRoleAuthorizer()
	engine := service.NewReconciliationEngine()

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-advisor-api",
	})
	fetcher := service.NewFetcher(recordsRepo, engine, cfg.Advisor.MaxRowDetail, logr)
	sessionSvc := service.NewSessionService(sessionRepo, cacheRepo, cfg.Sessions.CacheTTL, metricsSvc, logr)
	advisorSvc := service.NewAdvisorService(fetcher, sessionSvc, genClient, service.NewGuardrailFilter(),
		authz, userRepo, metricsSvc, cfg.Advisor.MinResponseTime, cfg.Advisor.HistoryLimit, logr)
	executor := service.NewActionExecutor(privRepo, logr)
	actionSvc := service.NewActionService(actionRepo, executor, authz, userRepo, metricsSvc, cfg.Actions.TTL, logr)
	financeSvc := service.NewFinanceService(recordsRepo, engine, authz, logr)

	sweeper := jobs.NewSweeper("pending-actions", cfg.Actions.SweepInterval, actionSvc.SweepExpired, logr)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	advisorHandler := handler.NewAdvisorHandler(advisorSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	actionHandler := handler.NewActionHandler(actionSvc)
	financeHandler := handler.NewFinanceHandler(financeSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/advisor/query", advisorHandler.Query)
	protected.GET("/advisor/sessions", sessionHandler.List)
	protected.GET("/advisor/sessions/:id", sessionHandler.Get)
	protected.DELETE("/advisor/sessions/:id", sessionHandler.Delete)

	actions := protected.Group("/actions")
	actions.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	actions.Use(middleware.Audit(userRepo, models.AuditActionActionRequest, "pending_action"))
	actions.POST("", actionHandler.Create)
	actions.GET("", actionHandler.List)
	actions.GET("/:id", actionHandler.Get)
	actions.POST("/:id/confirm", actionHandler.Confirm)
	actions.POST("/:id/cancel", actionHandler.Cancel)

	finance := protected.Group("/finance")
	finance.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleAccountant))
	finance.Use(middleware.Audit(userRepo, models.AuditActionFinanceRequest, "finance_snapshot"))
	finance.GET("/snapshot", financeHandler.Snapshot)
	finance.GET("/snapshot/export", financeHandler.Export)

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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
