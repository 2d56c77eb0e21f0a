package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-event-api/api/swagger"
	"github.com/noah-isme/sma-event-api/internal/handler"
	"github.com/noah-isme/sma-event-api/internal/middleware"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	"github.com/noah-isme/sma-event-api/internal/service"
	"github.com/noah-isme/sma-event-api/pkg/cache"
	"github.com/noah-isme/sma-event-api/pkg/config"
	"github.com/noah-isme/sma-event-api/pkg/database"
	"github.com/noah-isme/sma-event-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-event-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-event-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-event-api/pkg/storage"
)

// @title SMA Event API
// @version 1.0.0
// @description School event approval workflow with documents, reports and dashboards
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, true)
	}

	documentStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	documentRepo := repository.NewEventDocumentRepository(db)
	reportRepo := repository.NewEventReportRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	eventService := service.NewEventService(eventRepo, documentRepo, reportRepo, documentStorage, userRepo, cacheService, validate, logr)
	documentService := service.NewDocumentService(documentRepo, eventRepo, documentStorage, documentSigner, userRepo, logr, service.DocumentServiceConfig{
		MaxFileSize:  cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Documents.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	reportService := service.NewReportService(reportRepo, eventRepo, attendanceRepo, userRepo, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Events:     eventRepo,
		Reports:    reportRepo,
		Documents:  documentRepo,
		Attendance: attendanceRepo,
		Cache:      cacheService,
		Logger:     logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:         cfg.Dashboard.CacheTTL,
			RecentEventLimit: cfg.Events.RecentLimit,
		},
	})

	authHandler := handler.NewAuthHandler(authService)
	eventHandler := handler.NewEventHandler(eventService)
	documentHandler := handler.NewDocumentHandler(documentService)
	reportHandler := handler.NewReportHandler(reportService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.ClientInfo())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	events := authed.Group("/events")
	{
		events.GET("", eventHandler.List)
		events.GET("/stats", middleware.RequireRoles(models.RolePrincipal, models.RoleHOD, models.RoleAdmin), eventHandler.Stats)
		events.GET("/:id", eventHandler.Get)
		events.GET("/:id/documents", documentHandler.ListForEvent)
		events.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RoleAdmin), eventHandler.Create)
		events.PUT("/:id", eventHandler.Update)
		events.POST("/:id/approve", middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin), eventHandler.Approve)
		events.POST("/:id/reject", middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin), eventHandler.Reject)
		events.POST("/:id/cancel", eventHandler.Cancel)
		events.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), eventHandler.Delete)
	}

	documents := authed.Group("/documents")
	{
		documents.GET("", documentHandler.List)
		documents.GET("/stats", middleware.RequireRoles(models.RolePrincipal, models.RoleHOD, models.RoleAdmin), documentHandler.Stats)
		documents.GET("/:id", documentHandler.Get)
		documents.GET("/:id/download-url", documentHandler.DownloadURL)
		documents.GET("/:id/download", documentHandler.Download)
		documents.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RoleAdmin), documentHandler.Upload)
		documents.PUT("/:id", documentHandler.Update)
		documents.DELETE("/:id", documentHandler.Delete)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("", reportHandler.List)
		reports.GET("/:id", reportHandler.Get)
		reports.GET("/:id/export", reportHandler.Export)
		reports.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleHOD, models.RolePrincipal, models.RoleAdmin), reportHandler.Create)
		reports.PUT("/:id", reportHandler.Update)
		reports.DELETE("/:id", reportHandler.Delete)
	}

	dashboard := authed.Group("/dashboard")
	{
		dashboard.GET("/overview", dashboardHandler.Overview)
		dashboard.GET("/principal", middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin), dashboardHandler.Principal)
		dashboard.GET("/hod", middleware.RequireRoles(models.RoleHOD, models.RoleAdmin), dashboardHandler.HOD)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
