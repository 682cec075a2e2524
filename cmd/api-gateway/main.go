package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-insights-api/api/swagger"
	"github.com/noah-isme/lms-insights-api/internal/handler"
	"github.com/noah-isme/lms-insights-api/internal/middleware"
	"github.com/noah-isme/lms-insights-api/internal/models"
	"github.com/noah-isme/lms-insights-api/internal/repository"
	"github.com/noah-isme/lms-insights-api/internal/service"
	"github.com/noah-isme/lms-insights-api/pkg/cache"
	"github.com/noah-isme/lms-insights-api/pkg/config"
	"github.com/noah-isme/lms-insights-api/pkg/database"
	"github.com/noah-isme/lms-insights-api/pkg/jobs"
	"github.com/noah-isme/lms-insights-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-insights-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-insights-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-insights-api/pkg/storage"
)

// @title LMS Insights API
// @version 1.0.0
// @description Aggregated learning analytics over LMS activity data
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	metricsService := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Insights.CacheTTL, logr, redisClient != nil)

	eventRepo := repository.NewEventRepository(db, logr)
	fallbackService := service.NewFallbackService(cfg.Engine.AllowPlaceholders, logr)
	progressService := service.NewProgressService(eventRepo, logr)
	cohortService := service.NewCohortService(eventRepo, progressService, fallbackService, logr, service.CohortServiceConfig{
		GradeBreakpoints: cfg.Engine.GradeBreakpoints,
		EngagementWindow: cfg.Engine.EngagementWindow,
	})
	trendService := service.NewTrendService(cohortService, logr)
	rankingService := service.NewRankingService(eventRepo, progressService, logr, service.RankingServiceConfig{
		RiskGradeThreshold:  cfg.Engine.RiskGradeThreshold,
		InactivityThreshold: cfg.Engine.InactivityThreshold,
		AccessLookback:      cfg.Engine.AccessLookback,
		LeaderboardLimit:    cfg.Engine.LeaderboardLimit,
	})
	insightsService := service.NewInsightsService(progressService, cohortService, trendService, rankingService, cacheService, metricsService, logr)

	tokenService := service.NewTokenService(cfg.JWT.Secret)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	metricsHandler := handler.NewMetricsHandler(metricsService, insightsService)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenService))

	if cfg.Insights.Enabled {
		insightsHandler := handler.NewInsightsHandler(insightsService)
		insights := api.Group("/insights")
		insights.GET("/students/:studentId/courses/:courseId/progress",
			middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"),
			insightsHandler.StudentProgress)
		insights.GET("/students/:studentId/risk",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			insightsHandler.StudentRisk)
		insights.GET("/courses/leaderboard", insightsHandler.TopCourses)
		insights.GET("/courses/:courseId/stats",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			insightsHandler.ClassStats)
		insights.GET("/courses/:courseId/trend",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			insightsHandler.Trend)
		insights.GET("/courses/:courseId/leaderboard", insightsHandler.TopStudents)
		insights.GET("/courses/:courseId/risk",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			insightsHandler.ClassRisk)
	}
	api.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.System)

	if cfg.Reports.Enabled {
		reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportService := service.NewExportService(cohortService, rankingService, reportStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, nil, nil)
		reportRepo := repository.NewReportRepository(db)
		reportWorker := service.NewReportWorker(reportRepo, exportService, cfg.Reports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(rootCtx)
		defer queue.Stop()

		reportService := service.NewReportService(reportRepo, queue, exportService, nil, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportService.RecoverPendingJobs(rootCtx)
		reportService.StartCleanup(rootCtx)

		reportHandler := handler.NewReportHandler(reportService)
		api.POST("/reports/generate",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			reportHandler.GenerateReport)
		api.GET("/reports/status/:id",
			middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher),
			reportHandler.ReportStatus)
		// Download is token-authenticated; the signed URL is the credential.
		r.GET(cfg.APIPrefix+"/export/:token", middleware.OptionalJWT(tokenService), reportHandler.DownloadReport)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
