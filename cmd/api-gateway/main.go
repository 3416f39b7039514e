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
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-bid-api/api/swagger"
	"github.com/noah-isme/course-bid-api/internal/handler"
	internalmiddleware "github.com/noah-isme/course-bid-api/internal/middleware"
	"github.com/noah-isme/course-bid-api/internal/models"
	"github.com/noah-isme/course-bid-api/internal/repository"
	"github.com/noah-isme/course-bid-api/internal/service"
	"github.com/noah-isme/course-bid-api/pkg/cache"
	"github.com/noah-isme/course-bid-api/pkg/config"
	"github.com/noah-isme/course-bid-api/pkg/database"
	"github.com/noah-isme/course-bid-api/pkg/jobs"
	"github.com/noah-isme/course-bid-api/pkg/lock"
	"github.com/noah-isme/course-bid-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-bid-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-bid-api/pkg/middleware/requestid"
)

// @title Course Bid API
// @version 0.1.0
// @description Course registration backend with points-based seat bidding
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, bidding status cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	students := repository.NewStudentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	bids := repository.NewBidRepository(db)
	offerings := repository.NewOfferingRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	programs := repository.NewProgramRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	locks := lock.NewKeyedMutex()
	metrics := service.NewMetricsService()

	ledgerSvc := service.NewLedgerService(ledgerRepo, students, locks, logr)
	conflictSvc := service.NewConflictService(enrollments, offerings, logr)
	enrollmentSvc := service.NewEnrollmentService(
		enrollments, offerings, students, programs, conflictSvc, locks, cfg.Enrollment.CurrentSemester, logr)
	biddingSvc := service.NewBiddingService(
		bids, offerings, ledgerSvc, enrollmentSvc, enrollments, cacheRepo, locks,
		cfg.Bidding.MaxBidPoints, cfg.Bidding.StatusCacheTTL, metrics, logr)
	sweeperSvc := service.NewSweeperService(offerings, biddingSvc, metrics, logr)
	offeringSvc := service.NewOfferingService(offerings, conflictSvc, logr)

	bidHandler := handler.NewBidHandler(biddingSvc, sweeperSvc)
	pointsHandler := handler.NewPointsHandler(ledgerSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	offeringHandler := handler.NewOfferingHandler(offeringSvc)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepQueue := jobs.NewQueue("deadline-sweep", func(ctx context.Context, _ jobs.Job) error {
		_, err := sweeperSvc.SweepExpired(ctx)
		return err
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1, Logger: logr})
	sweepQueue.Start(rootCtx)
	defer sweepQueue.Stop()

	var scheduler *cron.Cron
	if cfg.Sweeper.Enabled {
		scheduler = cron.New()
		spec := fmt.Sprintf("@every %s", cfg.Sweeper.Interval)
		if _, err := scheduler.AddFunc(spec, func() {
			if !sweepQueue.TrySubmit(jobs.Job{Type: "sweep"}) {
				logr.Debug("sweep already queued, skipping tick")
			}
		}); err != nil {
			logr.Sugar().Fatalw("failed to schedule deadline sweep", "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logr.Sugar().Infow("deadline sweeper scheduled", "interval", cfg.Sweeper.Interval.String())
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.Auth(cfg.JWT.Secret))
	{
		api.POST("/offerings/:id/bids", bidHandler.Place)
		api.PUT("/offerings/:id/bids", bidHandler.Modify)
		api.DELETE("/offerings/:id/bids", bidHandler.Cancel)
		api.GET("/offerings/:id/bids/me", bidHandler.Mine)
		api.GET("/offerings/:id/bidding", bidHandler.Status)
		api.GET("/offerings/:id/ranking", bidHandler.Ranking)
		api.GET("/offerings/:id", offeringHandler.Get)

		api.POST("/enrollments", enrollmentHandler.Create)
		api.DELETE("/enrollments", enrollmentHandler.Drop)
		api.GET("/students/:id/enrollments", enrollmentHandler.ListByStudent)

		api.GET("/students/:id/points", pointsHandler.Balance)
		api.GET("/students/:id/points/history", pointsHandler.History)

		staff := api.Group("")
		staff.Use(internalmiddleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
		{
			staff.GET("/offerings/:id/students", enrollmentHandler.Roster)
		}

		admin := api.Group("")
		admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/offerings", offeringHandler.Create)
			admin.POST("/offerings/:id/clear", bidHandler.Clear)
			admin.POST("/bidding/sweep", bidHandler.Sweep)
			admin.POST("/students/:id/points/init", pointsHandler.Initialize)
			admin.POST("/students/:id/points/adjust", pointsHandler.Adjust)
			admin.POST("/students/:id/points/refund", pointsHandler.Refund)
			admin.POST("/points/reset", pointsHandler.Reset)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
