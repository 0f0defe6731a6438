package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yadhu-dev/library-automation-api/api/swagger"
	"github.com/yadhu-dev/library-automation-api/internal/handler"
	"github.com/yadhu-dev/library-automation-api/internal/kiosk"
	"github.com/yadhu-dev/library-automation-api/internal/middleware"
	"github.com/yadhu-dev/library-automation-api/internal/models"
	"github.com/yadhu-dev/library-automation-api/internal/repository"
	"github.com/yadhu-dev/library-automation-api/internal/service"
	"github.com/yadhu-dev/library-automation-api/pkg/cache"
	"github.com/yadhu-dev/library-automation-api/pkg/config"
	"github.com/yadhu-dev/library-automation-api/pkg/database"
	"github.com/yadhu-dev/library-automation-api/pkg/jobs"
	"github.com/yadhu-dev/library-automation-api/pkg/logger"
	corsmiddleware "github.com/yadhu-dev/library-automation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/yadhu-dev/library-automation-api/pkg/middleware/requestid"
	"github.com/yadhu-dev/library-automation-api/pkg/storage"
)

// @title Library Automation API
// @version 1.0.0
// @description Circulation, catalogue and kiosk backend for the departmental library
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	bookRepo := repository.NewBookRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "library-automation-api",
		SingleSession:      true,
	})
	studentSvc := service.NewStudentService(studentRepo, loanRepo, validate, logr)
	bookSvc := service.NewBookService(bookRepo, validate, logr)
	circulationSvc := service.NewCirculationService(studentRepo, bookRepo, loanRepo, transactionRepo, cfg.Circulation, logr)
	transactionSvc := service.NewTransactionService(transactionRepo, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, bookRepo, loanRepo, transactionRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	var (
		reportSvc     *service.ReportService
		reportQueue   *jobs.Queue
		reportHandler *handler.ReportHandler
	)
	if cfg.Reports.Enabled {
		reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		worker := service.NewReportWorker(reportRepo, transactionRepo, loanRepo, reportStore, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(rootCtx)
		defer reportQueue.Stop()

		reportSvc = service.NewReportService(reportRepo, reportQueue, reportStore, signer, logr, service.ReportServiceConfig{
			ResultTTL: cfg.Reports.SignedURLTTL,
		})
		reportSvc.StartCleanup(rootCtx)
		reportHandler = handler.NewReportHandler(reportSvc)
	}

	var (
		kioskRouter *kiosk.Router
		kioskAgent  *kiosk.Agent
	)
	if cfg.Kiosk.Enabled {
		kioskRouter = kiosk.NewRouter(circulationSvc, metricsSvc, logr)
		kioskAgent = kiosk.NewAgent(cfg.Kiosk.AgentBaseURL, logr)
		listener := kiosk.NewListener(cfg.Kiosk.StreamAddr, cfg.Kiosk.ReconnectDelay, func(line string) {
			kioskRouter.HandleLine(rootCtx, line)
		}, logr)
		go listener.Run(rootCtx)
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	bookHandler := handler.NewBookHandler(bookSvc)
	circulationHandler := handler.NewCirculationHandler(circulationSvc, dashboardSvc)
	transactionHandler := handler.NewTransactionHandler(transactionSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	kioskHandler := handler.NewKioskHandler(kioskRouter, kioskAgent)
	uploadHandler := handler.NewUploadHandler(uploadStore, cfg.Uploads)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/static", cfg.Uploads.StorageDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := v1.Group("")
	protected.Use(middleware.JWT(authSvc))

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/classify", studentHandler.Classify)
	students.GET("/:rollNo", studentHandler.Profile)
	students.POST("", middleware.Audit(userRepo, "CREATE", "student"), studentHandler.Create)

	books := protected.Group("/books")
	books.GET("", bookHandler.List)
	books.GET("/:bookId", bookHandler.Detail)
	books.POST("", middleware.Audit(userRepo, "CREATE", "book"), bookHandler.Create)

	circulation := protected.Group("/circulation")
	circulation.GET("/students/:rollNo", circulationHandler.LocateStudent)
	circulation.GET("/books/:bookId", circulationHandler.LocateBook)
	circulation.GET("/classify", circulationHandler.Classify)
	circulation.POST("/issue", middleware.Audit(userRepo, "ISSUE", "loan"), circulationHandler.Issue)
	circulation.POST("/return", middleware.Audit(userRepo, "RETURN", "loan"), circulationHandler.Return)

	protected.GET("/transactions", transactionHandler.List)
	protected.GET("/dashboard", dashboardHandler.Summary)
	protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
	protected.POST("/uploads/photos", uploadHandler.Photo)

	if reportHandler != nil {
		reports := v1.Group("/reports")
		// Download links are pre-signed, so the token is the credential.
		reports.GET("/download/:token", reportHandler.Download)
		reports.Use(middleware.JWT(authSvc))
		reports.POST("", reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
	}

	kioskGroup := protected.Group("/kiosk")
	kioskGroup.GET("/events", kioskHandler.Events)
	kioskGroup.GET("/state", kioskHandler.State)
	kioskGroup.GET("/ports", kioskHandler.Ports)
	kioskGroup.POST("/mode", kioskHandler.SetMode)
	kioskGroup.POST("/stop-read", kioskHandler.StopRead)
	kioskGroup.POST("/stop-write", kioskHandler.StopWrite)
	kioskGroup.POST("/connect", kioskHandler.Connect)
	kioskGroup.POST("/disconnect", kioskHandler.Disconnect)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}
