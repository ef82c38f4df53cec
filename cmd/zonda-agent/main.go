package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/config"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/connectivity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/handler"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/service"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/middleware"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting zonda field agent",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	store, err := storage.New(cfg.Storage.DataDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open document store", zap.Error(err))
	}

	client := zonda.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	sess := session.NewManager(store, client, zapLogger)
	repos := repository.NewRepositories(store)
	services := service.NewServices(repos, client, sess, zapLogger)
	handlers := handler.NewHandlers(services, sess, cfg)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	monitor := connectivity.NewMonitor(client, cfg.Connectivity.PollInterval, zapLogger)
	monitor.OnReconnect(func() {
		user := sess.Current()
		if user == nil {
			return
		}
		// Background refresh of today's listing after connectivity returns.
		ctx, cancel := context.WithTimeout(rootCtx, cfg.API.Timeout)
		defer cancel()
		today := time.Now().Format("2006-01-02")
		if _, err := services.Order.GetOrders(ctx, strconv.Itoa(user.UserID), today); err != nil {
			zapLogger.Warn("background order refresh failed", zap.Error(err))
		}
	})
	monitor.Start(rootCtx)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, sess, monitor)

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Agent listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down agent...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Agent exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, sess *session.Manager, monitor *connectivity.Monitor) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": monitor.Online()})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", h.Auth.Me)
		}

		authorized := v1.Group("", middleware.SessionAuth(sess))
		{
			authorized.GET("/orders", h.Order.List)
			authorized.GET("/orders/active", h.Order.ActiveOrder)
			authorized.DELETE("/orders/active", h.Order.Deactivate)
			authorized.GET("/orders/:id", h.Order.Get)
			authorized.POST("/orders/:id/activate", h.Order.Activate)

			authorized.GET("/orders/:id/report", h.Report.Get)
			authorized.PUT("/orders/:id/report/notes", h.Report.SaveNotes)
			authorized.PUT("/orders/:id/report/signature", h.Report.SaveSignature)
			authorized.DELETE("/orders/:id/report/signature", h.Report.DeleteSignature)
			authorized.POST("/orders/:id/report/reviews", h.Report.SubmitReview)
			authorized.POST("/orders/:id/report/reviews/:deviceId/scanned", h.Report.MarkScanned)
			authorized.POST("/orders/:id/report/auto-review", h.Report.AutoReview)
			authorized.PUT("/orders/:id/report/usage", h.Report.SaveUsage)
			authorized.POST("/orders/:id/report/finalize", h.Report.Finalize)
			authorized.POST("/orders/:id/report/reopen", h.Report.Reopen)

			authorized.GET("/sync/pending", h.Sync.Pending)
			authorized.POST("/sync", h.Sync.Sync)
		}
	}
}
