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
	"github.com/hypernova-labs/storefront-service/internal/api"
	"github.com/hypernova-labs/storefront-service/internal/config"
	"github.com/hypernova-labs/storefront-service/internal/database"
	"github.com/hypernova-labs/storefront-service/internal/email"
	"github.com/hypernova-labs/storefront-service/internal/metrics"
	"github.com/hypernova-labs/storefront-service/internal/services"
	"github.com/hypernova-labs/storefront-service/internal/workflows"
	"github.com/sirupsen/logrus"
)

func main() {
	// Cargar configuración
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting storefront service...")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Base de datos
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatalf("Error preparing database schema: %v", err)
	}

	// Redis guarda los tokens de sesión, sin él no hay flujos autenticados
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to Redis: %v", err)
	}
	defer redis.Close()

	tokens := database.NewTokenStore(redis, cfg.Session.TokenTTL, logger)

	// Almacenamiento de PDFs
	var archive services.DocumentArchive
	if cfg.StorageEnabled() {
		storage, err := database.NewObjectStorage(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing object storage: %v", err)
		} else {
			if err := storage.HealthCheck(ctx); err != nil {
				logger.Warnf("Object storage health check failed: %v", err)
			} else {
				logger.Info("Object storage connection healthy")
			}
			archive = storage
		}
	} else {
		logger.Warn("Storage credentials not provided, invoice PDFs will not be archived")
	}

	invoiceRepo := database.NewInvoiceRepository(db, logger)
	collector := metrics.NewCollector()

	deps := services.FlowDeps{
		Repository: invoiceRepo,
		Profiles:   tokens,
		Recorder:   collector,
		Timeout:    cfg.Session.OperationTimeout,
		Logger:     logger,
	}

	// Email de comprobantes
	if cfg.Email.ResendAPIKey != "" {
		deps.Mailer = email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Server.BaseURL, logger)
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key not provided, receipts will not be sent")
	}

	// Eventos de facturas
	inngestClient, err := workflows.NewInngestClient(cfg)
	if err != nil {
		logger.Warnf("Inngest not available: %v", err)
	} else {
		deps.Events = workflows.NewInvoiceEvents(inngestClient, logger)
	}

	// El barrido también libera el rate limit de las sesiones expiradas
	limiter := api.NewSessionLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	sessions := services.NewSessionManager(deps, cfg.Session.IdleTTL, collector, logger)
	sessions.OnExpire(limiter.Forget)
	if err := sessions.Start(cfg.Session.SweepSchedule); err != nil {
		logger.Fatalf("Error starting session sweep: %v", err)
	}

	documents := services.NewInvoiceDocumentService(invoiceRepo, services.NewDocumentGenerator(logger), archive, logger)

	apiHandler := api.NewAPI(
		tokens,
		database.NewProductRepository(db, logger),
		database.NewCartRepository(db, logger),
		documents,
		sessions,
		limiter,
		logger,
	)

	router := setupRouter(apiHandler, collector, db, redis, cfg)

	// Sin WriteTimeout: los streams de eventos quedan abiertos
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	// Cerrar los flujos termina los streams abiertos antes del shutdown
	sessions.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	db.LogStats(logger)
	logger.Info("Server exited")
}

// setupLogger configura el logger según la configuración
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// setupRouter configura el router principal
func setupRouter(apiHandler *api.API, collector *metrics.Collector, db, redis healthChecker, cfg *config.Config) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(collector.Middleware())

	// CORS para desarrollo
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+api.SessionHeader)

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = err.Error()
		}
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		}

		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"checks":    checks,
			"timestamp": time.Now().UTC(),
			"service":   "storefront-service",
			"version":   "1.0.0",
		})
	})

	router.GET("/metrics", gin.WrapH(collector.Handler()))

	apiHandler.RegisterRoutes(router)

	return router
}
