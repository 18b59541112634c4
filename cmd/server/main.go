package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/islandtours/tour-booking-backend/internal/config"
	"github.com/islandtours/tour-booking-backend/internal/database"
	"github.com/islandtours/tour-booking-backend/internal/handlers"
	"github.com/islandtours/tour-booking-backend/internal/services"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Island Tours Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories needing transactions take the raw sqlx handle
	postgresDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}
	sqlxDB := postgresDB.DB

	// Initialize repositories
	tourRepo := database.NewTourRepository(db, sqlxDB)
	instanceRepo := database.NewInstanceRepository(db)
	ticketRepo := database.NewTicketRepository(db, sqlxDB)
	pricingRepo := database.NewPricingRepository(db)
	customerRepo := database.NewCustomerRepository(db)
	bookingRepo := database.NewBookingRepository(db, cfg.Booking.ReferenceAttempts)

	// Initialize services
	logger.Info("Initializing services...")
	processor := services.NewProcessorClient(&cfg.Payment, logger)
	notifier := services.NewNotificationService(&cfg.Notification, logger)
	availabilityService := services.NewAvailabilityService(tourRepo, instanceRepo, logger)
	pricingService := services.NewPricingService(db, tourRepo, instanceRepo, ticketRepo, pricingRepo, logger)
	bookingService := services.NewBookingService(
		db, tourRepo, instanceRepo, customerRepo, bookingRepo,
		pricingService, availabilityService, processor, cfg.Payment.Currency, logger,
	)
	paymentService := services.NewPaymentService(
		db, bookingRepo, instanceRepo, customerRepo, processor, notifier, logger,
	)

	// Start background jobs
	cronService := services.NewCronService(instanceRepo, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Initialize handlers
	tourHandler := handlers.NewTourHandler(tourRepo, cfg.Booking.DefaultWindowDays, logger)
	ticketHandler := handlers.NewTicketHandler(ticketRepo, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, pricingService, logger)
	pricingHandler := handlers.NewPricingHandler(pricingService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	adminHandler := handlers.NewAdminHandler(bookingService, paymentService, logger)
	webhookHandler := handlers.NewWebhookHandler(paymentService, &cfg.Payment, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public catalog and availability
		tours := v1.Group("/tours")
		{
			tours.GET("", tourHandler.ListTours)
			tours.GET("/:tourId", tourHandler.GetTour)
			tours.GET("/:tourId/schedule", tourHandler.GetSchedule)
			tours.GET("/:tourId/availability", availabilityHandler.GetAvailability)
			tours.GET("/:tourId/prices", availabilityHandler.GetSlotPrices)
		}

		v1.GET("/tickets", ticketHandler.ListTickets)
		v1.GET("/tickets/:ticketId", ticketHandler.GetTicket)

		// Customer bookings
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/:reference", bookingHandler.GetBooking)
		}

		// Payment processor callbacks
		v1.POST("/webhooks/payments", webhookHandler.HandleProcessorWebhook)

		// Operator endpoints
		admin := v1.Group("/admin")
		{
			admin.POST("/tours", tourHandler.CreateTour)
			admin.PUT("/tours/:tourId", tourHandler.UpdateTour)
			admin.PUT("/tours/:tourId/schedule", tourHandler.SetSchedule)
			admin.POST("/tickets", ticketHandler.CreateTicket)
			admin.DELETE("/tickets/:ticketId", ticketHandler.DeactivateTicket)

			admin.PUT("/tours/:tourId/pricing/rules", pricingHandler.SetRule)
			admin.GET("/tours/:tourId/pricing/rules", pricingHandler.GetRules)
			admin.POST("/tours/:tourId/pricing/exceptions/batch", pricingHandler.ApplyExceptionBatch)
			admin.PUT("/tours/:tourId/pricing/exceptions", pricingHandler.SetSlotPrice)
			admin.DELETE("/tours/:tourId/pricing/exceptions", pricingHandler.DeleteSlotPrice)

			admin.POST("/bookings", adminHandler.CreateManualBooking)
			admin.POST("/bookings/:bookingId/refund", adminHandler.ProcessRefund)
			admin.POST("/bookings/:bookingId/refund/retry", adminHandler.RetryRefund)
			admin.GET("/instances/:instanceId/bookings", adminHandler.ListInstanceBookings)
			admin.POST("/instances/:instanceId/cancel", adminHandler.CancelInstance)
			admin.GET("/triage", adminHandler.ListTriage)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		entry := logger.WithFields(fields)
		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
