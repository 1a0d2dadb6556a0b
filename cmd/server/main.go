package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursemarket_echo/internal/bootstrap"
	"coursemarket_echo/internal/config"
	"coursemarket_echo/internal/handlers"
	authMiddleware "coursemarket_echo/internal/middleware"
	"coursemarket_echo/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Firebase
	authClient, err := services.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Checkout and preference endpoints will reject requests until valid credentials are provided")
	}
	var verifier authMiddleware.TokenVerifier
	if authClient != nil {
		verifier = authClient
	}

	// Initialize Database
	db, err := bootstrap.OpenDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	engine, err := bootstrap.NewEngine(cfg, db, log.Default())
	if err != nil {
		log.Fatalf("Failed to initialize reconciliation engine: %v", err)
	}
	defer engine.Close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler
	e.Validator = authMiddleware.NewRequestValidator()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// Initialize handlers
	checkout := services.NewCheckoutService(db, engine.Gateway, cfg.FrontendURL, cfg.BackendURL).
		WithDefaultCurrency(cfg.CurrencyID)
	paymentHandler := handlers.NewPaymentHandler(engine.Reconciler, checkout, engine.WebhookLog, cfg.FrontendURL)
	preferenceHandler := handlers.NewUserPreferenceHandler(db)

	// Public routes
	e.POST("/payments/webhook", paymentHandler.Webhook)
	e.GET("/payments/success", paymentHandler.CheckoutSuccess)
	e.GET("/healthz", func(c echo.Context) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(engine.Registry, promhttp.HandlerOpts{})))

	// Protected routes
	protected := e.Group("")
	protected.Use(authMiddleware.RequireAuth(verifier))
	protected.POST("/payments/create-preference", paymentHandler.CreatePreference)
	protected.GET("/me/notification-preference", preferenceHandler.GetUserPreference)
	protected.PUT("/me/notification-preference", preferenceHandler.UpdateUserPreference)

	// Start server
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
