package cmd

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vibast-solutions/ms-go-checkout/app/controller"
	"github.com/vibast-solutions/ms-go-checkout/app/nexus"
	"github.com/vibast-solutions/ms-go-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"github.com/vibast-solutions/ms-go-checkout/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the checkout gateway service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	gatewayController := controller.NewGatewayController(checkoutService, cfg.App.BaseURL)

	e := setupHTTPServer(checkoutController, gatewayController, cfg.App.APIKey)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	checkoutController *controller.CheckoutController,
	gatewayController *controller.GatewayController,
	adminAPIKey string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(ensureRequestID())

	e.GET("/health", checkoutController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Internal API for caller services, gated by a shared key.
	sessions := e.Group("/checkout-sessions", requireAPIKey(adminAPIKey))
	sessions.POST("", checkoutController.CreateSession)
	sessions.GET("", checkoutController.ListSessions)
	sessions.GET("/:sessionID", checkoutController.GetSession)
	sessions.POST("/cancel/:transactionID", checkoutController.CancelSession)

	deliveries := e.Group("/webhook-deliveries", requireAPIKey(adminAPIKey))
	deliveries.GET("", checkoutController.ListWebhookDeliveries)

	// Provider- and customer-facing surface: authenticated by
	// signature and action token respectively, never by API key.
	gateway := e.Group("/gateway")
	gateway.POST("/webhook", gatewayController.HandleWebhook)
	gateway.GET("/return/success", gatewayController.ReturnSuccess)
	gateway.GET("/return/cancel", gatewayController.ReturnCancel)
	gateway.GET("/return/failure", gatewayController.ReturnFailure)

	return e
}

// ensureRequestID accepts a caller-provided request ID and mints one
// for browser and provider traffic that carries none.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			candidate := strings.TrimSpace(ctx.Request().Header.Get("X-API-Key"))
			if apiKey == "" || candidate == "" ||
				subtle.ConstantTimeCompare([]byte(apiKey), []byte(candidate)) != 1 {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "unauthorized"})
			}
			return next(ctx)
		}
	}
}

func mustCreateCheckoutService() (*config.Config, *service.CheckoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	sessionRepo := repository.NewSessionRepository(db)
	eventRepo := repository.NewSessionEventRepository(db)
	deliveryRepo := repository.NewWebhookDeliveryRepository(db)

	moneyMotionClient := provider.NewMoneyMotionClient(provider.MoneyMotionConfig{
		APIKey:          cfg.MoneyMotion.APIKey,
		APIBaseURL:      cfg.MoneyMotion.APIBaseURL,
		CheckoutBaseURL: cfg.MoneyMotion.CheckoutBaseURL,
		HTTPTimeout:     cfg.MoneyMotion.HTTPTimeout,
	})

	nexusClient := nexus.NewClient(nexus.Config{
		BaseURL:     cfg.Nexus.BaseURL,
		APIKey:      cfg.Nexus.APIKey,
		HTTPTimeout: cfg.Nexus.HTTPTimeout,
	})

	checkoutService := service.NewCheckoutService(
		sessionRepo,
		eventRepo,
		deliveryRepo,
		moneyMotionClient,
		nexusClient,
		cfg.Webhook,
		cfg.Sessions,
		cfg.MoneyMotion.WebhookSecret,
		cfg.App.BaseURL,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, checkoutService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
