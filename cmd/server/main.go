package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/auth"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/backend"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/config"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/handler"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/middleware"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/proxy"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/render"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting farm dashboard",
		zap.String("port", cfg.Server.Port),
		zap.String("data_driver", cfg.Data.Driver),
		zap.String("environment", os.Getenv("GO_ENV")),
	)

	// Create Prometheus registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Open the readings store
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	source, err := repository.NewSource(startCtx, cfg.Data, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to open readings source", zap.Error(err))
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error("Failed to close readings source", zap.Error(err))
		}
	}()

	// Backend client for contact, QR and harvest actions
	backendClient, err := backend.NewClient(cfg.Backend, cfg.Breaker, registry, logger)
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(&cfg.JWT)
	authMiddleware := auth.NewAuthMiddleware(jwtManager, logger)

	metricsMiddleware := middleware.NewMetricsMiddleware(registry)
	loggingMiddleware := middleware.NewLoggingMiddleware(logger)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins, logger)

	router := mux.NewRouter()

	// Preflights need a matching route for the middleware chain to run
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// CORS must come first to answer preflight requests
	router.Use(corsMiddleware.EnableCORS)
	router.Use(loggingMiddleware.LogRequest)
	router.Use(metricsMiddleware.CollectMetrics)
	router.Use(authMiddleware.Optional)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","breaker":%q}`, backendClient.State().String())
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// The readings API requires a session
	api := router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.URL.Path == "/api/farm" || strings.HasPrefix(r.URL.Path, "/api/farm/")
	}).Subrouter()
	api.Use(authMiddleware.Authenticate)
	handler.NewReadingsHandler(source, logger).RegisterRoutes(api)

	handler.NewActionsHandler(backendClient, render.NewAlertRenderer(render.DefaultDismissAfter), logger).
		RegisterRoutes(router)

	handler.NewFarmHandler(source, handler.FarmOptions{
		Dashboard: dashboard.Options{
			PageSize: cfg.Dashboard.PageSize,
			Chart: dashboard.ChartOptions{
				GroupThreshold: cfg.Chart.GroupThreshold,
				LabelTarget:    cfg.Chart.LabelTarget,
			},
			Location: cfg.Dashboard.Location,
		},
		ChartWidth:  cfg.Chart.Width,
		ChartHeight: cfg.Chart.Height,
	}, registry, logger).RegisterRoutes(router)

	// QR images and stylesheets live on the backend
	staticProxy, err := proxy.NewBackendProxy(cfg.Backend.BaseURL, "/static/", cfg.Backend.Timeout, logger)
	if err != nil {
		logger.Fatal("Failed to create static proxy", zap.Error(err))
	}
	router.PathPrefix("/static/").Handler(staticProxy)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.String("backend", cfg.Backend.BaseURL),
			zap.String("timezone", cfg.Dashboard.Timezone),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server exited properly")
}

// initLogger initializes the logger based on configuration
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var zapConfig zap.Config

	level := zap.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		fmt.Printf("Invalid log level %q, using info.\n", cfg.Level)
		level = zap.InfoLevel
	}

	// Choose log format: json or console
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Printf("Failed to create logger: %v. Using default logger.\n", err)
		return zap.NewExample()
	}

	return logger
}
