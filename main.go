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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gocausal/adapters/memory"
	"gocausal/adapters/postgres"
	"gocausal/app"
	"gocausal/internal"
	"gocausal/internal/api"
	"gocausal/internal/config"
	"gocausal/internal/metrics"
	"gocausal/ports"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel)).With("gocausal")
	gin.SetMode(appConfig.Server.GinMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, closeStore := openRunStore(appConfig, logger)
	defer closeStore()

	service := app.NewEstimationService(appConfig, metrics.New(registry), logger).WithRunStore(store)
	handler := api.NewEstimationHandler(service, appConfig.Server.RequestTimeout, logger)

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var ops *http.Server
	if appConfig.Ops.Enabled {
		ops = &http.Server{
			Addr:              ":" + appConfig.Ops.Port,
			Handler:           api.NewOpsRouter(registry),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("ops listener (healthz, metrics, pprof) on port %s", appConfig.Ops.Port)
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops listener stopped: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("🚀 Starting gocausal server on port %s (max %d concurrent estimations, %d rows)",
			appConfig.Server.Port, appConfig.Limits.MaxConcurrentEstimations, appConfig.Limits.MaxRows)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.RequestTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	if ops != nil {
		if err := ops.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops shutdown: %v", err)
		}
	}
}

// openRunStore records runs in PostgreSQL when DATABASE_URL is set, otherwise
// in a bounded in-memory history
func openRunStore(appConfig *config.Config, logger *internal.Logger) (ports.RunStore, func()) {
	if appConfig.Database.URL == "" {
		logger.Info("run history kept in memory (last %d runs)", appConfig.Database.RunHistorySize)
		return memory.NewRunStore(appConfig.Database.RunHistorySize), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, appConfig.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := postgres.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	logger.Info("run history stored in PostgreSQL")
	return repo, func() { db.Close() }
}
