package main

// @title FeedbackHub Evaluation API
// @version 1.0
// @description Feature flag evaluation and experiment assignment for client SDKs.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jordanlanch/feedbackhub/config"
	_ "github.com/jordanlanch/feedbackhub/docs" // Swagger docs (generated)
	"github.com/jordanlanch/feedbackhub/pkg/cache"
	"github.com/jordanlanch/feedbackhub/pkg/database"
	"github.com/jordanlanch/feedbackhub/pkg/jobs"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel)

	// Connection strings may live in AWS Secrets Manager in production
	if err := loadSecrets(context.Background(), cfg); err != nil {
		log.Fatalf("❌ Failed to load secrets: %v", err)
	}

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.1,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database with SSL configuration
	db, err := database.NewClient(cfg.DatabaseURL, database.Options{
		Pool: database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLife,
			ConnMaxIdleTime: cfg.DBConnMaxIdle,
		},
		SSL: &database.SSLConfig{
			Mode:         cfg.DBSSLMode,
			CertPath:     cfg.DBSSLCertPath,
			KeyPath:      cfg.DBSSLKeyPath,
			RootCertPath: cfg.DBSSLRootCert,
		},
		AutoMigrate: cfg.DBAutoMigrate,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis definition cache is optional; evaluation works without it
	var redisClient *cache.Client
	if cfg.CacheActive() {
		redisClient, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, definition cache disabled: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Printf("✅ Definition cache enabled (ttl: %s)", cfg.DefinitionCacheTTL)
		}
	} else {
		log.Printf("ℹ️  Definition cache disabled")
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	a := newApp(cfg, db, redisClient, prometheusMetrics, appLogger)
	e := a.router(prometheus.DefaultGatherer)

	// Evaluation log retention
	cronManager := jobs.NewCronManager(
		jobs.NewRetentionJob(a.store, cfg.EvaluationLogRetentionDays, prometheusMetrics, log.Default()),
		log.Default(),
	)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	address := cfg.Address()
	log.Printf("🚀 FeedbackHub API starting on %s", address)
	log.Printf("📝 Log level: %s", cfg.LogLevel)
	log.Printf("⏱️  Evaluation timeout: %s", cfg.EvaluationTimeout)
	log.Printf("🛡️  SDK rate limiting: %d req/min (burst: %d)", cfg.SDKRateLimitPerMinute, cfg.SDKRateLimitBurst)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	// Flush in-flight evaluation log writes
	a.close()

	log.Println("✅ Server gracefully stopped")
}
