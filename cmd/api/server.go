package main

import (
	"net/http"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/jordanlanch/feedbackhub/config"
	"github.com/jordanlanch/feedbackhub/pkg/abtest"
	apierrors "github.com/jordanlanch/feedbackhub/pkg/api/errors"
	"github.com/jordanlanch/feedbackhub/pkg/api/handlers"
	"github.com/jordanlanch/feedbackhub/pkg/audit"
	"github.com/jordanlanch/feedbackhub/pkg/cache"
	"github.com/jordanlanch/feedbackhub/pkg/database"
	"github.com/jordanlanch/feedbackhub/pkg/flags"
	"github.com/jordanlanch/feedbackhub/pkg/logger"
	"github.com/jordanlanch/feedbackhub/pkg/metrics"
	custommiddleware "github.com/jordanlanch/feedbackhub/pkg/middleware"
	"github.com/jordanlanch/feedbackhub/pkg/store"
)

// app holds the wired services of the API process
type app struct {
	cfg     *config.Config
	db      *database.Client
	redis   *cache.Client // nil when the definition cache is disabled
	metrics *metrics.Metrics
	log     logger.Logger

	store       *store.GormStore
	definitions store.Definitions
	audit       *audit.Service
	flags       *flags.Service
	abtest      *abtest.Service
	rateLimiter *custommiddleware.RateLimiter
}

// newApp wires stores and services. redis may be nil.
func newApp(cfg *config.Config, db *database.Client, redis *cache.Client, m *metrics.Metrics, log logger.Logger) *app {
	a := &app{
		cfg:     cfg,
		db:      db,
		redis:   redis,
		metrics: m,
		log:     log,
		store:   store.NewGormStore(db.DB, m),
	}

	stores := abtest.Stores{
		Assignments: a.store,
		Admin:       a.store,
	}

	a.definitions = a.store
	if redis != nil {
		cached := store.NewCachedStore(a.store, redis, cfg.DefinitionCacheTTL, log, m)
		a.definitions = cached
		stores.Cache = cached
	}
	stores.Experiments = a.definitions

	a.audit = audit.NewService(a.store, log, m)
	a.flags = flags.NewService(a.definitions, a.audit, cfg.EvaluationTimeout, log, m)
	a.abtest = abtest.NewService(stores, cfg.EvaluationTimeout, log, m)
	a.rateLimiter = custommiddleware.NewRateLimiter(cfg.SDKRateLimitPerMinute, cfg.SDKRateLimitBurst)

	return a
}

// router builds the echo instance. gatherer backs /metrics.
func (a *app) router(gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apierrors.HTTPErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if a.cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // let Recover handle it after capture
		}))
	}

	e.Use(a.metrics.Middleware())

	// Every route is public and called from customer sites
	e.Use(middleware.CORSWithConfig(custommiddleware.SDKCORSConfig()))

	var cachePinger handlers.Pinger
	if a.redis != nil {
		cachePinger = a.redis
	}
	healthHandler := handlers.NewHealthHandler(a.db, cachePinger)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "FeedbackHub Evaluation API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": a.cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})
	e.GET("/health", healthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	flagHandler := handlers.NewFlagHandler(a.flags)
	sdkHandler := handlers.NewSDKHandler(a.abtest)

	v1 := e.Group("/api/v1", custommiddleware.NoCache(), a.rateLimiter.Middleware())
	v1.POST("/flags/evaluate", flagHandler.Evaluate)
	v1.PUT("/flags/evaluate", flagHandler.EvaluateBatch)
	v1.GET("/sdk/config", sdkHandler.GetConfig)

	return e
}

// close stops background work and waits for pending evaluation log writes
func (a *app) close() {
	a.rateLimiter.Stop()
	a.audit.Wait()
}
