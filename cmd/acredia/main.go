package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acredia/acredia/pkg/access"
	"github.com/acredia/acredia/pkg/api"
	"github.com/acredia/acredia/pkg/assignments"
	"github.com/acredia/acredia/pkg/cascade"
	"github.com/acredia/acredia/pkg/config"
	"github.com/acredia/acredia/pkg/hierarchy"
	"github.com/acredia/acredia/pkg/identity"
	"github.com/acredia/acredia/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("database not reachable")
		os.Exit(1)
	}

	if err := runMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("migrations failed")
		os.Exit(1)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Redis only backs the role cache; start degraded rather
			// than refuse to boot.
			logger.WithError(err).Warn("redis not reachable, role cache falls back to memory")
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	identityStore := identity.NewStore(db)
	assignmentStore := assignments.NewStore(db)
	engine := cascade.NewEngine(logger, metrics)
	hierarchyStore := hierarchy.NewStore(db, engine)

	var cache access.RoleCache
	if cfg.Observability.RoleCacheTTL > 0 {
		if redisClient != nil {
			cache = access.NewRedisRoleCache(redisClient, "roles", cfg.Observability.RoleCacheTTL)
		} else {
			cache = access.NewMemoryRoleCache(4096, cfg.Observability.RoleCacheTTL)
		}
	}

	resolver := access.NewResolver(assignmentStore, hierarchyStore)
	gate := access.NewGate(resolver, cache, metrics)
	filter := access.NewFilter()

	handlers := api.NewHandlers(hierarchyStore, assignmentStore, gate, filter, logger)
	auth := identity.NewAuthMiddleware(identityStore, true)
	server := api.NewServer(handlers, auth, logger, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, db, redisClient, registry, logger)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := identity.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := hierarchy.RunMigrations(ctx, db); err != nil {
		return err
	}
	return assignments.RunMigrations(ctx, db)
}

func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
	go func() {
		logger.WithField("addr", srv.Addr).Info("health server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	return srv
}
