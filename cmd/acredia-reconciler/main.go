package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acredia/acredia/pkg/cascade"
	"github.com/acredia/acredia/pkg/observability"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

var (
	dbURL       = flag.String("db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	schedule    = flag.String("schedule", "*/15 * * * *", "Cron schedule for full sweeps (default: every 15 minutes)")
	concurrency = flag.Int("concurrency", 8, "Worker concurrency per sweep")
	runOnce     = flag.Bool("once", false, "Run a single sweep and exit")
	logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.ParseLogLevel(*logLevel), os.Stdout)

	if *dbURL == "" {
		logger.Error("DATABASE_URL or -db-url is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		logger.WithError(err).Error("database not reachable")
		os.Exit(1)
	}
	cancel()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	engine := cascade.NewEngine(logger, metrics)
	reconciler := cascade.NewReconciler(db, engine, logger, metrics, *concurrency)

	if *runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := reconciler.RunOnce(ctx); err != nil {
			logger.WithError(err).Error("sweep failed")
			os.Exit(1)
		}
		return
	}

	if err := reconciler.Start(*schedule); err != nil {
		logger.WithError(err).Error("failed to start reconciler")
		os.Exit(1)
	}
	logger.WithField("schedule", *schedule).Info("reconciler scheduled")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal %s, stopping", sig)

	reconciler.Stop()
}
