// Command fleetgrid is a diagnostics tool for the fleet grid query engine.
// It connects to the configured database, runs a count and a first page fetch
// for the selected entity, and reports the results. With --watch it keeps
// refetching at the given interval and serves Prometheus metrics.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"fleetgrid/internal/config"
	"fleetgrid/internal/dbexec"
	"fleetgrid/internal/fleet"
	"fleetgrid/internal/gridfilter"
	"fleetgrid/internal/gridquery"
	"fleetgrid/internal/logging"
	"fleetgrid/internal/observability"
	"fleetgrid/internal/schema"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fleetgrid error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	config.DefineFlags()
	pflag.Bool("version", false, "Print version and exit")
	entityName := pflag.String("entity", "vehicle", "Entity to query (vehicle, person)")
	pageSize := pflag.Int("page-size", 20, "Rows per page for the smoke fetch")
	filterJSON := pflag.String("filter", "", "Grid filter model as JSON")
	watch := pflag.Duration("watch", 0, "Refetch interval; 0 runs once and exits")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("fleetgrid %s (%s)\n", Version, Commit)
		return nil
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	entity, err := lookupEntity(*entityName)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	obsCfg := observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	}

	var metrics *observability.GridMetrics
	if cfg.Observability.MetricsEnabled {
		mp, err := observability.InitMeterProvider(obsCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer func() { _ = mp.Shutdown(context.Background(), logger.Logger) }()

		metrics, err = observability.InitGridMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize grid metrics: %w", err)
		}
	}
	if cfg.Observability.TracingEnabled {
		tp, err := observability.InitTracerProvider(obsCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() { _ = tp.Shutdown(context.Background(), logger.Logger) }()
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectionTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("database connection established",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	var filterModel map[string]any
	if *filterJSON != "" {
		if err := json.Unmarshal([]byte(*filterJSON), &filterModel); err != nil {
			return fmt.Errorf("invalid --filter JSON: %w", err)
		}
	}

	engine := gridquery.NewEngine(dbexec.NewStandardExecutor(db), logger, metrics)

	if *watch <= 0 {
		return fetchOnce(context.Background(), engine, entity, filterModel, *pageSize, logger)
	}
	return watchLoop(cfg, engine, entity, filterModel, *pageSize, *watch, logger)
}

func lookupEntity(name string) (*schema.Entity, error) {
	switch name {
	case "vehicle":
		return fleet.VehicleEntity, nil
	case "person":
		return fleet.PersonEntity, nil
	default:
		return nil, fmt.Errorf("unknown entity %q: expected vehicle or person", name)
	}
}

func openDatabase(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sql.DB
	var err error
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		db, err = otelsql.Open("mysql", dsn, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			return nil, fmt.Errorf("failed to open instrumented database: %w", err)
		}
		if cfg.Observability.MetricsEnabled {
			if _, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL)); err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}
	} else {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)
	return db, nil
}

func fetchOnce(ctx context.Context, engine *gridquery.Engine, entity *schema.Entity, filterModel map[string]any, pageSize int, logger *logging.Logger) error {
	model, err := gridfilter.ParseModel(filterModel)
	if err != nil {
		return fmt.Errorf("invalid filter model: %w", err)
	}

	start := time.Now()
	total, err := engine.Count(ctx, entity, model)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	rows, err := engine.FetchPage(ctx, entity, model, nil,
		gridquery.PageRequest{StartRow: 0, EndRow: pageSize})
	if err != nil {
		return fmt.Errorf("page fetch failed: %w", err)
	}

	logger.Info("grid smoke query complete",
		slog.String("entity", entity.Name),
		slog.Int64("total_count", total),
		slog.Int("page_rows", len(rows)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func watchLoop(cfg *config.Config, engine *gridquery.Engine, entity *schema.Entity, filterModel map[string]any, pageSize int, interval time.Duration, logger *logging.Logger) error {
	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics endpoint listening", slog.Int("port", cfg.Observability.MetricsPort))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", slog.String("error", err.Error()))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := fetchOnce(context.Background(), engine, entity, filterModel, pageSize, logger); err != nil {
		logger.Error("fetch failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ticker.C:
			if err := fetchOnce(context.Background(), engine, entity, filterModel, pageSize, logger); err != nil {
				logger.Error("fetch failed", slog.String("error", err.Error()))
			}
		case sig := <-stop:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := metricsServer.Shutdown(shutdownCtx)
				cancel()
				if err != nil {
					return err
				}
			}
			return nil
		}
	}
}
