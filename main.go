package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleet-analytics/internal/access"
	accessrepo "fleet-analytics/internal/access/infrastructure/postgres"
	"fleet-analytics/internal/audit"
	auditrepo "fleet-analytics/internal/audit/infrastructure/postgres"
	audithttp "fleet-analytics/internal/audit/interfaces/http"
	"fleet-analytics/internal/auth"
	masterdatarepo "fleet-analytics/internal/masterdata/infrastructure/postgres"
	"fleet-analytics/internal/observability/metrics"
	"fleet-analytics/internal/reporting/application"
	"fleet-analytics/internal/reporting/export"
	reportingrepo "fleet-analytics/internal/reporting/infrastructure/postgres"
	reportinghttp "fleet-analytics/internal/reporting/interfaces/http"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("db ping error", zap.Error(err))
	}

	metrics.Init(db, logger)

	directory := masterdatarepo.NewDirectory(db)
	grants := accessrepo.NewGrantRepository(db)
	filter, err := access.NewFilter(grants, directory, access.WithCache(access.NewCache(cfg.AccessCacheTTL)))
	if err != nil {
		logger.Fatal("access filter error", zap.Error(err))
	}

	fetcher, err := reportingrepo.NewFetcher(db)
	if err != nil {
		logger.Fatal("fetcher error", zap.Error(err))
	}
	assembler, err := application.NewAssembler(directory, filter, fetcher, application.SystemClock{}, logger)
	if err != nil {
		logger.Fatal("assembler error", zap.Error(err))
	}

	pool := export.NewPool(cfg.RenderWorkers, logger)
	defer pool.Close()
	exporter := export.NewExporter(pool)

	auditStore := auditrepo.NewRepository(db)
	auditEngine, err := audit.NewQueryEngine(auditStore, audit.SystemClock{}, logger)
	if err != nil {
		logger.Fatal("audit engine error", zap.Error(err))
	}

	if cfg.AuditRetentionDays > 0 {
		go runAuditCleanup(auditEngine, cfg.AuditRetentionDays, cfg.AuditCleanupInterval, logger)
	}

	reportHandler := reportinghttp.NewReportHandler(assembler, exporter, auditStore, logger)
	auditHandler := audithttp.NewHandler(auditEngine, auditStore, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/reports/", reportHandler)
	auditHandler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	logger.Fatal("server stopped", zap.Error(server.ListenAndServe()))
}

func runAuditCleanup(engine *audit.QueryEngine, retentionDays int, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		deleted, err := engine.Cleanup(context.Background(), retentionDays)
		if err != nil {
			metrics.ObserveAuditCleanup(metrics.ResultError, 0)
			logger.Warn("scheduled audit cleanup failed", zap.Error(err))
			continue
		}
		metrics.ObserveAuditCleanup(metrics.ResultSuccess, deleted)
	}
}

type config struct {
	DatabaseURL          string        `yaml:"database_url"`
	HTTPAddr             string        `yaml:"http_addr"`
	JWTSecret            string        `yaml:"jwt_secret"`
	AccessCacheTTL       time.Duration `yaml:"access_cache_ttl"`
	RenderWorkers        int           `yaml:"render_workers"`
	AuditRetentionDays   int           `yaml:"audit_retention_days"`
	AuditCleanupInterval time.Duration `yaml:"audit_cleanup_interval"`
}

// loadConfig reads the environment, then overlays an optional YAML file
// named by FLEET_CONFIG. File values win over environment defaults.
func loadConfig() (config, error) {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AccessCacheTTL:       getenvDuration("ACCESS_CACHE_TTL", 30*time.Second),
		RenderWorkers:        getenvIntDefault("RENDER_WORKERS", 2),
		AuditRetentionDays:   getenvIntDefault("AUDIT_RETENTION_DAYS", 0),
		AuditCleanupInterval: getenvDuration("AUDIT_CLEANUP_INTERVAL", 24*time.Hour),
	}

	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config{}, err
		}
	}

	if cfg.DatabaseURL == "" {
		return config{}, errors.New("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return config{}, errors.New("AUTH_JWT_SECRET is required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
