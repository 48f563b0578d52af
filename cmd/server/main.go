// Command ak-server starts the analysis-keeper HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/analysis-keeper/internal/config"
	"github.com/and161185/analysis-keeper/internal/engine"
	"github.com/and161185/analysis-keeper/internal/limiter"
	"github.com/and161185/analysis-keeper/internal/metrics"
	"github.com/and161185/analysis-keeper/internal/migrate"
	"github.com/and161185/analysis-keeper/internal/repository"
	"github.com/and161185/analysis-keeper/internal/repository/memory"
	"github.com/and161185/analysis-keeper/internal/repository/postgres"
	httpserver "github.com/and161185/analysis-keeper/internal/server/http"
	"github.com/and161185/analysis-keeper/internal/service"
	"github.com/and161185/analysis-keeper/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires storage and services, and serves HTTP until signalled.
func main() {
	cfg := config.Load(".env")

	// Flags override environment
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	flag.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "PostgreSQL DSN (empty: in-memory storage)")
	flag.StringVar(&cfg.JWTKey, "jwt-key", cfg.JWTKey, "HS256 signing key (required)")
	flag.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token TTL")
	flag.StringVar(&cfg.EngineURL, "engine-url", cfg.EngineURL, "analysis engine base URL")
	flag.DurationVar(&cfg.EngineTimeout, "engine-timeout", cfg.EngineTimeout, "analysis engine request timeout")
	flag.Int64Var(&cfg.MaxUploadBytes, "max-upload", cfg.MaxUploadBytes, "max upload size in bytes")
	flag.StringVar(&cfg.Redis.Addr, "redis", cfg.Redis.Addr, "Redis address (empty: disabled)")
	flag.BoolVar(&cfg.LogDev, "dev", cfg.LogDev, "development logging")
	flag.Parse()

	logger := newLogger(cfg.LogDev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
	)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := limiter.Policy{Window: cfg.Login.Window, MaxFails: cfg.Login.MaxFails, BlockFor: cfg.Login.BlockFor}
	ready := map[string]httpserver.ReadyCheck{}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer func() { _ = rdb.Close() }()
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Repositories
	var (
		users   repository.UserRepository
		history repository.HistoryRepository
		lim     limiter.Limiter = limiter.Nop{}
	)
	if cfg.DatabaseDSN != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseDSN, 5)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer db.Close()
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		users = postgres.NewUserRepo(db)
		history = postgres.NewHistoryRepo(db)
		lim = limiter.NewPG(db.Pool, policy)
		ready["database"] = db.Ping
	} else {
		logger.Warn("no DATABASE_DSN: using in-memory storage, data is lost on restart")
		users = memory.NewUserRepo()
		history = memory.NewHistoryRepo()
		if rdb != nil {
			lim = limiter.NewRedis(rdb, policy)
		}
	}

	// Services
	tokens := token.NewService([]byte(cfg.JWTKey), cfg.AccessTTL)
	eng := engine.New(cfg.EngineURL, cfg.EngineTimeout)
	ready["engine"] = eng.Ping

	authSvc := service.NewAuthService(users, tokens, lim)
	anSvc := service.NewAnalysisService(eng, history, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	var rateLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			rateLimit = httpserver.RedisRateLimit(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window)
		} else {
			rateLimit = httpserver.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	app := httpserver.New(authSvc, anSvc, tokens, logger, httpserver.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      rateLimit,
		Ready:          ready,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// uploads wait for the engine
		WriteTimeout: cfg.EngineTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.EngineTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
