package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/analysis"
	"github.com/Skufu/nutrifit/internal/api"
	"github.com/Skufu/nutrifit/internal/cache"
	"github.com/Skufu/nutrifit/internal/config"
	"github.com/Skufu/nutrifit/internal/extract"
	"github.com/Skufu/nutrifit/internal/logger"
	"github.com/Skufu/nutrifit/internal/plan"
	"github.com/Skufu/nutrifit/internal/risk"
	"github.com/Skufu/nutrifit/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "nutrifit")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()
	deps, cleanup, err := buildDeps(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", zap.Error(err))
	}
	defer cleanup()

	server := newServer(cfg.Port, api.NewRouter(deps))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	lg.Info("server listening", zap.String("port", cfg.Port))
	waitForShutdown(server, lg)
}

// buildDeps wires the pipeline and the optional database, cache and
// extraction service. The returned cleanup closes whatever was opened.
func buildDeps(ctx context.Context, cfg *config.Config, lg *zap.Logger) (api.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (api.Deps, func(), error) {
		cleanup()
		return api.Deps{}, func() {}, err
	}

	models := risk.LoadModels(ctx, cfg.ModelPaths, lg)

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return fail(err)
	}

	pipeline, err := analysis.New(models, catalog, planOptions(cfg), lg)
	if err != nil {
		return fail(fmt.Errorf("build pipeline: %w", err))
	}

	deps := api.Deps{
		Pipeline:       pipeline,
		CatalogVersion: catalog.Version(),
		Extractor:      extract.LineParser{},
		Logger:         lg,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.AnalysisTimeout,
	}

	if cfg.ExtractionURL != "" {
		deps.Extractor = extract.Fallback{
			Primary: extract.NewClient(cfg.ExtractionURL, cfg.ExtractionTimeout, lg),
			Logger:  lg,
		}
	}

	if cfg.EnableDB {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("database connection failed: %w", err))
		}
		db := stdlib.OpenDBFromPool(pool)
		closers = append(closers, func() {
			_ = db.Close()
			pool.Close()
		})

		st := store.New(db, lg)
		if err := st.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("migrate: %w", err))
		}
		deps.Store = st
	}

	if cfg.EnableCache {
		client := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		closers = append(closers, func() { _ = client.Close() })

		pc := cache.New(client, cfg.PlanCacheTTL, lg)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pc.Ping(pingCtx); err != nil {
			// Startup continues; /readyz reports the cache as unhealthy.
			lg.Warn("plan cache unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		deps.Cache = pc
	}

	return deps, cleanup, nil
}

func loadCatalog(path string) (*plan.Catalog, error) {
	if path == "" {
		return plan.DefaultCatalog()
	}
	c, err := plan.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

func planOptions(cfg *config.Config) plan.Options {
	opts := plan.DefaultOptions()
	opts.DefaultDays = cfg.PlanDefaultDays
	opts.MaxDays = cfg.PlanMaxDays
	opts.LookbackDays = cfg.PlanLookbackDays
	opts.MinDailyCalories = cfg.MinDailyCalories
	return opts
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func newServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func waitForShutdown(server *http.Server, lg *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	lg.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
