package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/api"
	"github.com/Skufu/nutrifit/internal/config"
	"github.com/Skufu/nutrifit/internal/extract"
	"github.com/Skufu/nutrifit/internal/health"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Port:              "8080",
		GinMode:           gin.TestMode,
		PlanCacheTTL:      time.Hour,
		ExtractionTimeout: time.Second,
		ModelPaths:        map[health.Condition]string{},
		PlanDefaultDays:   7,
		PlanMaxDays:       30,
		PlanLookbackDays:  3,
		MinDailyCalories:  1200,
		AnalysisTimeout:   5 * time.Second,
		MaxBodyBytes:      1 << 20,
		AllowedOrigins:    []string{"*"},
	}
	for _, c := range health.Conditions {
		cfg.ModelPaths[c] = filepath.Join("..", "..", "models", string(c)+".json")
	}
	return cfg
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestBuildDepsWithoutBackends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps, cleanup, err := buildDeps(context.Background(), testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if deps.Store != nil || deps.Cache != nil {
		t.Fatalf("expected no store or cache, got %+v %+v", deps.Store, deps.Cache)
	}
	if _, ok := deps.Extractor.(extract.LineParser); !ok {
		t.Fatalf("expected local line parser, got %T", deps.Extractor)
	}
	if deps.CatalogVersion == "" {
		t.Fatal("expected catalog version")
	}

	w := serve(api.NewRouter(deps), "GET", "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"db":"disabled"`) || !strings.Contains(w.Body.String(), `"cache":"disabled"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestBuildDepsUsesExtractionService(t *testing.T) {
	cfg := testConfig()
	cfg.ExtractionURL = "http://127.0.0.1:1"

	deps, cleanup, err := buildDeps(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if _, ok := deps.Extractor.(extract.Fallback); !ok {
		t.Fatalf("expected fallback extractor, got %T", deps.Extractor)
	}
}

func TestBuildDepsCachesPlans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.EnableCache = true
	cfg.Redis = config.RedisConfig{Addr: mr.Addr()}

	deps, cleanup, err := buildDeps(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	router := api.NewRouter(deps)

	body := `{"user_id":"u1","kind":"workout","days":3,"profile":{"age":35,"height":180,"weight":80}}`
	first := serve(router, "POST", "/api/plans", body)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	if !strings.Contains(first.Body.String(), `"cached":false`) {
		t.Fatalf("expected fresh plan, got %s", first.Body.String())
	}

	second := serve(router, "POST", "/api/plans", body)
	if !strings.Contains(second.Body.String(), `"cached":true`) {
		t.Fatalf("expected cached plan, got %s", second.Body.String())
	}

	w := serve(router, "GET", "/readyz", "")
	if !strings.Contains(w.Body.String(), `"cache":"ok"`) {
		t.Fatalf("unexpected readiness body: %s", w.Body.String())
	}
}

func TestBuildDepsRejectsBadCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	if _, _, err := buildDeps(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestBuildDepsRejectsBadDatabaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.EnableDB = true
	cfg.DatabaseURL = "postgres://user@localhost:99999/db"

	_, _, err := buildDeps(context.Background(), cfg, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "database connection failed") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestPlanOptionsFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PlanDefaultDays = 5
	cfg.PlanMaxDays = 14
	cfg.PlanLookbackDays = 2
	cfg.MinDailyCalories = 1500

	opts := planOptions(cfg)
	if opts.DefaultDays != 5 || opts.MaxDays != 14 || opts.LookbackDays != 2 || opts.MinDailyCalories != 1500 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if len(opts.MealSplit) == 0 || opts.ExercisesPerDay == 0 {
		t.Fatalf("expected defaults to be kept, got %+v", opts)
	}
}

func TestNewServerTimeouts(t *testing.T) {
	srv := newServer("9090", http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("unexpected addr %s", srv.Addr)
	}
	if srv.ReadHeaderTimeout != 5*time.Second || srv.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts: %+v", srv)
	}
}
