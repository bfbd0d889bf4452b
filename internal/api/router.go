package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/analysis"
	"github.com/Skufu/nutrifit/internal/cache"
	"github.com/Skufu/nutrifit/internal/extract"
	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/plan"
	"github.com/Skufu/nutrifit/internal/store"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Store is the persistence the handlers need; *store.Store implements it.
type Store interface {
	HealthChecker
	SaveReport(ctx context.Context, userID string, profile health.UserProfile, a health.RiskAssessment) (*store.Report, error)
	GetReport(ctx context.Context, id string) (*store.Report, error)
	DeleteReport(ctx context.Context, id string) error
	SavePlan(ctx context.Context, userID, reportID string, p plan.Plan) (*store.PlanRecord, error)
	GetPlan(ctx context.Context, id string) (*store.PlanRecord, error)
	DeletePlan(ctx context.Context, id string) error
}

// PlanCache is implemented by *cache.PlanCache.
type PlanCache interface {
	HealthChecker
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Set(ctx context.Context, key string, e cache.Entry) error
	ForgetPlan(ctx context.Context, planID string) error
}

// Deps are the router's collaborators. Store and Cache are nil when disabled.
type Deps struct {
	Pipeline       *analysis.Pipeline
	CatalogVersion string
	Store          Store
	Cache          PlanCache
	Extractor      extract.Extractor
	Logger         *zap.Logger

	MaxBodyBytes   int64
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type server struct {
	Deps
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Extractor == nil {
		d.Extractor = extract.LineParser{}
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	registerJSONFieldNames()

	s := &server{Deps: d}

	router := gin.New()
	router.Use(
		ginzap.GinzapWithConfig(d.Logger, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/healthz", "/readyz"},
		}),
		ginzap.RecoveryWithZap(d.Logger, true),
		limitBodySize(d.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: d.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)

	api := router.Group("/api")
	{
		api.POST("/reports/analyze", s.analyze)
		api.GET("/reports/:id", s.requireStore, s.getReport)
		api.DELETE("/reports/:id", s.requireStore, s.deleteReport)

		api.POST("/plans", s.createPlan)
		api.GET("/plans/:id", s.requireStore, s.getPlan)
		api.DELETE("/plans/:id", s.requireStore, s.deletePlan)
		api.GET("/plans/:id/export", s.requireStore, s.exportPlan)

		api.GET("/calculators/calories", s.calories)
	}

	return router
}

func (s *server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := []struct {
		name    string
		checker HealthChecker
	}{
		{"db", s.Store},
		{"cache", s.Cache},
	}

	status, code := "ok", http.StatusOK
	body := gin.H{}
	for _, check := range checks {
		if check.checker == nil {
			body[check.name] = "disabled"
			continue
		}
		if err := check.checker.Ping(ctx); err != nil {
			body[check.name] = fmt.Sprintf("unhealthy: %v", err)
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		body[check.name] = "ok"
	}
	body["status"] = status
	c.JSON(code, body)
}

func (s *server) requireStore(c *gin.Context) {
	if s.Store == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "persistence_disabled"})
		return
	}
	c.Next()
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
