package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/cache"
	"github.com/Skufu/nutrifit/internal/export"
	"github.com/Skufu/nutrifit/internal/extract"
	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/metrics"
	"github.com/Skufu/nutrifit/internal/plan"
	"github.com/Skufu/nutrifit/internal/store"
)

type analyzeRequest struct {
	UserID  string                 `json:"user_id" binding:"required"`
	Metrics map[string]interface{} `json:"metrics"`
	Text    string                 `json:"text"`
	Profile *health.UserProfile    `json:"profile"`
}

type analyzeResponse struct {
	ReportID string `json:"report_id,omitempty"`
	health.RiskAssessment
}

func (s *server) analyze(c *gin.Context) {
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Metrics) == 0 && req.Text == "" {
		validationFailed(c, "metrics or text is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout)
	defer cancel()

	raw := extract.Stringify(req.Metrics)
	if req.Text != "" {
		extracted, err := s.Extractor.Extract(ctx, req.Text)
		if err != nil {
			s.Logger.Warn("text extraction failed", zap.String("user_id", req.UserID), zap.Error(err))
		}
		// Explicit metrics take precedence over extracted ones.
		raw = metrics.Merge(raw, extracted)
	}

	var profile health.UserProfile
	if req.Profile != nil {
		profile = *req.Profile
	}
	resp := analyzeResponse{RiskAssessment: s.Pipeline.Analyze(raw, profile)}

	if s.Store != nil {
		report, err := s.Store.SaveReport(ctx, req.UserID, profile, resp.RiskAssessment)
		if err != nil {
			s.internalError(c, "save report", err)
			return
		}
		resp.ReportID = report.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) getReport(c *gin.Context) {
	report, err := s.Store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "get report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *server) deleteReport(c *gin.Context) {
	if err := s.Store.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		s.storeError(c, "delete report", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type planRequest struct {
	UserID     string                 `json:"user_id" binding:"required"`
	ReportID   string                 `json:"report_id" binding:"omitempty,uuid"`
	Profile    health.UserProfile     `json:"profile"`
	Assessment *health.RiskAssessment `json:"assessment"`
	Kind       string                 `json:"kind" binding:"required,oneof=diet workout"`
	Days       int                    `json:"days" binding:"min=0"`
}

type planResponse struct {
	PlanID string    `json:"plan_id,omitempty"`
	Kind   plan.Kind `json:"kind"`
	Cached bool      `json:"cached"`
	Plan   plan.Plan `json:"plan"`
}

func (s *server) createPlan(c *gin.Context) {
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	kind, err := plan.ParseKind(req.Kind)
	if err != nil {
		validationFailed(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout)
	defer cancel()

	assessment, ok := s.resolveAssessment(ctx, c, req.Assessment, req.ReportID)
	if !ok {
		return
	}

	var key string
	if s.Cache != nil {
		key = cache.Key(cache.Request{
			UserID:         req.UserID,
			ReportID:       req.ReportID,
			Kind:           kind,
			Days:           req.Days,
			Profile:        req.Profile,
			Assessment:     assessment,
			CatalogVersion: s.CatalogVersion,
		})
		if resp, hit := s.cachedPlan(ctx, key); hit {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	generated, err := s.Pipeline.GeneratePlan(req.Profile, assessment, kind, req.Days)
	switch {
	case errors.Is(err, plan.ErrInvalidProfile):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_profile", "details": []string{err.Error()}})
		return
	case errors.Is(err, plan.ErrInvalidPlanRequest):
		validationFailed(c, err.Error())
		return
	case err != nil:
		s.internalError(c, "generate plan", err)
		return
	}

	resp := planResponse{Kind: kind, Plan: generated}
	if s.Store != nil {
		rec, err := s.Store.SavePlan(ctx, req.UserID, req.ReportID, generated)
		if err != nil {
			s.storeError(c, "save plan", err)
			return
		}
		resp.PlanID = rec.ID
	}

	if s.Cache != nil {
		s.storeInCache(ctx, key, resp)
	}
	c.JSON(http.StatusOK, resp)
}

// resolveAssessment prefers an inline assessment, then the stored report, and
// falls back to an all-unknown assessment.
func (s *server) resolveAssessment(ctx context.Context, c *gin.Context, inline *health.RiskAssessment, reportID string) (health.RiskAssessment, bool) {
	if inline != nil {
		return *inline, true
	}
	if reportID == "" {
		return health.UnknownAssessment(), true
	}
	if s.Store == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "persistence_disabled"})
		return health.RiskAssessment{}, false
	}
	report, err := s.Store.GetReport(ctx, reportID)
	if err != nil {
		s.storeError(c, "get report", err)
		return health.RiskAssessment{}, false
	}
	return report.Assessment, true
}

type caloriesQuery struct {
	Age           int     `json:"age" form:"age" binding:"required"`
	Gender        string  `json:"gender" form:"gender"`
	Height        float64 `json:"height" form:"height" binding:"required"`
	Weight        float64 `json:"weight" form:"weight" binding:"required"`
	ActivityLevel string  `json:"activity_level" form:"activity_level"`
	Goal          string  `json:"goal" form:"goal"`
	ReportID      string  `json:"report_id" form:"report_id" binding:"omitempty,uuid"`
}

// calories reports BMI, the daily calorie target and the burn target for a
// profile, applying the risk of a stored report when report_id is given.
func (s *server) calories(c *gin.Context) {
	var q caloriesQuery
	if !bindQuery(c, &q) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout)
	defer cancel()

	assessment, ok := s.resolveAssessment(ctx, c, nil, q.ReportID)
	if !ok {
		return
	}

	profile := health.UserProfile{
		Age:           q.Age,
		Gender:        q.Gender,
		HeightCm:      q.Height,
		WeightKg:      q.Weight,
		ActivityLevel: health.ActivityLevel(q.ActivityLevel),
		Goal:          health.Goal(q.Goal),
	}
	energy, err := s.Pipeline.Energy(profile, assessment)
	if err != nil {
		if errors.Is(err, plan.ErrInvalidProfile) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_profile", "details": []string{err.Error()}})
			return
		}
		s.internalError(c, "compute calories", err)
		return
	}
	c.JSON(http.StatusOK, energy)
}

func (s *server) cachedPlan(ctx context.Context, key string) (planResponse, bool) {
	entry, err := s.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.Logger.Warn("plan cache read failed", zap.Error(err))
		}
		return planResponse{}, false
	}
	cached, err := store.DecodePlan(entry.Kind, entry.Body)
	if err != nil {
		s.Logger.Warn("plan cache entry unusable", zap.String("key", key), zap.Error(err))
		return planResponse{}, false
	}
	return planResponse{PlanID: entry.PlanID, Kind: entry.Kind, Cached: true, Plan: cached}, true
}

func (s *server) storeInCache(ctx context.Context, key string, resp planResponse) {
	body, err := json.Marshal(resp.Plan)
	if err == nil {
		err = s.Cache.Set(ctx, key, cache.Entry{PlanID: resp.PlanID, Kind: resp.Kind, Body: body})
	}
	if err != nil {
		s.Logger.Warn("plan cache write failed", zap.Error(err))
	}
}

func (s *server) getPlan(c *gin.Context) {
	rec, err := s.Store.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "get plan", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) deletePlan(c *gin.Context) {
	id := c.Param("id")
	if err := s.Store.DeletePlan(c.Request.Context(), id); err != nil {
		s.storeError(c, "delete plan", err)
		return
	}
	if s.Cache != nil {
		if err := s.Cache.ForgetPlan(c.Request.Context(), id); err != nil {
			s.Logger.Warn("plan cache eviction failed", zap.String("plan_id", id), zap.Error(err))
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *server) exportPlan(c *gin.Context) {
	id := c.Param("id")
	rec, err := s.Store.GetPlan(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, "get plan", err)
		return
	}
	var assessment *health.RiskAssessment
	if rec.ReportID != "" {
		report, err := s.Store.GetReport(c.Request.Context(), rec.ReportID)
		switch {
		case err == nil:
			assessment = &report.Assessment
		case errors.Is(err, store.ErrNotFound):
			// Reports are deletable independently of the plans built from them.
		default:
			s.internalError(c, "get report", err)
			return
		}
	}
	data, err := export.PlanXLSX(rec.Plan, assessment)
	if err != nil {
		s.internalError(c, "export plan", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-plan-%s.xlsx"`, rec.Kind, id))
	c.Data(http.StatusOK, export.ContentType, data)
}

func (s *server) storeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, store.ErrInvalidID):
		validationFailed(c, err.Error())
	default:
		s.internalError(c, op, err)
	}
}

func (s *server) internalError(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	s.Logger.Error(op+" failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
