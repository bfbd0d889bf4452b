// Package store persists analysis reports and generated plans in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/plan"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		overall     TEXT NOT NULL,
		profile     JSONB NOT NULL,
		assessment  JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_user_id_idx ON reports (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id               UUID PRIMARY KEY,
		user_id          TEXT NOT NULL,
		report_id        UUID,
		kind             TEXT NOT NULL,
		days             INTEGER NOT NULL,
		catalog_version  TEXT NOT NULL,
		body             JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS plans_user_id_idx ON plans (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS plans_report_id_idx ON plans (report_id)`,
}

type Report struct {
	ID         string                `json:"report_id"`
	UserID     string                `json:"user_id"`
	Profile    health.UserProfile    `json:"profile"`
	Assessment health.RiskAssessment `json:"assessment"`
	CreatedAt  time.Time             `json:"created_at"`
}

type PlanRecord struct {
	ID        string    `json:"plan_id"`
	UserID    string    `json:"user_id"`
	ReportID  string    `json:"report_id,omitempty"`
	Kind      plan.Kind `json:"kind"`
	Plan      plan.Plan `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SaveReport(ctx context.Context, userID string, profile health.UserProfile, a health.RiskAssessment) (*Report, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	assessmentJSON, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}

	r := &Report{
		ID:         uuid.NewString(),
		UserID:     userID,
		Profile:    profile,
		Assessment: a,
		CreatedAt:  s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, user_id, overall, profile, assessment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, a.Overall.String(), profileJSON, assessmentJSON, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	s.logger.Info("report saved",
		zap.String("report_id", r.ID),
		zap.String("user_id", userID),
		zap.String("overall", a.Overall.String()),
	)
	return r, nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		r                           Report
		profileJSON, assessmentJSON []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, profile, assessment, created_at FROM reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.UserID, &profileJSON, &assessmentJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}

	if err := json.Unmarshal(profileJSON, &r.Profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(assessmentJSON, &r.Assessment); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	return &r, nil
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	return s.delete(ctx, "reports", id)
}

// SavePlan stores p. reportID is optional and only has to be a well-formed
// UUID; the report it names may be missing or deleted later.
func (s *Store) SavePlan(ctx context.Context, userID, reportID string, p plan.Plan) (*PlanRecord, error) {
	if reportID != "" {
		if _, err := uuid.Parse(reportID); err != nil {
			return nil, fmt.Errorf("%w: report_id %q", ErrInvalidID, reportID)
		}
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	rec := &PlanRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		ReportID:  reportID,
		Kind:      p.Kind(),
		Plan:      p,
		CreatedAt: s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, user_id, report_id, kind, days, catalog_version, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, sql.NullString{String: reportID, Valid: reportID != ""},
		string(rec.Kind), p.DayCount(), catalogVersion(p), body, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	s.logger.Info("plan saved",
		zap.String("plan_id", rec.ID),
		zap.String("user_id", userID),
		zap.String("kind", string(rec.Kind)),
	)
	return rec, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		rec      PlanRecord
		reportID sql.NullString
		kind     string
		body     []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, report_id, kind, body, created_at FROM plans WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.UserID, &reportID, &kind, &body, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}

	rec.ReportID = reportID.String
	rec.Kind = plan.Kind(kind)
	if rec.Plan, err = DecodePlan(rec.Kind, body); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) DeletePlan(ctx context.Context, id string) error {
	return s.delete(ctx, "plans", id)
}

func (s *Store) delete(ctx context.Context, table, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DecodePlan restores the concrete plan type for kind from its JSON body.
func DecodePlan(kind plan.Kind, body []byte) (plan.Plan, error) {
	var p plan.Plan
	switch kind {
	case plan.KindDiet:
		p = &plan.DietPlan{}
	case plan.KindWorkout:
		p = &plan.WorkoutPlan{}
	default:
		return nil, fmt.Errorf("decode plan: unknown kind %q", kind)
	}
	if err := json.Unmarshal(body, p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return p, nil
}

func catalogVersion(p plan.Plan) string {
	switch v := p.(type) {
	case *plan.DietPlan:
		return v.CatalogVersion
	case *plan.WorkoutPlan:
		return v.CatalogVersion
	}
	return ""
}
