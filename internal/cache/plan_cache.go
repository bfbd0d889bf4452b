// Package cache keeps generated plans in Redis so identical requests are
// answered without regenerating or re-persisting them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/plan"
)

var ErrMiss = errors.New("cache miss")

const (
	keyPrefix   = "nutrifit:plan:"
	indexPrefix = "nutrifit:plan-id:"
)

type Entry struct {
	PlanID string          `json:"plan_id,omitempty"`
	Kind   plan.Kind       `json:"kind"`
	Body   json.RawMessage `json:"body"`
}

type PlanCache struct {
	c      *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func New(c *redis.Client, ttl time.Duration, logger *zap.Logger) *PlanCache {
	return &PlanCache{c: c, ttl: ttl, logger: logger}
}

func (p *PlanCache) Ping(ctx context.Context) error {
	return p.c.Ping(ctx).Err()
}

// Request is everything that determines a generated plan.
type Request struct {
	UserID         string
	ReportID       string
	Kind           plan.Kind
	Days           int
	Profile        health.UserProfile
	Assessment     health.RiskAssessment
	CatalogVersion string
}

// Key fingerprints the inputs that influence synthesis. The summary text and
// raw metrics are left out since the synthesizer never reads them.
func Key(r Request) string {
	levels := make(map[health.Condition]string, len(r.Assessment.Conditions))
	for _, cr := range r.Assessment.Conditions {
		levels[cr.Condition] = cr.Level.String()
	}
	fp := struct {
		UserID       string                      `json:"u"`
		ReportID     string                      `json:"r"`
		Kind         plan.Kind                   `json:"k"`
		Days         int                         `json:"d"`
		Profile      health.UserProfile          `json:"p"`
		Levels       map[health.Condition]string `json:"l"`
		Deficiencies []string                    `json:"def"`
		Flags        health.AbnormalFlags        `json:"f"`
		Catalog      string                      `json:"c"`
	}{r.UserID, r.ReportID, r.Kind, r.Days, r.Profile, levels, r.Assessment.Deficiencies, r.Assessment.Flags, r.CatalogVersion}

	// encoding/json sorts map keys, so equal inputs hash equally.
	data, _ := json.Marshal(fp)
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (p *PlanCache) Get(ctx context.Context, key string) (*Entry, error) {
	val, err := p.c.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		p.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		p.c.Del(ctx, key)
		return nil, ErrMiss
	}
	return &e, nil
}

// Set stores e under key and, when e has a plan id, a reverse index so the
// entry can be dropped when that plan is deleted.
func (p *PlanCache) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	_, err = p.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, p.ttl)
		if e.PlanID != "" {
			pipe.Set(ctx, indexPrefix+e.PlanID, key, p.ttl)
		}
		return nil
	})
	return err
}

// ForgetPlan removes the cache entry that points at planID, if any.
func (p *PlanCache) ForgetPlan(ctx context.Context, planID string) error {
	key, err := p.c.Get(ctx, indexPrefix+planID).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return p.c.Del(ctx, key, indexPrefix+planID).Err()
}
