package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/nutrifit/internal/health"
)

// Model is an opaque trained classifier for one condition.
type Model interface {
	Score(m health.HealthMetrics) (float64, error)
	Source() string
}

var ErrModelUnavailable = errors.New("model unavailable")

// LogisticModel is the on-disk artifact format exported by the training side.
// Absent features are imputed with the training means.
type LogisticModel struct {
	Condition    health.Condition `json:"condition"`
	Version      string           `json:"version"`
	Features     []string         `json:"features"`
	Coefficients []float64        `json:"coefficients"`
	Intercept    float64          `json:"intercept"`
	Means        []float64        `json:"means"`
}

func (lm *LogisticModel) validate() error {
	if len(lm.Features) == 0 {
		return errors.New("no features")
	}
	if len(lm.Coefficients) != len(lm.Features) || len(lm.Means) != len(lm.Features) {
		return fmt.Errorf("expected %d coefficients and means, got %d and %d",
			len(lm.Features), len(lm.Coefficients), len(lm.Means))
	}
	for _, v := range append(append([]float64{lm.Intercept}, lm.Coefficients...), lm.Means...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non-finite parameter")
		}
	}
	return nil
}

func (lm *LogisticModel) Score(m health.HealthMetrics) (float64, error) {
	z := lm.Intercept
	for i, f := range lm.Features {
		x, ok := m.Value(f)
		if !ok {
			x = lm.Means[i]
		}
		z += lm.Coefficients[i] * x
	}
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("%s model produced NaN", lm.Condition)
	}
	return p, nil
}

func (lm *LogisticModel) Source() string {
	return fmt.Sprintf("%s-model@%s", lm.Condition, lm.Version)
}

// LoadModel reads and validates one artifact.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var lm LogisticModel
	if err := json.Unmarshal(data, &lm); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := lm.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &lm, nil
}

// Registry holds one model handle per condition. It is never mutated after
// construction and is safe for concurrent reads.
type Registry struct {
	models map[health.Condition]Model
}

func NewRegistry(models map[health.Condition]Model) *Registry {
	copied := make(map[health.Condition]Model, len(models))
	for c, m := range models {
		if m != nil {
			copied[c] = m
		}
	}
	return &Registry{models: copied}
}

// Model returns the handle for c, or ErrModelUnavailable.
func (r *Registry) Model(c health.Condition) (Model, error) {
	if r == nil {
		return nil, ErrModelUnavailable
	}
	m, ok := r.models[c]
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, ErrModelUnavailable)
	}
	return m, nil
}

// LoadModels loads every configured artifact concurrently. A failing artifact
// is logged and left out of the registry; it never fails the whole load.
func LoadModels(ctx context.Context, paths map[health.Condition]string, logger *zap.Logger) *Registry {
	loaded := make([]Model, len(health.Conditions))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range health.Conditions {
		path := paths[c]
		if path == "" {
			logger.Warn("no model path configured", zap.String("condition", string(c)))
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lm, err := LoadModel(path)
			if err != nil {
				logger.Warn("model artifact unavailable",
					zap.String("condition", string(c)),
					zap.String("path", path),
					zap.Error(err),
				)
				return nil
			}
			if lm.Condition != "" && lm.Condition != c {
				logger.Warn("model artifact condition mismatch",
					zap.String("condition", string(c)),
					zap.String("artifact_condition", string(lm.Condition)),
				)
				return nil
			}
			loaded[i] = lm
			logger.Info("model loaded", zap.String("condition", string(c)), zap.String("source", lm.Source()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("model loading interrupted", zap.Error(err))
	}

	models := map[health.Condition]Model{}
	for i, c := range health.Conditions {
		if loaded[i] != nil {
			models[c] = loaded[i]
		}
	}
	return NewRegistry(models)
}
