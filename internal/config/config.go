package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skufu/nutrifit/internal/health"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	EnableDB    bool
	DatabaseURL string

	EnableCache  bool
	Redis        RedisConfig
	PlanCacheTTL time.Duration

	ExtractionURL     string
	ExtractionTimeout time.Duration

	ModelPaths  map[health.Condition]string
	CatalogPath string

	PlanDefaultDays  int
	PlanMaxDays      int
	PlanLookbackDays int
	MinDailyCalories int

	AnalysisTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var problems []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvAsInt(key, fallback)
		if err != nil {
			problems = append(problems, err.Error())
		}
		return v
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvAsDuration(key, fallback)
		if err != nil {
			problems = append(problems, err.Error())
		}
		return v
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		EnableDB:    getEnvAsBool("ENABLE_DB"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		EnableCache: getEnvAsBool("ENABLE_CACHE"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intVar("REDIS_DB", 0),
		},
		PlanCacheTTL: durationVar("PLAN_CACHE_TTL", 24*time.Hour),

		ExtractionURL:     os.Getenv("EXTRACTION_URL"),
		ExtractionTimeout: durationVar("EXTRACTION_TIMEOUT", 10*time.Second),

		ModelPaths:  map[health.Condition]string{},
		CatalogPath: os.Getenv("CATALOG_PATH"),

		PlanDefaultDays:  intVar("PLAN_DEFAULT_DAYS", 7),
		PlanMaxDays:      intVar("PLAN_MAX_DAYS", 30),
		PlanLookbackDays: intVar("PLAN_LOOKBACK_DAYS", 3),
		MinDailyCalories: intVar("MIN_DAILY_CALORIES", 1200),

		AnalysisTimeout: durationVar("ANALYSIS_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(intVar("MAX_BODY_BYTES", 1<<20)),
		AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
	}

	modelsDir := getEnv("MODELS_DIR", "models")
	for _, c := range health.Conditions {
		key := strings.ToUpper(string(c)) + "_MODEL_PATH"
		cfg.ModelPaths[c] = getEnv(key, filepath.Join(modelsDir, string(c)+".json"))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(problems, "; "))
	}
	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if cfg.PlanDefaultDays < 1 || cfg.PlanDefaultDays > cfg.PlanMaxDays {
		return nil, fmt.Errorf("PLAN_DEFAULT_DAYS must be within 1-PLAN_MAX_DAYS (%d)", cfg.PlanMaxDays)
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsBool(key string) bool {
	return strings.EqualFold(getEnv(key, "false"), "true")
}

func getEnvAsInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return n, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not a duration", key, val)
	}
	return d, nil
}

func getEnvAsSlice(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
