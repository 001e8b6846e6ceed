package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/example/bioverify/internal/biometric"
)

// Thresholds holds the per-metric acceptance floors for one modality.
// Acceptance is conjunctive: every metric must meet its floor.
type Thresholds struct {
	Cosine      float64 `yaml:"cosine_similarity"`
	Euclidean   float64 `yaml:"euclidean_similarity"`
	Correlation float64 `yaml:"correlation"`
}

// Ordered returns the thresholds in policy evaluation order.
func (t Thresholds) Ordered() []biometric.MetricScore {
	return []biometric.MetricScore{
		{Name: biometric.MetricCosine, Value: t.Cosine},
		{Name: biometric.MetricEuclidean, Value: t.Euclidean},
		{Name: biometric.MetricCorrelation, Value: t.Correlation},
	}
}

// ModalityConfig fixes the extractor dimensionality and acceptance
// thresholds for one modality.
type ModalityConfig struct {
	Dimension  int        `yaml:"dimension"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// QualityConfig holds the quality gate floors, shared by all modalities.
type QualityConfig struct {
	MinSidePx      int     `yaml:"min_side_px"`
	MinVariance    float64 `yaml:"min_variance"`
	MinEdgeDensity float64 `yaml:"min_edge_density"`
	MinBrightness  float64 `yaml:"min_brightness"`
	MaxBrightness  float64 `yaml:"max_brightness"`
}

// Config is the full service configuration, resolved once at startup and
// passed explicitly. Decisions never read ambient state.
type Config struct {
	HTTPAddr     string
	DatabaseDSN  string
	RedisAddr    string
	ExtractorURL string
	JWTSecret    string
	JWTAudience  string

	MinBiometricMethods int
	Quality             QualityConfig
	Modalities          map[biometric.Modality]ModalityConfig
}

// Default returns the strict baseline configuration. The face thresholds
// intentionally reject anything short of a near-exact embedding match.
func Default() *Config {
	return &Config{
		HTTPAddr:            ":8080",
		DatabaseDSN:         "host=postgres user=postgres password=postgres dbname=bioverify port=5432 sslmode=disable",
		RedisAddr:           "redis:6379",
		ExtractorURL:        "http://extractor:9090",
		JWTSecret:           "dev-secret",
		MinBiometricMethods: 2,
		Quality: QualityConfig{
			MinSidePx:      32,
			MinVariance:    100.0,
			MinEdgeDensity: 0.02,
			MinBrightness:  30.0,
			MaxBrightness:  225.0,
		},
		Modalities: map[biometric.Modality]ModalityConfig{
			biometric.ModalityFace: {
				Dimension:  2048,
				Thresholds: Thresholds{Cosine: 0.95, Euclidean: 0.85, Correlation: 0.85},
			},
			biometric.ModalityFingerprint: {
				Dimension:  512,
				Thresholds: Thresholds{Cosine: 0.93, Euclidean: 0.85, Correlation: 0.85},
			},
			biometric.ModalityPalmprint: {
				Dimension:  512,
				Thresholds: Thresholds{Cosine: 0.93, Euclidean: 0.85, Correlation: 0.85},
			},
		},
	}
}

// Load resolves the configuration from defaults, the optional thresholds
// file named by THRESHOLDS_FILE, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("THRESHOLDS_FILE"); path != "" {
		if err := cfg.applyThresholdFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.ExtractorURL = getEnv("EXTRACTOR_URL", cfg.ExtractorURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTAudience = getEnv("JWT_AUDIENCE", cfg.JWTAudience)

	if raw := os.Getenv("MIN_BIOMETRIC_METHODS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid MIN_BIOMETRIC_METHODS %q", raw)
		}
		cfg.MinBiometricMethods = n
	}

	return cfg, nil
}

// thresholdFile is the YAML shape of the optional override file. Only the
// modalities present in the file are touched.
type thresholdFile struct {
	Quality    *QualityConfig                      `yaml:"quality"`
	Modalities map[string]partialModalityOverrides `yaml:"modalities"`
}

type partialModalityOverrides struct {
	Dimension  *int        `yaml:"dimension"`
	Thresholds *Thresholds `yaml:"thresholds"`
}

func (c *Config) applyThresholdFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read thresholds file: %w", err)
	}

	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse thresholds file: %w", err)
	}

	if file.Quality != nil {
		c.Quality = *file.Quality
	}

	for name, overrides := range file.Modalities {
		modality, err := biometric.ParseModality(name)
		if err != nil {
			return fmt.Errorf("thresholds file: %w", err)
		}
		mc := c.Modalities[modality]
		if overrides.Dimension != nil {
			mc.Dimension = *overrides.Dimension
		}
		if overrides.Thresholds != nil {
			mc.Thresholds = *overrides.Thresholds
		}
		c.Modalities[modality] = mc
	}

	return nil
}

// Modality returns the configuration for a modality.
func (c *Config) Modality(m biometric.Modality) (ModalityConfig, error) {
	mc, ok := c.Modalities[m]
	if !ok {
		return ModalityConfig{}, fmt.Errorf("modality %s is not configured", m)
	}
	return mc, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
