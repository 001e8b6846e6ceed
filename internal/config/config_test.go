package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/bioverify/internal/biometric"
)

func TestDefaultFaceThresholdsAreStrict(t *testing.T) {
	cfg := Default()

	face, err := cfg.Modality(biometric.ModalityFace)
	if err != nil {
		t.Fatalf("expected face config, got error: %v", err)
	}
	if face.Thresholds.Cosine != 0.95 {
		t.Fatalf("expected face cosine threshold 0.95, got %f", face.Thresholds.Cosine)
	}
	if face.Dimension != 2048 {
		t.Fatalf("expected face dimension 2048, got %d", face.Dimension)
	}
	if cfg.MinBiometricMethods != 2 {
		t.Fatalf("expected minimum methods 2, got %d", cfg.MinBiometricMethods)
	}
}

func TestOrderedThresholdsMatchEvaluationOrder(t *testing.T) {
	ordered := Default().Modalities[biometric.ModalityFace].Thresholds.Ordered()

	want := []string{biometric.MetricCosine, biometric.MetricEuclidean, biometric.MetricCorrelation}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d thresholds, got %d", len(want), len(ordered))
	}
	for i, name := range want {
		if ordered[i].Name != name {
			t.Fatalf("expected threshold %d to be %s, got %s", i, name, ordered[i].Name)
		}
	}
}

func TestThresholdFileOverridesOnlyNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	contents := `
modalities:
  face:
    thresholds:
      cosine_similarity: 0.99
      euclidean_similarity: 0.9
      correlation: 0.9
  fingerprint:
    dimension: 256
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write thresholds file: %v", err)
	}

	cfg := Default()
	if err := cfg.applyThresholdFile(path); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if got := cfg.Modalities[biometric.ModalityFace].Thresholds.Cosine; got != 0.99 {
		t.Fatalf("expected overridden cosine 0.99, got %f", got)
	}
	if got := cfg.Modalities[biometric.ModalityFace].Dimension; got != 2048 {
		t.Fatalf("expected face dimension untouched, got %d", got)
	}
	if got := cfg.Modalities[biometric.ModalityFingerprint].Dimension; got != 256 {
		t.Fatalf("expected fingerprint dimension 256, got %d", got)
	}
	if got := cfg.Modalities[biometric.ModalityFingerprint].Thresholds.Cosine; got != 0.93 {
		t.Fatalf("expected fingerprint thresholds untouched, got %f", got)
	}
}

func TestThresholdFileRejectsUnknownModality(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	if err := os.WriteFile(path, []byte("modalities:\n  retina:\n    dimension: 64\n"), 0o600); err != nil {
		t.Fatalf("failed to write thresholds file: %v", err)
	}

	if err := Default().applyThresholdFile(path); err == nil {
		t.Fatal("expected error for unknown modality, got nil")
	}
}

func TestLoadRejectsInvalidMinimumMethods(t *testing.T) {
	t.Setenv("MIN_BIOMETRIC_METHODS", "zero")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid MIN_BIOMETRIC_METHODS, got nil")
	}
}
