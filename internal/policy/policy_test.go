package policy

import (
	"testing"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/config"
)

func passingQuality() *biometric.QualityReport {
	return &biometric.QualityReport{Passed: true}
}

func faceThresholds() config.Thresholds {
	return config.Default().Modalities[biometric.ModalityFace].Thresholds
}

func perfectScores() []biometric.MetricScore {
	return []biometric.MetricScore{
		{Name: biometric.MetricCosine, Value: 1.0},
		{Name: biometric.MetricEuclidean, Value: 1.0},
		{Name: biometric.MetricCorrelation, Value: 1.0},
	}
}

func TestDecideAcceptsPerfectMatch(t *testing.T) {
	result, err := Decide(perfectScores(), biometric.ModalityFace, faceThresholds(), passingQuality())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected acceptance, got reason %s", result.Reason)
	}
	if result.Reason != "" {
		t.Fatalf("expected empty reason on acceptance, got %s", result.Reason)
	}
	if len(result.Scores) != 3 {
		t.Fatalf("expected full score breakdown, got %d scores", len(result.Scores))
	}
}

func TestDecideRejectsOnSingleFailingMetric(t *testing.T) {
	scores := perfectScores()
	scores[0].Value = 0.949 // just under the 0.95 cosine floor

	result, err := Decide(scores, biometric.ModalityFace, faceThresholds(), passingQuality())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejection with one metric below threshold")
	}
	if result.Reason != biometric.ReasonThresholdFailure {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
	if len(result.FailedMetrics) != 1 || result.FailedMetrics[0] != biometric.MetricCosine {
		t.Fatalf("expected only cosine named, got %v", result.FailedMetrics)
	}
}

func TestDecideNamesAllFailingMetricsInOrder(t *testing.T) {
	scores := []biometric.MetricScore{
		{Name: biometric.MetricCosine, Value: 0.5},
		{Name: biometric.MetricEuclidean, Value: 0.99},
		{Name: biometric.MetricCorrelation, Value: 0.5},
	}

	result, err := Decide(scores, biometric.ModalityFace, faceThresholds(), passingQuality())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.FailedMetrics) != 2 {
		t.Fatalf("expected two failed metrics, got %v", result.FailedMetrics)
	}
	if result.FailedMetrics[0] != biometric.MetricCosine || result.FailedMetrics[1] != biometric.MetricCorrelation {
		t.Fatalf("expected table order, got %v", result.FailedMetrics)
	}
}

func TestDecideQualityFailureShortCircuits(t *testing.T) {
	quality := &biometric.QualityReport{
		Passed:       false,
		FailedChecks: []string{biometric.CheckVariance},
	}

	result, err := Decide(perfectScores(), biometric.ModalityFace, faceThresholds(), quality)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result.Accepted {
		t.Fatal("expected rejection on quality failure")
	}
	if result.Reason != biometric.ReasonQualityFailure {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
	if len(result.Scores) != 0 {
		t.Fatal("expected no scores on a quality-rejected attempt")
	}
}

func TestDecideFailsOnMissingMetric(t *testing.T) {
	scores := perfectScores()[:2]

	if _, err := Decide(scores, biometric.ModalityFace, faceThresholds(), passingQuality()); err == nil {
		t.Fatal("expected error for missing configured metric, got nil")
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	scores := perfectScores()
	scores[0].Value = 0.96

	lenient := faceThresholds()
	strict := lenient
	strict.Cosine = 0.97

	accepted, err := Decide(scores, biometric.ModalityFace, lenient, passingQuality())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	rejected, err := Decide(scores, biometric.ModalityFace, strict, passingQuality())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if !accepted.Accepted {
		t.Fatal("expected acceptance under the lenient table")
	}
	if rejected.Accepted {
		t.Fatal("raising a threshold must never turn a rejection into an acceptance")
	}
}

func TestRejectedBuildsDistinctReasons(t *testing.T) {
	result := Rejected(biometric.ModalityFace, biometric.ReasonNoEnrolledTemplate, passingQuality())
	if result.Accepted {
		t.Fatal("expected rejection")
	}
	if result.Reason != biometric.ReasonNoEnrolledTemplate {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
}
