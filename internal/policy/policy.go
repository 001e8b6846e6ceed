// Package policy renders the accept/reject decision for one verification
// attempt. Acceptance is conjunctive: every configured metric must meet
// its threshold, with no majority or weighted fallback.
package policy

import (
	"fmt"
	"time"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/config"
)

// Decide evaluates one attempt against a threshold snapshot. The quality
// report is checked first; a quality failure rejects before any metric is
// considered. Metrics are evaluated in threshold-table order and every
// failing metric is named in the result.
func Decide(scores []biometric.MetricScore, modality biometric.Modality, thresholds config.Thresholds, quality *biometric.QualityReport) (*biometric.VerificationResult, error) {
	result := &biometric.VerificationResult{
		Modality:  modality,
		Quality:   quality,
		Timestamp: time.Now().UTC(),
	}

	if quality == nil || !quality.Passed {
		result.Reason = biometric.ReasonQualityFailure
		return result, nil
	}

	result.Scores = scores

	for _, threshold := range thresholds.Ordered() {
		value, ok := findScore(scores, threshold.Name)
		if !ok {
			return nil, fmt.Errorf("missing score for configured metric %s", threshold.Name)
		}
		if value < threshold.Value {
			result.FailedMetrics = append(result.FailedMetrics, threshold.Name)
		}
	}

	if len(result.FailedMetrics) > 0 {
		result.Reason = biometric.ReasonThresholdFailure
		return result, nil
	}

	result.Accepted = true
	return result, nil
}

// Rejected builds a result for attempts that never reach metric
// evaluation: quality failures surfaced by the caller, missing templates,
// and dimension mismatches.
func Rejected(modality biometric.Modality, reason string, quality *biometric.QualityReport) *biometric.VerificationResult {
	return &biometric.VerificationResult{
		Modality:  modality,
		Quality:   quality,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func findScore(scores []biometric.MetricScore, name string) (float64, bool) {
	for _, s := range scores {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}
