package biometric

import "time"

// QualityReport captures the outcome of pre-comparison image validation.
// It is attached to the attempt result and never persisted on its own.
type QualityReport struct {
	Passed       bool               `json:"passed"`
	FailedChecks []string           `json:"failed_checks,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
}

// Quality check names reported in QualityReport.FailedChecks.
const (
	CheckResolution = "resolution_below_minimum"
	CheckVariance   = "insufficient_variance"
	CheckEdges      = "low_edge_density"
	CheckBrightness = "brightness_out_of_range"
	CheckFace       = "no_face_detected"
)

// Rejection reasons, in precedence order. An accepted result carries an
// empty reason.
const (
	ReasonInvalidImage       = "invalid_image"
	ReasonQualityFailure     = "quality_failure"
	ReasonExtractionError    = "extraction_error"
	ReasonNoEnrolledTemplate = "no_enrolled_template"
	ReasonDimensionMismatch  = "dimension_mismatch"
	ReasonThresholdFailure   = "threshold_failure"
)

// VerificationResult is the full decision for one verification attempt:
// the boolean outcome plus everything audit needs to reconstruct it.
type VerificationResult struct {
	Accepted      bool           `json:"accepted"`
	Modality      Modality       `json:"modality"`
	Scores        []MetricScore  `json:"scores,omitempty"`
	Quality       *QualityReport `json:"quality,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	FailedMetrics []string       `json:"failed_metrics,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Score returns the value for a named metric and whether it was computed.
func (r *VerificationResult) Score(name string) (float64, bool) {
	for _, s := range r.Scores {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}
