package similarity

import (
	"math"

	"github.com/example/bioverify/internal/biometric"
)

// maxUnitDistance is the largest Euclidean distance between two
// L2-normalized vectors (antipodal unit vectors). The extractor contract
// guarantees unit-norm output, so distances are normalized against it.
const maxUnitDistance = 2.0

// Engine computes the configured similarity metrics between a candidate
// vector and an enrolled template. It is stateless and safe for concurrent
// use.
type Engine struct{}

// NewEngine constructs a similarity engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Compare computes every metric for the pair, in policy evaluation order.
// All metrics are computed even when an early one would already fail its
// threshold; the full breakdown is required for audit. A length mismatch
// returns DimensionMismatchError and no scores.
func (e *Engine) Compare(candidate, enrolled biometric.FeatureVector) ([]biometric.MetricScore, error) {
	if len(candidate) != len(enrolled) || len(candidate) == 0 {
		return nil, &biometric.DimensionMismatchError{
			Enrolled:  len(enrolled),
			Candidate: len(candidate),
		}
	}

	return []biometric.MetricScore{
		{Name: biometric.MetricCosine, Value: Cosine(candidate, enrolled)},
		{Name: biometric.MetricEuclidean, Value: EuclideanSimilarity(candidate, enrolled)},
		{Name: biometric.MetricCorrelation, Value: Pearson(candidate, enrolled)},
	}, nil
}

// Cosine computes cosine similarity in [-1, 1]. A zero-norm operand yields
// 0 rather than NaN; callers never see a panic from degenerate input.
func Cosine(a, b biometric.FeatureVector) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return clamp(dot/(math.Sqrt(normA)*math.Sqrt(normB)), -1, 1)
}

// EuclideanSimilarity converts Euclidean distance to a similarity in
// [0, 1]: sim = 1 - d/maxUnitDistance, clamped. Identical vectors score 1.
func EuclideanSimilarity(a, b biometric.FeatureVector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return clamp(1-math.Sqrt(sum)/maxUnitDistance, 0, 1)
}

// Pearson computes the Pearson correlation coefficient in [-1, 1].
// Constant vectors (zero variance) yield 0.
func Pearson(a, b biometric.FeatureVector) float64 {
	n := float64(len(a))

	var sumA, sumB float64
	for i := range a {
		sumA += float64(a[i])
		sumB += float64(b[i])
	}
	meanA := sumA / n
	meanB := sumB / n

	var cov, varA, varB float64
	for i := range a {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return clamp(cov/(math.Sqrt(varA)*math.Sqrt(varB)), -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
