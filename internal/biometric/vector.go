package biometric

// FeatureVector is the fixed-length embedding produced by the extractor for
// one capture. Vectors are only ever compared within a single modality and
// must never be mutated after extraction.
type FeatureVector []float32

// Dimension returns the vector length.
func (v FeatureVector) Dimension() int {
	return len(v)
}

// Clone returns an independent copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// MetricScore is one named similarity measurement from a comparison.
type MetricScore struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Metric names, in the order the policy evaluates them.
const (
	MetricCosine      = "cosine_similarity"
	MetricEuclidean   = "euclidean_similarity"
	MetricCorrelation = "correlation"
)
