// Package extractor integrates the external feature extraction service.
// The model is opaque to this service: the contract is a deterministic,
// fixed-dimensionality vector per (image, modality) or an ExtractionError.
package extractor

import (
	"context"

	"github.com/example/bioverify/internal/biometric"
)

// Client exposes the subset of extractor functionality used by the
// enrollment and verification flows.
type Client interface {
	// Extract produces the feature vector for one capture. The returned
	// vector is L2-normalized and its length is fixed per modality.
	Extract(ctx context.Context, imageBytes []byte, modality biometric.Modality) (biometric.FeatureVector, error)

	// HealthCheck verifies the extractor service is reachable.
	HealthCheck(ctx context.Context) error
}
