package biometric

import "fmt"

// InvalidImageError reports input that could not be decoded as an image.
// It short-circuits an attempt before any comparison runs.
type InvalidImageError struct {
	Err error
}

func (e *InvalidImageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid image: %v", e.Err)
}

func (e *InvalidImageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExtractionError reports a feature extractor failure. Attempts failing
// here are hard faults, not rejections.
type ExtractionError struct {
	Modality Modality
	Err      error
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("feature extraction failed for %s: %v", e.Modality, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DimensionMismatchError reports a stored template whose dimensionality no
// longer matches the extractor output. The caller should prompt
// re-enrollment rather than retry.
type DimensionMismatchError struct {
	Enrolled  int
	Candidate int
}

func (e *DimensionMismatchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("feature vector dimension mismatch: enrolled=%d candidate=%d", e.Enrolled, e.Candidate)
}

// MinimumMethodsError reports a template deletion that would leave the user
// with fewer active modalities than the configured floor.
type MinimumMethodsError struct {
	Active  int
	Minimum int
}

func (e *MinimumMethodsError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("deletion would leave %d active biometric methods, minimum is %d", e.Active-1, e.Minimum)
}
