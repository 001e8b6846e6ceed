package biometric

import "fmt"

// Modality identifies a biometric capture method.
type Modality string

const (
	ModalityFace        Modality = "face"
	ModalityFingerprint Modality = "fingerprint"
	ModalityPalmprint   Modality = "palmprint"
)

// Modalities lists every supported modality in a stable order.
func Modalities() []Modality {
	return []Modality{ModalityFace, ModalityFingerprint, ModalityPalmprint}
}

// ParseModality validates a wire-level modality string.
func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityFace, ModalityFingerprint, ModalityPalmprint:
		return Modality(s), nil
	}
	return "", fmt.Errorf("unknown modality %q", s)
}
