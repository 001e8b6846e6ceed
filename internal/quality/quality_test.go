package quality

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"slices"
	"testing"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/config"
)

type stubDetector struct {
	found      bool
	confidence float64
	calls      int
}

func (s *stubDetector) DetectFace(gray [][]float64) (bool, float64) {
	s.calls++
	return s.found, s.confidence
}

func testQualityConfig() config.QualityConfig {
	return config.Default().Quality
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func uniformImage(size int, intensity uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: intensity})
		}
	}
	return img
}

func checkerboardImage(size, block int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/block+y/block)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestAssessRejectsUndecodableInput(t *testing.T) {
	gate := NewGate(testQualityConfig(), &stubDetector{})

	_, err := gate.Assess([]byte("not an image"), biometric.ModalityFingerprint)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var invalid *biometric.InvalidImageError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidImageError, got %T", err)
	}
}

func TestAssessPassesStructuredCapture(t *testing.T) {
	gate := NewGate(testQualityConfig(), &stubDetector{})

	report, err := gate.Assess(encodePNG(t, checkerboardImage(64, 8)), biometric.ModalityFingerprint)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !report.Passed {
		t.Fatalf("expected pass, got failures: %v", report.FailedChecks)
	}
	if report.Measurements["variance"] < 100 {
		t.Fatalf("expected high variance measurement, got %f", report.Measurements["variance"])
	}
}

func TestAssessFailsBlankCapture(t *testing.T) {
	gate := NewGate(testQualityConfig(), &stubDetector{})

	report, err := gate.Assess(encodePNG(t, uniformImage(64, 128)), biometric.ModalityFingerprint)
	if err != nil {
		t.Fatalf("expected report, got error: %v", err)
	}
	if report.Passed {
		t.Fatal("expected blank capture to fail")
	}
	if !slices.Contains(report.FailedChecks, biometric.CheckVariance) {
		t.Fatalf("expected variance failure, got %v", report.FailedChecks)
	}
	if !slices.Contains(report.FailedChecks, biometric.CheckEdges) {
		t.Fatalf("expected edge density failure, got %v", report.FailedChecks)
	}
}

func TestAssessFailsUnderexposedCapture(t *testing.T) {
	gate := NewGate(testQualityConfig(), &stubDetector{})

	report, err := gate.Assess(encodePNG(t, uniformImage(64, 5)), biometric.ModalityFingerprint)
	if err != nil {
		t.Fatalf("expected report, got error: %v", err)
	}
	if !slices.Contains(report.FailedChecks, biometric.CheckBrightness) {
		t.Fatalf("expected brightness failure, got %v", report.FailedChecks)
	}
}

func TestAssessFailsTinyCapture(t *testing.T) {
	gate := NewGate(testQualityConfig(), &stubDetector{})

	report, err := gate.Assess(encodePNG(t, checkerboardImage(16, 2)), biometric.ModalityFingerprint)
	if err != nil {
		t.Fatalf("expected report, got error: %v", err)
	}
	if !slices.Contains(report.FailedChecks, biometric.CheckResolution) {
		t.Fatalf("expected resolution failure, got %v", report.FailedChecks)
	}
}

func TestFaceModalityRequiresDetectedFace(t *testing.T) {
	detector := &stubDetector{found: false}
	gate := NewGate(testQualityConfig(), detector)

	report, err := gate.Assess(encodePNG(t, checkerboardImage(64, 8)), biometric.ModalityFace)
	if err != nil {
		t.Fatalf("expected report, got error: %v", err)
	}
	if report.Passed {
		t.Fatal("expected failure without a detected face")
	}
	if !slices.Contains(report.FailedChecks, biometric.CheckFace) {
		t.Fatalf("expected face check failure, got %v", report.FailedChecks)
	}
	if detector.calls != 1 {
		t.Fatalf("expected one detector call, got %d", detector.calls)
	}
}

func TestNonFaceModalitySkipsDetector(t *testing.T) {
	detector := &stubDetector{found: false}
	gate := NewGate(testQualityConfig(), detector)

	if _, err := gate.Assess(encodePNG(t, checkerboardImage(64, 8)), biometric.ModalityPalmprint); err != nil {
		t.Fatalf("expected report, got error: %v", err)
	}
	if detector.calls != 0 {
		t.Fatalf("expected detector not to run, got %d calls", detector.calls)
	}
}

func TestGradientDetectorRejectsUniformFrame(t *testing.T) {
	detector := NewGradientFaceDetector()

	gray := grayscale(uniformImage(64, 128), measureSize)
	if found, _ := detector.DetectFace(gray); found {
		t.Fatal("expected no face in uniform frame")
	}
}

func TestGradientDetectorAcceptsCenteredStructure(t *testing.T) {
	// Flat background with a busy central region, the energy profile of a
	// centered frontal capture.
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	for y := 20; y < 44; y++ {
		for x := 20; x < 44; x++ {
			if (x/2+y/2)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			} else {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	detector := NewGradientFaceDetector()
	found, confidence := detector.DetectFace(grayscale(img, measureSize))
	if !found {
		t.Fatalf("expected face detection, confidence %f", confidence)
	}
	if confidence <= 0 {
		t.Fatalf("expected positive confidence, got %f", confidence)
	}
}
