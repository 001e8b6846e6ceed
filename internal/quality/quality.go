// Package quality validates captured biometric images before any feature
// comparison is attempted. The gate is a pure function of the image bytes
// and the configured floors.
package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/config"
)

// measureSize bounds the working resolution for intensity measurements.
// Larger captures are downscaled first so the floors stay comparable
// across camera resolutions.
const measureSize = 256

// gradientFloor is the minimum 8-bit intensity step counted as an edge.
const gradientFloor = 25.0

// Gate runs the pre-comparison quality checks.
type Gate struct {
	cfg      config.QualityConfig
	detector FaceDetector
}

// NewGate constructs a quality gate. A nil detector falls back to the
// gradient-projection heuristic.
func NewGate(cfg config.QualityConfig, detector FaceDetector) *Gate {
	if detector == nil {
		detector = NewGradientFaceDetector()
	}
	return &Gate{cfg: cfg, detector: detector}
}

// Assess decodes the capture and runs every configured check, reporting
// all failures at once. Undecodable input fails with InvalidImageError;
// everything else is encoded in the report.
func (g *Gate) Assess(imageBytes []byte, modality biometric.Modality) (*biometric.QualityReport, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, &biometric.InvalidImageError{Err: err}
	}

	report := &biometric.QualityReport{
		Passed:       true,
		Measurements: map[string]float64{},
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	report.Measurements["width"] = float64(width)
	report.Measurements["height"] = float64(height)
	if width < g.cfg.MinSidePx || height < g.cfg.MinSidePx {
		fail(report, biometric.CheckResolution)
	}

	gray := grayscale(img, measureSize)
	brightness := meanIntensity(gray)
	variance := intensityVariance(gray, brightness)
	edges := edgeDensity(gray)

	report.Measurements["brightness"] = brightness
	report.Measurements["variance"] = variance
	report.Measurements["edge_density"] = edges

	if variance < g.cfg.MinVariance {
		fail(report, biometric.CheckVariance)
	}
	if edges < g.cfg.MinEdgeDensity {
		fail(report, biometric.CheckEdges)
	}
	if brightness < g.cfg.MinBrightness || brightness > g.cfg.MaxBrightness {
		fail(report, biometric.CheckBrightness)
	}

	// A face capture without a detectable face region is rejected no
	// matter how the other measurements came out.
	if modality == biometric.ModalityFace {
		found, confidence := g.detector.DetectFace(gray)
		report.Measurements["face_confidence"] = confidence
		if !found {
			fail(report, biometric.CheckFace)
		}
	}

	return report, nil
}

func fail(report *biometric.QualityReport, check string) {
	report.Passed = false
	report.FailedChecks = append(report.FailedChecks, check)
}

// grayscale converts the image to an 8-bit luminance grid, downscaling
// so the longer side is at most maxSide.
func grayscale(img image.Image, maxSide int) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxSide || height > maxSide {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSide
			newHeight = max(1, height*maxSide/width)
		} else {
			newHeight = maxSide
			newWidth = max(1, width*maxSide/height)
		}
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
		bounds = resized.Bounds()
		width, height = newWidth, newHeight
	}

	gray := make([][]float64, height)
	for y := 0; y < height; y++ {
		row := make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma on 8-bit channels.
			row[x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
		gray[y] = row
	}
	return gray
}

func meanIntensity(gray [][]float64) float64 {
	var sum float64
	var count int
	for _, row := range gray {
		for _, v := range row {
			sum += v
		}
		count += len(row)
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func intensityVariance(gray [][]float64, mean float64) float64 {
	var sum float64
	var count int
	for _, row := range gray {
		for _, v := range row {
			d := v - mean
			sum += d * d
		}
		count += len(row)
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// edgeDensity is the fraction of interior pixels whose gradient magnitude
// exceeds gradientFloor. Blurred and non-structured captures score low.
func edgeDensity(gray [][]float64) float64 {
	height := len(gray)
	if height < 3 {
		return 0
	}
	width := len(gray[0])
	if width < 3 {
		return 0
	}

	var edges, total int
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			dx := gray[y][x+1] - gray[y][x-1]
			dy := gray[y+1][x] - gray[y-1][x]
			if math.Sqrt(dx*dx+dy*dy) >= gradientFloor {
				edges++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(edges) / float64(total)
}
