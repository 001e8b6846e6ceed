package quality

// FaceDetector locates a face region in a luminance grid. Deployments can
// inject a CV-backed detector; the default is a lightweight heuristic that
// gates obviously faceless captures.
type FaceDetector interface {
	// DetectFace reports whether a face region is present and a
	// confidence in [0, 1].
	DetectFace(gray [][]float64) (bool, float64)
}

// GradientFaceDetector is the default heuristic: a frontal face capture
// concentrates gradient energy and intensity variation in the central
// region of the frame. It measures the central share of gradient energy
// and accepts when the center is meaningfully busier than the border.
type GradientFaceDetector struct {
	// MinCentralShare is the minimum fraction of total gradient energy
	// falling in the central half of the frame. The central half covers
	// 25% of the area, so a uniform texture scores ~0.25.
	MinCentralShare float64

	// MinCentralEnergy is the minimum mean gradient energy inside the
	// central region, rejecting flat frames regardless of share.
	MinCentralEnergy float64
}

// NewGradientFaceDetector returns the detector with its tuned defaults.
func NewGradientFaceDetector() *GradientFaceDetector {
	return &GradientFaceDetector{
		MinCentralShare:  0.35,
		MinCentralEnergy: 40.0,
	}
}

// DetectFace implements FaceDetector.
func (d *GradientFaceDetector) DetectFace(gray [][]float64) (bool, float64) {
	height := len(gray)
	if height < 8 {
		return false, 0
	}
	width := len(gray[0])
	if width < 8 {
		return false, 0
	}

	x0, x1 := width/4, 3*width/4
	y0, y1 := height/4, 3*height/4

	var total, central float64
	var centralCount int
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			dx := gray[y][x+1] - gray[y][x-1]
			dy := gray[y+1][x] - gray[y-1][x]
			energy := dx*dx + dy*dy
			total += energy
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				central += energy
				centralCount++
			}
		}
	}

	if total == 0 || centralCount == 0 {
		return false, 0
	}

	share := central / total
	meanCentral := central / float64(centralCount)

	confidence := share
	if confidence > 1 {
		confidence = 1
	}
	return share >= d.MinCentralShare && meanCentral >= d.MinCentralEnergy, confidence
}
