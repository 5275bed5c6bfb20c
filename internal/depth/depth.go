// Package depth approximates camera distance from the interpupillary pixel distance.
package depth

import (
	"fmt"
	"math"

	"github.com/dudu/facegaze/internal/landmark"
)

// Pinhole model constants. The focal length is approximated by the frame width.
const (
	RealIPDCm = 6.3
	MinDepth  = 30.0
	MaxDepth  = 200.0

	// heuristic adjustments, not physically derived
	EyeOffsetFactor = 0.20
	ChinRatioFactor = 0.10
)

// IPD reference points: position 8 of each eye contour
var (
	LeftIPDLandmark  = landmark.LeftEyeContour[8]
	RightIPDLandmark = landmark.RightEyeContour[8]
)

// Estimate holds depths in centimeters, rounded to two decimals
type Estimate struct {
	Face     float64 `json:"face"`
	LeftEye  float64 `json:"left_eye"`
	RightEye float64 `json:"right_eye"`
	Chin     float64 `json:"chin"`
}

// Compute estimates face, eye and chin depth for a width x height frame
func Compute(set *landmark.Set, width, height int) (Estimate, error) {
	ids := []int{LeftIPDLandmark, RightIPDLandmark, landmark.NoseTip, landmark.Chin}
	pts, err := set.Pixels(ids, width, height)
	if err != nil {
		return Estimate{}, fmt.Errorf("depth: %w", err)
	}
	left, right, nose, chin := pts[0], pts[1], pts[2], pts[3]

	base := BaseDepth(left.Dist(right), width)
	centerX := float64(width) / 2

	eyeDepth := func(p landmark.Point) float64 {
		offset := math.Abs(float64(p.X)-centerX) / float64(width)
		return base * (1 + EyeOffsetFactor*offset)
	}

	chinRatio := float64(chin.Y-nose.Y) / float64(height)

	return Estimate{
		Face:     round2(base),
		LeftEye:  round2(eyeDepth(left)),
		RightEye: round2(eyeDepth(right)),
		Chin:     round2(base * (1 + ChinRatioFactor*chinRatio)),
	}, nil
}

// BaseDepth is the clipped pinhole estimate for an interpupillary pixel distance
func BaseDepth(ipdPx float64, width int) float64 {
	d := float64(width) * RealIPDCm / math.Max(ipdPx, 1)
	return landmark.ClampFloat(d, MinDepth, MaxDepth)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
