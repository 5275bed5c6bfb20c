// Package eye measures eye and iris geometry and classifies eye openness.
package eye

import (
	"fmt"

	"github.com/dudu/facegaze/internal/landmark"
)

// Eye aspect ratio thresholds. Empirically tuned.
const (
	ClosedThreshold    = 0.215
	SquintingThreshold = 0.24

	// RightEyeOffset corrects a camera/landmark bias seen on the right eye only
	RightEyeOffset = -0.016

	// PupilVisibilityMin gates iris refinement by the pupil landmark
	PupilVisibilityMin = 0.5
)

// Box paddings in pixels; the eye paddings are asymmetric on purpose.
const (
	LeftEyePadding  = 8
	RightEyePadding = 6
	IrisPadding     = 2
)

// Contour positions used by the eye aspect ratio
const (
	earH1 = 0
	earV1 = 4
	earV2 = 5
	earH2 = 8
	earV3 = 11
	earV4 = 12
)

// Label is the eye openness class
type Label string

const (
	Open      Label = "Open"
	Squinting Label = "Squinting"
	Closed    Label = "Closed"
)

// State pairs a label with the ratio that produced it. Ratio is the value
// compared to the thresholds: EAR plus the side offset, so it differs from
// EAR for the right eye only.
type State struct {
	Label Label   `json:"label"`
	Ratio float64 `json:"ratio"`
	EAR   float64 `json:"ear"`
}

// Side selects which eye is measured
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// indices returns the landmark indices and constants for a side
func (s Side) indices() sideIndices {
	if s == Left {
		return sideIndices{
			contour: landmark.LeftEyeContour,
			iris:    landmark.LeftIris,
			pupil:   landmark.LeftPupil,
			padding: LeftEyePadding,
		}
	}
	return sideIndices{
		contour: landmark.RightEyeContour,
		iris:    landmark.RightIris,
		pupil:   landmark.RightPupil,
		padding: RightEyePadding,
		offset:  RightEyeOffset,
	}
}

type sideIndices struct {
	contour []int
	iris    []int
	pupil   int
	padding int
	offset  float64
}

// IrisCenter holds the three stages of iris localization
type IrisCenter struct {
	Raw         landmark.Point `json:"raw"`
	Refined     landmark.Point `json:"refined"`
	Constrained landmark.Point `json:"constrained"`
}

// Measurement is everything derived for one eye
type Measurement struct {
	Side    Side
	Contour []landmark.Point
	Iris    []landmark.Point
	Center  IrisCenter
	EyeBox  landmark.Box
	IrisBox landmark.Box
	State   State
	// Socket is the centroid of the full contour, distinct from the iris center
	Socket landmark.Point
}

// Analyze measures one eye in a width x height frame
func Analyze(set *landmark.Set, side Side, width, height int) (*Measurement, error) {
	idx := side.indices()

	contour, err := set.Pixels(idx.contour, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s eye contour: %w", side, err)
	}
	iris, err := set.Pixels(idx.iris, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s iris: %w", side, err)
	}
	pupil, err := set.At(idx.pupil)
	if err != nil {
		return nil, fmt.Errorf("%s pupil: %w", side, err)
	}

	raw, err := landmark.Centroid(iris)
	if err != nil {
		return nil, fmt.Errorf("%s iris center: %w", side, err)
	}
	refined := Refine(raw, pupil, width, height)

	eyeBox, err := landmark.BoundingBox(contour, width, height, idx.padding)
	if err != nil {
		return nil, fmt.Errorf("%s eye box: %w", side, err)
	}
	irisBox, err := landmark.BoundingBox(iris, width, height, IrisPadding)
	if err != nil {
		return nil, fmt.Errorf("%s iris box: %w", side, err)
	}
	constrained, err := Constrain(refined, contour, width, height)
	if err != nil {
		return nil, fmt.Errorf("%s iris constraint: %w", side, err)
	}
	socket, err := landmark.Centroid(contour)
	if err != nil {
		return nil, fmt.Errorf("%s eye socket: %w", side, err)
	}

	ear := AspectRatio(contour)
	state := Classify(ear + idx.offset)
	state.EAR = ear

	return &Measurement{
		Side:    side,
		Contour: contour,
		Iris:    iris,
		Center: IrisCenter{
			Raw:         raw,
			Refined:     refined,
			Constrained: constrained,
		},
		EyeBox:  eyeBox,
		IrisBox: irisBox,
		State:   state,
		Socket:  socket,
	}, nil
}

// Refine averages the raw iris center with the pupil landmark when the pupil is visible enough
func Refine(raw landmark.Point, pupil landmark.Landmark, width, height int) landmark.Point {
	if pupil.Visible() <= PupilVisibilityMin {
		return raw
	}
	return landmark.Midpoint(raw, landmark.ToPixel(pupil, width, height))
}

// Constrain clamps a center into the contour extent and the frame, per axis
func Constrain(center landmark.Point, contour []landmark.Point, width, height int) (landmark.Point, error) {
	ext, err := landmark.Extent(contour)
	if err != nil {
		return landmark.Point{}, err
	}
	x := landmark.ClampInt(center.X, ext.Min.X, ext.Max.X)
	y := landmark.ClampInt(center.Y, ext.Min.Y, ext.Max.Y)
	return landmark.Point{
		X: landmark.ClampInt(x, 0, width),
		Y: landmark.ClampInt(y, 0, height),
	}, nil
}

// AspectRatio computes the EAR over an 18-point contour; 0 when the eye has no width
func AspectRatio(contour []landmark.Point) float64 {
	if len(contour) <= earV4 {
		return 0
	}
	h := contour[earH1].Dist(contour[earH2])
	if h == 0 {
		return 0
	}
	v1 := contour[earV1].Dist(contour[earV4])
	v2 := contour[earV2].Dist(contour[earV3])
	return (v1 + v2) / (2 * h)
}

// Classify maps an aspect ratio to an openness label
func Classify(ratio float64) State {
	switch {
	case ratio < ClosedThreshold:
		return State{Label: Closed, Ratio: ratio}
	case ratio < SquintingThreshold:
		return State{Label: Squinting, Ratio: ratio}
	default:
		return State{Label: Open, Ratio: ratio}
	}
}

// Centers returns the left socket, right socket and the point between them
func Centers(left, right *Measurement) (landmark.Point, landmark.Point, landmark.Point) {
	return left.Socket, right.Socket, landmark.Midpoint(left.Socket, right.Socket)
}
