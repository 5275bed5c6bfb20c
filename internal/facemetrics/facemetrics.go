// Package facemetrics assembles pose, eye/iris and depth measurements into one per-frame record.
package facemetrics

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dudu/facegaze/internal/depth"
	"github.com/dudu/facegaze/internal/eye"
	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
	"github.com/dudu/facegaze/internal/pose"
)

// EyeCenters are the contour centroids of both eye sockets and the point between them
type EyeCenters struct {
	Left    landmark.Point `json:"left"`
	Right   landmark.Point `json:"right"`
	Between landmark.Point `json:"between"`
}

// NamedLandmarks are the individually exported landmark pixels
type NamedLandmarks struct {
	Nose       landmark.Point `json:"nose"`
	Chin       landmark.Point `json:"chin"`
	MouthLeft  landmark.Point `json:"mouth_left"`
	MouthRight landmark.Point `json:"mouth_right"`
	LeftCheek  landmark.Point `json:"left_cheek"`
	RightCheek landmark.Point `json:"right_cheek"`
}

// FaceMetrics is the immutable measurement record for one frame.
// Every box is populated; a frame that cannot fill them yields no record.
type FaceMetrics struct {
	FrameWidth  int `json:"frame_width"`
	FrameHeight int `json:"frame_height"`

	FaceBox      landmark.Box `json:"face_box"`
	LeftEyeBox   landmark.Box `json:"left_eye_box"`
	RightEyeBox  landmark.Box `json:"right_eye_box"`
	LeftIrisBox  landmark.Box `json:"left_iris_box"`
	RightIrisBox landmark.Box `json:"right_iris_box"`

	LeftIris   eye.IrisCenter `json:"left_iris"`
	RightIris  eye.IrisCenter `json:"right_iris"`
	EyeCenters EyeCenters     `json:"eye_centers"`

	Landmarks NamedLandmarks `json:"landmarks"`

	LeftEye  eye.State `json:"left_eye"`
	RightEye eye.State `json:"right_eye"`

	Depth depth.Estimate `json:"depth"`

	// Pose is nil unless requested
	Pose *pose.Angles `json:"pose,omitempty"`
}

// Options selects optional parts of the record
type Options struct {
	Pose bool
}

// Aggregator computes FaceMetrics and logs degraded frames
type Aggregator struct {
	log logrus.FieldLogger
}

// New creates an aggregator logging to log
func New(log logrus.FieldLogger) *Aggregator {
	return &Aggregator{log: log}
}

// Compute builds the record for one landmark set. An empty set returns
// ErrNoFaceDetected, a non-positive frame size ErrInvalidFrame; a malformed
// set returns the sub-computation error and no record.
func (a *Aggregator) Compute(set *landmark.Set, width, height int, opts Options) (*FaceMetrics, error) {
	if set.Empty() {
		return nil, facerr.ErrNoFaceDetected
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("face metrics for %dx%d frame: %w", width, height, facerr.ErrInvalidFrame)
	}

	m, err := compute(set, width, height, opts)
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"landmarks": set.Len(),
			"width":     width,
			"height":    height,
		}).WithError(err).Warn("face metrics unavailable for frame")
		return nil, err
	}
	return m, nil
}

func compute(set *landmark.Set, width, height int, opts Options) (*FaceMetrics, error) {
	faceBox, err := landmark.FaceBoundingBox(set, width, height)
	if err != nil {
		return nil, err
	}

	left, err := eye.Analyze(set, eye.Left, width, height)
	if err != nil {
		return nil, err
	}
	right, err := eye.Analyze(set, eye.Right, width, height)
	if err != nil {
		return nil, err
	}

	named, err := namedLandmarks(set, width, height)
	if err != nil {
		return nil, err
	}

	d, err := depth.Compute(set, width, height)
	if err != nil {
		return nil, err
	}

	var angles *pose.Angles
	if opts.Pose {
		p, err := pose.Estimate(set)
		if err != nil {
			return nil, err
		}
		angles = &p
	}

	ls, rs, between := eye.Centers(left, right)

	return &FaceMetrics{
		FrameWidth:   width,
		FrameHeight:  height,
		FaceBox:      faceBox,
		LeftEyeBox:   left.EyeBox,
		RightEyeBox:  right.EyeBox,
		LeftIrisBox:  left.IrisBox,
		RightIrisBox: right.IrisBox,
		LeftIris:     left.Center,
		RightIris:    right.Center,
		EyeCenters:   EyeCenters{Left: ls, Right: rs, Between: between},
		Landmarks:    named,
		LeftEye:      left.State,
		RightEye:     right.State,
		Depth:        d,
		Pose:         angles,
	}, nil
}

func namedLandmarks(set *landmark.Set, width, height int) (NamedLandmarks, error) {
	pts, err := set.Pixels([]int{
		landmark.NoseTip, landmark.Chin,
		landmark.MouthLeft, landmark.MouthRight,
		landmark.LeftCheek, landmark.RightCheek,
	}, width, height)
	if err != nil {
		return NamedLandmarks{}, fmt.Errorf("named landmarks: %w", err)
	}
	return NamedLandmarks{
		Nose:       pts[0],
		Chin:       pts[1],
		MouthLeft:  pts[2],
		MouthRight: pts[3],
		LeftCheek:  pts[4],
		RightCheek: pts[5],
	}, nil
}
