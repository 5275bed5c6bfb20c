package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/landmark"
)

// Detector produces one landmark set per frame. An empty set means no face.
type Detector interface {
	Detect(img gocv.Mat) (*landmark.Set, error)
	DetectForVideo(img gocv.Mat, timestampMs int64) (*landmark.Set, error)
	Close() error
}

// Enhancer super-resolves a region by a fixed factor
type Enhancer interface {
	Enhance(region gocv.Mat) (gocv.Mat, error)
	Scale() int
	Close() error
}

// Observer is told about every finished frame
type Observer interface {
	FrameDone(r *Result)
}
