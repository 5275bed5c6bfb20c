// Package facerr holds the per-frame failure taxonomy shared by the face-metrics packages.
package facerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFaceDetected means the detector returned no face for the frame.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMissingLandmark means a required landmark index is absent from a non-empty set.
	ErrMissingLandmark = errors.New("missing landmark")

	// ErrTimestampRegression means a video-mode timestamp did not strictly increase.
	ErrTimestampRegression = errors.New("timestamp regression")

	// ErrEnhancementFailure means the enhancer could not process the face crop.
	ErrEnhancementFailure = errors.New("enhancement failure")

	// ErrEmptyPoints means a bounding box was requested over zero points.
	ErrEmptyPoints = errors.New("empty point set")

	// ErrInvalidFrame means the frame dimensions cannot hold a projection.
	ErrInvalidFrame = errors.New("invalid frame size")
)

// MissingLandmarkError reports which index was requested and how many landmarks were available.
type MissingLandmarkError struct {
	Index int
	Len   int
}

func (e *MissingLandmarkError) Error() string {
	return fmt.Sprintf("missing landmark: index %d out of range for %d landmarks", e.Index, e.Len)
}

// Is lets errors.Is match ErrMissingLandmark.
func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}

// MalformedLandmarkError reports a landmark with a non-finite coordinate.
// It counts as missing: the landmark cannot be used.
type MalformedLandmarkError struct {
	Index int
}

func (e *MalformedLandmarkError) Error() string {
	return fmt.Sprintf("malformed landmark: index %d has non-finite coordinates", e.Index)
}

func (e *MalformedLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}

// TimestampRegressionError carries the rejected and the last accepted timestamp.
type TimestampRegressionError struct {
	Timestamp int64
	Last      int64
}

func (e *TimestampRegressionError) Error() string {
	return fmt.Sprintf("timestamp regression: %dms is not after %dms", e.Timestamp, e.Last)
}

func (e *TimestampRegressionError) Is(target error) bool {
	return target == ErrTimestampRegression
}
