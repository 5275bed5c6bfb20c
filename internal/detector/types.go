package detector

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/landmark"
)

// Point represents a 2D point in frame pixels
type Point struct {
	X, Y float32
}

// BoundingBox represents a face region in frame pixels
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Empty reports a box without area
func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Keypoints are the five coarse points a locator may return
type Keypoints struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	LeftMouth  Point
	RightMouth Point
}

// Face is one located face before landmark refinement
type Face struct {
	BoundingBox BoundingBox
	Keypoints   *Keypoints // nil when the locator has no keypoint head
	Score       float32
}

// Locator finds candidate face regions in a BGR frame
type Locator interface {
	Locate(img gocv.Mat) ([]Face, error)
	Close() error
}

// Mesher fits a landmark set inside a located face region
type Mesher interface {
	Fit(img gocv.Mat, region BoundingBox) (*landmark.Set, error)
	Close() error
}

// largest returns the face with the biggest box; only one face is tracked per frame
func largest(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.BoundingBox.Area() > best.BoundingBox.Area() {
			best = f
		}
	}
	return best, true
}

// regionFromSet turns a previous frame's landmarks into a tracking region
func regionFromSet(set *landmark.Set, width, height int) (BoundingBox, bool) {
	if set.Empty() {
		return BoundingBox{}, false
	}
	first := set.Points[0]
	minX, minY := first.X, first.Y
	maxX, maxY := first.X, first.Y
	for _, p := range set.Points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	box := BoundingBox{
		X1: clamp(float32(minX*float64(width)), 0, float32(width)),
		Y1: clamp(float32(minY*float64(height)), 0, float32(height)),
		X2: clamp(float32(maxX*float64(width)), 0, float32(width)),
		Y2: clamp(float32(maxY*float64(height)), 0, float32(height)),
	}
	return box, !box.Empty()
}
