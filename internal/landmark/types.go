package landmark

import (
	"math"

	"github.com/dudu/facegaze/internal/facerr"
)

// Landmark is one detector point in normalized image coordinates
type Landmark struct {
	X, Y, Z float64

	// Visibility is only meaningful when HasVisibility is set
	Visibility    float64
	HasVisibility bool
}

// Visible returns the visibility score, treating a detector without scores as fully visible
func (l Landmark) Visible() float64 {
	if !l.HasVisibility {
		return 1.0
	}
	return l.Visibility
}

// Finite reports whether every coordinate is a real number
func (l Landmark) Finite() bool {
	return finite(l.X) && finite(l.Y) && finite(l.Z)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Vec returns the landmark as a 3D vector
func (l Landmark) Vec() Vec3 {
	return Vec3{X: l.X, Y: l.Y, Z: l.Z}
}

// Set is the ordered landmark list produced for one face in one frame
type Set struct {
	Points []Landmark
}

// NewSet wraps a landmark slice
func NewSet(points []Landmark) *Set {
	return &Set{Points: points}
}

// Len returns the number of landmarks
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Empty reports whether the detector found no face
func (s *Set) Empty() bool {
	return s.Len() == 0
}

// At returns the landmark at idx, a MissingLandmarkError when idx is out of
// range, or a MalformedLandmarkError when a coordinate is NaN or infinite
func (s *Set) At(idx int) (Landmark, error) {
	if idx < 0 || idx >= s.Len() {
		return Landmark{}, &facerr.MissingLandmarkError{Index: idx, Len: s.Len()}
	}
	l := s.Points[idx]
	if !l.Finite() {
		return Landmark{}, &facerr.MalformedLandmarkError{Index: idx}
	}
	return l, nil
}

// Pixel projects the landmark at idx into a width x height frame
func (s *Set) Pixel(idx, width, height int) (Point, error) {
	l, err := s.At(idx)
	if err != nil {
		return Point{}, err
	}
	return ToPixel(l, width, height), nil
}

// Pixels projects every landmark named by indices, failing on the first missing one
func (s *Set) Pixels(indices []int, width, height int) ([]Point, error) {
	points := make([]Point, len(indices))
	for i, idx := range indices {
		p, err := s.Pixel(idx, width, height)
		if err != nil {
			return nil, err
		}
		points[i] = p
	}
	return points, nil
}

// Point is a pixel-space position
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dist returns the euclidean distance between two pixel points
func (p Point) Dist(q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Box is a pixel bounding box; Min <= Max on both axes
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Width returns box width
func (b Box) Width() int {
	return b.Max.X - b.Min.X
}

// Height returns box height
func (b Box) Height() int {
	return b.Max.Y - b.Min.Y
}

// Center returns box center point
func (b Box) Center() Point {
	return Midpoint(b.Min, b.Max)
}

// Empty reports a zero-area box
func (b Box) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Contains reports whether p lies inside the box, edges included
func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Vec3 is a 3D vector in normalized landmark space
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func (a Vec3) Scale(f float64) Vec3 {
	return Vec3{X: a.X * f, Y: a.Y * f, Z: a.Z * f}
}

// Cross returns a x b
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Norm returns the euclidean length
func (a Vec3) Norm() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// Normalize returns the unit vector; the zero vector stays zero
func (a Vec3) Normalize() Vec3 {
	n := a.Norm()
	if n == 0 {
		return Vec3{}
	}
	return a.Scale(1 / n)
}

// Mid returns the midpoint of a and b
func (a Vec3) Mid(b Vec3) Vec3 {
	return a.Add(b).Scale(0.5)
}
