package landmark

import (
	"fmt"
	"math"

	"github.com/dudu/facegaze/internal/facerr"
)

// Adaptive face box padding. Tuned for head-pose overlays which need forehead headroom.
const (
	FacePadXRatio   = 0.10
	FacePadYRatio   = 0.08
	FaceForeheadPad = 20
)

// ToPixel projects a normalized landmark into a width x height frame
func ToPixel(l Landmark, width, height int) Point {
	return Point{
		X: int(math.Round(l.X * float64(width))),
		Y: int(math.Round(l.Y * float64(height))),
	}
}

// BoundingBox computes the box around points, padded per side and clamped to the frame
func BoundingBox(points []Point, width, height, padding int) (Box, error) {
	raw, err := extent(points)
	if err != nil {
		return Box{}, err
	}
	return clampBox(Box{
		Min: Point{X: raw.Min.X - padding, Y: raw.Min.Y - padding},
		Max: Point{X: raw.Max.X + padding, Y: raw.Max.Y + padding},
	}, width, height), nil
}

// FaceBoundingBox computes the box around every landmark with adaptive padding:
// 10% of the raw width horizontally, 8% of the raw height vertically and an
// extra 20px above the top edge.
func FaceBoundingBox(set *Set, width, height int) (Box, error) {
	if set.Empty() {
		return Box{}, fmt.Errorf("face box: %w", facerr.ErrEmptyPoints)
	}

	points := make([]Point, set.Len())
	for i := range points {
		l, err := set.At(i)
		if err != nil {
			return Box{}, fmt.Errorf("face box: %w", err)
		}
		points[i] = ToPixel(l, width, height)
	}

	raw, err := extent(points)
	if err != nil {
		return Box{}, err
	}

	padX := int(float64(raw.Width()) * FacePadXRatio)
	padY := int(float64(raw.Height()) * FacePadYRatio)

	return clampBox(Box{
		Min: Point{X: raw.Min.X - padX, Y: raw.Min.Y - padY - FaceForeheadPad},
		Max: Point{X: raw.Max.X + padX, Y: raw.Max.Y + padY},
	}, width, height), nil
}

// Extent returns the unpadded, unclamped min/max box of points
func Extent(points []Point) (Box, error) {
	return extent(points)
}

func extent(points []Point) (Box, error) {
	if len(points) == 0 {
		return Box{}, facerr.ErrEmptyPoints
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for i := 1; i < len(points); i++ {
		if points[i].X < minX {
			minX = points[i].X
		}
		if points[i].X > maxX {
			maxX = points[i].X
		}
		if points[i].Y < minY {
			minY = points[i].Y
		}
		if points[i].Y > maxY {
			maxY = points[i].Y
		}
	}
	return Box{Min: Point{X: minX, Y: minY}, Max: Point{X: maxX, Y: maxY}}, nil
}

func clampBox(b Box, width, height int) Box {
	return Box{
		Min: Point{X: ClampInt(b.Min.X, 0, width), Y: ClampInt(b.Min.Y, 0, height)},
		Max: Point{X: ClampInt(b.Max.X, 0, width), Y: ClampInt(b.Max.Y, 0, height)},
	}
}

// Centroid averages points with floor division on each axis
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, facerr.ErrEmptyPoints
	}
	var sx, sy int
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := len(points)
	return Point{X: FloorDiv(sx, n), Y: FloorDiv(sy, n)}, nil
}

// Midpoint averages two points with floor division
func Midpoint(a, b Point) Point {
	return Point{X: FloorDiv(a.X+b.X, 2), Y: FloorDiv(a.Y+b.Y, 2)}
}

// FloorDiv divides rounding toward negative infinity
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ClampInt limits v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampFloat limits v to [lo, hi]
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
