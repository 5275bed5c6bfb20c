package landmark_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
	"github.com/dudu/facegaze/internal/landmark/landmarktest"
)

func TestToPixel(t *testing.T) {
	tests := []struct {
		name string
		in   landmark.Landmark
		w, h int
		want landmark.Point
	}{
		{"origin", landmark.Landmark{}, 640, 480, landmark.Point{}},
		{"center", landmark.Landmark{X: 0.5, Y: 0.5}, 640, 480, landmark.Point{X: 320, Y: 240}},
		{"rounds half away from zero", landmark.Landmark{X: 0.25, Y: 0.75}, 2, 2, landmark.Point{X: 1, Y: 2}},
		{"outside frame", landmark.Landmark{X: -0.1, Y: 1.1}, 100, 100, landmark.Point{X: -10, Y: 110}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, landmark.ToPixel(tt.in, tt.w, tt.h))
		})
	}
}

func TestBoundingBox_PadsAndClamps(t *testing.T) {
	points := []landmark.Point{{X: 10, Y: 20}, {X: 30, Y: 5}, {X: 95, Y: 40}}

	box, err := landmark.BoundingBox(points, 100, 50, 8)
	require.NoError(t, err)

	assert.Equal(t, landmark.Point{X: 2, Y: 0}, box.Min)
	assert.Equal(t, landmark.Point{X: 100, Y: 48}, box.Max)
}

func TestBoundingBox_EmptyIsError(t *testing.T) {
	_, err := landmark.BoundingBox(nil, 100, 100, 2)
	assert.True(t, errors.Is(err, facerr.ErrEmptyPoints))
}

func TestBoundingBox_InvariantsHold(t *testing.T) {
	cases := [][]landmark.Point{
		{{X: -50, Y: -50}},
		{{X: 500, Y: 500}, {X: 700, Y: 900}},
		{{X: -20, Y: 30}, {X: 120, Y: 60}},
		{{X: 50, Y: 50}},
	}
	for _, points := range cases {
		for _, pad := range []int{0, 2, 6, 8, 1000} {
			box, err := landmark.BoundingBox(points, 100, 80, pad)
			require.NoError(t, err)

			assert.LessOrEqual(t, box.Min.X, box.Max.X)
			assert.LessOrEqual(t, box.Min.Y, box.Max.Y)
			for _, p := range []landmark.Point{box.Min, box.Max} {
				assert.GreaterOrEqual(t, p.X, 0)
				assert.LessOrEqual(t, p.X, 100)
				assert.GreaterOrEqual(t, p.Y, 0)
				assert.LessOrEqual(t, p.Y, 80)
			}
		}
	}
}

func TestFaceBoundingBox_AdaptivePadding(t *testing.T) {
	box, err := landmark.FaceBoundingBox(landmarktest.Frontal(), 1000, 1000)
	require.NoError(t, err)

	// raw extent is 350..650 x 200..600: 30px sides, 32px top/bottom plus 20px forehead
	assert.Equal(t, landmark.Box{
		Min: landmark.Point{X: 320, Y: 148},
		Max: landmark.Point{X: 680, Y: 632},
	}, box)
}

func TestFaceBoundingBox_ForeheadClampedAtTop(t *testing.T) {
	set := landmarktest.Uniform(10, 0.5, 0.01)
	box, err := landmark.FaceBoundingBox(set, 200, 200)
	require.NoError(t, err)

	assert.Equal(t, 0, box.Min.Y)
	assert.Equal(t, 2, box.Max.Y)
}

func TestFaceBoundingBox_Empty(t *testing.T) {
	_, err := landmark.FaceBoundingBox(landmark.NewSet(nil), 100, 100)
	assert.ErrorIs(t, err, facerr.ErrEmptyPoints)
}

func TestCentroid_FloorDivision(t *testing.T) {
	c, err := landmark.Centroid([]landmark.Point{{X: 1, Y: -1}, {X: 2, Y: -2}})
	require.NoError(t, err)
	assert.Equal(t, landmark.Point{X: 1, Y: -2}, c)

	_, err = landmark.Centroid(nil)
	assert.ErrorIs(t, err, facerr.ErrEmptyPoints)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, landmark.FloorDiv(7, 3))
	assert.Equal(t, -3, landmark.FloorDiv(-7, 3))
	assert.Equal(t, -2, landmark.FloorDiv(-6, 3))
	assert.Equal(t, 0, landmark.FloorDiv(0, 4))
}

func TestSet_AtOutOfRange(t *testing.T) {
	set := landmarktest.Uniform(468, 0.5, 0.5)

	_, err := set.At(473)
	require.Error(t, err)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)

	var missing *facerr.MissingLandmarkError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 473, missing.Index)
	assert.Equal(t, 468, missing.Len)

	_, err = set.Pixels([]int{1, 2, 500}, 10, 10)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)
}

func TestSet_AtRejectsNonFinite(t *testing.T) {
	set := landmarktest.With(landmarktest.Frontal(), map[int]landmark.Landmark{
		382: {X: math.NaN(), Y: 0.4},
		10:  {X: 0.5, Y: math.Inf(-1)},
	})

	_, err := set.At(382)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)
	var malformed *facerr.MalformedLandmarkError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 382, malformed.Index)

	_, err = set.Pixel(10, 1000, 1000)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)

	_, err = landmark.FaceBoundingBox(set, 1000, 1000)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)
}

func TestLandmark_VisibleDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1.0, landmark.Landmark{}.Visible())
	assert.Equal(t, 0.3, landmark.Landmark{Visibility: 0.3, HasVisibility: true}.Visible())
}

func TestVec3_NormalizeZero(t *testing.T) {
	assert.Equal(t, landmark.Vec3{}, landmark.Vec3{}.Normalize())
	assert.InDelta(t, 1.0, landmark.Vec3{X: 3, Y: 4}.Normalize().Norm(), 1e-12)
}
