package facemetrics_test

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/facegaze/internal/eye"
	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
	"github.com/dudu/facegaze/internal/landmark/landmarktest"
)

func newAggregator() (*facemetrics.Aggregator, *test.Hook) {
	log, hook := test.NewNullLogger()
	return facemetrics.New(log), hook
}

func TestCompute_Frontal(t *testing.T) {
	agg, _ := newAggregator()

	m, err := agg.Compute(landmarktest.Frontal(), 1000, 1000, facemetrics.Options{Pose: true})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, landmark.Box{Min: landmark.Point{X: 320, Y: 148}, Max: landmark.Point{X: 680, Y: 632}}, m.FaceBox)
	assert.Equal(t, eye.Open, m.LeftEye.Label)
	assert.Equal(t, eye.Open, m.RightEye.Label)
	assert.Equal(t, landmark.Point{X: 500, Y: 399}, m.EyeCenters.Between)
	assert.Equal(t, landmark.Point{X: 577, Y: 400}, m.LeftIris.Constrained)
	assert.Equal(t, landmark.Point{X: 423, Y: 400}, m.RightIris.Constrained)
	assert.Equal(t, landmark.Point{X: 500, Y: 450}, m.Landmarks.Nose)
	assert.Equal(t, landmark.Point{X: 500, Y: 600}, m.Landmarks.Chin)
	assert.Equal(t, 59.43, m.Depth.Face)

	require.NotNil(t, m.Pose)
	assert.InDelta(t, 0, m.Pose.Yaw, 1e-9)
	assert.InDelta(t, 0, m.Pose.Pitch, 1e-9)
	assert.InDelta(t, 0, m.Pose.Roll, 1e-9)
}

func TestCompute_PoseOptional(t *testing.T) {
	agg, _ := newAggregator()

	m, err := agg.Compute(landmarktest.Frontal(), 1000, 1000, facemetrics.Options{})
	require.NoError(t, err)
	assert.Nil(t, m.Pose)
}

func TestCompute_Idempotent(t *testing.T) {
	agg, _ := newAggregator()
	set := landmarktest.Frontal()

	a, err := agg.Compute(set, 1280, 720, facemetrics.Options{Pose: true})
	require.NoError(t, err)
	b, err := agg.Compute(set, 1280, 720, facemetrics.Options{Pose: true})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCompute_EmptySetIsNoFace(t *testing.T) {
	agg, hook := newAggregator()

	m, err := agg.Compute(landmark.NewSet(nil), 640, 480, facemetrics.Options{Pose: true})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, facerr.ErrNoFaceDetected)
	assert.Empty(t, hook.AllEntries())

	m, err = agg.Compute(nil, 640, 480, facemetrics.Options{})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, facerr.ErrNoFaceDetected)
}

func TestCompute_MalformedSetYieldsNoRecord(t *testing.T) {
	agg, hook := newAggregator()

	// mesh without iris refinement
	set := landmarktest.Truncate(landmarktest.Frontal(), landmark.NumMeshLandmarks)

	m, err := agg.Compute(set, 640, 480, facemetrics.Options{Pose: true})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, landmark.NumMeshLandmarks, hook.LastEntry().Data["landmarks"])
}

func TestCompute_NonFiniteLandmarkYieldsNoRecord(t *testing.T) {
	agg, hook := newAggregator()

	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		set := landmarktest.With(landmarktest.Frontal(), map[int]landmark.Landmark{
			382: {X: bad, Y: 0.4},
		})

		m, err := agg.Compute(set, 1000, 1000, facemetrics.Options{Pose: true})
		assert.Nil(t, m)
		assert.ErrorIs(t, err, facerr.ErrMissingLandmark)
	}
	assert.Len(t, hook.AllEntries(), 2)
}

func TestCompute_InvalidFrameSize(t *testing.T) {
	agg, _ := newAggregator()

	for _, size := range [][2]int{{0, 1000}, {1000, 0}, {-1, 480}} {
		m, err := agg.Compute(landmarktest.Frontal(), size[0], size[1], facemetrics.Options{})
		assert.Nil(t, m)
		assert.ErrorIs(t, err, facerr.ErrInvalidFrame, "size %v", size)
	}
}
