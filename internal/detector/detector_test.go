package detector

import (
	"errors"
	"math"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
	"github.com/dudu/facegaze/internal/landmark/landmarktest"
)

func box(x1, y1, x2, y2 float32) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestIoU(t *testing.T) {
	assert.InDelta(t, 1.0, iou(box(0, 0, 10, 10), box(0, 0, 10, 10)), 1e-6)
	assert.InDelta(t, 0.0, iou(box(0, 0, 10, 10), box(10, 10, 20, 20)), 1e-6)
	// 5x10 overlap over 150 union
	assert.InDelta(t, 50.0/150.0, iou(box(0, 0, 10, 10), box(5, 0, 15, 10)), 1e-6)
}

func TestNMS_KeepsHighestScore(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 10, 10), Score: 0.6},
		{BoundingBox: box(1, 1, 11, 11), Score: 0.9},
		{BoundingBox: box(50, 50, 60, 60), Score: 0.7},
	}

	kept := nms(faces, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Score)
	assert.Equal(t, float32(0.7), kept[1].Score)
}

func TestLargest(t *testing.T) {
	_, ok := largest(nil)
	assert.False(t, ok)

	f, ok := largest([]Face{
		{BoundingBox: box(0, 0, 10, 10), Score: 0.99},
		{BoundingBox: box(0, 0, 40, 30), Score: 0.6},
	})
	require.True(t, ok)
	assert.Equal(t, float32(0.6), f.Score)
}

func TestSCRFDPostprocess_DecodesAnchor(t *testing.T) {
	s := &SCRFD{inputSize: 32, confThreshold: 0.5, featureStrides: []int{8, 16, 32}, numAnchors: 2}

	outputs := make([][]float32, 9)
	for level, stride := range s.featureStrides {
		n := (32 / stride) * (32 / stride) * 2
		outputs[level] = make([]float32, n)
		outputs[level+3] = make([]float32, n*4)
		outputs[level+6] = make([]float32, n*10)
	}
	// stride 8, grid (1,1), first anchor: index (1*4+1)*2 = 10
	outputs[0][10] = 0.9
	copy(outputs[3][40:], []float32{1, 1, 1, 1})
	copy(outputs[6][100:], []float32{0.5, 0, -0.5, 0, 0, 0, 0, 1, 0, 1})

	faces := s.postprocess(outputs, 0.5, 100, 100)
	require.Len(t, faces, 1)
	assert.Equal(t, box(0, 0, 32, 32), faces[0].BoundingBox)
	require.NotNil(t, faces[0].Keypoints)
	assert.Equal(t, Point{X: 24, Y: 16}, faces[0].Keypoints.LeftEye)
	assert.Equal(t, Point{X: 8, Y: 16}, faces[0].Keypoints.RightEye)
	assert.Equal(t, Point{X: 16, Y: 32}, faces[0].Keypoints.LeftMouth)
}

func TestDetectionsToFaces(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 50, Col: 40, Scale: 40, Q: 9},
		{Row: 10, Col: 10, Scale: 40, Q: 2},
	}

	faces := detectionsToFaces(dets, 5, 100, 100)
	require.Len(t, faces, 1)
	assert.Equal(t, box(20, 30, 60, 70), faces[0].BoundingBox)
	assert.Nil(t, faces[0].Keypoints)
}

func TestMeshToSet_MapsCropToFrame(t *testing.T) {
	coords := make([]float32, landmark.NumRefinedLandmarks*3)
	// crop centre maps back to region centre
	coords[0], coords[1], coords[2] = 96, 96, 0
	// one crop pixel right of centre is 1/scale frame pixels
	coords[3], coords[4], coords[5] = 97, 96, 2

	set, err := meshToSet(coords, 192, Point{X: 320, Y: 240}, 0.5, 640, 480)
	require.NoError(t, err)
	require.Equal(t, landmark.NumRefinedLandmarks, set.Len())

	assert.InDelta(t, 0.5, set.Points[0].X, 1e-9)
	assert.InDelta(t, 0.5, set.Points[0].Y, 1e-9)
	assert.InDelta(t, 322.0/640.0, set.Points[1].X, 1e-9)
	assert.InDelta(t, 4.0/640.0, set.Points[1].Z, 1e-9)
	assert.False(t, set.Points[1].HasVisibility)
}

func TestMeshToSet_RejectsShortOutput(t *testing.T) {
	_, err := meshToSet(make([]float32, 30), 192, Point{}, 1, 640, 480)
	assert.Error(t, err)
}

func TestMeshToSet_RejectsNonFiniteOutput(t *testing.T) {
	coords := make([]float32, landmark.NumRefinedLandmarks*3)
	coords[5*3+1] = float32(math.NaN())

	set, err := meshToSet(coords, 192, Point{X: 320, Y: 240}, 1, 640, 480)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, facerr.ErrMissingLandmark)
}

func TestTracker_TimestampsMustIncrease(t *testing.T) {
	var tr Tracker
	require.NoError(t, tr.Advance(1000))

	err := tr.Advance(500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, facerr.ErrTimestampRegression))

	var regression *facerr.TimestampRegressionError
	require.ErrorAs(t, err, &regression)
	assert.Equal(t, int64(1000), regression.Last)

	assert.ErrorIs(t, tr.Advance(1000), facerr.ErrTimestampRegression)
	assert.NoError(t, tr.Advance(1001))

	tr.Reset()
	assert.NoError(t, tr.Advance(0))
}

func TestTracker_RegionFollowsLandmarks(t *testing.T) {
	var tr Tracker
	_, ok := tr.Region(100, 100)
	assert.False(t, ok)

	tr.Update(landmark.NewSet([]landmark.Landmark{{X: 0.2, Y: 0.3}, {X: 0.6, Y: 0.9}}))
	region, ok := tr.Region(100, 100)
	require.True(t, ok)
	assert.InDelta(t, 20, region.X1, 1e-4)
	assert.InDelta(t, 30, region.Y1, 1e-4)
	assert.InDelta(t, 60, region.X2, 1e-4)
	assert.InDelta(t, 90, region.Y2, 1e-4)

	tr.Update(landmark.NewSet(nil))
	_, ok = tr.Region(100, 100)
	assert.False(t, ok)
}

type fakeLocator struct {
	faces []Face
	calls int
}

func (f *fakeLocator) Locate(gocv.Mat) ([]Face, error) {
	f.calls++
	return f.faces, nil
}

func (f *fakeLocator) Close() error { return nil }

type fakeMesher struct {
	set     *landmark.Set
	regions []BoundingBox
	closed  bool
}

func (f *fakeMesher) Fit(_ gocv.Mat, region BoundingBox) (*landmark.Set, error) {
	f.regions = append(f.regions, region)
	return f.set, nil
}

func (f *fakeMesher) Close() error {
	f.closed = true
	return nil
}

func TestDetector_ImageMode(t *testing.T) {
	log, _ := test.NewNullLogger()
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	locator := &fakeLocator{}
	mesher := &fakeMesher{set: landmarktest.Frontal()}
	d := New(log, locator, mesher)

	set, err := d.Detect(img)
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.Empty(t, mesher.regions)

	locator.faces = []Face{{BoundingBox: box(10, 10, 60, 60), Score: 0.9}}
	set, err = d.Detect(img)
	require.NoError(t, err)
	assert.Equal(t, landmark.NumRefinedLandmarks, set.Len())
	assert.Equal(t, []BoundingBox{box(10, 10, 60, 60)}, mesher.regions)

	require.NoError(t, d.Close())
	assert.True(t, mesher.closed)
}

func TestDetector_VideoModeTracksAndRejectsRegression(t *testing.T) {
	log, _ := test.NewNullLogger()
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	locator := &fakeLocator{faces: []Face{{BoundingBox: box(10, 10, 60, 60), Score: 0.9}}}
	mesher := &fakeMesher{set: landmarktest.Frontal()}
	d := New(log, locator, mesher)

	_, err := d.DetectForVideo(img, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, locator.calls)

	// second frame fits inside the tracked region without locating
	_, err = d.DetectForVideo(img, 1033)
	require.NoError(t, err)
	assert.Equal(t, 1, locator.calls)
	assert.Len(t, mesher.regions, 2)

	_, err = d.DetectForVideo(img, 500)
	assert.ErrorIs(t, err, facerr.ErrTimestampRegression)
	assert.Len(t, mesher.regions, 2)
}

func TestDetector_ForkSharesModelsButNotTracking(t *testing.T) {
	log, _ := test.NewNullLogger()
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	mesher := &fakeMesher{set: landmarktest.Frontal()}
	root := New(log, &fakeLocator{faces: []Face{{BoundingBox: box(10, 10, 60, 60)}}}, mesher)

	fork := root.Fork()
	_, err := fork.DetectForVideo(img, 1000)
	require.NoError(t, err)

	// the root has its own clock
	_, err = root.DetectForVideo(img, 10)
	require.NoError(t, err)

	require.NoError(t, fork.Close())
	assert.False(t, mesher.closed)
	require.NoError(t, root.Close())
	assert.True(t, mesher.closed)
}
