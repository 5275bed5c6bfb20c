package pipeline

import (
	"errors"
	"image"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
	"github.com/dudu/facegaze/internal/landmark/landmarktest"
)

type fakeDetector struct {
	sets   []*landmark.Set // returned in order, the last one repeats
	err    error
	panics bool
	calls  int
	closed bool
}

func (f *fakeDetector) next() (*landmark.Set, error) {
	f.calls++
	if f.panics {
		panic("model exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	i := min(f.calls-1, len(f.sets)-1)
	return f.sets[i], nil
}

func (f *fakeDetector) Detect(gocv.Mat) (*landmark.Set, error) {
	return f.next()
}

func (f *fakeDetector) DetectForVideo(gocv.Mat, int64) (*landmark.Set, error) {
	return f.next()
}

func (f *fakeDetector) Close() error {
	f.closed = true
	return nil
}

type fakeEnhancer struct {
	err   error
	calls int
}

func (f *fakeEnhancer) Enhance(region gocv.Mat) (gocv.Mat, error) {
	f.calls++
	if f.err != nil {
		return gocv.NewMat(), f.err
	}
	out := gocv.NewMat()
	gocv.Resize(region, &out, image.Pt(region.Cols()*4, region.Rows()*4), 0, 0, gocv.InterpolationNearestNeighbor)
	return out, nil
}

func (f *fakeEnhancer) Scale() int   { return 4 }
func (f *fakeEnhancer) Close() error { return nil }

type recordingObserver struct {
	results []*Result
}

func (o *recordingObserver) FrameDone(r *Result) {
	o.results = append(o.results, r)
}

func blankFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1000, 1000, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func newTestSession(det Detector, opts ...SessionOption) *Session {
	log, _ := test.NewNullLogger()
	return NewSession(log, det, opts...)
}

func TestProcessImage_Frontal(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}})

	res := s.ProcessImage(frame, Options{})
	defer res.Close()

	require.NoError(t, res.Reason)
	require.NotNil(t, res.Metrics)
	assert.Nil(t, res.Metrics.Pose)
	assert.Equal(t, []State{AwaitingFrame, LandmarksDetected, MetricsComputed, Done}, res.Trace)
	assert.Equal(t, OutcomeMetrics, res.Outcome())
	assert.Equal(t, MetricsComputed, res.State())
	assert.Equal(t, 1000, res.Metrics.FrameWidth)
}

func TestProcessImage_PoseOnRequest(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}})

	res := s.ProcessImage(frame, Options{Pose: true})
	require.NotNil(t, res.Metrics)
	require.NotNil(t, res.Metrics.Pose)
	assert.InDelta(t, 0, res.Metrics.Pose.Roll, 1e-6)
}

func TestProcessImage_Idempotent(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}})

	first := s.ProcessImage(frame, Options{Pose: true})
	second := s.ProcessImage(frame, Options{Pose: true})
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, 2, second.Index)
}

func TestProcessImage_NoFace(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmark.NewSet(nil)}})

	res := s.ProcessImage(frame, Options{Pose: true})
	assert.Nil(t, res.Metrics)
	assert.ErrorIs(t, res.Reason, facerr.ErrNoFaceDetected)
	assert.Equal(t, []State{AwaitingFrame, NoFace, Done}, res.Trace)
	assert.Equal(t, OutcomeNoFace, res.Outcome())
}

func TestProcessImage_MissingLandmark(t *testing.T) {
	frame := blankFrame(t)
	truncated := landmarktest.Truncate(landmarktest.Frontal(), landmark.NumMeshLandmarks)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{truncated}})

	res := s.ProcessImage(frame, Options{})
	assert.Nil(t, res.Metrics)
	assert.ErrorIs(t, res.Reason, facerr.ErrMissingLandmark)
	assert.Equal(t, []State{AwaitingFrame, LandmarksDetected, NoFace, Done}, res.Trace)
	assert.Equal(t, OutcomeMissingLandmark, res.Outcome())
}

func TestProcessImage_DetectorErrorAndPanicAreContained(t *testing.T) {
	frame := blankFrame(t)

	res := newTestSession(&fakeDetector{err: errors.New("session lost")}).ProcessImage(frame, Options{})
	assert.Nil(t, res.Metrics)
	assert.ErrorContains(t, res.Reason, "session lost")
	assert.Equal(t, OutcomeError, res.Outcome())

	res = newTestSession(&fakeDetector{panics: true}).ProcessImage(frame, Options{})
	assert.Nil(t, res.Metrics)
	assert.ErrorContains(t, res.Reason, "model exploded")
	assert.Equal(t, Done, res.Trace[len(res.Trace)-1])
}

func TestProcessImage_EmptyFrame(t *testing.T) {
	det := &fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}}
	empty := gocv.NewMat()
	defer empty.Close()

	res := newTestSession(det).ProcessImage(empty, Options{})
	assert.Nil(t, res.Metrics)
	assert.Error(t, res.Reason)
	assert.Zero(t, det.calls)
}

func TestProcessVideo_TimestampRegression(t *testing.T) {
	frame := blankFrame(t)
	det := &fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}}
	s := newTestSession(det)

	first := s.ProcessVideo(frame, 1000, Options{Annotate: true})
	defer first.Close()
	require.NotNil(t, first.Metrics)

	second := s.ProcessVideo(frame, 500, Options{Annotate: true})
	defer second.Close()

	assert.Nil(t, second.Metrics)
	assert.ErrorIs(t, second.Reason, facerr.ErrTimestampRegression)
	assert.Equal(t, []State{AwaitingFrame, NoFace, Done}, second.Trace)
	assert.Equal(t, OutcomeTimestampRegression, second.Outcome())
	assert.Equal(t, 1, det.calls)

	// the caller's frame comes back as is
	assert.True(t, second.Annotated.Empty())
	assert.Equal(t, frame.Ptr(), second.Output().Ptr())
	assert.Zero(t, gocv.CountNonZero(gray(t, frame)))

	third := s.ProcessVideo(frame, 1001, Options{})
	assert.NotNil(t, third.Metrics)
}

func TestProcess_Annotate(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}})

	res := s.ProcessImage(frame, Options{Annotate: true, Pose: true})
	defer res.Close()

	require.False(t, res.Annotated.Empty())
	assert.NotZero(t, gocv.CountNonZero(gray(t, res.Annotated)))
	assert.Zero(t, gocv.CountNonZero(gray(t, frame)))
}

func TestEnhancement_SecondPassReplacesMetrics(t *testing.T) {
	frame := blankFrame(t)
	enh := &fakeEnhancer{}
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}}, WithEnhancer(enh))

	res := s.ProcessImage(frame, Options{Enhance: true})
	defer res.Close()

	require.NoError(t, res.Reason)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, 1, enh.calls)
	assert.Equal(t, []State{AwaitingFrame, LandmarksDetected, MetricsComputed, EnhancementRequested, MetricsRecomputed, Done}, res.Trace)

	// first pass face box (320,148)-(680,632) upscaled 4x
	assert.Equal(t, 360*4, res.Enhanced.Cols())
	assert.Equal(t, 484*4, res.Enhanced.Rows())
	assert.Equal(t, 360*4, res.Metrics.FrameWidth)
	assert.Equal(t, 484*4, res.Metrics.FrameHeight)
}

func TestEnhancement_FailureKeepsFirstPass(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}},
		WithEnhancer(&fakeEnhancer{err: errors.New("out of memory")}))

	res := s.ProcessImage(frame, Options{Enhance: true})
	defer res.Close()

	require.NotNil(t, res.Metrics)
	assert.Equal(t, 1000, res.Metrics.FrameWidth)
	assert.ErrorIs(t, res.Reason, facerr.ErrEnhancementFailure)
	assert.ErrorContains(t, res.Reason, "out of memory")
	assert.Equal(t, OutcomeEnhancementFallback, res.Outcome())
	assert.NotContains(t, res.Trace, MetricsRecomputed)
	assert.True(t, res.Enhanced.Empty())
}

func TestEnhancement_WithoutEnhancerKeepsFirstPass(t *testing.T) {
	frame := blankFrame(t)
	s := newTestSession(&fakeDetector{sets: []*landmark.Set{landmarktest.Frontal()}})

	res := s.ProcessImage(frame, Options{Enhance: true})
	require.NotNil(t, res.Metrics)
	assert.ErrorIs(t, res.Reason, facerr.ErrEnhancementFailure)
}

func TestEnhancement_NoFaceInCropDropsMetrics(t *testing.T) {
	frame := blankFrame(t)
	det := &fakeDetector{sets: []*landmark.Set{landmarktest.Frontal(), landmark.NewSet(nil)}}
	s := newTestSession(det, WithEnhancer(&fakeEnhancer{}))

	res := s.ProcessImage(frame, Options{Enhance: true})
	defer res.Close()

	assert.Nil(t, res.Metrics)
	assert.ErrorIs(t, res.Reason, facerr.ErrNoFaceDetected)
	assert.Equal(t, []State{AwaitingFrame, LandmarksDetected, MetricsComputed, EnhancementRequested, NoFace, Done}, res.Trace)
	assert.True(t, res.Enhanced.Empty())
}

func TestProcessBatch_SequentialAndObserved(t *testing.T) {
	frames := []gocv.Mat{blankFrame(t), blankFrame(t), blankFrame(t)}
	obs := &recordingObserver{}
	det := &fakeDetector{sets: []*landmark.Set{landmarktest.Frontal(), landmark.NewSet(nil), landmarktest.Frontal()}}
	s := newTestSession(det, WithObserver(obs), WithID("batch-1"))

	results := s.ProcessBatch(frames, Options{})
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Metrics)
	assert.Nil(t, results[1].Metrics)
	assert.NotNil(t, results[2].Metrics)
	assert.Equal(t, 3, results[2].Index)
	assert.Len(t, obs.results, 3)
	assert.Equal(t, "batch-1", s.ID())
	assert.Equal(t, 3, s.Frames())

	require.NoError(t, s.Close())
	assert.True(t, det.closed)
}

func gray(t *testing.T, img gocv.Mat) gocv.Mat {
	t.Helper()
	g := gocv.NewMat()
	gocv.CvtColor(img, &g, gocv.ColorBGRToGray)
	t.Cleanup(func() { g.Close() })
	return g
}
