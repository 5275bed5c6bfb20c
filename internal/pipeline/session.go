package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/annotate"
	"github.com/dudu/facegaze/internal/detector"
	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
)

// Options selects per-frame work
type Options struct {
	Pose     bool
	Enhance  bool
	Annotate bool
}

// Timing holds performance timing information
type Timing struct {
	Detection   time.Duration
	Metrics     time.Duration
	Enhancement time.Duration
	Total       time.Duration
}

// Result is the outcome of one frame. Metrics is nil unless a usable face
// was measured; Reason explains why, or carries a non-fatal diagnostic.
type Result struct {
	Index       int
	TimestampMs *int64

	Metrics *facemetrics.FaceMetrics
	Reason  error
	Trace   []State
	Timing  Timing

	// Frame is the caller's frame, never modified
	Frame gocv.Mat
	// Annotated is a drawn copy when requested and metrics exist
	Annotated gocv.Mat
	// Enhanced is the upscaled face crop after a successful second pass
	Enhanced gocv.Mat
}

// Output returns the annotated copy if there is one, otherwise the input frame
func (r *Result) Output() gocv.Mat {
	if !r.Annotated.Empty() {
		return r.Annotated
	}
	return r.Frame
}

// State returns the last state reached before Done
func (r *Result) State() State {
	for i := len(r.Trace) - 1; i >= 0; i-- {
		if r.Trace[i] != Done {
			return r.Trace[i]
		}
	}
	return AwaitingFrame
}

// Outcome classifies the result
func (r *Result) Outcome() Outcome {
	return outcomeOf(r.Metrics != nil, r.Reason)
}

// Close releases the Mats the result owns; Frame belongs to the caller
func (r *Result) Close() error {
	var errs []error
	for _, m := range []*gocv.Mat{&r.Annotated, &r.Enhanced} {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// Session processes the frames of one stream. It owns one detector handle
// and is not safe for concurrent use.
type Session struct {
	id         string
	detector   Detector
	enhancer   Enhancer
	aggregator *facemetrics.Aggregator
	observer   Observer
	log        logrus.FieldLogger

	clock  detector.Tracker
	frames int
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithEnhancer enables the second pass
func WithEnhancer(e Enhancer) SessionOption {
	return func(s *Session) {
		s.enhancer = e
	}
}

// WithObserver reports every finished frame to o
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithID overrides the generated session id
func WithID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession wraps det; closing the session closes det
func NewSession(log logrus.FieldLogger, det Detector, opts ...SessionOption) *Session {
	s := &Session{
		id:       uuid.NewString(),
		detector: det,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = log.WithField("session_id", s.id)
	s.aggregator = facemetrics.New(s.log)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Frames returns how many frames were processed
func (s *Session) Frames() int {
	return s.frames
}

// ProcessImage runs image mode on one frame
func (s *Session) ProcessImage(frame gocv.Mat, opts Options) *Result {
	return s.process(frame, nil, opts)
}

// ProcessVideo runs video mode; timestampMs must strictly increase across calls.
// A regression yields a NoFace result carrying the untouched frame.
func (s *Session) ProcessVideo(frame gocv.Mat, timestampMs int64, opts Options) *Result {
	return s.process(frame, &timestampMs, opts)
}

// ProcessBatch runs image mode over frames in order
func (s *Session) ProcessBatch(frames []gocv.Mat, opts Options) []*Result {
	results := make([]*Result, 0, len(frames))
	for _, frame := range frames {
		results = append(results, s.ProcessImage(frame, opts))
	}
	return results
}

// Close releases the detector handle
func (s *Session) Close() error {
	if s.detector == nil {
		return nil
	}
	return s.detector.Close()
}

func (s *Session) process(frame gocv.Mat, timestampMs *int64, opts Options) (res *Result) {
	start := time.Now()
	s.frames++

	res = &Result{
		Index:       s.frames,
		TimestampMs: timestampMs,
		Frame:       frame,
		Annotated:   gocv.NewMat(),
		Enhanced:    gocv.NewMat(),
	}
	res.enter(AwaitingFrame)

	entry := s.log.WithField("frame", res.Index)

	defer func() {
		if r := recover(); r != nil {
			res.Metrics = nil
			res.Reason = fmt.Errorf("frame processing panicked: %v", r)
			res.enter(NoFace)
		}
		res.enter(Done)
		res.Timing.Total = time.Since(start)

		fields := logrus.Fields{
			"state":   res.State(),
			"outcome": res.Outcome(),
			"took":    res.Timing.Total,
		}
		if res.Reason != nil {
			entry.WithFields(fields).WithError(res.Reason).Debug("frame processed")
		} else {
			entry.WithFields(fields).Debug("frame processed")
		}

		if s.observer != nil {
			s.observer.FrameDone(res)
		}
	}()

	if timestampMs != nil {
		if err := s.clock.Advance(*timestampMs); err != nil {
			res.Reason = err
			res.enter(NoFace)
			return res
		}
	}

	if frame.Empty() {
		res.Reason = errors.New("empty frame")
		res.enter(NoFace)
		return res
	}

	detectStart := time.Now()
	set, err := s.detect(frame, timestampMs)
	res.Timing.Detection = time.Since(detectStart)
	if err != nil {
		res.Reason = fmt.Errorf("landmark detection failed: %w", err)
		res.enter(NoFace)
		return res
	}
	if set.Empty() {
		res.Reason = facerr.ErrNoFaceDetected
		res.enter(NoFace)
		return res
	}
	res.enter(LandmarksDetected)

	metricsStart := time.Now()
	metrics, err := s.aggregator.Compute(set, frame.Cols(), frame.Rows(), facemetrics.Options{Pose: opts.Pose})
	res.Timing.Metrics = time.Since(metricsStart)
	if err != nil {
		res.Reason = err
		res.enter(NoFace)
		return res
	}
	res.Metrics = metrics
	res.enter(MetricsComputed)

	if opts.Enhance {
		res.enter(EnhancementRequested)
		enhanceStart := time.Now()
		s.enhance(res, frame, opts)
		res.Timing.Enhancement = time.Since(enhanceStart)
	}

	if opts.Annotate && res.Metrics != nil {
		src := frame
		if !res.Enhanced.Empty() {
			src = res.Enhanced
		}
		res.Annotated.Close()
		res.Annotated = src.Clone()
		annotate.Draw(&res.Annotated, res.Metrics)
	}

	return res
}

func (s *Session) detect(frame gocv.Mat, timestampMs *int64) (*landmark.Set, error) {
	if timestampMs != nil {
		return s.detector.DetectForVideo(frame, *timestampMs)
	}
	return s.detector.Detect(frame)
}
