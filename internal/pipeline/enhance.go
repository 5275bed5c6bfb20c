package pipeline

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
)

// enhance runs the second pass: the first-pass face box is cropped,
// upscaled and measured again. Enhancer failures keep the first-pass
// metrics with a diagnostic; a second pass without a usable face drops them.
func (s *Session) enhance(res *Result, frame gocv.Mat, opts Options) {
	metrics, enhanced, err := s.secondPass(frame, res.Metrics.FaceBox, opts)
	switch {
	case err == nil:
		res.Metrics = metrics
		res.Enhanced.Close()
		res.Enhanced = enhanced
		res.enter(MetricsRecomputed)
	case errors.Is(err, facerr.ErrEnhancementFailure):
		res.Reason = err
		s.log.WithField("frame", res.Index).WithError(err).Warn("enhancement failed, keeping first pass")
	default:
		res.Metrics = nil
		res.Reason = err
		res.enter(NoFace)
	}
}

func (s *Session) secondPass(frame gocv.Mat, faceBox landmark.Box, opts Options) (*facemetrics.FaceMetrics, gocv.Mat, error) {
	if s.enhancer == nil {
		return nil, gocv.Mat{}, fmt.Errorf("%w: no enhancer configured", facerr.ErrEnhancementFailure)
	}

	rect := image.Rect(faceBox.Min.X, faceBox.Min.Y, faceBox.Max.X, faceBox.Max.Y).
		Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return nil, gocv.Mat{}, fmt.Errorf("%w: empty face box", facerr.ErrEnhancementFailure)
	}

	crop := frame.Region(rect)
	defer crop.Close()

	enhanced, err := s.enhancer.Enhance(crop)
	if err != nil {
		enhanced.Close()
		return nil, gocv.Mat{}, fmt.Errorf("%w: %w", facerr.ErrEnhancementFailure, err)
	}

	scale := s.enhancer.Scale()
	if enhanced.Empty() || enhanced.Cols() != rect.Dx()*scale || enhanced.Rows() != rect.Dy()*scale {
		got := image.Pt(enhanced.Cols(), enhanced.Rows())
		enhanced.Close()
		return nil, gocv.Mat{}, fmt.Errorf("%w: got %v for a %dx crop of %v", facerr.ErrEnhancementFailure, got, scale, rect.Size())
	}

	set, err := s.detector.Detect(enhanced)
	if err != nil {
		enhanced.Close()
		return nil, gocv.Mat{}, fmt.Errorf("landmark detection on enhanced crop failed: %w", err)
	}
	if set.Empty() {
		enhanced.Close()
		return nil, gocv.Mat{}, fmt.Errorf("enhanced crop: %w", facerr.ErrNoFaceDetected)
	}

	metrics, err := s.aggregator.Compute(set, enhanced.Cols(), enhanced.Rows(), facemetrics.Options{Pose: opts.Pose})
	if err != nil {
		enhanced.Close()
		return nil, gocv.Mat{}, fmt.Errorf("enhanced crop: %w", err)
	}

	return metrics, enhanced, nil
}
