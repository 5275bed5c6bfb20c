package pipeline

import (
	"errors"

	"github.com/dudu/facegaze/internal/facerr"
)

// State is a step of per-frame processing
type State string

const (
	AwaitingFrame        State = "awaiting_frame"
	LandmarksDetected    State = "landmarks_detected"
	MetricsComputed      State = "metrics_computed"
	EnhancementRequested State = "enhancement_requested"
	MetricsRecomputed    State = "metrics_recomputed"
	NoFace               State = "no_face"
	Done                 State = "done"
)

// Outcome labels a finished frame for logs and counters
type Outcome string

const (
	OutcomeMetrics             Outcome = "metrics"
	OutcomeNoFace              Outcome = "no_face"
	OutcomeMissingLandmark     Outcome = "missing_landmark"
	OutcomeTimestampRegression Outcome = "timestamp_regression"
	OutcomeEnhancementFallback Outcome = "enhancement_fallback"
	OutcomeError               Outcome = "error"
)

func outcomeOf(hasMetrics bool, reason error) Outcome {
	switch {
	case hasMetrics && reason == nil:
		return OutcomeMetrics
	case hasMetrics && errors.Is(reason, facerr.ErrEnhancementFailure):
		return OutcomeEnhancementFallback
	case errors.Is(reason, facerr.ErrTimestampRegression):
		return OutcomeTimestampRegression
	case errors.Is(reason, facerr.ErrMissingLandmark), errors.Is(reason, facerr.ErrEmptyPoints):
		return OutcomeMissingLandmark
	case errors.Is(reason, facerr.ErrNoFaceDetected):
		return OutcomeNoFace
	default:
		return OutcomeError
	}
}
