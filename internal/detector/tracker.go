package detector

import (
	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/landmark"
)

// Tracker holds video-mode state for one stream: the last accepted
// timestamp and the landmarks that seed the next frame's region.
type Tracker struct {
	last     int64
	started  bool
	previous *landmark.Set
}

// Advance accepts timestampMs only if it is strictly after the last accepted one
func (t *Tracker) Advance(timestampMs int64) error {
	if t.started && timestampMs <= t.last {
		return &facerr.TimestampRegressionError{Timestamp: timestampMs, Last: t.last}
	}
	t.last = timestampMs
	t.started = true
	return nil
}

// Update records the latest fit; an empty set drops tracking
func (t *Tracker) Update(set *landmark.Set) {
	if set.Empty() {
		t.previous = nil
		return
	}
	t.previous = set
}

// Region returns the previous landmarks' extent in pixels, if any
func (t *Tracker) Region(width, height int) (BoundingBox, bool) {
	if t.previous == nil {
		return BoundingBox{}, false
	}
	return regionFromSet(t.previous, width, height)
}

// Last returns the last accepted timestamp
func (t *Tracker) Last() (int64, bool) {
	return t.last, t.started
}

// Reset forgets timestamps and tracked landmarks
func (t *Tracker) Reset() {
	*t = Tracker{}
}
