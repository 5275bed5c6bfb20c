// Package detector turns frames into normalized face landmark sets:
// a locator finds the face, a mesh model fits 478 landmarks inside it.
package detector

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/landmark"
)

// Detector combines a locator and a mesher. Image mode locates on every
// frame; video mode fits inside the previous frame's landmarks first.
type Detector struct {
	locator Locator
	mesher  Mesher
	tracker Tracker
	log     logrus.FieldLogger
	shared  bool
}

// New takes ownership of locator and mesher
func New(log logrus.FieldLogger, locator Locator, mesher Mesher) *Detector {
	return &Detector{
		locator: locator,
		mesher:  mesher,
		log:     log.WithField("component", "detector"),
	}
}

// Fork returns a detector over the same models with its own tracker.
// Closing a fork leaves the models open.
func (d *Detector) Fork() *Detector {
	return &Detector{
		locator: d.locator,
		mesher:  d.mesher,
		log:     d.log,
		shared:  true,
	}
}

// Detect runs image mode. The returned set is empty when no face is found.
func (d *Detector) Detect(img gocv.Mat) (*landmark.Set, error) {
	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	faces, err := d.locator.Locate(img)
	if err != nil {
		return nil, fmt.Errorf("face locator failed: %w", err)
	}

	face, ok := largest(faces)
	if !ok {
		return landmark.NewSet(nil), nil
	}

	set, err := d.mesher.Fit(img, face.BoundingBox)
	if err != nil {
		return nil, fmt.Errorf("landmark fit failed: %w", err)
	}
	return set, nil
}

// DetectForVideo runs video mode; timestampMs must strictly increase
func (d *Detector) DetectForVideo(img gocv.Mat, timestampMs int64) (*landmark.Set, error) {
	if err := d.tracker.Advance(timestampMs); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	if region, ok := d.tracker.Region(img.Cols(), img.Rows()); ok {
		set, err := d.mesher.Fit(img, region)
		if err != nil {
			return nil, fmt.Errorf("landmark fit failed: %w", err)
		}
		if !set.Empty() {
			d.tracker.Update(set)
			return set, nil
		}
		d.log.WithField("timestamp_ms", timestampMs).Debug("lost track, relocating")
	}

	set, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	d.tracker.Update(set)
	return set, nil
}

// Close releases the locator and the mesher
func (d *Detector) Close() error {
	if d.shared {
		return nil
	}

	var errs []error
	if d.locator != nil {
		if err := d.locator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("locator: %w", err))
		}
	}
	if d.mesher != nil {
		if err := d.mesher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mesher: %w", err))
		}
	}
	return errors.Join(errs...)
}
