// Package pipeline runs frames through landmark detection, face metrics and
// the optional super-resolution second pass.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dudu/facegaze/internal/config"
	"github.com/dudu/facegaze/internal/detector"
	"github.com/dudu/facegaze/internal/enhancer"
	"github.com/dudu/facegaze/internal/inference"
)

// Pipeline owns the loaded models. Sessions borrow them; each session gets
// its own tracker.
type Pipeline struct {
	config   config.Config
	log      logrus.FieldLogger
	detector *detector.Detector
	enhancer enhancer.Upscaler
}

// New initializes ONNX Runtime and loads the locator, mesh and enhancer models
func New(log logrus.FieldLogger, cfg config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := inference.Initialize(cfg.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	locator, err := newLocator(log, cfg)
	if err != nil {
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create face locator: %w", err)
	}

	mesh, err := detector.NewFaceMesh(log, detector.DefaultFaceMeshConfig(cfg.FaceMeshModelPath))
	if err != nil {
		locator.Close()
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create face mesh: %w", err)
	}

	p := &Pipeline{
		config:   cfg,
		log:      log,
		detector: detector.New(log, locator, mesh),
	}

	if cfg.EnhancerKind != "" && cfg.EnhancerModelPath != "" {
		up, err := enhancer.Open(log, cfg.EnhancerKind, cfg.EnhancerModelPath)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create enhancer: %w", err)
		}
		p.enhancer = up
	}

	log.WithFields(logrus.Fields{
		"mesh":     cfg.FaceMeshModelPath,
		"enhancer": cfg.EnhancerKind,
	}).Info("pipeline ready")

	return p, nil
}

func newLocator(log logrus.FieldLogger, cfg config.Config) (detector.Locator, error) {
	if cfg.LocatorModelPath != "" {
		scrfd, err := detector.NewSCRFD(log, detector.SCRFDConfig{
			ModelPath:     cfg.LocatorModelPath,
			InputSize:     cfg.DetectionSize,
			ConfThreshold: cfg.ConfThreshold,
			NMSThreshold:  cfg.NMSThreshold,
		})
		if err == nil {
			return scrfd, nil
		}
		if cfg.PigoCascadePath == "" {
			return nil, err
		}
		log.WithError(err).Warn("SCRFD unavailable, falling back to pigo")
	}
	cascade, err := detector.NewPigo(log, detector.DefaultPigoConfig(cfg.PigoCascadePath))
	if err != nil {
		return nil, err
	}
	return cascade, nil
}

// NewSession returns a session over the shared models
func (p *Pipeline) NewSession(opts ...SessionOption) *Session {
	base := []SessionOption{}
	if p.enhancer != nil {
		base = append(base, WithEnhancer(p.enhancer))
	}
	return NewSession(p.log, p.detector.Fork(), append(base, opts...)...)
}

// HasEnhancer reports whether a second pass is available
func (p *Pipeline) HasEnhancer() bool {
	return p.enhancer != nil
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.enhancer != nil {
		if err := p.enhancer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := inference.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
