package detector

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// PigoConfig tunes the cascade locator
type PigoConfig struct {
	CascadePath  string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	MinQuality   float32
	IoUThreshold float64
}

// DefaultPigoConfig returns the cascade settings used for webcam-sized frames
func DefaultPigoConfig(cascadePath string) PigoConfig {
	return PigoConfig{
		CascadePath:  cascadePath,
		MinSize:      60,
		MaxSize:      1600,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		MinQuality:   5.0,
		IoUThreshold: 0.2,
	}
}

// Pigo locates faces with a pixel-intensity cascade; it needs no ONNX model
type Pigo struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
	log        logrus.FieldLogger
}

// NewPigo unpacks the facefinder cascade
func NewPigo(log logrus.FieldLogger, cfg PigoConfig) (*Pigo, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade file: %w", err)
	}

	log.WithField("cascade", cfg.CascadePath).Info("pigo cascade loaded")

	return &Pigo{
		classifier: classifier,
		cfg:        cfg,
		log:        log.WithField("component", "pigo"),
	}, nil
}

// Locate finds faces in a BGR frame
func (p *Pigo) Locate(img gocv.Mat) ([]Face, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	rows, cols := gray.Rows(), gray.Cols()
	params := pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     min(p.cfg.MaxSize, max(rows, cols)),
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.cfg.IoUThreshold)

	faces := detectionsToFaces(dets, p.cfg.MinQuality, cols, rows)
	p.log.WithField("faces", len(faces)).Debug("located")
	return faces, nil
}

// Close is a no-op; the cascade lives in Go memory
func (p *Pigo) Close() error {
	return nil
}

// detectionsToFaces converts centre/scale detections into clamped boxes
func detectionsToFaces(dets []pigo.Detection, minQuality float32, width, height int) []Face {
	faces := make([]Face, 0, len(dets))
	for _, d := range dets {
		if d.Q < minQuality {
			continue
		}
		half := float32(d.Scale) / 2
		cx, cy := float32(d.Col), float32(d.Row)
		faces = append(faces, Face{
			BoundingBox: BoundingBox{
				X1: clamp(cx-half, 0, float32(width)),
				Y1: clamp(cy-half, 0, float32(height)),
				X2: clamp(cx+half, 0, float32(width)),
				Y2: clamp(cy+half, 0, float32(height)),
			},
			Score: d.Q,
		})
	}
	return faces
}
