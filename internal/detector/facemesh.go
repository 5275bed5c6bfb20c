package detector

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/facerr"
	"github.com/dudu/facegaze/internal/inference"
	"github.com/dudu/facegaze/internal/landmark"
)

// FaceMeshConfig describes the iris-refined face mesh model
type FaceMeshConfig struct {
	ModelPath      string
	InputSize      int     // square NHWC input, RGB in [0,1]
	RegionScale    float32 // crop side relative to the larger side of the located box
	MinPresence    float32 // face-presence probability below which the fit is empty
	InputName      string
	LandmarkOutput string
	ScoreOutput    string
}

// DefaultFaceMeshConfig matches the 192px attention mesh export
func DefaultFaceMeshConfig(modelPath string) FaceMeshConfig {
	return FaceMeshConfig{
		ModelPath:      modelPath,
		InputSize:      192,
		RegionScale:    1.5,
		MinPresence:    0.5,
		InputName:      "input_1",
		LandmarkOutput: "Identity",
		ScoreOutput:    "Identity_1",
	}
}

// FaceMesh fits 478 normalized landmarks (468 mesh + 10 iris) inside a face region
type FaceMesh struct {
	session *inference.Session
	cfg     FaceMeshConfig
	log     logrus.FieldLogger
}

// NewFaceMesh loads the mesh model
func NewFaceMesh(log logrus.FieldLogger, cfg FaceMeshConfig) (*FaceMesh, error) {
	session, err := inference.NewSession(log, cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.LandmarkOutput, cfg.ScoreOutput})
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}

	return &FaceMesh{
		session: session,
		cfg:     cfg,
		log:     log.WithField("component", "facemesh"),
	}, nil
}

// Fit runs the mesh over a square crop centred on region. An empty set means no face.
func (f *FaceMesh) Fit(img gocv.Mat, region BoundingBox) (*landmark.Set, error) {
	center := region.Center()
	side := max(region.Width(), region.Height()) * f.cfg.RegionScale
	if side <= 0 {
		return landmark.NewSet(nil), nil
	}
	scale := float32(f.cfg.InputSize) / side

	M := cropTransform(center, scale, f.cfg.InputSize)
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(f.cfg.InputSize, f.cfg.InputSize))
	M.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(aligned, &rgb, gocv.ColorBGRToRGB)

	floatMat := gocv.NewMat()
	defer floatMat.Close()
	rgb.ConvertToWithParams(&floatMat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	pixels, err := floatMat.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read crop: %w", err)
	}

	size := int64(f.cfg.InputSize)
	inputTensor, err := inference.CreateTensor([]int64{1, size, size, 3}, append([]float32(nil), pixels...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// output shapes differ between exports, so let the runtime allocate them
	outputs := []ort.Value{nil, nil}
	if err := f.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("face mesh inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	coords, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected landmark output type %T", outputs[0])
	}
	score, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected score output type %T", outputs[1])
	}

	presence := float32(0)
	if data := score.GetData(); len(data) > 0 {
		presence = sigmoid(data[0])
	}
	if presence < f.cfg.MinPresence {
		f.log.WithField("presence", presence).Debug("no face in region")
		return landmark.NewSet(nil), nil
	}

	return meshToSet(coords.GetData(), f.cfg.InputSize, center, scale, img.Cols(), img.Rows())
}

// Close releases model resources
func (f *FaceMesh) Close() error {
	return f.session.Destroy()
}

// cropTransform maps a square of side inputSize/scale around center onto the model input
func cropTransform(center Point, scale float32, inputSize int) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)

	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, float64(inputSize)/2-float64(center.X*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, float64(inputSize)/2-float64(center.Y*scale))

	return M
}

// meshToSet maps x,y,z triples in crop pixels back to frame-normalized landmarks.
// z shares the x scale, as the mesh model defines it.
func meshToSet(coords []float32, inputSize int, center Point, scale float32, width, height int) (*landmark.Set, error) {
	if len(coords)%3 != 0 || len(coords)/3 < landmark.NumMeshLandmarks {
		return nil, fmt.Errorf("face mesh returned %d values, want %d triples", len(coords), landmark.NumRefinedLandmarks)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	half := float32(inputSize) / 2
	n := len(coords) / 3
	points := make([]landmark.Landmark, n)
	for i := 0; i < n; i++ {
		x := (coords[i*3]-half)/scale + center.X
		y := (coords[i*3+1]-half)/scale + center.Y
		z := coords[i*3+2] / scale
		points[i] = landmark.Landmark{
			X: float64(x) / float64(width),
			Y: float64(y) / float64(height),
			Z: float64(z) / float64(width),
		}
		if !points[i].Finite() {
			return nil, fmt.Errorf("face mesh: %w", &facerr.MalformedLandmarkError{Index: i})
		}
	}

	return landmark.NewSet(points), nil
}
