package enhancer

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/inference"
)

const gfpganInputSize = 512

// GFPGAN restores a face at 512x512 and resamples the result to Factor
// times the input size, so it can stand in for RealESRGAN.
type GFPGAN struct {
	session *inference.Session
	log     logrus.FieldLogger
}

// NewGFPGAN loads the model
func NewGFPGAN(log logrus.FieldLogger, modelPath string) (*GFPGAN, error) {
	session, err := inference.NewSession(log, modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, fmt.Errorf("failed to create GFPGAN session: %w", err)
	}

	return &GFPGAN{
		session: session,
		log:     log.WithField("component", "gfpgan"),
	}, nil
}

// Enhance restores region and returns it at Factor times its size
func (g *GFPGAN) Enhance(region gocv.Mat) (gocv.Mat, error) {
	if region.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty region")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(region, &resized, image.Pt(gfpganInputSize, gfpganInputSize), 0, 0, gocv.InterpolationCubic)

	pixels, err := continuousBGR(resized)
	if err != nil {
		return gocv.NewMat(), err
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, gfpganInputSize, gfpganInputSize},
		bgrToNCHW(pixels, gfpganInputSize, gfpganInputSize))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 3, gfpganInputSize, gfpganInputSize})
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := g.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return gocv.NewMat(), fmt.Errorf("GFPGAN inference failed: %w", err)
	}

	restored, err := gocv.NewMatFromBytes(gfpganInputSize, gfpganInputSize, gocv.MatTypeCV8UC3,
		nchwToBGR(outputTensor.GetData(), gfpganInputSize, gfpganInputSize))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build output image: %w", err)
	}
	defer restored.Close()

	result := gocv.NewMat()
	gocv.Resize(restored, &result, image.Pt(region.Cols()*Factor, region.Rows()*Factor), 0, 0, gocv.InterpolationCubic)
	return result, nil
}

// Scale returns the upscale factor
func (g *GFPGAN) Scale() int {
	return Factor
}

// Close releases resources
func (g *GFPGAN) Close() error {
	return g.session.Destroy()
}
