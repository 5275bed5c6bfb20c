package enhancer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/inference"
)

// RealESRGAN upscales with the Real-ESRGAN x4v3 general model.
// Input: any size BGR region, output: 4x upscaled region.
type RealESRGAN struct {
	session *inference.Session
	log     logrus.FieldLogger
}

// NewRealESRGAN loads the model
func NewRealESRGAN(log logrus.FieldLogger, modelPath string) (*RealESRGAN, error) {
	session, err := inference.NewSession(log, modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, fmt.Errorf("failed to create RealESRGAN session: %w", err)
	}

	return &RealESRGAN{
		session: session,
		log:     log.WithField("component", "realesrgan"),
	}, nil
}

// Enhance upscales region by Factor
func (r *RealESRGAN) Enhance(region gocv.Mat) (gocv.Mat, error) {
	height := region.Rows()
	width := region.Cols()

	pixels, err := continuousBGR(region)
	if err != nil {
		return gocv.NewMat(), err
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(height), int64(width)}, bgrToNCHW(pixels, height, width))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outHeight := height * Factor
	outWidth := width * Factor

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 3, int64(outHeight), int64(outWidth)})
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := r.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return gocv.NewMat(), fmt.Errorf("RealESRGAN inference failed: %w", err)
	}

	result, err := gocv.NewMatFromBytes(outHeight, outWidth, gocv.MatTypeCV8UC3, nchwToBGR(outputTensor.GetData(), outHeight, outWidth))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build output image: %w", err)
	}

	r.log.WithFields(logrus.Fields{"in": fmt.Sprintf("%dx%d", width, height), "out": fmt.Sprintf("%dx%d", outWidth, outHeight)}).Debug("upscaled")
	return result, nil
}

// Scale returns the upscale factor
func (r *RealESRGAN) Scale() int {
	return Factor
}

// Close releases resources
func (r *RealESRGAN) Close() error {
	return r.session.Destroy()
}
