// Package enhancer super-resolves face crops with ONNX models. Every
// enhancer returns exactly Factor times the input size.
package enhancer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Factor is the upscale factor shared by all enhancers
const Factor = 4

// Upscaler is what the constructors in this package return
type Upscaler interface {
	Enhance(region gocv.Mat) (gocv.Mat, error)
	Scale() int
	Close() error
}

// Open loads the enhancer named by kind ("realesrgan" or "gfpgan")
func Open(log logrus.FieldLogger, kind, modelPath string) (Upscaler, error) {
	var (
		up  Upscaler
		err error
	)
	switch kind {
	case "realesrgan":
		up, err = NewRealESRGAN(log, modelPath)
	case "gfpgan":
		up, err = NewGFPGAN(log, modelPath)
	default:
		return nil, fmt.Errorf("unknown enhancer %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return up, nil
}

// bgrToNCHW converts interleaved BGR bytes to planar RGB floats in [0,1]
func bgrToNCHW(pixels []byte, height, width int) []float32 {
	size := height * width
	out := make([]float32, 3*size)
	for idx := 0; idx < size; idx++ {
		p := pixels[idx*3:]
		out[0*size+idx] = float32(p[2]) / 255.0
		out[1*size+idx] = float32(p[1]) / 255.0
		out[2*size+idx] = float32(p[0]) / 255.0
	}
	return out
}

// nchwToBGR converts planar RGB floats in [0,1] back to interleaved BGR bytes
func nchwToBGR(output []float32, height, width int) []byte {
	size := height * width
	pixels := make([]byte, size*3)
	for idx := 0; idx < size; idx++ {
		r := clamp(output[0*size+idx]*255.0, 0, 255)
		g := clamp(output[1*size+idx]*255.0, 0, 255)
		b := clamp(output[2*size+idx]*255.0, 0, 255)

		pixels[idx*3+0] = uint8(b + 0.5)
		pixels[idx*3+1] = uint8(g + 0.5)
		pixels[idx*3+2] = uint8(r + 0.5)
	}
	return pixels
}

// continuousBGR returns the region's pixels, copying when it is a view into a larger Mat
func continuousBGR(region gocv.Mat) ([]byte, error) {
	if region.Empty() {
		return nil, fmt.Errorf("empty region")
	}
	if region.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("region must be 8-bit BGR, got %v", region.Type())
	}
	if region.IsContinuous() {
		return region.ToBytes(), nil
	}
	clone := region.Clone()
	defer clone.Close()
	return clone.ToBytes(), nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
