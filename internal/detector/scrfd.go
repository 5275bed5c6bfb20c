package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/inference"
)

// SCRFDConfig tunes the SCRFD locator
type SCRFDConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
}

// SCRFD locates faces with the SCRFD detector
type SCRFD struct {
	session        *inference.Session
	log            logrus.FieldLogger
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD loads an SCRFD model
func NewSCRFD(log logrus.FieldLogger, cfg SCRFDConfig) (*SCRFD, error) {
	// 1 input and 9 outputs (3 levels × score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(log, cfg.ModelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		log:            log.WithField("component", "scrfd"),
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Locate finds faces in a BGR frame
func (s *SCRFD) Locate(img gocv.Mat) ([]Face, error) {
	origHeight := img.Rows()
	origWidth := img.Cols()

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	blobData, err := inputBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read input blob: %w", err)
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(s.inputSize), int64(s.inputSize)}, append([]float32(nil), blobData...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 9)
	defer func() {
		for _, t := range outputTensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	widths := []int64{1, 4, 10}
	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		numAnchors := int64(fm * fm * s.numAnchors)
		for kind, width := range widths {
			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[kind*3+level] = t
			outputTensors[kind*3+level] = t
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := make([][]float32, len(outputTensors))
	for i, t := range outputTensors {
		data[i] = t.GetData()
	}

	faces := s.postprocess(data, scale, origWidth, origHeight)
	faces = nms(faces, s.nmsThreshold)
	s.log.WithField("faces", len(faces)).Debug("located")

	return faces, nil
}

// preprocess letterboxes into the square input and normalizes to (x - 127.5) / 128
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()
	resized.Close()

	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	padded.Close()

	return blob, scale
}

// postprocess decodes the score, bbox and kps outputs (ordered score_8..kps_32) to faces
func (s *SCRFD) postprocess(outputs [][]float32, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		fstride := float32(stride)

		scoreData := outputs[level]
		bboxData := outputs[level+3]
		kpsData := outputs[level+6]

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := scoreData[anchorIdx]
					if score < 0 || score > 1 {
						score = sigmoid(score)
					}

					if score > s.confThreshold {
						cx := float32(x) * fstride
						cy := float32(y) * fstride

						b := bboxData[anchorIdx*4:]
						box := BoundingBox{
							X1: clamp((cx-b[0]*fstride)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-b[1]*fstride)/scale, 0, float32(origHeight)),
							X2: clamp((cx+b[2]*fstride)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+b[3]*fstride)/scale, 0, float32(origHeight)),
						}

						k := kpsData[anchorIdx*10:]
						kp := func(i int) Point {
							return Point{X: (cx + k[i*2]*fstride) / scale, Y: (cy + k[i*2+1]*fstride) / scale}
						}

						faces = append(faces, Face{
							BoundingBox: box,
							Keypoints: &Keypoints{
								LeftEye:    kp(0),
								RightEye:   kp(1),
								Nose:       kp(2),
								LeftMouth:  kp(3),
								RightMouth: kp(4),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}
