// Package annotate draws face metrics onto a frame for previews and debugging.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/eye"
	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/landmark"
)

var (
	faceColor     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	eyeColor      = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	irisColor     = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	refinedColor  = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	closedColor   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	landmarkColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// Draw paints boxes, iris centers, eye states, depth and pose onto img
func Draw(img *gocv.Mat, m *facemetrics.FaceMetrics) {
	if m == nil || img.Empty() {
		return
	}

	rect(img, m.FaceBox, faceColor, 2)
	rect(img, m.LeftEyeBox, eyeColor, 1)
	rect(img, m.RightEyeBox, eyeColor, 1)
	rect(img, m.LeftIrisBox, irisColor, 1)
	rect(img, m.RightIrisBox, irisColor, 1)

	for _, c := range []eye.IrisCenter{m.LeftIris, m.RightIris} {
		gocv.Circle(img, pt(c.Constrained), 2, irisColor, -1)
		gocv.Circle(img, pt(c.Refined), 1, refinedColor, -1)
	}

	gocv.Line(img, pt(m.EyeCenters.Left), pt(m.EyeCenters.Right), eyeColor, 1)
	gocv.Circle(img, pt(m.EyeCenters.Between), 2, eyeColor, -1)

	for _, p := range m.Landmarks {
		gocv.Circle(img, pt(p), 2, landmarkColor, -1)
	}

	label(img, m.LeftEye, m.LeftEyeBox)
	label(img, m.RightEye, m.RightEyeBox)

	lines := []string{
		fmt.Sprintf("depth %.1fcm  L %.1f  R %.1f  chin %.1f", m.Depth.Face, m.Depth.LeftEye, m.Depth.RightEye, m.Depth.Chin),
	}
	if m.Pose != nil {
		lines = append(lines, fmt.Sprintf("pitch %.1f  yaw %.1f  roll %.1f", m.Pose.Pitch, m.Pose.Yaw, m.Pose.Roll))
	}

	origin := image.Pt(m.FaceBox.Min.X, m.FaceBox.Max.Y+18)
	for i, line := range lines {
		gocv.PutText(img, line, origin.Add(image.Pt(0, i*18)), gocv.FontHersheyPlain, 1.1, textColor, 1)
	}
}

// Status writes a one-line status message in the top-left corner
func Status(img *gocv.Mat, text string) {
	gocv.PutText(img, text, image.Pt(10, 60), gocv.FontHersheyPlain, 1.5, closedColor, 2)
}

func label(img *gocv.Mat, s eye.State, b landmark.Box) {
	c := textColor
	if s.Label == eye.Closed {
		c = closedColor
	}
	text := fmt.Sprintf("%s %.3f", s.Label, s.Ratio)
	gocv.PutText(img, text, image.Pt(b.Min.X, b.Min.Y-4), gocv.FontHersheyPlain, 0.9, c, 1)
}

func rect(img *gocv.Mat, b landmark.Box, c color.RGBA, thickness int) {
	gocv.Rectangle(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y), c, thickness)
}

func pt(p landmark.Point) image.Point {
	return image.Pt(p.X, p.Y)
}
