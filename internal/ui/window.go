// Package ui shows processed frames in a preview window.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/annotate"
	"github.com/dudu/facegaze/internal/pipeline"
)

// fpsSmoothing weights the newest frame interval in the moving average
const fpsSmoothing = 0.1

var overlayColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Preview draws pipeline results into a named highgui window
type Preview struct {
	win  *gocv.Window
	prev time.Time
	fps  float64
}

// NewPreview opens a preview window titled title
func NewPreview(title string) *Preview {
	win := gocv.NewWindow(title)
	win.ResizeWindow(1280, 720)
	return &Preview{win: win}
}

// Show renders the result's output frame with frame rate, stage timings and,
// when no metrics were produced, the outcome. The result is not modified.
func (p *Preview) Show(res *pipeline.Result) {
	p.tick(time.Now())

	out := res.Output()
	if out.Empty() {
		return
	}
	view := out.Clone()
	defer view.Close()

	t := res.Timing
	line := fmt.Sprintf("%.1f FPS  det %dms  metrics %dms", p.fps,
		t.Detection.Milliseconds(), t.Metrics.Milliseconds())
	if t.Enhancement > 0 {
		line += fmt.Sprintf("  enh %dms", t.Enhancement.Milliseconds())
	}
	gocv.PutText(&view, line, image.Pt(10, view.Rows()-12),
		gocv.FontHersheyPlain, 1.4, overlayColor, 2)

	if res.Metrics == nil {
		annotate.Status(&view, string(res.Outcome()))
	}

	p.win.IMShow(view)
}

func (p *Preview) tick(now time.Time) {
	if !p.prev.IsZero() {
		if dt := now.Sub(p.prev).Seconds(); dt > 0 {
			inst := 1 / dt
			if p.fps == 0 {
				p.fps = inst
			} else {
				p.fps += fpsSmoothing * (inst - p.fps)
			}
		}
	}
	p.prev = now
}

// Quit pumps window events for delayMs and reports whether q or Esc was pressed
func (p *Preview) Quit(delayMs int) bool {
	key := p.win.WaitKey(delayMs)
	return key == 'q' || key == 27
}

// FPS returns the smoothed display rate
func (p *Preview) FPS() float64 {
	return p.fps
}

// Close destroys the window
func (p *Preview) Close() error {
	return p.win.Close()
}
