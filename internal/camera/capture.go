// Package camera reads frames from a webcam or a video file with
// strictly increasing millisecond timestamps for video-mode processing.
package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture manages frame capture
type Capture struct {
	source   *gocv.VideoCapture
	name     string
	width    int
	height   int
	fromFile bool

	start  time.Time
	lastTs int64
	mu     sync.Mutex
}

// OpenDevice opens a webcam with the requested resolution and frame rate
func OpenDevice(deviceID, targetFPS, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	return newCapture(webcam, fmt.Sprintf("camera %d", deviceID), false), nil
}

// OpenFile opens a video file; timestamps follow the container position
func OpenFile(path string) (*Capture, error) {
	video, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	return newCapture(video, path, true), nil
}

func newCapture(source *gocv.VideoCapture, name string, fromFile bool) *Capture {
	// the device may not support the requested resolution
	return &Capture{
		source:   source,
		name:     name,
		width:    int(source.Get(gocv.VideoCaptureFrameWidth)),
		height:   int(source.Get(gocv.VideoCaptureFrameHeight)),
		fromFile: fromFile,
		start:    time.Now(),
		lastTs:   -1,
	}
}

// Read captures a frame into frame and returns its timestamp in milliseconds
func (c *Capture) Read(frame *gocv.Mat) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil || !c.source.Read(frame) || frame.Empty() {
		return 0, false
	}

	var ts int64
	if c.fromFile {
		ts = int64(c.source.Get(gocv.VideoCapturePosMsec))
	} else {
		ts = time.Since(c.start).Milliseconds()
	}
	c.lastTs = nextTimestamp(c.lastTs, ts)
	return c.lastTs, true
}

// nextTimestamp keeps timestamps strictly increasing when the clock or
// container repeats a value
func nextTimestamp(last, ts int64) int64 {
	if ts <= last {
		return last + 1
	}
	return ts
}

// Name describes the source
func (c *Capture) Name() string {
	return c.name
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the source
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		err := c.source.Close()
		c.source = nil
		return err
	}
	return nil
}
