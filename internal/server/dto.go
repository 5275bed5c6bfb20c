package server

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/pipeline"
)

// MetricsRequest is the JSON form of an image request
type MetricsRequest struct {
	Image    string `json:"image" validate:"required,base64"`
	Pose     bool   `json:"pose"`
	Enhance  bool   `json:"enhance"`
	Annotate bool   `json:"annotate"`
}

// FrameMessage is a websocket text message carrying one video frame
type FrameMessage struct {
	Image       string `json:"image" validate:"required,base64"`
	TimestampMs int64  `json:"timestamp_ms" validate:"gte=0"`
	Pose        bool   `json:"pose"`
	Enhance     bool   `json:"enhance"`
	Annotate    bool   `json:"annotate"`
}

// TimingResponse reports stage latencies in milliseconds
type TimingResponse struct {
	DetectionMs   float64 `json:"detection_ms"`
	MetricsMs     float64 `json:"metrics_ms"`
	EnhancementMs float64 `json:"enhancement_ms,omitempty"`
	TotalMs       float64 `json:"total_ms"`
}

// MetricsResponse is returned for every processed frame
type MetricsResponse struct {
	RequestID   string                   `json:"request_id,omitempty"`
	SessionID   string                   `json:"session_id"`
	Frame       int                      `json:"frame"`
	TimestampMs *int64                   `json:"timestamp_ms,omitempty"`
	Outcome     pipeline.Outcome         `json:"outcome"`
	State       pipeline.State           `json:"state"`
	Trace       []pipeline.State         `json:"trace"`
	Reason      string                   `json:"reason,omitempty"`
	Metrics     *facemetrics.FaceMetrics `json:"metrics"`
	Timing      TimingResponse           `json:"timing"`
	Annotated   string                   `json:"annotated,omitempty"` // base64 JPEG
	Enhanced    string                   `json:"enhanced,omitempty"`  // base64 JPEG
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func toResponse(sessionID string, r *pipeline.Result) (*MetricsResponse, error) {
	resp := &MetricsResponse{
		SessionID:   sessionID,
		Frame:       r.Index,
		TimestampMs: r.TimestampMs,
		Outcome:     r.Outcome(),
		State:       r.State(),
		Trace:       r.Trace,
		Metrics:     r.Metrics,
		Timing: TimingResponse{
			DetectionMs:   ms(r.Timing.Detection.Seconds()),
			MetricsMs:     ms(r.Timing.Metrics.Seconds()),
			EnhancementMs: ms(r.Timing.Enhancement.Seconds()),
			TotalMs:       ms(r.Timing.Total.Seconds()),
		},
	}
	if r.Reason != nil {
		resp.Reason = r.Reason.Error()
	}

	var err error
	if resp.Annotated, err = encodeJPEG(r.Annotated); err != nil {
		return nil, fmt.Errorf("annotated frame: %w", err)
	}
	if resp.Enhanced, err = encodeJPEG(r.Enhanced); err != nil {
		return nil, fmt.Errorf("enhanced crop: %w", err)
	}
	return resp, nil
}

func ms(seconds float64) float64 {
	return seconds * 1000
}

// encodeJPEG returns "" for an empty Mat
func encodeJPEG(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return "", err
	}
	defer buf.Close()
	return base64.StdEncoding.EncodeToString(buf.GetBytes()), nil
}

// decodeImage decodes any format OpenCV reads into a BGR Mat
func decodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Empty() {
		return img, fmt.Errorf("failed to decode image")
	}
	return img, nil
}
