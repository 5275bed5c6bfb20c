package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/metrics"
	"github.com/dudu/facegaze/internal/pipeline"
)

// SessionFactory hands out processing sessions over shared models
type SessionFactory interface {
	NewSession(opts ...pipeline.SessionOption) *pipeline.Session
}

// FaceHandler serves single images over HTTP and video streams over websocket
type FaceHandler struct {
	log       logrus.FieldLogger
	validator *validator.Validate
	sessions  SessionFactory
	stats     *metrics.Metrics
	timeout   time.Duration
}

// NewFaceHandler wires the face endpoints; stats may be nil
func NewFaceHandler(log logrus.FieldLogger, v *validator.Validate, sessions SessionFactory, stats *metrics.Metrics, timeout time.Duration) *FaceHandler {
	return &FaceHandler{
		log:       log,
		validator: v,
		sessions:  sessions,
		stats:     stats,
		timeout:   timeout,
	}
}

// Start registers routes under srv
func (h *FaceHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	face := srv.Group("/face")
	face.Post("/metrics", h.ComputeMetrics)
	face.Use("/ws", wsMiddleware)
	face.Get("/ws", websocket.New(h.handleWebSocket))
}

type processed struct {
	resp *MetricsResponse
	err  error
}

// ComputeMetrics measures one image sent as multipart "image" or as JSON base64
func (h *FaceHandler) ComputeMetrics(c *fiber.Ctx) error {
	reqID := requestID(c)

	data, opts, err := h.readImageRequest(c)
	if err != nil {
		return h.errorResponse(c, reqID, fiber.StatusBadRequest, "INVALID_REQUEST", err)
	}

	img, err := decodeImage(data)
	if err != nil {
		img.Close()
		return h.errorResponse(c, reqID, fiber.StatusBadRequest, "INVALID_IMAGE", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	// the goroutine owns img and the session; a timed out request leaves it to finish
	done := make(chan processed, 1)
	go func() {
		defer img.Close()
		resp, err := h.processImage(img, opts)
		done <- processed{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return h.errorResponse(c, reqID, fiber.StatusGatewayTimeout, "TIMEOUT", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return h.errorResponse(c, reqID, fiber.StatusInternalServerError, "ENCODE_FAILED", out.err)
		}
		out.resp.RequestID = reqID
		return c.Status(statusFor(out.resp.Outcome)).JSON(out.resp)
	}
}

func (h *FaceHandler) processImage(img gocv.Mat, opts pipeline.Options) (*MetricsResponse, error) {
	session := h.openSession()
	defer h.closeSession(session)

	res := session.ProcessImage(img, opts)
	defer res.Close()

	return toResponse(session.ID(), res)
}

func (h *FaceHandler) readImageRequest(c *fiber.Ctx) ([]byte, pipeline.Options, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("image")
		if err != nil {
			return nil, pipeline.Options{}, fmt.Errorf("image file is required: %w", err)
		}
		f, err := file.Open()
		if err != nil {
			return nil, pipeline.Options{}, err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, pipeline.Options{}, err
		}

		opts := pipeline.Options{
			Pose:     formBool(c, "pose"),
			Enhance:  formBool(c, "enhance"),
			Annotate: formBool(c, "annotate"),
		}
		return data, opts, nil
	}

	var req MetricsRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, pipeline.Options{}, fmt.Errorf("invalid body: %w", err)
	}
	if err := h.validator.Struct(req); err != nil {
		return nil, pipeline.Options{}, err
	}

	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return nil, pipeline.Options{}, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, pipeline.Options{Pose: req.Pose, Enhance: req.Enhance, Annotate: req.Annotate}, nil
}

// handleWebSocket runs video mode for one connection. Binary messages are
// encoded frames stamped with the server clock; text messages are FrameMessage
// JSON carrying the client's own timestamp.
func (h *FaceHandler) handleWebSocket(c *websocket.Conn) {
	session := h.openSession()
	defer h.closeSession(session)

	log := h.log.WithField("session_id", session.ID())
	log.Info("video session opened")
	defer log.Info("video session closed")

	defaults := pipeline.Options{
		Pose:     queryBool(c.Query("pose")),
		Enhance:  queryBool(c.Query("enhance")),
		Annotate: queryBool(c.Query("annotate")),
	}
	clock := newStreamClock(time.Now())

	for {
		if err := c.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.WithError(err).Error("failed to set read deadline")
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket closed unexpectedly")
			}
			return
		}

		var (
			data []byte
			ts   int64
			opts = defaults
		)
		switch messageType {
		case websocket.BinaryMessage:
			data = message
			ts = clock.next(time.Now())
		case websocket.TextMessage:
			var frame FrameMessage
			if err := jsoniter.Unmarshal(message, &frame); err != nil {
				h.writeError(c, log, "INVALID_MESSAGE", err)
				continue
			}
			if err := h.validator.Struct(frame); err != nil {
				h.writeError(c, log, "INVALID_MESSAGE", err)
				continue
			}
			if data, err = base64.StdEncoding.DecodeString(frame.Image); err != nil {
				h.writeError(c, log, "INVALID_IMAGE", err)
				continue
			}
			ts = frame.TimestampMs
			opts = pipeline.Options{Pose: frame.Pose, Enhance: frame.Enhance, Annotate: frame.Annotate}
		default:
			continue
		}

		resp, err := h.processVideoFrame(session, data, ts, opts)
		if err != nil {
			h.writeError(c, log, "INVALID_IMAGE", err)
			continue
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			log.WithError(err).Error("failed to set write deadline")
			return
		}
		if err := c.WriteJSON(resp); err != nil {
			log.WithError(err).Error("failed to write frame result")
			return
		}
	}
}

func (h *FaceHandler) processVideoFrame(session *pipeline.Session, data []byte, ts int64, opts pipeline.Options) (*MetricsResponse, error) {
	img, err := decodeImage(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}

	res := session.ProcessVideo(img, ts, opts)
	defer res.Close()

	return toResponse(session.ID(), res)
}

func (h *FaceHandler) openSession() *pipeline.Session {
	var opts []pipeline.SessionOption
	if h.stats != nil {
		opts = append(opts, pipeline.WithObserver(h.stats))
		h.stats.SessionOpened()
	}
	return h.sessions.NewSession(opts...)
}

func (h *FaceHandler) closeSession(s *pipeline.Session) {
	if err := s.Close(); err != nil {
		h.log.WithField("session_id", s.ID()).WithError(err).Warn("failed to close session")
	}
	if h.stats != nil {
		h.stats.SessionClosed()
	}
}

func (h *FaceHandler) writeError(c *websocket.Conn, log logrus.FieldLogger, code string, err error) {
	log.WithError(err).Warn("rejected frame")
	if werr := c.WriteJSON(ErrorResponse{Error: err.Error(), Code: code}); werr != nil {
		log.WithError(werr).Error("failed to write error")
	}
}

func (h *FaceHandler) errorResponse(c *fiber.Ctx, reqID string, status int, code string, err error) error {
	entry := h.log.WithFields(logrus.Fields{
		"request_id": reqID,
		"path":       c.Path(),
		"code":       code,
	}).WithError(err)

	details := ""
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details = verrs.Error()
	}

	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: code, Details: details})
}

// statusFor maps frame outcomes onto HTTP status codes
func statusFor(o pipeline.Outcome) int {
	switch o {
	case pipeline.OutcomeMetrics, pipeline.OutcomeEnhancementFallback:
		return fiber.StatusOK
	case pipeline.OutcomeNoFace, pipeline.OutcomeMissingLandmark, pipeline.OutcomeTimestampRegression:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func formBool(c *fiber.Ctx, key string) bool {
	return queryBool(c.FormValue(key))
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// streamClock stamps binary frames with strictly increasing milliseconds
type streamClock struct {
	start time.Time
	last  int64
}

func newStreamClock(start time.Time) *streamClock {
	return &streamClock{start: start, last: -1}
}

func (s *streamClock) next(now time.Time) int64 {
	ts := now.Sub(s.start).Milliseconds()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}
