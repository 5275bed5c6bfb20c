package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facegaze/internal/camera"
	"github.com/dudu/facegaze/internal/config"
	"github.com/dudu/facegaze/internal/facemetrics"
	"github.com/dudu/facegaze/internal/logger"
	"github.com/dudu/facegaze/internal/pipeline"
	"github.com/dudu/facegaze/internal/ui"
)

func init() {
	// OpenCV's highgui needs the main OS thread on macOS
	runtime.LockOSThread()
}

type Flags struct {
	EnvFile     string
	CameraIndex int
	VideoPath   string
	OutDir      string
	Pose        bool
	Enhance     bool
	Annotate    bool
	Preview     bool
	TargetFPS   int
}

type frameReport struct {
	File        string                   `json:"file,omitempty"`
	Frame       int                      `json:"frame"`
	TimestampMs *int64                   `json:"timestamp_ms,omitempty"`
	Outcome     pipeline.Outcome         `json:"outcome"`
	Reason      string                   `json:"reason,omitempty"`
	Metrics     *facemetrics.FaceMetrics `json:"metrics"`
	TotalMs     float64                  `json:"total_ms"`
}

func main() {
	flags := parseFlags()

	if err := run(flags, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Flags {
	f := Flags{}

	flag.StringVar(&f.EnvFile, "env", ".env", "Env file with FACEGAZE_* settings")
	flag.IntVar(&f.CameraIndex, "camera", -1, "Camera device index for video mode")
	flag.IntVar(&f.CameraIndex, "c", -1, "Camera device index (shorthand)")
	flag.StringVar(&f.VideoPath, "video", "", "Video file for video mode")
	flag.StringVar(&f.OutDir, "out", "", "Directory for annotated images")
	flag.BoolVar(&f.Pose, "pose", true, "Estimate head pose")
	flag.BoolVar(&f.Enhance, "enhance", false, "Run the super-resolution second pass")
	flag.BoolVar(&f.Enhance, "e", false, "Run the super-resolution second pass (shorthand)")
	flag.BoolVar(&f.Annotate, "annotate", false, "Draw metrics on the output frame")
	flag.BoolVar(&f.Preview, "preview", true, "Show preview window in video mode")
	flag.IntVar(&f.TargetFPS, "fps", 30, "Target camera frames per second")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "facegaze - geometric face metrics from images and video\n\n")
		fmt.Fprintf(os.Stderr, "Usage: facegaze [options] [image ...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  facegaze portrait.jpg group.png\n")
		fmt.Fprintf(os.Stderr, "  facegaze --annotate --out annotated/ portrait.jpg\n")
		fmt.Fprintf(os.Stderr, "  facegaze --camera 0 --annotate\n")
		fmt.Fprintf(os.Stderr, "  facegaze --video clip.mp4 --preview=false\n")
	}

	flag.Parse()
	return f
}

func run(f Flags, images []string) error {
	cfg, err := config.Load(f.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	p, err := pipeline.New(log, cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	if f.Enhance && !p.HasEnhancer() {
		log.Warn("no enhancer configured, second pass disabled")
	}

	opts := pipeline.Options{Pose: f.Pose, Enhance: f.Enhance, Annotate: f.Annotate}

	switch {
	case f.VideoPath != "" || f.CameraIndex >= 0:
		return runVideo(log, p, f, opts)
	case len(images) > 0:
		return runImages(log, p, images, f.OutDir, opts)
	default:
		flag.Usage()
		return errors.New("no images, --camera or --video given")
	}
}

func runImages(log logrus.FieldLogger, p *pipeline.Pipeline, paths []string, outDir string, opts pipeline.Options) error {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	session := p.NewSession()
	defer session.Close()

	return processFiles(log, session, os.Stdout, paths, outDir, opts)
}

// processFiles reads, measures and reports one image at a time so only one
// decoded frame is held in memory
func processFiles(log logrus.FieldLogger, session *pipeline.Session, w io.Writer, paths []string, outDir string, opts pipeline.Options) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	for _, path := range paths {
		if err := processFile(log, session, enc, path, outDir, opts); err != nil {
			return err
		}
	}
	return nil
}

func processFile(log logrus.FieldLogger, session *pipeline.Session, enc *jsoniter.Encoder, path, outDir string, opts pipeline.Options) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		log.WithField("file", path).Warn("unreadable image, reporting as empty frame")
	}

	res := session.ProcessImage(img, opts)
	defer res.Close()

	if err := enc.Encode(report(path, res)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if outDir != "" && res.Metrics != nil {
		dst := filepath.Join(outDir, filepath.Base(path))
		if !gocv.IMWrite(dst, res.Output()) {
			log.WithField("file", dst).Warn("failed to write annotated image")
		}
	}
	return nil
}

func runVideo(log logrus.FieldLogger, p *pipeline.Pipeline, f Flags, opts pipeline.Options) error {
	var (
		cam *camera.Capture
		err error
	)
	if f.VideoPath != "" {
		cam, err = camera.OpenFile(f.VideoPath)
	} else {
		cam, err = camera.OpenDevice(f.CameraIndex, f.TargetFPS, 1280, 720)
	}
	if err != nil {
		return err
	}
	defer cam.Close()
	log.WithFields(logrus.Fields{
		"source": cam.Name(),
		"width":  cam.Width(),
		"height": cam.Height(),
	}).Info("video source opened")

	var preview *ui.Preview
	if f.Preview {
		preview = ui.NewPreview("facegaze")
		defer preview.Close()
	}

	session := p.NewSession()
	defer session.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	frame := gocv.NewMat()
	defer frame.Close()

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	for {
		select {
		case <-sigChan:
			log.Info("shutting down")
			return nil
		default:
		}

		ts, ok := cam.Read(&frame)
		if !ok {
			if f.VideoPath != "" {
				log.WithField("frames", session.Frames()).Info("end of video")
				return nil
			}
			continue
		}

		res := session.ProcessVideo(frame, ts, opts)
		if err := enc.Encode(report("", res)); err != nil {
			res.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}

		if preview != nil {
			preview.Show(res)
			if preview.Quit(1) {
				res.Close()
				return nil
			}
		}
		res.Close()
	}
}

func report(file string, res *pipeline.Result) frameReport {
	r := frameReport{
		File:        file,
		Frame:       res.Index,
		TimestampMs: res.TimestampMs,
		Outcome:     res.Outcome(),
		Metrics:     res.Metrics,
		TotalMs:     float64(res.Timing.Total.Microseconds()) / 1000,
	}
	if res.Reason != nil {
		r.Reason = res.Reason.Error()
	}
	return r
}
