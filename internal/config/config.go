// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds model locations, detector tuning and service settings
type Config struct {
	ORTLibraryPath string

	LocatorModelPath  string // SCRFD; empty selects the pigo cascade
	PigoCascadePath   string
	FaceMeshModelPath string
	EnhancerModelPath string
	EnhancerKind      string // realesrgan or gfpgan

	DetectionSize int
	ConfThreshold float32
	NMSThreshold  float32

	Port         string
	RequestLimit int // bytes

	LogLevel string
	LogFile  string
}

// Default returns settings matching the models/ layout of a checkout
func Default() Config {
	return Config{
		ORTLibraryPath:    "lib/libonnxruntime.so",
		LocatorModelPath:  "models/scrfd_500m.onnx",
		PigoCascadePath:   "models/facefinder",
		FaceMeshModelPath: "models/face_mesh_478.onnx",
		EnhancerModelPath: "models/realesr-general-x4v3.onnx",
		EnhancerKind:      "realesrgan",
		DetectionSize:     640,
		ConfThreshold:     0.5,
		NMSThreshold:      0.4,
		Port:              "3000",
		RequestLimit:      20 * 1024 * 1024,
		LogLevel:          "info",
	}
}

// Load reads .env when present, then overlays FACEGAZE_* variables on the defaults
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()
	str(&cfg.ORTLibraryPath, "FACEGAZE_ORT_LIBRARY")
	str(&cfg.LocatorModelPath, "FACEGAZE_LOCATOR_MODEL")
	str(&cfg.PigoCascadePath, "FACEGAZE_PIGO_CASCADE")
	str(&cfg.FaceMeshModelPath, "FACEGAZE_FACEMESH_MODEL")
	str(&cfg.EnhancerModelPath, "FACEGAZE_ENHANCER_MODEL")
	str(&cfg.EnhancerKind, "FACEGAZE_ENHANCER")
	str(&cfg.Port, "APP_PORT")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogFile, "LOG_FILE")

	if err := integer(&cfg.DetectionSize, "FACEGAZE_DETECTION_SIZE"); err != nil {
		return Config{}, err
	}
	if err := integer(&cfg.RequestLimit, "FACEGAZE_REQUEST_LIMIT"); err != nil {
		return Config{}, err
	}
	if err := float(&cfg.ConfThreshold, "FACEGAZE_CONF_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if err := float(&cfg.NMSThreshold, "FACEGAZE_NMS_THRESHOLD"); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings no pipeline can run with
func (c Config) Validate() error {
	if c.FaceMeshModelPath == "" {
		return errors.New("face mesh model path is required")
	}
	if c.LocatorModelPath == "" && c.PigoCascadePath == "" {
		return errors.New("either a locator model or a pigo cascade is required")
	}
	if c.DetectionSize <= 0 || c.DetectionSize%32 != 0 {
		return fmt.Errorf("detection size %d must be a positive multiple of 32", c.DetectionSize)
	}
	if c.ConfThreshold <= 0 || c.ConfThreshold >= 1 {
		return fmt.Errorf("confidence threshold %v out of (0,1)", c.ConfThreshold)
	}
	switch c.EnhancerKind {
	case "", "realesrgan", "gfpgan":
	default:
		return fmt.Errorf("unknown enhancer %q (use realesrgan or gfpgan)", c.EnhancerKind)
	}
	return nil
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func integer(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func float(dst *float32, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = float32(f)
	return nil
}
