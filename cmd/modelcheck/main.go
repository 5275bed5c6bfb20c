package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tsawler/go-metal/checkpoints"

	"github.com/dudu/facegaze/internal/config"
	"github.com/dudu/facegaze/internal/inference"
)

func main() {
	envFile := flag.String("env", ".env", "Env file with FACEGAZE_* settings")
	metal := flag.Bool("metal", false, "Also try importing each model with go-metal")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modelcheck [options] [model.onnx ...]\n\n")
		fmt.Fprintf(os.Stderr, "Without arguments, checks the models named in the config.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	models := flag.Args()
	if len(models) == 0 {
		models = configuredModels(cfg)
	}

	if err := inference.Initialize(cfg.ORTLibraryPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Set FACEGAZE_ORT_LIBRARY to the onnxruntime shared library")
		os.Exit(1)
	}
	defer inference.Shutdown()

	failed := 0
	for _, path := range models {
		if !check(path, *metal) {
			failed++
		}
	}

	fmt.Printf("\n%d/%d models loadable\n", len(models)-failed, len(models))
	if failed > 0 {
		os.Exit(1)
	}
}

func configuredModels(cfg config.Config) []string {
	models := []string{cfg.FaceMeshModelPath}
	if cfg.LocatorModelPath != "" {
		models = append(models, cfg.LocatorModelPath)
	}
	if cfg.EnhancerKind != "" && cfg.EnhancerModelPath != "" {
		models = append(models, cfg.EnhancerModelPath)
	}
	return models
}

func check(path string, metal bool) bool {
	fmt.Printf("\n%s\n", path)

	if _, err := os.Stat(path); err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		return false
	}

	info, err := inference.Inspect(path)
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		return false
	}
	fmt.Printf("  inputs (%d):\n", len(info.Inputs))
	for _, in := range info.Inputs {
		fmt.Printf("    %s: shape=%v, type=%v\n", in.Name, in.Dimensions, in.DataType)
	}
	fmt.Printf("  outputs (%d):\n", len(info.Outputs))
	for _, out := range info.Outputs {
		fmt.Printf("    %s: shape=%v, type=%v\n", out.Name, out.Dimensions, out.DataType)
	}

	if metal {
		checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(path)
		if err != nil {
			// go-metal covers a small operator set; runtime loading is what matters
			fmt.Printf("  go-metal: unsupported (%v)\n", err)
		} else {
			fmt.Printf("  go-metal: %d layers, %d weight tensors\n",
				len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
		}
	}
	return true
}
