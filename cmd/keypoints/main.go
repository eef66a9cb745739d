// Command keypoints detects features in one image and writes a copy with
// every keypoint drawn, showing its size and orientation.
package main

import (
	"flag"
	"fmt"
	"os"

	"boardgame-spotter/internal/config"
	"boardgame-spotter/internal/features"
	boximage "boardgame-spotter/internal/image"

	"gocv.io/x/gocv"
)

func main() {
	imagePath := flag.String("image", "", "Path to image")
	outPath := flag.String("o", "./image_with_keypoints.jpg", "Output image path")
	configPath := flag.String("config", "", "YAML configuration file (detector settings)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: keypoints -image <path> [-o ./image_with_keypoints.jpg] [-config f.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	img, err := boximage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()
	fmt.Printf("Loaded %s: %dx%d pixels\n", *imagePath, img.Cols(), img.Rows())

	ex, err := features.NewExtractor(cfg.FeatureOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create extractor: %v\n", err)
		os.Exit(1)
	}
	defer ex.Close()

	f := ex.Extract(img)
	defer f.Close()
	fmt.Printf("Detector: %s\n", ex.Detector())
	fmt.Printf("Keypoints: %d\n", f.Len())
	if !f.Empty() {
		fmt.Printf("Descriptors: %dx%d\n", f.Descriptors.Rows(), f.Descriptors.Cols())
	}

	out := features.DrawKeypoints(img, f.Keypoints)
	defer out.Close()

	if ok := gocv.IMWrite(*outPath, out); !ok {
		fmt.Fprintf(os.Stderr, "Failed to write %s\n", *outPath)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *outPath)
}
