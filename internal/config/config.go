// Package config loads the recognizer configuration.
//
// Values start from Default, are overlaid by an optional YAML file, and are
// finally overridden by command-line flags in the binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/live"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/overlay"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	appDir     = "boardgame-spotter"
	configFile = "config.yaml"
)

// Config is the complete pipeline configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Features FeaturesConfig `yaml:"features"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Camera   CameraConfig   `yaml:"camera"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CatalogConfig locates the reference images.
type CatalogConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`    // Rebuild when the directory changes
	Debounce time.Duration `yaml:"debounce"` // Quiet period before a rebuild
}

// FeaturesConfig configures the descriptor extractor.
type FeaturesConfig struct {
	Detector       string  `yaml:"detector"`
	MaxFeatures    int     `yaml:"max_features"`
	CLAHE          bool    `yaml:"clahe"`
	CLAHEClipLimit float64 `yaml:"clahe_clip"`
	CLAHETileSize  int     `yaml:"clahe_tile"`
}

// MatcherConfig configures the confidence policy and neighbour search.
type MatcherConfig struct {
	Search     string  `yaml:"search"`
	Ratio      float64 `yaml:"ratio"`
	MinSupport int     `yaml:"min_support"`
}

// OverlayConfig configures match drawing.
type OverlayConfig struct {
	LineThickness int `yaml:"line_thickness"`
	PointRadius   int `yaml:"point_radius"`
}

// CameraConfig configures the frame source and display.
type CameraConfig struct {
	Device          string `yaml:"device"` // Device index or video file path
	Window          string `yaml:"window"`
	StopKey         string `yaml:"stop_key"`
	MaxReadFailures int    `yaml:"max_read_failures"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the endpoint
}

// Default returns a working configuration for a webcam and ./boardgame-images.
func Default() Config {
	fo := features.DefaultOptions()
	mo := match.DefaultOptions()
	oo := overlay.DefaultOptions()
	lo := live.DefaultOptions()
	return Config{
		Catalog: CatalogConfig{
			Dir:      "./boardgame-images",
			Watch:    false,
			Debounce: 500 * time.Millisecond,
		},
		Features: FeaturesConfig{
			Detector:       string(fo.Detector),
			MaxFeatures:    fo.MaxFeatures,
			CLAHE:          fo.CLAHE,
			CLAHEClipLimit: fo.CLAHEClipLimit,
			CLAHETileSize:  fo.CLAHETileSize,
		},
		Matcher: MatcherConfig{
			Search:     string(match.SearchBruteForce),
			Ratio:      mo.Ratio,
			MinSupport: mo.MinSupport,
		},
		Overlay: OverlayConfig{
			LineThickness: oo.LineThickness,
			PointRadius:   oo.PointRadius,
		},
		Camera: CameraConfig{
			Device:          "0",
			Window:          "Webcam",
			StopKey:         string(rune(lo.StopKey)),
			MaxReadFailures: lo.MaxReadFailures,
		},
	}
}

// DefaultPath returns ~/.config/boardgame-spotter/config.yaml (or the
// platform equivalent).
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine config directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appDir, configFile), nil
}

// Load reads the YAML file at path over the defaults. An empty path tries
// DefaultPath and silently falls back to defaults when it does not exist.
// Unknown keys are rejected. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	if c.Catalog.Dir == "" {
		return fmt.Errorf("%w: catalog.dir is empty", ErrInvalid)
	}
	if c.Catalog.Debounce < 0 {
		return fmt.Errorf("%w: catalog.debounce must not be negative", ErrInvalid)
	}
	det, err := features.ParseDetector(c.Features.Detector)
	if err != nil {
		return fmt.Errorf("%w: features.detector: %v", ErrInvalid, err)
	}
	if c.Features.MaxFeatures < 0 {
		return fmt.Errorf("%w: features.max_features must not be negative", ErrInvalid)
	}
	if c.Features.CLAHE && (c.Features.CLAHEClipLimit <= 0 || c.Features.CLAHETileSize <= 0) {
		return fmt.Errorf("%w: features.clahe_clip and clahe_tile must be positive", ErrInvalid)
	}
	method, err := match.ParseSearchMethod(c.Matcher.Search)
	if err != nil {
		return fmt.Errorf("%w: matcher.search: %v", ErrInvalid, err)
	}
	if method == match.SearchFLANN && det.Binary() {
		return fmt.Errorf("%w: matcher.search flann cannot index %s descriptors", ErrInvalid, det)
	}
	if c.Matcher.Ratio <= 0 || c.Matcher.Ratio > 1 {
		return fmt.Errorf("%w: matcher.ratio must be in (0, 1], got %g", ErrInvalid, c.Matcher.Ratio)
	}
	if c.Matcher.MinSupport < 0 {
		return fmt.Errorf("%w: matcher.min_support must not be negative", ErrInvalid)
	}
	if c.Overlay.LineThickness < 1 || c.Overlay.PointRadius < 0 {
		return fmt.Errorf("%w: overlay.line_thickness must be >= 1 and point_radius >= 0", ErrInvalid)
	}
	if len(c.Camera.StopKey) != 1 {
		return fmt.Errorf("%w: camera.stop_key must be a single character", ErrInvalid)
	}
	if c.Camera.MaxReadFailures < 1 {
		return fmt.Errorf("%w: camera.max_read_failures must be >= 1", ErrInvalid)
	}
	return nil
}

// FeatureOptions returns the extractor options.
func (c Config) FeatureOptions() features.Options {
	return features.Options{
		Detector:       c.detector(),
		MaxFeatures:    c.Features.MaxFeatures,
		CLAHE:          c.Features.CLAHE,
		CLAHEClipLimit: c.Features.CLAHEClipLimit,
		CLAHETileSize:  c.Features.CLAHETileSize,
	}
}

// MatchOptions returns the matcher's confidence policy.
func (c Config) MatchOptions() match.Options {
	return match.Options{
		Ratio:      c.Matcher.Ratio,
		MinSupport: c.Matcher.MinSupport,
	}
}

// SearchMethod returns the configured neighbour search.
func (c Config) SearchMethod() match.SearchMethod {
	m, _ := match.ParseSearchMethod(c.Matcher.Search)
	return m
}

// Detector returns the configured feature detector.
func (c Config) Detector() features.Detector {
	return c.detector()
}

func (c Config) detector() features.Detector {
	d, _ := features.ParseDetector(c.Features.Detector)
	return d
}

// OverlayOptions returns the renderer options.
func (c Config) OverlayOptions() overlay.Options {
	return overlay.Options{
		LineThickness: c.Overlay.LineThickness,
		PointRadius:   c.Overlay.PointRadius,
		Ratio:         c.Matcher.Ratio,
	}
}

// LoopOptions returns the live loop options.
func (c Config) LoopOptions() live.Options {
	opts := live.DefaultOptions()
	if len(c.Camera.StopKey) == 1 {
		opts.StopKey = c.Camera.StopKey[0]
	}
	opts.MaxReadFailures = c.Camera.MaxReadFailures
	return opts
}

// CameraSource returns the device as an integer index when it is one,
// otherwise as a file path or URL, in the form gocv.OpenVideoCapture takes.
func (c Config) CameraSource() interface{} {
	if id, err := strconv.Atoi(c.Camera.Device); err == nil {
		return id
	}
	return c.Camera.Device
}
