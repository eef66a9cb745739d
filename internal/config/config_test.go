package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/live"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/overlay"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultMapsToPackageDefaults(t *testing.T) {
	cfg := Default()

	if diff := cmp.Diff(features.DefaultOptions(), cfg.FeatureOptions()); diff != "" {
		t.Errorf("FeatureOptions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(match.DefaultOptions(), cfg.MatchOptions()); diff != "" {
		t.Errorf("MatchOptions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(overlay.DefaultOptions(), cfg.OverlayOptions()); diff != "" {
		t.Errorf("OverlayOptions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(live.DefaultOptions(), cfg.LoopOptions()); diff != "" {
		t.Errorf("LoopOptions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, match.SearchBruteForce, cfg.SearchMethod())
	assert.Equal(t, features.DetectorSIFT, cfg.Detector())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  dir: /srv/boxes
  watch: true
  debounce: 2s
features:
  detector: ORB
  max_features: 1500
matcher:
  min_support: 30
camera:
  device: /tmp/demo.mp4
  stop_key: x
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Catalog = CatalogConfig{Dir: "/srv/boxes", Watch: true, Debounce: 2 * time.Second}
	want.Features.Detector = "ORB"
	want.Features.MaxFeatures = 1500
	want.Matcher.MinSupport = 30
	want.Camera.Device = "/tmp/demo.mp4"
	want.Camera.StopKey = "x"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, features.DetectorORB, cfg.FeatureOptions().Detector)
	assert.Equal(t, byte('x'), cfg.LoopOptions().StopKey)
	assert.Equal(t, "/tmp/demo.mp4", cfg.CameraSource())
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "matcher:\n  ratoi: 0.8\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratoi")
}

func TestLoadValidates(t *testing.T) {
	_, err := Load(writeConfig(t, "matcher:\n  ratio: 1.5\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithoutPathFallsBackToDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWithoutPathReadsUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	dir := filepath.Join(home, "boardgame-spotter")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("catalog:\n  dir: ./shelf\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./shelf", cfg.Catalog.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty catalog dir", func(c *Config) { c.Catalog.Dir = "" }},
		{"negative debounce", func(c *Config) { c.Catalog.Debounce = -time.Second }},
		{"unknown detector", func(c *Config) { c.Features.Detector = "surf" }},
		{"negative max features", func(c *Config) { c.Features.MaxFeatures = -1 }},
		{"clahe without tile", func(c *Config) { c.Features.CLAHE = true; c.Features.CLAHETileSize = 0 }},
		{"unknown search", func(c *Config) { c.Matcher.Search = "lsh" }},
		{"flann with binary descriptors", func(c *Config) { c.Features.Detector = "orb"; c.Matcher.Search = "flann" }},
		{"zero ratio", func(c *Config) { c.Matcher.Ratio = 0 }},
		{"ratio above one", func(c *Config) { c.Matcher.Ratio = 1.01 }},
		{"negative support", func(c *Config) { c.Matcher.MinSupport = -1 }},
		{"zero line thickness", func(c *Config) { c.Overlay.LineThickness = 0 }},
		{"long stop key", func(c *Config) { c.Camera.StopKey = "qq" }},
		{"no read failures allowed", func(c *Config) { c.Camera.MaxReadFailures = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidateAcceptsFlannWithFloatDescriptors(t *testing.T) {
	cfg := Default()
	cfg.Features.Detector = "kaze"
	cfg.Matcher.Search = "flann"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, match.SearchFLANN, cfg.SearchMethod())
}

func TestCameraSource(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0, cfg.CameraSource())

	cfg.Camera.Device = "2"
	assert.Equal(t, 2, cfg.CameraSource())

	cfg.Camera.Device = "rtsp://camera.local/stream"
	assert.Equal(t, "rtsp://camera.local/stream", cfg.CameraSource())
}
