// Package main provides the entry point for the board-game box recognizer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/config"
	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/live"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/metrics"
	"boardgame-spotter/internal/overlay"
	"boardgame-spotter/internal/version"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gocv.io/x/gocv"
)

const appTitle = "boardgame-spotter"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (default: user config dir)")
	catalogDir := flag.String("catalog", "", "Directory of reference box images")
	camera := flag.String("camera", "", "Camera device index or video file path")
	watch := flag.Bool("watch", false, "Rebuild the catalog when its directory changes")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appTitle, version.String())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration", "err", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "catalog":
			cfg.Catalog.Dir = *catalogDir
		case "camera":
			cfg.Camera.Device = *camera
		case "watch":
			cfg.Catalog.Watch = *watch
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("starting", "app", appTitle, "version", version.Version,
		"detector", cfg.Detector(), "search", cfg.SearchMethod(), "catalog", cfg.Catalog.Dir)

	if err := run(cfg); err != nil {
		slog.Error("stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ex, err := features.NewExtractor(cfg.FeatureOptions())
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	defer ex.Close()

	// The catalog is built before the camera is opened so a bad reference
	// image fails fast.
	start := time.Now()
	cat, err := catalog.Build(cfg.Catalog.Dir, ex)
	if err != nil {
		return fmt.Errorf("failed to build catalog: %w", err)
	}
	slog.Info("catalog built", "entries", cat.Len(), "features", cat.FeatureCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	metrics.CatalogEntries.Set(float64(cat.Len()))

	store := catalog.NewStore(cat)
	defer store.Close()

	if cfg.Catalog.Watch {
		w, err := catalog.NewWatcher(cfg.Catalog.Dir, store, func() (features.Extractor, error) {
			return features.NewExtractor(cfg.FeatureOptions())
		}, cfg.Catalog.Debounce)
		if err != nil {
			return fmt.Errorf("failed to watch catalog: %w", err)
		}
		w.OnReload(func(c *catalog.Catalog, err error) {
			if err != nil {
				metrics.CatalogReloadsTotal.WithLabelValues("failure").Inc()
				return
			}
			metrics.CatalogReloadsTotal.WithLabelValues("success").Inc()
			metrics.CatalogEntries.Set(float64(c.Len()))
		})
		w.Start()
		defer w.Stop()
		slog.Info("watching catalog", "dir", cfg.Catalog.Dir, "debounce", cfg.Catalog.Debounce)
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	searcher, err := match.NewSearcher(cfg.SearchMethod(), cfg.Detector())
	if err != nil {
		return err
	}
	defer searcher.Close()

	webcam, err := gocv.OpenVideoCapture(cfg.CameraSource())
	if err != nil {
		return fmt.Errorf("failed to open camera %s: %w", cfg.Camera.Device, err)
	}
	defer webcam.Close()

	window := gocv.NewWindow(cfg.Camera.Window)
	defer window.Close()

	loop := live.New(webcam, window, store,
		match.New(ex, searcher, cfg.MatchOptions()),
		overlay.NewRenderer(cfg.OverlayOptions()),
		cfg.LoopOptions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx)
	if errors.Is(err, live.ErrSourceExhausted) {
		slog.Info("camera stream ended")
		return nil
	}
	return err
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}
