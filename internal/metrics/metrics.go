// Package metrics defines the Prometheus collectors for the recognizer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames read from the camera and processed.
	FramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotter_frames_total",
		Help: "Total number of camera frames processed",
	})

	// ReadFailuresTotal counts camera reads that returned no frame.
	ReadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotter_camera_read_failures_total",
		Help: "Total number of failed camera reads",
	})

	// MatchesTotal counts confident matches, labeled by catalog entry.
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotter_matches_total",
			Help: "Total number of frames confidently matched to a catalog entry",
		},
		[]string{"entry"},
	)

	// NoMatchTotal counts frames without a confident match.
	NoMatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotter_no_match_total",
		Help: "Total number of frames without a confident match",
	})

	// MatchDuration measures extraction plus matching time per frame.
	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spotter_match_duration_seconds",
		Help:    "Time to extract and match one frame",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// MatchSupport records the accepted-correspondence count of each match.
	MatchSupport = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spotter_match_support",
		Help:    "Accepted correspondences of confident matches",
		Buckets: prometheus.ExponentialBuckets(16, 2, 8),
	})

	// CatalogEntries tracks the size of the published catalog.
	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spotter_catalog_entries",
		Help: "Number of entries in the published catalog",
	})

	// CatalogReloadsTotal counts catalog rebuilds by outcome.
	CatalogReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotter_catalog_reloads_total",
			Help: "Total number of catalog rebuild attempts",
		},
		[]string{"result"},
	)
)
