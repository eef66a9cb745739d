package match

import (
	"fmt"
	"strings"

	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/knn"

	"gocv.io/x/gocv"
)

// Searcher finds the k nearest train descriptors for every query descriptor.
// Each inner slice is ordered by increasing distance.
type Searcher interface {
	KnnMatch(query, train gocv.Mat, k int) [][]gocv.DMatch
	Close() error
}

// SearchMethod names a Searcher implementation.
type SearchMethod string

const (
	// SearchBruteForce uses OpenCV's exhaustive BFMatcher.
	SearchBruteForce SearchMethod = "bruteforce"
	// SearchFLANN uses OpenCV's approximate FLANN matcher (float descriptors only).
	SearchFLANN SearchMethod = "flann"
	// SearchGo uses the pure-Go exhaustive matcher with deterministic ties.
	SearchGo SearchMethod = "go"
)

// ParseSearchMethod converts a configuration string to a SearchMethod.
func ParseSearchMethod(s string) (SearchMethod, error) {
	m := SearchMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case SearchBruteForce, SearchFLANN, SearchGo:
		return m, nil
	}
	return "", fmt.Errorf("unknown search method %q", s)
}

// NewSearcher creates a searcher whose distance suits the detector's descriptors.
func NewSearcher(method SearchMethod, detector features.Detector) (Searcher, error) {
	switch method {
	case SearchBruteForce:
		bf := gocv.NewBFMatcherWithParams(detector.Norm(), false)
		return &bf, nil
	case SearchFLANN:
		if detector.Binary() {
			return nil, fmt.Errorf("flann search needs float descriptors, %s produces binary ones", detector)
		}
		fm := gocv.NewFlannBasedMatcher()
		return &fm, nil
	case SearchGo:
		return knn.NewBruteForce(), nil
	}
	return nil, fmt.Errorf("unknown search method %q", method)
}
