// Package match selects the catalog entry best supported by a query image's
// local features.
package match

import (
	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/features"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Options configures the confidence policy.
type Options struct {
	Ratio      float64 // Nearest/second-nearest threshold, compared strictly
	MinSupport int     // An entry needs strictly more accepted correspondences than this
}

// DefaultOptions returns Lowe's ratio and the minimum support used for
// webcam-sized frames.
func DefaultOptions() Options {
	return Options{
		Ratio:      0.75,
		MinSupport: 20,
	}
}

// Score is the accepted-correspondence count of one catalog entry.
type Score struct {
	ID    string
	Count int
}

// Result is a confident match of a query image against one catalog entry.
type Result struct {
	Entry           *catalog.Entry
	QueryKeypoints  []gocv.KeyPoint
	Correspondences []Correspondence
	Count           int
	MeanDistance    float64
	MeanRatio       float64
}

// Evaluation is the full outcome of scoring a query against a catalog.
type Evaluation struct {
	QueryFeatures int
	Scores        []Score // One per entry, in catalog order
	Best          *Result // Nil when no entry has enough support
	BestIndex     int     // Index of Best in Scores, or -1
}

// Matcher scores query images against a catalog. It keeps no state between
// calls, but its extractor and searcher are not safe for concurrent use.
type Matcher struct {
	extractor features.Extractor
	searcher  Searcher
	opts      Options
}

// New creates a matcher. The matcher does not take ownership of the
// extractor or the searcher.
func New(ex features.Extractor, s Searcher, opts Options) *Matcher {
	return &Matcher{extractor: ex, searcher: s, opts: opts}
}

// Options returns the matcher's confidence policy.
func (m *Matcher) Options() Options {
	return m.opts
}

// Match returns the best supported catalog entry for query, or nil when the
// query has no features or no entry clears the minimum support.
func (m *Matcher) Match(query gocv.Mat, cat *catalog.Catalog) *Result {
	return m.Evaluate(query, cat).Best
}

// Evaluate extracts the query's features and scores every catalog entry.
func (m *Matcher) Evaluate(query gocv.Mat, cat *catalog.Catalog) Evaluation {
	qf := m.extractor.Extract(query)
	defer qf.Close()
	return m.EvaluateFeatures(qf, cat)
}

// EvaluateFeatures scores precomputed query features against every entry.
// Entries are scanned in build order and only a strictly greater count
// replaces the current leader, so ties go to the earlier entry.
func (m *Matcher) EvaluateFeatures(qf features.Features, cat *catalog.Catalog) Evaluation {
	ev := Evaluation{QueryFeatures: qf.Len(), BestIndex: -1}
	if qf.Empty() {
		return ev
	}

	var (
		bestEntry *catalog.Entry
		bestCorr  []Correspondence
		bestCount int
		bestIdx   int
	)
	entries := cat.Entries()
	ev.Scores = make([]Score, len(entries))
	for i, e := range entries {
		var corr []Correspondence
		if e.Features.Len() >= 2 {
			knn := m.searcher.KnnMatch(qf.Descriptors, e.Features.Descriptors, 2)
			corr = RatioTest(knn, m.opts.Ratio)
		}
		ev.Scores[i] = Score{ID: e.ID, Count: len(corr)}
		if len(corr) > bestCount {
			bestEntry, bestCorr, bestCount, bestIdx = e, corr, len(corr), i
		}
	}

	if bestEntry == nil || bestCount <= m.opts.MinSupport {
		return ev
	}

	kps := make([]gocv.KeyPoint, len(qf.Keypoints))
	copy(kps, qf.Keypoints)
	ev.Best = newResult(bestEntry, kps, bestCorr)
	ev.BestIndex = bestIdx
	return ev
}

func newResult(e *catalog.Entry, kps []gocv.KeyPoint, corr []Correspondence) *Result {
	dists := make([]float64, len(corr))
	ratios := make([]float64, len(corr))
	for i, c := range corr {
		dists[i] = c.Distance
		ratios[i] = c.Ratio
	}
	return &Result{
		Entry:           e,
		QueryKeypoints:  kps,
		Correspondences: corr,
		Count:           len(corr),
		MeanDistance:    stat.Mean(dists, nil),
		MeanRatio:       stat.Mean(ratios, nil),
	}
}
