// Package knn provides a pure-Go exhaustive nearest-neighbour search over
// descriptor matrices.
//
// It mirrors gocv.BFMatcher's KnnMatch contract but resolves equal distances
// by the lowest train index, so results never depend on OpenCV's internal
// (possibly parallel) scan order.
package knn

import (
	"math/bits"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// BruteForce compares every query row with every train row.
// Float32 descriptors use L2 distance, 8-bit descriptors use Hamming distance.
type BruteForce struct{}

// NewBruteForce returns a brute-force searcher.
func NewBruteForce() *BruteForce {
	return &BruteForce{}
}

// KnnMatch returns, for each query row, up to k nearest train rows ordered by
// increasing distance. Mismatched descriptor types or widths yield no matches.
func (b *BruteForce) KnnMatch(query, train gocv.Mat, k int) [][]gocv.DMatch {
	if k <= 0 || query.Empty() || train.Empty() ||
		query.Type() != train.Type() || query.Cols() != train.Cols() {
		return nil
	}

	var dist func(q, t int) float64
	switch query.Type() {
	case gocv.MatTypeCV32F:
		qs, ts := floatRows(query), floatRows(train)
		if qs == nil || ts == nil {
			return nil
		}
		dist = func(q, t int) float64 { return floats.Distance(qs[q], ts[t], 2) }
	case gocv.MatTypeCV8U:
		qs, ts := byteRows(query), byteRows(train)
		if qs == nil || ts == nil {
			return nil
		}
		dist = func(q, t int) float64 { return float64(hamming(qs[q], ts[t])) }
	default:
		return nil
	}

	nTrain := train.Rows()
	out := make([][]gocv.DMatch, query.Rows())
	cands := make([]gocv.DMatch, nTrain)
	for q := range out {
		for t := 0; t < nTrain; t++ {
			cands[t] = gocv.DMatch{QueryIdx: q, TrainIdx: t, Distance: dist(q, t)}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Distance < cands[j].Distance
		})
		n := min(k, nTrain)
		out[q] = append([]gocv.DMatch(nil), cands[:n]...)
	}
	return out
}

// Close is a no-op; BruteForce holds no native resources.
func (b *BruteForce) Close() error {
	return nil
}

func floatRows(m gocv.Mat) [][]float64 {
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil
	}
	cols := m.Cols()
	rows := make([][]float64, m.Rows())
	for r := range rows {
		row := make([]float64, cols)
		for c, v := range data[r*cols : (r+1)*cols] {
			row[c] = float64(v)
		}
		rows[r] = row
	}
	return rows
}

func byteRows(m gocv.Mat) [][]byte {
	data, err := m.DataPtrUint8()
	if err != nil {
		return nil
	}
	cols := m.Cols()
	rows := make([][]byte, m.Rows())
	for r := range rows {
		rows[r] = data[r*cols : (r+1)*cols]
	}
	return rows
}

func hamming(a, b []byte) int {
	n := 0
	for i := range a {
		n += bits.OnesCount8(a[i] ^ b[i])
	}
	return n
}
