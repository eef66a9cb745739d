package match

import "gocv.io/x/gocv"

// Correspondence is an accepted match between a query feature and a
// catalog entry feature.
type Correspondence struct {
	QueryIdx int     // Index into the query keypoints
	TrainIdx int     // Index into the entry keypoints
	Distance float64 // Descriptor distance to the nearest neighbour
	Ratio    float64 // Nearest / second-nearest distance, below the ratio threshold
}

// RatioTest keeps the nearest neighbour of each query descriptor only when
// it is strictly closer than ratio times the second-nearest distance.
// Lists with fewer than two neighbours are dropped: without a runner-up the
// match cannot be shown to be unambiguous.
func RatioTest(knn [][]gocv.DMatch, ratio float64) []Correspondence {
	var out []Correspondence
	for _, pair := range knn {
		if len(pair) < 2 {
			continue
		}
		best, second := pair[0], pair[1]
		if best.Distance < ratio*second.Distance {
			out = append(out, Correspondence{
				QueryIdx: best.QueryIdx,
				TrainIdx: best.TrainIdx,
				Distance: best.Distance,
				Ratio:    best.Distance / second.Distance,
			})
		}
	}
	return out
}
