package features

import (
	"boardgame-spotter/pkg/colorutil"

	"gocv.io/x/gocv"
)

// DrawKeypoints returns a copy of img with every keypoint drawn as a circle
// sized by its scale, with a radius marking its orientation.
func DrawKeypoints(img gocv.Mat, kps []gocv.KeyPoint) gocv.Mat {
	out := gocv.NewMat()
	if len(kps) == 0 {
		img.CopyTo(&out)
		return out
	}
	gocv.DrawKeyPoints(img, kps, &out, colorutil.Green, gocv.DrawRichKeyPoints)
	return out
}
