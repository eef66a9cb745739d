// Package overlay renders the visual proof of a match onto the query frame.
package overlay

import (
	"image"
	"image/color"

	"boardgame-spotter/internal/match"
	"boardgame-spotter/pkg/colorutil"
	"boardgame-spotter/pkg/geometry"

	"gocv.io/x/gocv"
)

// Options configures overlay drawing.
type Options struct {
	LineThickness int
	PointRadius   int
	Ratio         float64 // Ratio threshold the line colors are scaled against
}

// DefaultOptions returns default overlay options.
func DefaultOptions() Options {
	return Options{
		LineThickness: 1,
		PointRadius:   3,
		Ratio:         match.DefaultOptions().Ratio,
	}
}

// Renderer draws match composites. It holds no per-frame state.
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render returns a copy of query with the match composite stamped into its
// top-left corner. The composite is shrunk, keeping its aspect ratio, when
// it would not fit inside the query frame. The caller owns the returned Mat;
// query is not modified.
func (r *Renderer) Render(query gocv.Mat, res *match.Result) gocv.Mat {
	out := toBGR(query)
	if res == nil || res.Entry == nil {
		return out
	}

	comp := r.Composite(query, res)
	defer comp.Close()

	stamp := comp
	natural := image.Pt(comp.Cols(), comp.Rows())
	if dst := FitSize(natural, image.Pt(out.Cols(), out.Rows())); dst != natural {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(comp, &scaled, dst, 0, 0, gocv.InterpolationArea)
		stamp = scaled
	}

	roi := out.Region(image.Rect(0, 0, stamp.Cols(), stamp.Rows()))
	stamp.CopyTo(&roi)
	roi.Close()
	return out
}

// FitSize returns the size a composite is drawn at inside frame: unchanged
// when it fits, otherwise scaled uniformly by the smaller of the width and
// height ratios.
func FitSize(composite, frame image.Point) image.Point {
	size := geometry.NewSize(float64(composite.X), float64(composite.Y))
	scale := size.FitScale(geometry.NewSize(float64(frame.X), float64(frame.Y)))
	if scale >= 1 {
		return composite
	}
	dst := size.Scaled(scale)
	return image.Pt(min(dst.X, frame.X), min(dst.Y, frame.Y))
}

// Composite places the query and the matched reference image side by side
// and connects each accepted correspondence with a line. Only matched
// keypoints are drawn. Line color runs from green for clear matches to red
// for matches near the ratio threshold.
func (r *Renderer) Composite(query gocv.Mat, res *match.Result) gocv.Mat {
	left := toBGR(query)
	defer left.Close()
	right := toBGR(res.Entry.Image)
	defer right.Close()

	w := left.Cols() + right.Cols()
	h := max(left.Rows(), right.Rows())
	comp := gocv.Zeros(h, w, gocv.MatTypeCV8UC3)

	paste(&comp, left, image.Pt(0, 0))
	paste(&comp, right, image.Pt(left.Cols(), 0))

	offset := geometry.NewPoint2D(float64(left.Cols()), 0)
	trainKps := res.Entry.Features.Keypoints
	for _, c := range res.Correspondences {
		if c.QueryIdx >= len(res.QueryKeypoints) || c.TrainIdx >= len(trainKps) {
			continue
		}
		q := res.QueryKeypoints[c.QueryIdx]
		t := trainKps[c.TrainIdx]
		p1 := geometry.NewPoint2D(q.X, q.Y).ImagePoint()
		p2 := geometry.NewPoint2D(t.X, t.Y).Add(offset).ImagePoint()

		col := r.quality(c.Ratio)
		gocv.Circle(&comp, p1, r.opts.PointRadius, col, 1)
		gocv.Circle(&comp, p2, r.opts.PointRadius, col, 1)
		gocv.Line(&comp, p1, p2, col, r.opts.LineThickness)
	}
	return comp
}

func (r *Renderer) quality(ratio float64) color.RGBA {
	if r.opts.Ratio <= 0 {
		return colorutil.Ramp(0)
	}
	return colorutil.Ramp(ratio / r.opts.Ratio)
}

func paste(dst *gocv.Mat, src gocv.Mat, at image.Point) {
	roi := dst.Region(image.Rect(at.X, at.Y, at.X+src.Cols(), at.Y+src.Rows()))
	src.CopyTo(&roi)
	roi.Close()
}

// toBGR returns a 3-channel copy of img.
func toBGR(img gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	switch img.Channels() {
	case 1:
		gocv.CvtColor(img, &out, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &out, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&out)
	}
	return out
}
