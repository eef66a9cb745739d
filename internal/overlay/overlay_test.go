package overlay

import (
	"image"
	"image/color"
	"testing"

	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeResult pairs every query keypoint i with reference keypoint i.
func fakeResult(t *testing.T, ref gocv.Mat, n int) *match.Result {
	t.Helper()
	var qk, rk []gocv.KeyPoint
	var corr []match.Correspondence
	for i := 0; i < n; i++ {
		qk = append(qk, gocv.KeyPoint{X: float64(10 + i*5), Y: float64(10 + i*3), Size: 4})
		rk = append(rk, gocv.KeyPoint{X: float64(20 + i*4), Y: float64(15 + i*2), Size: 4})
		corr = append(corr, match.Correspondence{QueryIdx: i, TrainIdx: i, Distance: 10, Ratio: float64(i%4) / 5})
	}
	entry := &catalog.Entry{
		ID:       "ref",
		Image:    ref.Clone(),
		Features: features.Features{Keypoints: rk, Descriptors: gocv.NewMat()},
	}
	t.Cleanup(func() { entry.Close() })
	return &match.Result{Entry: entry, QueryKeypoints: qk, Correspondences: corr, Count: n}
}

func TestRenderKeepsQuerySize(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(1, 640, 480))
	ref := testutil.Mat(t, testutil.Texture(2, 500, 700))

	out := NewRenderer(DefaultOptions()).Render(query, fakeResult(t, ref, 30))
	defer out.Close()

	assert.Equal(t, query.Cols(), out.Cols())
	assert.Equal(t, query.Rows(), out.Rows())
	assert.Equal(t, 3, out.Channels())
}

func TestRenderDoesNotModifyQuery(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(1, 320, 240))
	ref := testutil.Mat(t, testutil.Texture(2, 320, 240))
	before := query.Clone()
	defer before.Close()

	out := NewRenderer(DefaultOptions()).Render(query, fakeResult(t, ref, 25))
	defer out.Close()

	assert.Equal(t, before.ToBytes(), query.ToBytes())
	assert.NotEqual(t, query.ToBytes(), out.ToBytes())
}

func TestRenderLeavesRestOfFrameUntouched(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(3, 400, 300))
	ref := testutil.Mat(t, testutil.Texture(4, 100, 80))

	r := NewRenderer(DefaultOptions())
	res := fakeResult(t, ref, 5)
	comp := r.Composite(query, res)
	defer comp.Close()
	// Composite is 500x300: shrunk by 400/500 to 400x240.
	require.Equal(t, 500, comp.Cols())
	require.Equal(t, 300, comp.Rows())

	out := r.Render(query, res)
	defer out.Close()

	below := image.Rect(0, 240, 400, 300)
	qROI := query.Region(below)
	defer qROI.Close()
	oROI := out.Region(below)
	defer oROI.Close()
	qc, oc := qROI.Clone(), oROI.Clone()
	defer qc.Close()
	defer oc.Close()
	assert.Equal(t, qc.ToBytes(), oc.ToBytes())
}

func TestCompositeScaledToFitPreservesAspect(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(5, 320, 240))
	ref := testutil.Mat(t, testutil.Texture(6, 640, 300))

	r := NewRenderer(DefaultOptions())
	res := fakeResult(t, ref, 10)
	comp := r.Composite(query, res)
	defer comp.Close()

	// Natural composite is 960x300, wider than the 320x240 frame.
	require.Equal(t, 960, comp.Cols())
	require.Equal(t, 300, comp.Rows())

	// Render stamps a 320x100 composite; rows below it keep the query pixels.
	out := r.Render(query, res)
	defer out.Close()
	assert.Equal(t, 320, out.Cols())
	assert.Equal(t, 240, out.Rows())

	below := image.Rect(0, 101, 320, 240)
	qROI := query.Region(below)
	defer qROI.Close()
	oROI := out.Region(below)
	defer oROI.Close()
	qc, oc := qROI.Clone(), oROI.Clone()
	defer qc.Close()
	defer oc.Close()
	assert.Equal(t, qc.ToBytes(), oc.ToBytes())
}

func TestCompositeDrawsOnlyMatchedPoints(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(7, 200, 150))
	ref := testutil.Mat(t, testutil.Texture(8, 200, 150))
	res := fakeResult(t, ref, 6)
	res.Correspondences = nil

	r := NewRenderer(DefaultOptions())
	comp := r.Composite(query, res)
	defer comp.Close()

	// Keypoints without an accepted correspondence are not drawn.
	left := comp.Region(image.Rect(0, 0, 200, 150))
	defer left.Close()
	lc := left.Clone()
	defer lc.Close()
	assert.Equal(t, query.ToBytes(), lc.ToBytes())
}

func TestRenderWithoutResultCopiesFrame(t *testing.T) {
	query := testutil.Mat(t, testutil.Texture(9, 160, 120))
	out := NewRenderer(DefaultOptions()).Render(query, nil)
	defer out.Close()
	assert.Equal(t, query.ToBytes(), out.ToBytes())
}

func TestRenderGrayQuery(t *testing.T) {
	bgr := testutil.Mat(t, testutil.Texture(10, 200, 160))
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	out := NewRenderer(DefaultOptions()).Render(gray, fakeResult(t, bgr, 8))
	defer out.Close()
	assert.Equal(t, 200, out.Cols())
	assert.Equal(t, 160, out.Rows())
	assert.Equal(t, 3, out.Channels())
}

func TestFitSize(t *testing.T) {
	frame := image.Pt(640, 480)
	tests := []struct {
		comp image.Point
		want image.Point
	}{
		{image.Pt(600, 400), image.Pt(600, 400)},
		{image.Pt(1280, 480), image.Pt(640, 240)},
		{image.Pt(1000, 960), image.Pt(500, 480)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FitSize(tt.comp, frame))
	}

	for _, comp := range []image.Point{image.Pt(1917, 1080), image.Pt(1283, 479), image.Pt(3001, 77)} {
		got := FitSize(comp, frame)
		assert.LessOrEqual(t, got.X, frame.X)
		assert.LessOrEqual(t, got.Y, frame.Y)
		want := float64(comp.X) / float64(comp.Y)
		// One pixel of rounding on the short side bounds the aspect error.
		tol := want / float64(got.Y)
		assert.InDelta(t, want, float64(got.X)/float64(got.Y), tol+1.0/float64(got.Y))
	}
}

// pixelBGR reads one pixel of an 8-bit 3-channel Mat.
func pixelBGR(m gocv.Mat, x, y int) (b, g, r uint8) {
	return m.GetUCharAt(y, x*3), m.GetUCharAt(y, x*3+1), m.GetUCharAt(y, x*3+2)
}

func TestCompositeLineColorTracksRatio(t *testing.T) {
	query := testutil.Mat(t, testutil.Uniform(200, 150, color.Black))
	ref := testutil.Mat(t, testutil.Uniform(200, 150, color.Black))

	opts := DefaultOptions()
	entry := &catalog.Entry{
		ID:    "ref",
		Image: ref.Clone(),
		Features: features.Features{
			Keypoints:   []gocv.KeyPoint{{X: 20, Y: 30, Size: 4}, {X: 20, Y: 75, Size: 4}},
			Descriptors: gocv.NewMat(),
		},
	}
	t.Cleanup(func() { entry.Close() })
	res := &match.Result{
		Entry:          entry,
		QueryKeypoints: []gocv.KeyPoint{{X: 20, Y: 30, Size: 4}, {X: 20, Y: 75, Size: 4}},
		Correspondences: []match.Correspondence{
			{QueryIdx: 0, TrainIdx: 0, Distance: 1, Ratio: 0},
			{QueryIdx: 1, TrainIdx: 1, Distance: 9, Ratio: opts.Ratio},
		},
		Count: 2,
	}

	comp := NewRenderer(opts).Composite(query, res)
	defer comp.Close()

	// Both lines are horizontal, from x=20 to x=220.
	b, g, r := pixelBGR(comp, 100, 30)
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{b, g, r}, "clear match should be green")

	b, g, r = pixelBGR(comp, 100, 75)
	assert.Equal(t, uint8(255), r, "match at the ratio threshold should be red")
	assert.Zero(t, g)
	assert.Zero(t, b)
}
