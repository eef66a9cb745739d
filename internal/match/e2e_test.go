package match_test

import (
	"testing"

	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/features"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/overlay"
	"boardgame-spotter/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A photo of box A, turned 10° and seen from a little further away, must be
// recognized as A and rendered at the frame's own size.
func TestRecognizeRotatedScaledBox(t *testing.T) {
	dir := t.TempDir()
	imgA := testutil.Texture(11, 640, 480)
	imgB := testutil.Texture(12, 640, 480)
	testutil.WritePNG(t, dir, "A", imgA)
	testutil.WritePNG(t, dir, "B", imgB)

	ex, err := features.NewExtractor(features.DefaultOptions())
	require.NoError(t, err)
	defer ex.Close()
	searcher, err := match.NewSearcher(match.SearchBruteForce, ex.Detector())
	require.NoError(t, err)
	defer searcher.Close()

	cat, err := catalog.Build(dir, ex)
	require.NoError(t, err)
	defer cat.Close()
	require.Equal(t, []string{"A", "B"}, cat.Names())

	query := testutil.Mat(t, testutil.RotateScale(imgA, 10, 0.9))

	m := match.New(ex, searcher, match.DefaultOptions())
	ev := m.Evaluate(query, cat)
	require.NotNil(t, ev.Best)
	assert.Equal(t, "A", ev.Best.Entry.ID)
	assert.Greater(t, ev.Best.Count, 20)
	assert.Greater(t, ev.Scores[0].Count, ev.Scores[1].Count)

	out := overlay.NewRenderer(overlay.DefaultOptions()).Render(query, ev.Best)
	defer out.Close()
	assert.Equal(t, query.Cols(), out.Cols())
	assert.Equal(t, query.Rows(), out.Rows())
}

func TestUniformFrameHasNoMatch(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePNG(t, dir, "A.png", testutil.Texture(11, 320, 240))

	ex, err := features.NewExtractor(features.DefaultOptions())
	require.NoError(t, err)
	defer ex.Close()
	searcher, err := match.NewSearcher(match.SearchGo, ex.Detector())
	require.NoError(t, err)
	defer searcher.Close()

	cat, err := catalog.Build(dir, ex)
	require.NoError(t, err)
	defer cat.Close()

	blank := testutil.Mat(t, testutil.Uniform(320, 240, testutil.Gray))
	assert.Nil(t, match.New(ex, searcher, match.DefaultOptions()).Match(blank, cat))
}
