// Package live runs the frame-by-frame recognition loop.
package live

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"boardgame-spotter/internal/catalog"
	"boardgame-spotter/internal/match"
	"boardgame-spotter/internal/metrics"
	"boardgame-spotter/internal/overlay"

	"gocv.io/x/gocv"
)

// ErrSourceExhausted is returned by Run when the source stops producing frames.
var ErrSourceExhausted = errors.New("frame source exhausted")

// Source supplies frames. *gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
}

// Sink presents frames and reports key presses. *gocv.Window satisfies it.
type Sink interface {
	IMShow(img gocv.Mat)
	WaitKey(delay int) int
}

// Catalogs hands out the catalog to match each frame against.
type Catalogs interface {
	Acquire() (*catalog.Catalog, func())
}

// Options configures the loop.
type Options struct {
	StopKey         byte // Key that ends the loop
	WaitDelay       int  // Milliseconds to wait for a key after each frame
	MaxReadFailures int  // Consecutive failed reads before giving up
}

// DefaultOptions returns default loop options.
func DefaultOptions() Options {
	return Options{
		StopKey:         'q',
		WaitDelay:       1,
		MaxReadFailures: 1,
	}
}

// Loop reads, matches, renders and displays frames one at a time.
type Loop struct {
	src      Source
	sink     Sink
	catalogs Catalogs
	matcher  *match.Matcher
	renderer *overlay.Renderer
	opts     Options

	lastID string
}

// New creates a loop.
func New(src Source, sink Sink, catalogs Catalogs, m *match.Matcher, r *overlay.Renderer, opts Options) *Loop {
	return &Loop{
		src:      src,
		sink:     sink,
		catalogs: catalogs,
		matcher:  m,
		renderer: r,
		opts:     opts,
	}
}

// Run processes frames until the stop key is pressed or ctx is cancelled
// (both return nil), or the source fails MaxReadFailures times in a row
// (returns ErrSourceExhausted).
func (l *Loop) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if ok := l.src.Read(&frame); !ok || frame.Empty() {
			metrics.ReadFailuresTotal.Inc()
			failures++
			if failures >= max(l.opts.MaxReadFailures, 1) {
				return ErrSourceExhausted
			}
			continue
		}
		failures = 0

		out, _ := l.Process(frame)
		l.sink.IMShow(out)
		out.Close()

		if key := l.sink.WaitKey(l.opts.WaitDelay); key >= 0 && byte(key&0xFF) == l.opts.StopKey {
			slog.Info("stop key pressed")
			return nil
		}
	}
}

// Process matches one frame and returns the frame to display: the rendered
// overlay on a match, otherwise an unannotated copy. The caller owns the
// returned Mat. The result's Entry belongs to the catalog and may be released
// once a reload replaces it.
func (l *Loop) Process(frame gocv.Mat) (gocv.Mat, *match.Result) {
	metrics.FramesTotal.Inc()

	cat, release := l.catalogs.Acquire()
	defer release()

	start := time.Now()
	res := l.matcher.Match(frame, cat)
	metrics.MatchDuration.Observe(time.Since(start).Seconds())

	if res == nil {
		metrics.NoMatchTotal.Inc()
		if l.lastID != "" {
			slog.Info("box lost", "id", l.lastID)
			l.lastID = ""
		}
		return frame.Clone(), nil
	}

	metrics.MatchesTotal.WithLabelValues(res.Entry.ID).Inc()
	metrics.MatchSupport.Observe(float64(res.Count))
	if res.Entry.ID != l.lastID {
		slog.Info("box recognized", "id", res.Entry.ID, "support", res.Count,
			"mean_ratio", res.MeanRatio)
		l.lastID = res.Entry.ID
	}
	return l.renderer.Render(frame, res), res
}
