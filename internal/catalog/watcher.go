package catalog

import (
	"log/slog"
	"sync"
	"time"

	"boardgame-spotter/internal/features"
	boximage "boardgame-spotter/internal/image"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the catalog when files in its directory change and swaps
// the result into a Store. A rebuild that fails leaves the published catalog
// untouched.
type Watcher struct {
	dir      string
	store    *Store
	newEx    func() (features.Extractor, error)
	debounce time.Duration
	fs       *fsnotify.Watcher
	stopCh   chan struct{}
	done     sync.WaitGroup
	onReload func(c *Catalog, err error) // Called after every rebuild attempt
}

// NewWatcher creates a watcher for dir. newEx supplies a fresh extractor for
// each rebuild, since extractors are not safe for concurrent use.
func NewWatcher(dir string, store *Store, newEx func() (features.Extractor, error), debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		store:    store,
		newEx:    newEx,
		debounce: debounce,
		fs:       fw,
		stopCh:   make(chan struct{}),
	}, nil
}

// OnReload sets the callback invoked after each rebuild attempt. The callback
// runs on the watcher goroutine.
func (w *Watcher) OnReload(callback func(c *Catalog, err error)) {
	w.onReload = callback
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.done.Add(1)
	go w.watchLoop()
}

// Stop stops the watcher goroutine and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.done.Wait()
	w.fs.Close()
}

func (w *Watcher) watchLoop() {
	defer w.done.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !boximage.IsSupportedFormat(ev.Name) {
				continue
			}
			slog.Debug("catalog change", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog watch error", "dir", w.dir, "err", err)
		case <-timer.C:
			w.rebuild()
		}
	}
}

func (w *Watcher) rebuild() {
	ex, err := w.newEx()
	if err != nil {
		slog.Error("catalog reload: extractor", "err", err)
		w.notify(nil, err)
		return
	}
	defer ex.Close()

	start := time.Now()
	c, err := Build(w.dir, ex)
	if err != nil {
		slog.Error("catalog reload failed, keeping previous catalog", "dir", w.dir, "err", err)
		w.notify(nil, err)
		return
	}
	w.store.Swap(c)
	slog.Info("catalog reloaded", "entries", c.Len(), "features", c.FeatureCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	w.notify(c, nil)
}

func (w *Watcher) notify(c *Catalog, err error) {
	if w.onReload != nil {
		w.onReload(c, err)
	}
}
