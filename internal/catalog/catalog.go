// Package catalog builds the in-memory reference catalog of known box images.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"boardgame-spotter/internal/features"
	boximage "boardgame-spotter/internal/image"

	"github.com/tidwall/btree"
	"gocv.io/x/gocv"
)

// ErrEmptyDir is returned when the catalog directory holds no files.
var ErrEmptyDir = errors.New("catalog directory contains no images")

// Entry is one reference image with its precomputed features.
type Entry struct {
	ID       string // File name, used as the human-readable identifier
	Path     string
	Image    gocv.Mat
	Features features.Features
}

// Close releases the entry's image and descriptors.
func (e *Entry) Close() error {
	e.Image.Close()
	return e.Features.Close()
}

// Catalog is an immutable, ordered list of entries. Entries keep build order;
// the identifier index resolves duplicate IDs to the later entry.
type Catalog struct {
	entries []*Entry
	index   btree.Map[string, int]

	// Guarded by Store.mu once the catalog is published.
	refs    int
	retired bool
	closed  bool
}

// New creates a catalog over entries in the given order. The catalog takes
// ownership of the entries.
func New(entries []*Entry) *Catalog {
	c := &Catalog{entries: entries}
	for i, e := range entries {
		c.index.Set(e.ID, i)
	}
	return c
}

// Build loads every file in dir, extracts its features and returns the
// complete catalog. Files are taken in directory listing order (sorted by
// name). Any unreadable file fails the whole build; nothing built so far
// is returned.
func Build(dir string, ex features.Extractor) (*Catalog, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var entries []*Entry
	fail := func(err error) (*Catalog, error) {
		for _, e := range entries {
			e.Close()
		}
		return nil, err
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name())

		img, err := boximage.Load(path)
		if err != nil {
			return fail(fmt.Errorf("catalog entry %s: %w", de.Name(), err))
		}

		feats := ex.Extract(img)
		slog.Debug("catalog entry", "id", de.Name(), "features", feats.Len(),
			"width", img.Cols(), "height", img.Rows())
		if feats.Empty() {
			slog.Warn("catalog entry has no features and can never match", "id", de.Name())
		}

		entries = append(entries, &Entry{
			ID:       de.Name(),
			Path:     path,
			Image:    img,
			Features: feats,
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyDir)
	}
	return New(entries), nil
}

// Entries returns the entries in build order. The slice must not be modified.
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry with the given ID. When several entries share an
// ID, the one built last wins.
func (c *Catalog) Lookup(id string) (*Entry, bool) {
	i, ok := c.index.Get(id)
	if !ok {
		return nil, false
	}
	return c.entries[i], true
}

// Names returns the distinct entry IDs in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, c.index.Len())
	c.index.Scan(func(id string, _ int) bool {
		names = append(names, id)
		return true
	})
	return names
}

// FeatureCount returns the total number of reference features.
func (c *Catalog) FeatureCount() int {
	n := 0
	for _, e := range c.entries {
		n += e.Features.Len()
	}
	return n
}

// Close releases every entry. Closing twice is a no-op.
func (c *Catalog) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, e := range c.entries {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
