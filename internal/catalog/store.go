package catalog

import "sync"

// Store publishes the current catalog to readers and replaces it atomically.
// Readers Acquire a catalog for the duration of one frame; a replaced catalog
// is closed once its last reader releases it.
type Store struct {
	mu  sync.Mutex
	cur *Catalog
}

// NewStore creates a store publishing initial.
func NewStore(initial *Catalog) *Store {
	return &Store{cur: initial}
}

// Acquire returns the current catalog and a release func that must be
// called when the caller is done with it.
func (s *Store) Acquire() (*Catalog, func()) {
	s.mu.Lock()
	c := s.cur
	c.refs++
	s.mu.Unlock()

	var once sync.Once
	return c, func() { once.Do(func() { s.release(c) }) }
}

func (s *Store) release(c *Catalog) {
	s.mu.Lock()
	c.refs--
	closeNow := c.retired && c.refs == 0
	s.mu.Unlock()
	if closeNow {
		c.Close()
	}
}

// Swap publishes next. The previous catalog is closed as soon as no reader
// holds it.
func (s *Store) Swap(next *Catalog) {
	s.mu.Lock()
	old := s.cur
	s.cur = next
	old.retired = true
	closeNow := old.refs == 0
	s.mu.Unlock()
	if closeNow {
		old.Close()
	}
}

// Close retires the current catalog.
func (s *Store) Close() error {
	s.mu.Lock()
	c := s.cur
	c.retired = true
	closeNow := c.refs == 0
	s.mu.Unlock()
	if closeNow {
		return c.Close()
	}
	return nil
}
