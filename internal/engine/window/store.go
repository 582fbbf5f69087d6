package window

import (
	"sync"
	"time"
)

// Store is an arena of independently lockable rolling windows keyed by
// instrument or pair id. Concurrent pushes for different keys never contend;
// pushes for the same key serialize on the entry mutex. The outer mutex only
// guards the map itself.
type Store struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	win      *Window
	lastSeen time.Time
}

// NewStore creates a store whose windows all share the given capacity.
func NewStore(capacity int) *Store {
	return &Store{capacity: capacity, entries: make(map[string]*entry)}
}

func (s *Store) entryFor(key string) *entry {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[key]; ok {
		return e
	}
	e = &entry{win: New(s.capacity)}
	s.entries[key] = e
	return e
}

// Push admits a sample for key, creating the window lazily, and returns the
// resulting stats. The error is ErrInsufficientData until two samples exist.
func (s *Store) Push(key string, v float64, at time.Time) (Stats, error) {
	e := s.entryFor(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.win.Push(v)
	e.lastSeen = at
	return e.win.Stats()
}

// Stats reports the current stats for key without mutating state.
func (s *Store) Stats(key string) (Stats, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Stats{}, ErrInsufficientData
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.win.Stats()
}

// ZScore computes the z-score of v against the window for key.
func (s *Store) ZScore(key string, v float64) (float64, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrInsufficientData
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.win.ZScore(v)
}

// LastSeen returns the arrival time of the newest sample for key.
func (s *Store) LastSeen(key string) (time.Time, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Values returns the buffered samples for key, oldest-first.
func (s *Store) Values(key string) []float64 {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.win.Values()
}

// Reset discards the window state for key, keeping the entry so the next
// push starts from an empty buffer.
func (s *Store) Reset(key string) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.win.Reset()
	e.lastSeen = time.Time{}
}

// Keys returns all known keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// SnapshotStats copies the stats of every key in one short per-key pass.
func (s *Store) SnapshotStats() map[string]Stats {
	s.mu.RLock()
	refs := make(map[string]*entry, len(s.entries))
	for k, e := range s.entries {
		refs[k] = e
	}
	s.mu.RUnlock()

	out := make(map[string]Stats, len(refs))
	for k, e := range refs {
		e.mu.Lock()
		st, err := e.win.Stats()
		e.mu.Unlock()
		if err == nil || st.SampleCount > 0 {
			out[k] = st
		}
	}
	return out
}
