// Package logstore holds the in-memory, newest-first list of transaction log
// entries for the running dashboard session.
package logstore

import (
	"sort"
	"sync"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// Listener is called with a snapshot after every change to the store.
type Listener func(entries []models.LogEntry)

// Store is the authoritative list of log entries. It is safe for concurrent
// use; readers always receive copies.
type Store struct {
	mu        sync.RWMutex
	entries   []models.LogEntry
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

// New creates an empty store
func New() *Store {
	return &Store{}
}

// LoadInitial replaces the contents with entries sorted newest first.
// Entries are passed through as-is; ones without a usable timestamp sort last.
func (s *Store) LoadInitial(entries []models.LogEntry) {
	sorted := make([]models.LogEntry, len(entries))
	copy(sorted, entries)
	SortDescending(sorted)

	s.mu.Lock()
	s.entries = sorted
	s.mu.Unlock()

	s.notify()
}

// Prepend inserts entry at the front on the assumption it is the newest.
// No re-sort is performed.
func (s *Store) Prepend(entry models.LogEntry) {
	s.mu.Lock()
	s.entries = append([]models.LogEntry{entry}, s.entries...)
	s.mu.Unlock()

	s.notify()
}

// Insert places entry at its descending-time position, so late or backfilled
// pushes keep the list ordered. Ties go in front of existing entries.
func (s *Store) Insert(entry models.LogEntry) {
	s.mu.Lock()
	idx := sort.Search(len(s.entries), func(i int) bool {
		return !newer(s.entries[i], entry)
	})
	s.entries = append(s.entries, models.LogEntry{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = entry
	s.mu.Unlock()

	s.notify()
}

// Entries returns a copy of the current list
func (s *Store) Entries() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Listeners run in registration order.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	snapshot := make([]models.LogEntry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// SortDescending orders entries newest first, invalid timestamps last.
func SortDescending(entries []models.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return newer(entries[i], entries[j])
	})
}

// IsSortedDescending reports whether entries satisfy the display ordering.
func IsSortedDescending(entries []models.LogEntry) bool {
	for i := 1; i < len(entries); i++ {
		if newer(entries[i], entries[i-1]) {
			return false
		}
	}
	return true
}

func newer(a, b models.LogEntry) bool {
	switch {
	case !a.Valid():
		return false
	case !b.Valid():
		return true
	default:
		return a.CreatedAt.After(b.CreatedAt)
	}
}
