// Package history keeps the most recent run results for the API, in memory
// and optionally in a badger database.
package history

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/use-agent/slotwatch/models"
)

// Store is a bounded in-memory record of finished runs, oldest evicted
// first. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*models.RunResult
	order      []string // oldest first
	maxEntries int
	backend    Backend
}

// New creates a Store holding at most maxEntries runs (minimum 1).
func New(maxEntries int) *Store {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Store{
		byID:       make(map[string]*models.RunResult, maxEntries),
		maxEntries: maxEntries,
	}
}

// NewPersistent creates a Store backed by b, preloaded with the newest
// maxEntries runs b holds.
func NewPersistent(maxEntries int, b Backend) (*Store, error) {
	s := New(maxEntries)
	runs, err := b.Recent(s.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("restore history: %w", err)
	}
	for _, r := range runs {
		s.add(r)
	}
	s.backend = b
	return s, nil
}

// Add records r, and saves it when the Store has a backend. A failed save
// is logged; the run stays in memory. Adding an ID that is already stored
// replaces it in place.
func (s *Store) Add(r *models.RunResult) {
	s.add(r)
	if s.backend != nil {
		if err := s.backend.Save(r); err != nil {
			slog.Error("run not persisted", "id", r.ID, "error", err)
		}
	}
}

func (s *Store) add(r *models.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		s.byID[r.ID] = r
		return
	}
	if len(s.order) >= s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}
	s.byID[r.ID] = r
	s.order = append(s.order, r.ID)
}

// Get returns the run with id.
func (s *Store) Get(id string) (*models.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// Latest returns the most recently added run.
func (s *Store) Latest() (*models.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false
	}
	return s.byID[s.order[len(s.order)-1]], true
}

// List returns the stored runs, newest first.
func (s *Store) List() []*models.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RunResult, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.byID[s.order[i]])
	}
	return out
}

// Len returns the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
