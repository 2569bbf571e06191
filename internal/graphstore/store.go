// Package graphstore owns the live intent graph.
//
// The Store holds the single graph used for recognition behind an atomic
// pointer. Readers take a Snapshot and keep using it even if a retrain swaps
// in a new graph meanwhile. The optional Persister reads the graph at
// startup and writes it back after training.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/nlu-hermes/internal/nlu"
)

// Persister reads and writes an encoded graph.
type Persister interface {
	// Load returns the stored graph, or ErrNotFound when nothing is stored.
	Load(ctx context.Context) (*nlu.Graph, error)

	// Save replaces the stored graph.
	Save(ctx context.Context, g *nlu.Graph) error

	// Location describes where the graph lives, for logs.
	Location() string
}

// HealthChecker is implemented by persisters that can report whether their
// backing storage is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the sole owner of the live graph.
type Store struct {
	current   atomic.Pointer[nlu.Graph]
	persister Persister

	// persistMu serialises writes so two saves never interleave on disk.
	persistMu sync.Mutex
}

// New creates a store. persister may be nil, in which case Load reports
// ErrNotFound and Persist reports ErrNoPersister.
func New(persister Persister) *Store {
	return &Store{persister: persister}
}

// Load reads the graph from the persister and makes it live.
// A missing graph returns ErrNotFound and leaves the store empty.
func (s *Store) Load(ctx context.Context) (*nlu.Graph, error) {
	if s.persister == nil {
		return nil, ErrNotFound
	}

	g, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading graph from %s: %w", s.persister.Location(), err)
	}

	s.Replace(g)
	return g, nil
}

// Replace atomically makes g the live graph.
func (s *Store) Replace(g *nlu.Graph) {
	s.current.Store(g)
}

// Snapshot returns the live graph and whether one exists.
func (s *Store) Snapshot() (*nlu.Graph, bool) {
	g := s.current.Load()
	return g, g != nil
}

// CanPersist reports whether a persister is configured.
func (s *Store) CanPersist() bool {
	return s.persister != nil
}

// Location returns the persister location, or "" when none is configured.
func (s *Store) Location() string {
	if s.persister == nil {
		return ""
	}
	return s.persister.Location()
}

// HealthCheck checks the persister's storage. A store without a persister,
// or with one that cannot check itself, is always healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	hc, ok := s.persister.(HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("graph store %s: %w", s.persister.Location(), err)
	}
	return nil
}

// Persist writes g through the persister. Failure does not affect the live
// graph.
func (s *Store) Persist(ctx context.Context, g *nlu.Graph) error {
	if s.persister == nil {
		return ErrNoPersister
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.persister.Save(ctx, g); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistFailed, s.persister.Location(), err)
	}
	return nil
}
