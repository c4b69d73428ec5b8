// Package store caches the latest map snapshot for a bounded time.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/quakemap/internal/pipeline"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// historySize is how many recent snapshots stay addressable by id after a
// rebuild replaced them.
const historySize = 4

// Builder produces a fresh snapshot.
type Builder interface {
	Run(ctx context.Context) *pipeline.Snapshot
}

// Store serves the latest snapshot and rebuilds it once it is older than
// the TTL. Concurrent callers wait on a single in-flight build.
type Store struct {
	builder  Builder
	clock    clockwork.Clock
	current  *pipeline.Snapshot
	recent   []*pipeline.Snapshot // newest last
	inflight chan struct{}
	builtAt  time.Time
	ttl      time.Duration
	mu       sync.Mutex
}

// New creates a store. A non-positive ttl rebuilds on every Get.
func New(builder Builder, ttl time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{builder: builder, ttl: ttl, clock: clock}
}

// Get returns a snapshot no older than the TTL, building one if needed.
func (s *Store) Get(ctx context.Context) (*pipeline.Snapshot, error) {
	for {
		s.mu.Lock()
		if s.current != nil && s.clock.Since(s.builtAt) < s.ttl {
			snap := s.current
			s.mu.Unlock()
			return snap, nil
		}

		if wait := s.inflight; wait != nil {
			s.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		s.inflight = done
		s.mu.Unlock()

		// The build outlives a caller that gives up, other waiters still need it.
		snap := s.builder.Run(context.WithoutCancel(ctx))

		s.mu.Lock()
		s.current = snap
		s.builtAt = s.clock.Now()
		s.remember(snap)
		s.inflight = nil
		s.mu.Unlock()
		close(done)

		log.Debug().
			Str("snapshot", snap.ID).
			Dur("ttl", s.ttl).
			Msg("Snapshot cached")

		return snap, nil
	}
}

// Peek returns the cached snapshot without building.
func (s *Store) Peek() *pipeline.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Lookup returns a recently built snapshot by id. Requests that belong to
// one page load use it so they all read the same snapshot even when the
// cached one was rebuilt in between.
func (s *Store) Lookup(id string) (*pipeline.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].ID == id {
			return s.recent[i], true
		}
	}
	return nil, false
}

// remember must be called with mu held.
func (s *Store) remember(snap *pipeline.Snapshot) {
	s.recent = append(s.recent, snap)
	if len(s.recent) > historySize {
		s.recent = append(s.recent[:0], s.recent[len(s.recent)-historySize:]...)
	}
}

// Invalidate forces the next Get to rebuild.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
