package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/quakemap/internal/pipeline"
	"github.com/woozymasta/quakemap/internal/render"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBuilder struct {
	release chan struct{} // nil: build immediately
	runs    atomic.Int32
}

func (b *countingBuilder) Run(_ context.Context) *pipeline.Snapshot {
	if b.release != nil {
		<-b.release
	}
	n := b.runs.Add(1)
	return &pipeline.Snapshot{ID: fmt.Sprintf("snap-%d", n), Document: &render.MapDocument{}}
}

func TestGetCachesWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := &countingBuilder{}
	s := New(b, time.Minute, clock)

	first, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-1", first.ID)

	clock.Advance(59 * time.Second)
	again, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int32(1), b.runs.Load())

	clock.Advance(time.Second)
	fresh, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-2", fresh.ID)
}

func TestGetZeroTTLRebuildsEveryTime(t *testing.T) {
	b := &countingBuilder{}
	s := New(b, 0, clockwork.NewFakeClock())

	for i := 0; i < 3; i++ {
		_, err := s.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), b.runs.Load())
}

func TestLookupServesReplacedSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := &countingBuilder{}
	s := New(b, time.Minute, clock)

	first, err := s.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Minute)
	second, err := s.Get(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	got, ok := s.Lookup(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)

	got, ok = s.Lookup(second.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	_, ok = s.Lookup("unknown")
	assert.False(t, ok)
}

func TestLookupForgetsOldSnapshots(t *testing.T) {
	b := &countingBuilder{}
	s := New(b, 0, clockwork.NewFakeClock())

	for i := 0; i < historySize+1; i++ {
		_, err := s.Get(context.Background())
		require.NoError(t, err)
	}

	_, ok := s.Lookup("snap-1")
	assert.False(t, ok)
	_, ok = s.Lookup("snap-2")
	assert.True(t, ok)
	_, ok = s.Lookup(fmt.Sprintf("snap-%d", historySize+1))
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	b := &countingBuilder{}
	s := New(b, time.Hour, clockwork.NewFakeClock())

	_, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s.Peek())

	s.Invalidate()
	assert.Nil(t, s.Peek())

	snap, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-2", snap.ID)
}

func TestConcurrentGetSharesOneBuild(t *testing.T) {
	b := &countingBuilder{release: make(chan struct{})}
	s := New(b, time.Hour, clockwork.NewFakeClock())

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := s.Get(context.Background())
			if assert.NoError(t, err) {
				ids[i] = snap.ID
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.Equal(t, int32(1), b.runs.Load())
	for _, id := range ids {
		assert.Equal(t, "snap-1", id)
	}
}

func TestGetWaiterHonorsContext(t *testing.T) {
	b := &countingBuilder{release: make(chan struct{})}
	s := New(b, time.Hour, clockwork.NewFakeClock())

	go func() { _, _ = s.Get(context.Background()) }()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inflight != nil
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(b.release)
}
