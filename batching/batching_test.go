package batching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), Config{Window: 60 * time.Millisecond, Poll: 5 * time.Millisecond})
}

func TestWait_SingleMessageFlushesAfterWindow(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := Key("acme", "5511")

	require.NoError(t, svc.Add(ctx, key, "m1", "olá"))
	start := time.Now()
	batch, err := svc.Wait(ctx, key, "m1")
	require.NoError(t, err)

	assert.True(t, batch.Leader)
	assert.Equal(t, "olá", batch.Content)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWait_BurstProducesOneLeaderWithEverything(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	key := Key("acme", "5511")

	type outcome struct {
		token string
		batch Batch
		err   error
	}
	results := make(chan outcome, 3)
	var wg sync.WaitGroup
	for i, text := range []string{"oi", "tudo bem?", "preciso de ajuda"} {
		token := fmt.Sprintf("m%d", i+1)
		require.NoError(t, svc.Add(ctx, key, token, text))
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := svc.Wait(ctx, key, token)
			results <- outcome{token: token, batch: b, err: err}
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	close(results)

	leaders := 0
	for r := range results {
		require.NoError(t, r.err)
		if r.batch.Leader {
			leaders++
			assert.Equal(t, "m3", r.token)
			assert.Equal(t, "oi\ntudo bem?\npreciso de ajuda", r.batch.Content)
			assert.Len(t, r.batch.Parts, 3)
		} else {
			assert.Empty(t, r.batch.Content)
		}
	}
	assert.Equal(t, 1, leaders)
}

func TestWait_SupersededWaiterReturnsImmediately(t *testing.T) {
	svc := NewService(NewMemoryStore(), Config{Window: time.Hour, Poll: 5 * time.Millisecond})
	ctx := context.Background()
	key := Key("acme", "5511")

	require.NoError(t, svc.Add(ctx, key, "m1", "a"))
	require.NoError(t, svc.Add(ctx, key, "m2", "b"))

	done := make(chan Batch, 1)
	go func() {
		b, _ := svc.Wait(ctx, key, "m1")
		done <- b
	}()
	select {
	case b := <-done:
		assert.False(t, b.Leader)
	case <-time.After(time.Second):
		t.Fatal("superseded waiter kept waiting")
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	svc := NewService(NewMemoryStore(), Config{Window: time.Hour, Poll: 5 * time.Millisecond})
	key := Key("acme", "5511")
	require.NoError(t, svc.Add(context.Background(), key, "m1", "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := svc.Wait(ctx, key, "m1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWait_KeysAreIndependent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, Key("acme", "1"), "a1", "first"))
	require.NoError(t, svc.Add(ctx, Key("acme", "2"), "b1", "second"))

	a, err := svc.Wait(ctx, Key("acme", "1"), "a1")
	require.NoError(t, err)
	b, err := svc.Wait(ctx, Key("acme", "2"), "b1")
	require.NoError(t, err)
	assert.Equal(t, "first", a.Content)
	assert.Equal(t, "second", b.Content)
}

func TestMemoryStore_DrainIsCompareAndDrain(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Push(ctx, "k", "t1", "a", time.Minute))
	require.NoError(t, s.Push(ctx, "k", "t2", "b", time.Minute))

	_, ok, err := s.Drain(ctx, "k", "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	items, ok, err := s.Drain(ctx, "k", "t2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, items)

	_, found, _ := s.Marker(ctx, "k")
	assert.False(t, found)
}

func TestMemoryStore_Expires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, s.Push(ctx, "k", "t1", "a", time.Second))

	now = now.Add(2 * time.Second)
	_, found, err := s.Marker(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_QuietIsMeasuredOnTheStoreClock(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, s.Push(ctx, "k", "t1", "a", time.Minute))

	now = now.Add(3 * time.Second)
	m, found, err := s.Marker(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "t1", m.Token)
	assert.Equal(t, 3*time.Second, m.Quiet)
}

// quietStore reports a fixed quiet time, like a shared store whose clock
// disagrees with this process.
type quietStore struct {
	*MemoryStore
	quiet time.Duration
}

func (q quietStore) Marker(ctx context.Context, key string) (Marker, bool, error) {
	m, found, err := q.MemoryStore.Marker(ctx, key)
	m.Quiet = q.quiet
	return m, found, err
}

func TestWait_UsesQuietTimeReportedByStore(t *testing.T) {
	store := quietStore{MemoryStore: NewMemoryStore(), quiet: time.Hour}
	svc := NewService(store, Config{Window: time.Minute, Poll: 5 * time.Millisecond})
	ctx := context.Background()
	key := Key("acme", "5511")

	require.NoError(t, svc.Add(ctx, key, "m1", "oi"))
	start := time.Now()
	b, err := svc.Wait(ctx, key, "m1")
	require.NoError(t, err)
	assert.True(t, b.Leader)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMarkerFromReply(t *testing.T) {
	m, err := markerFromReply("wamid.HBg|x", 1500)
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBg|x", m.Token)
	assert.Equal(t, 1500*time.Millisecond, m.Quiet)

	_, err = markerFromReply("no-separator", -1)
	assert.ErrorIs(t, err, errCorruptMarker)
}
