package msgworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Despachar nunca bloquea al handler HTTP
func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := NewMessageWorkerPool(2, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(MessageJob{
		TenantID:  "acme",
		MessageID: "wamid.1",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

// Mensajes de la misma conversación deben poder esperar juntos el batch
func TestPool_SameConversationRunsConcurrently(t *testing.T) {
	pool := NewMessageWorkerPool(8, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	var inFlight, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range idsOnDistinctShards(pool, 3) {
		wg.Add(1)
		pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: id, Handler: func(ctx context.Context) error {
			defer wg.Done()
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&inFlight, -1)
			return nil
		}})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func idsOnDistinctShards(pool *MessageWorkerPool, n int) []string {
	seen := map[int]bool{}
	var ids []string
	for i := 0; len(ids) < n; i++ {
		id := fmt.Sprintf("wamid.%d", i)
		if shard := pool.shardFor("acme|" + id); !seen[shard] {
			seen[shard] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func TestPool_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	pool := NewMessageWorkerPool(maxWorkers, 100)
	pool.Start(context.Background())
	defer pool.Stop()

	var activeCount, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: fmt.Sprintf("m%d", i), Handler: func(ctx context.Context) error {
			defer wg.Done()
			current := atomic.AddInt32(&activeCount, 1)
			for {
				max := atomic.LoadInt32(&maxActive)
				if current <= max || atomic.CompareAndSwapInt32(&maxActive, max, current) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&activeCount, -1)
			return nil
		}})
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(maxWorkers))
}

// Stop procesa lo que ya estaba en cola
func TestPool_GracefulShutdown(t *testing.T) {
	pool := NewMessageWorkerPool(1, 10)
	pool.Start(context.Background())

	var completed int32
	for i := 0; i < 3; i++ {
		require.True(t, pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: fmt.Sprintf("m%d", i), Handler: func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
			return nil
		}}))
	}
	pool.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&completed))
	assert.False(t, pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: "late", Handler: func(context.Context) error { return nil }}))
	assert.Equal(t, int64(1), pool.GetStats().TotalDropped)
}

func TestPool_QueueFullDrops(t *testing.T) {
	pool := NewMessageWorkerPool(1, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	block := make(chan struct{})
	job := func(id string) MessageJob {
		return MessageJob{TenantID: "acme", MessageID: id, Handler: func(context.Context) error {
			<-block
			return nil
		}}
	}
	require.True(t, pool.TryDispatch(job("a")))
	time.Sleep(10 * time.Millisecond) // "a" en ejecución
	require.True(t, pool.TryDispatch(job("b")))
	assert.False(t, pool.TryDispatch(job("c")))
	close(block)
}

func TestPool_ErrorsAndPanicsAreCounted(t *testing.T) {
	pool := NewMessageWorkerPool(1, 10)
	pool.Start(context.Background())

	var ended []string
	var mu sync.Mutex
	pool.OnJobEnd = func(_ int, key string, _ error) {
		mu.Lock()
		ended = append(ended, key)
		mu.Unlock()
	}

	pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: "err", Handler: func(context.Context) error { return errors.New("boom") }})
	pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: "panic", Handler: func(context.Context) error { panic("boom") }})
	pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: "ok", Handler: func(context.Context) error { return nil }})
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int64(2), stats.TotalErrors)
	assert.Empty(t, stats.ActiveJobs)
	assert.Equal(t, []string{"acme|err", "acme|panic", "acme|ok"}, ended)
}

// Hash consistente: la misma clave siempre va al mismo worker
func TestPool_ConsistentHashing(t *testing.T) {
	pool := NewMessageWorkerPool(4, 100)

	shard := pool.shardFor("acme|wamid.1")
	assert.Equal(t, shard, pool.shardFor("acme|wamid.1"))
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)
}

// Distribución uniforme de jobs entre workers
func TestPool_FairDistribution(t *testing.T) {
	pool := NewMessageWorkerPool(4, 100)
	counts := make(map[int]int)
	for i := 0; i < 400; i++ {
		counts[pool.shardFor(fmt.Sprintf("acme|wamid.%d", i))]++
	}
	for shard, count := range counts {
		assert.Greater(t, count, 60, "worker %d", shard)
		assert.Less(t, count, 140, "worker %d", shard)
	}
}

// Un job estacionado no ocupa el worker de su shard
func TestPool_ParkDoesNotTakeAWorker(t *testing.T) {
	pool := NewMessageWorkerPool(1, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	require.True(t, pool.Park(MessageJob{TenantID: "acme", MessageID: "waiting", Handler: func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}))

	done := make(chan struct{})
	require.True(t, pool.TryDispatch(MessageJob{TenantID: "acme", MessageID: "next", Handler: func(context.Context) error {
		close(done)
		return nil
	}}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued job waited for the parked one")
	}
	assert.EqualValues(t, 1, pool.GetStats().ParkedJobs)
	close(release)
}

func TestPool_StopCancelsParkedJobs(t *testing.T) {
	pool := NewMessageWorkerPool(1, 10)
	pool.Start(context.Background())

	var cancelled int32
	require.True(t, pool.Park(MessageJob{TenantID: "acme", MessageID: "waiting", Handler: func(ctx context.Context) error {
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	}}))
	pool.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&cancelled))
	assert.EqualValues(t, 0, pool.GetStats().ParkedJobs)
	assert.False(t, pool.Park(MessageJob{TenantID: "acme", MessageID: "late", Handler: func(context.Context) error { return nil }}))
}
