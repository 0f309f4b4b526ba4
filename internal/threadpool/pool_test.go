package threadpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanchayi/web-server/internal/events"
	"github.com/hanchayi/web-server/internal/logger"
)

func newTestPool(t *testing.T, size int, policy PanicPolicy) *Pool {
	t.Helper()
	return NewWithConfig(Config{
		Size:        size,
		PanicPolicy: policy,
		Logger:      logger.Discard(),
	})
}

// shutdownWithin は Shutdown が d 以内に返ることを確認する
func shutdownWithin(t *testing.T, p *Pool, d time.Duration) time.Duration {
	t.Helper()

	start := time.Now()
	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		return time.Since(start)
	case <-time.After(d):
		t.Fatalf("Shutdown did not return within %v", d)
		return 0
	}
}

func TestNewPanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-3) })
	assert.Panics(t, func() { NewWithConfig(Config{}) })
}

func TestNewAndShutdownWithoutJobs(t *testing.T) {
	for size := 1; size <= 8; size++ {
		p := newTestPool(t, size, PanicPolicyExit)
		assert.Equal(t, size, p.Size())

		shutdownWithin(t, p, time.Second)
		assert.Equal(t, 0, p.LiveWorkers(), "size %d: workers still running after shutdown", size)
	}
}

func TestEveryJobRunsExactlyOnce(t *testing.T) {
	p := newTestPool(t, 4, PanicPolicyExit)

	const n = 1000
	var counter atomic.Int32
	runs := make([]atomic.Int32, n)

	for i := range n {
		require.NoError(t, p.Execute(func() {
			runs[i].Add(1)
			counter.Add(1)
		}))
	}

	shutdownWithin(t, p, 5*time.Second)

	assert.Equal(t, int32(n), counter.Load())
	for i := range runs {
		assert.Equalf(t, int32(1), runs[i].Load(), "job %d", i)
	}
	assert.Equal(t, uint64(n), p.Metrics().Submitted())
	assert.Equal(t, uint64(n), p.Metrics().Completed())
}

func TestFIFOWithSingleWorker(t *testing.T) {
	p := newTestPool(t, 1, PanicPolicyExit)

	gate := make(chan struct{})
	require.NoError(t, p.Execute(func() { <-gate }))

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, p.Execute(func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}))
	}
	assert.Equal(t, 4, p.QueueLen())

	close(gate)
	shutdownWithin(t, p, time.Second)

	assert.Equal(t, []string{"A", "B", "C", "D"}, order)
}

func TestBoundedParallelism(t *testing.T) {
	const k = 3
	const n = 12
	p := newTestPool(t, k, PanicPolicyExit)

	var current, peak atomic.Int32
	for range n {
		require.NoError(t, p.Execute(func() {
			c := current.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
		}))
	}

	shutdownWithin(t, p, 5*time.Second)

	assert.LessOrEqual(t, peak.Load(), int32(k))
	assert.Equal(t, int32(k), peak.Load(), "all workers should have been busy at once")
	assert.LessOrEqual(t, p.Metrics().PeakActive(), int64(k))
}

func TestExecuteAfterShutdown(t *testing.T) {
	p := newTestPool(t, 2, PanicPolicyExit)
	p.Shutdown()

	var ran atomic.Bool
	err := p.Execute(func() { ran.Store(true) })
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.True(t, p.Closed())

	assert.PanicsWithError(t, ErrPoolClosed.Error(), func() {
		p.MustExecute(func() { ran.Store(true) })
	})

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load(), "rejected job must not run")
	assert.Equal(t, uint64(0), p.Metrics().Submitted())
}

func TestExecuteNilJob(t *testing.T) {
	p := newTestPool(t, 1, PanicPolicyExit)
	defer p.Shutdown()

	assert.ErrorIs(t, p.Execute(nil), ErrNilJob)
}

func TestShutdownWaitsForInFlightJobs(t *testing.T) {
	p := newTestPool(t, 4, PanicPolicyExit)

	var counter atomic.Int32
	for range 4 {
		require.NoError(t, p.Execute(func() {
			time.Sleep(50 * time.Millisecond)
			counter.Add(1)
		}))
	}

	elapsed := shutdownWithin(t, p, 2*time.Second)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Equal(t, int32(4), counter.Load())
}

func TestShutdownIsIdempotent(t *testing.T) {
	p := newTestPool(t, 2, PanicPolicyExit)

	var counter atomic.Int32
	require.NoError(t, p.Execute(func() {
		time.Sleep(30 * time.Millisecond)
		counter.Add(1)
	}))

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
			// どの呼び出しも完了後にのみ返る
			assert.Equal(t, int32(1), counter.Load())
		}()
	}
	wg.Wait()

	require.NoError(t, p.Close())
}

func TestConcurrentProducers(t *testing.T) {
	p := newTestPool(t, 4, PanicPolicyExit)

	const producers = 10
	const jobsPerProducer = 100

	var counter atomic.Int32
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobsPerProducer {
				assert.NoError(t, p.Execute(func() { counter.Add(1) }))
			}
		}()
	}
	wg.Wait()

	shutdownWithin(t, p, 5*time.Second)

	assert.Equal(t, int32(producers*jobsPerProducer), counter.Load())
}

func TestPanicPolicyExitDegradesPool(t *testing.T) {
	p := newTestPool(t, 1, PanicPolicyExit)

	require.NoError(t, p.Execute(func() { panic("boom") }))

	require.Eventually(t, func() bool { return p.LiveWorkers() == 0 },
		time.Second, 5*time.Millisecond, "worker should exit after its job panics")

	// 受け付けはされるが、実行するワーカーがいない
	var ran atomic.Bool
	require.NoError(t, p.Execute(func() { ran.Store(true) }))

	shutdownWithin(t, p, time.Second)

	assert.False(t, ran.Load(), "degraded pool must not service new jobs")
	assert.Equal(t, 1, p.QueueLen())
	assert.Equal(t, uint64(1), p.Metrics().Panicked())
	assert.Equal(t, uint64(0), p.Metrics().Completed())
}

func TestPanicPolicyExitKeepsOtherWorkers(t *testing.T) {
	p := newTestPool(t, 3, PanicPolicyExit)

	require.NoError(t, p.Execute(func() { panic("boom") }))
	require.Eventually(t, func() bool { return p.LiveWorkers() == 2 },
		time.Second, 5*time.Millisecond)

	var counter atomic.Int32
	for range 20 {
		require.NoError(t, p.Execute(func() { counter.Add(1) }))
	}

	shutdownWithin(t, p, time.Second)
	assert.Equal(t, int32(20), counter.Load())
}

func TestPanicPolicyRespawn(t *testing.T) {
	p := newTestPool(t, 1, PanicPolicyRespawn)

	var counter atomic.Int32
	require.NoError(t, p.Execute(func() { panic("boom") }))
	for range 5 {
		require.NoError(t, p.Execute(func() { counter.Add(1) }))
	}

	shutdownWithin(t, p, time.Second)

	assert.Equal(t, int32(5), counter.Load())
	assert.Equal(t, uint64(1), p.Metrics().Panicked())
	assert.Equal(t, 0, p.LiveWorkers())
}

func TestPanicDuringShutdownDrainIsRespawned(t *testing.T) {
	p := newTestPool(t, 1, PanicPolicyRespawn)

	gate := make(chan struct{})
	var counter atomic.Int32
	require.NoError(t, p.Execute(func() { <-gate }))
	require.NoError(t, p.Execute(func() { panic("during drain") }))
	require.NoError(t, p.Execute(func() { counter.Add(1) }))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	shutdownWithin(t, p, time.Second)

	assert.Equal(t, int32(1), counter.Load())
}

func TestPoolPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	p := NewWithConfig(Config{
		Size:   2,
		Logger: logger.Discard(),
		Bus:    bus,
	})
	require.NoError(t, p.Execute(func() { panic("boom") }))
	shutdownWithin(t, p, time.Second)

	counts := make(map[events.EventType]int)
	timeout := time.After(time.Second)
	for counts[events.EventPoolShutdown] == 0 {
		select {
		case ev := <-ch:
			counts[ev.Type]++
		case <-timeout:
			t.Fatalf("missing pool_shutdown event, got %v", counts)
		}
	}

	assert.Equal(t, 2, counts[events.EventWorkerStarted])
	assert.Equal(t, 2, counts[events.EventWorkerExited])
	assert.Equal(t, 1, counts[events.EventWorkerPanicked])
}

func TestParsePanicPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PanicPolicy
		wantErr bool
	}{
		{"", PanicPolicyExit, false},
		{"exit", PanicPolicyExit, false},
		{"Respawn", PanicPolicyRespawn, false},
		{"restart", PanicPolicyExit, true},
	}

	for _, tt := range tests {
		got, err := ParsePanicPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got.String(), tt.want.String())
	}
	assert.Equal(t, "unknown", PanicPolicy(9).String())
}
