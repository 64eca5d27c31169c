package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (r *Registry) pendingFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lanes[key]; ok {
		return l.pending
	}

	return 0
}

func (r *Registry) queuedFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lanes[key]; ok {
		return len(l.queue)
	}

	return 0
}

func newTestRegistry(capacity int) *Registry {
	return NewRegistry(Config{LaneCapacity: capacity, Logger: zerolog.Nop()})
}

func TestAskReturnsResult(t *testing.T) {
	r := newTestRegistry(0)

	got, err := Ask(context.Background(), r, "acc-1", func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	boom := errors.New("boom")
	_, err = Ask(context.Background(), r, "acc-1", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSameKeyNeverOverlaps(t *testing.T) {
	r := newTestRegistry(0)

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		wg        sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Ask(context.Background(), r, "same", func(ctx context.Context) (struct{}, error) {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestDistinctKeysRunInParallel(t *testing.T) {
	r := newTestRegistry(0)

	aStarted := make(chan struct{})
	bStarted := make(chan struct{})

	wait := func(own, other chan struct{}) func(ctx context.Context) (bool, error) {
		return func(ctx context.Context) (bool, error) {
			close(own)
			select {
			case <-other:
				return true, nil
			case <-time.After(2 * time.Second):
				return false, nil
			}
		}
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], _ = Ask(context.Background(), r, "a", wait(aStarted, bStarted))
	}()
	go func() {
		defer wg.Done()
		results[1], _ = Ask(context.Background(), r, "b", wait(bStarted, aStarted))
	}()
	wg.Wait()

	assert.True(t, results[0] && results[1], "commands on different keys should overlap")
}

func TestLaneIsFIFO(t *testing.T) {
	r := newTestRegistry(0)

	release := make(chan struct{})
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
		}(i)
		// wait for the submission to land before issuing the next one
		require.Eventually(t, func() bool { return r.queuedFor("k") == i }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	expected := make([]int, 20)
	for i := range expected {
		expected[i] = i + 1
	}
	assert.Equal(t, expected, order)
}

func TestIdleLanesAreReaped(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_lanes"})
	r := NewRegistry(Config{Logger: zerolog.Nop(), ActiveLanes: gauge})

	for i := 0; i < 10; i++ {
		_, err := Ask(context.Background(), r, fmt.Sprintf("key-%d", i), func(ctx context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return r.LaneCount() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestFullLaneAppliesBackpressure(t *testing.T) {
	r := newTestRegistry(1)

	release := make(chan struct{})
	var wg sync.WaitGroup

	// first job occupies the worker
	started := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	// second job fills the buffer
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) { return 2, nil })
	}()
	require.Eventually(t, func() bool { return r.queuedFor("k") == 1 }, time.Second, time.Millisecond)

	// third blocks until its context expires
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Ask(ctx, r, "k", func(ctx context.Context) (int, error) { return 3, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, r.pendingFor("k"))

	close(release)
	wg.Wait()
	require.Eventually(t, func() bool { return r.LaneCount() == 0 }, time.Second, time.Millisecond)
}

func TestCancelledSubmitterDoesNotStrandWorker(t *testing.T) {
	r := newTestRegistry(1)

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	require.Eventually(t, func() bool { return r.pendingFor("k") == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// buffer has room, so this may either enqueue or observe cancellation; both are fine
	_, _ = Ask(ctx, r, "k", func(ctx context.Context) (int, error) { return 1, nil })

	close(release)
	<-done
	require.Eventually(t, func() bool { return r.LaneCount() == 0 }, time.Second, time.Millisecond)

	got, err := Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestPanicIsReturnedAndLaneSurvives(t *testing.T) {
	r := newTestRegistry(0)

	_, err := Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
		panic("bad command")
	})
	assert.ErrorIs(t, err, ErrCommandPanicked)

	got, err := Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestNoMessageLostUnderChurn(t *testing.T) {
	r := newTestRegistry(4)

	const (
		keys       = 8
		perKey     = 200
		submitters = 4
	)

	var (
		executed atomic.Int64
		wg       sync.WaitGroup
	)

	for s := 0; s < submitters; s++ {
		for k := 0; k < keys; k++ {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				for i := 0; i < perKey; i++ {
					_, err := Ask(context.Background(), r, key, func(ctx context.Context) (struct{}, error) {
						executed.Add(1)
						return struct{}{}, nil
					})
					assert.NoError(t, err)
				}
			}(fmt.Sprintf("key-%d", k))
		}
	}

	wg.Wait()
	assert.Equal(t, int64(keys*perKey*submitters), executed.Load())
	require.Eventually(t, func() bool { return r.LaneCount() == 0 }, time.Second, time.Millisecond)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	r := newTestRegistry(0)

	release := make(chan struct{})
	finished := make(chan int, 1)
	go func() {
		v, _ := Ask(context.Background(), r, "k", func(ctx context.Context) (int, error) {
			<-release
			return 9, nil
		})
		finished <- v
	}()
	require.Eventually(t, func() bool { return r.pendingFor("k") == 1 }, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- r.Close(context.Background()) }()

	require.Eventually(t, func() bool {
		_, err := Ask(context.Background(), r, "other", func(ctx context.Context) (int, error) { return 0, nil })
		return errors.Is(err, ErrRegistryClosed)
	}, time.Second, time.Millisecond)

	close(release)
	assert.Equal(t, 9, <-finished)
	assert.NoError(t, <-closed)
}
