// Package shard serializes work per key. Each key gets a lane: a bounded queue
// drained by a single goroutine, so work sharing a key runs one at a time and in
// submission order while different keys run in parallel.
package shard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultLaneCapacity is the number of queued items a lane holds before
// submitters block.
const DefaultLaneCapacity = 1000

var (
	ErrRegistryClosed  = errors.New("shard registry closed")
	ErrCommandPanicked = errors.New("command panicked")
)

// Config for Registry.
type Config struct {
	LaneCapacity int
	Logger       zerolog.Logger
	ActiveLanes  prometheus.Gauge // optional
}

// Registry maps shard keys to lanes. Lanes are created on first use and removed
// as soon as they have nothing queued or running.
//
// mu guards the lane map, every lane's pending count and the closed flag. Lookup-or-create
// and the check-empty-then-remove step both happen under it, so a submitter either
// reserves a slot in a live lane or creates a fresh one.
type Registry struct {
	mu       sync.Mutex
	lanes    map[string]*lane
	closed   bool
	capacity int
	wg       sync.WaitGroup

	logger      zerolog.Logger
	activeLanes prometheus.Gauge
}

type lane struct {
	key   string
	queue chan job
	// pending counts reserved slots: queued, running, or about to be sent.
	pending int
}

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.LaneCapacity <= 0 {
		cfg.LaneCapacity = DefaultLaneCapacity
	}

	return &Registry{
		lanes:       make(map[string]*lane),
		capacity:    cfg.LaneCapacity,
		logger:      cfg.Logger,
		activeLanes: cfg.ActiveLanes,
	}
}

// Ask runs fn on the lane for key and waits for its result.
//
// The call blocks while the lane is full. ctx only bounds that wait: once fn is
// queued it runs to completion with a context that is never cancelled, and Ask
// waits for it.
func Ask[R any](ctx context.Context, r *Registry, key string, fn func(ctx context.Context) (R, error)) (R, error) {
	var (
		result R
		err    error
		done   = make(chan struct{})
	)

	submitErr := r.submit(ctx, key, func(ctx context.Context) {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error().
					Str("shard_key", key).
					Interface("panic", p).
					Str("stack", string(debug.Stack())).
					Msg("command panicked")
				err = fmt.Errorf("%w: %v", ErrCommandPanicked, p)
			}
		}()

		result, err = fn(ctx)
	})
	if submitErr != nil {
		return result, submitErr
	}

	<-done

	return result, err
}

// LaneCount returns the number of live lanes.
func (r *Registry) LaneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.lanes)
}

// Close stops accepting work and waits until every lane has drained or ctx is done.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) submit(ctx context.Context, key string, run func(ctx context.Context)) error {
	l, err := r.reserve(key)
	if err != nil {
		return err
	}

	select {
	case l.queue <- job{ctx: context.WithoutCancel(ctx), run: run}:
		return nil
	case <-ctx.Done():
		r.release(l)
		return ctx.Err()
	}
}

// reserve looks up or creates the lane for key and claims a slot in it.
func (r *Registry) reserve(key string) (*lane, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	l, ok := r.lanes[key]
	if !ok {
		l = &lane{key: key, queue: make(chan job, r.capacity)}
		r.lanes[key] = l
		r.wg.Add(1)
		go r.work(l)

		if r.activeLanes != nil {
			r.activeLanes.Inc()
		}
		r.logger.Debug().Str("shard_key", key).Msg("lane created")
	}

	l.pending++

	return l, nil
}

// release gives back a slot. The caller that drops pending to zero removes the
// lane and closes its queue; it reports whether that happened.
func (r *Registry) release(l *lane) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l.pending--
	if l.pending > 0 {
		return false
	}

	delete(r.lanes, l.key)
	close(l.queue)

	if r.activeLanes != nil {
		r.activeLanes.Dec()
	}
	r.logger.Debug().Str("shard_key", l.key).Msg("lane reaped")

	return true
}

func (r *Registry) work(l *lane) {
	defer r.wg.Done()

	for j := range l.queue {
		j.run(j.ctx)
		if r.release(l) {
			return
		}
	}
}
