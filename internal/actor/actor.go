// Package actor confines an engine and one of its sessions to a single
// goroutine locked to its OS thread. Work submitted from any goroutine runs
// there one item at a time, in arrival order.
package actor

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/schedule"
)

// DefaultQueueSize is the queue capacity used when Config leaves it unset.
const DefaultQueueSize = 64

// Config configures an actor.
type Config struct {
	// Schedule lists the session's paths. Empty means the default CPU
	// schedule.
	Schedule []schedule.ScheduleConfig
	// QueueSize bounds the number of submissions waiting for the worker.
	QueueSize int
	// Logger defaults to klog's background logger.
	Logger klog.Logger
}

// Runner gives submitted work access to the engine and its session. It is
// valid only for the duration of the call it was passed to.
type Runner struct {
	e *engine.Engine
	s *engine.Session
}

// Engine returns the confined engine.
func (r *Runner) Engine() *engine.Engine { return r.e }

// Session returns the confined session.
func (r *Runner) Session() *engine.Session { return r.s }

// RunSession runs the session.
func (r *Runner) RunSession() error { return r.e.RunSession(r.s) }

// request is one queue entry. A request with stop set ends the worker.
type request struct {
	run  func(w *worker)
	stop bool
}

// Handle is the caller side of an actor. It is safe for concurrent use.
type Handle struct {
	id  uuid.UUID
	log klog.Logger

	mu     sync.RWMutex
	closed bool

	queue   chan request
	done    chan struct{}
	cleanup runtime.Cleanup
}

// New hands e to a new worker and returns its handle. The worker's first
// action is creating the session; if that fails the error is returned by
// the next submission, which retries it.
func New(e *engine.Engine, cfg Config) *Handle {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	log := cfg.Logger
	if log.GetSink() == nil {
		log = klog.Background()
	}
	paths := make([]schedule.ScheduleConfig, 0, len(cfg.Schedule))
	for _, c := range cfg.Schedule {
		paths = append(paths, c.Clone())
	}
	if len(paths) == 0 {
		paths = append(paths, schedule.DefaultScheduleConfig())
	}

	id := uuid.New()
	h := &Handle{
		id:    id,
		log:   log.WithName("actor").WithValues("actor", id),
		queue: make(chan request, size),
		done:  make(chan struct{}),
	}
	w := &worker{engine: e, paths: paths, log: h.log}
	go w.loop(h.queue, h.done)

	// A handle dropped without Close still stops its worker.
	h.cleanup = runtime.AddCleanup(h, stop, h.queue)
	h.log.V(2).Info("started actor", "queue", size, "paths", len(paths))
	return h
}

func stop(queue chan request) {
	select {
	case queue <- request{stop: true}:
	default:
		go func() { queue <- request{stop: true} }()
	}
}

// ID identifies the actor in logs.
func (h *Handle) ID() uuid.UUID { return h.id }

// Close stops accepting work and signals the worker to exit once the work
// already queued has run. It does not wait; use Wait for that. Later calls
// do nothing.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.cleanup.Stop()
	stop(h.queue)
	h.log.V(2).Info("closing actor")
}

// Wait blocks until the worker has exited and released the session and
// the engine.
func (h *Handle) Wait() { <-h.done }

// Done is closed when the worker has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) send(ctx context.Context, req request) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return mnnerr.New(mnnerr.KindSync, "actor closed")
	}
	select {
	case h.queue <- req:
		return nil
	case <-ctx.Done():
		return mnnerr.Wrap(mnnerr.KindSync, ctx.Err(), "queueing work")
	}
}

type result[R any] struct {
	v   R
	err error
}

// call queues fn and waits for its result.
func call[R any](ctx context.Context, h *Handle, fn func(w *worker) (R, error)) (R, error) {
	var zero R
	resp := make(chan result[R], 1)
	req := request{run: func(w *worker) {
		v, err := fn(w)
		resp <- result[R]{v: v, err: err}
	}}
	if err := h.send(ctx, req); err != nil {
		return zero, err
	}
	select {
	case r := <-resp:
		return r.v, r.err
	case <-ctx.Done():
		return zero, mnnerr.Wrap(mnnerr.KindSync, ctx.Err(), "waiting for result")
	case <-h.done:
		select {
		case r := <-resp:
			return r.v, r.err
		default:
			return zero, mnnerr.New(mnnerr.KindSync, "actor worker exited")
		}
	}
}

// Submit runs fn on the worker and returns its result. A panic in fn is
// returned as a sync error and leaves the actor usable.
func Submit[R any](h *Handle, fn func(*Runner) (R, error)) (R, error) {
	return SubmitContext(context.Background(), h, fn)
}

// SubmitContext is Submit with a bound on the wait. When ctx ends first the
// caller stops waiting; work already started still runs to completion.
func SubmitContext[R any](ctx context.Context, h *Handle, fn func(*Runner) (R, error)) (R, error) {
	return call(ctx, h, func(w *worker) (R, error) {
		return invoke(w, fn)
	})
}

// Run is Submit for work without a result.
func (h *Handle) Run(fn func(*Runner) error) error {
	_, err := Submit(h, func(r *Runner) (struct{}, error) {
		return struct{}{}, fn(r)
	})
	return err
}

// Load creates the session if it is not loaded.
func (h *Handle) Load() error {
	_, err := call(context.Background(), h, func(w *worker) (struct{}, error) {
		return struct{}{}, w.load()
	})
	return err
}

// Unload releases the session and keeps the engine. The next submission
// loads it again.
func (h *Handle) Unload() error {
	_, err := call(context.Background(), h, func(w *worker) (struct{}, error) {
		w.unload()
		return struct{}{}, nil
	})
	return err
}

// IsLoaded reports whether the worker holds a session. A closed actor is
// not loaded.
func (h *Handle) IsLoaded() bool {
	loaded, err := call(context.Background(), h, func(w *worker) (bool, error) {
		return w.session != nil, nil
	})
	return err == nil && loaded
}

func invoke[R any](w *worker, fn func(*Runner) (R, error)) (v R, err error) {
	if err := w.load(); err != nil {
		return v, err
	}
	defer func() {
		if p := recover(); p != nil {
			e := mnnerr.Recovered(p, debug.Stack())
			w.log.Error(e, "recovered panic in submitted work", "location", e.Location)
			err = e
		}
	}()
	return fn(&Runner{e: w.engine, s: w.session})
}
