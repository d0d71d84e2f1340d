package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/mnn/internal/backend/reference"
	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/schedule"
)

func newActor(t *testing.T, cfg Config) (*Handle, *reference.Runtime) {
	t.Helper()
	rt := reference.New()
	e, err := engine.NewFromBytes(rt, []byte(reference.Classifier))
	require.NoError(t, err)
	h := New(e, cfg)
	t.Cleanup(func() {
		h.Close()
		h.Wait()
	})
	return h, rt
}

func TestSubmitRunsModel(t *testing.T) {
	h, _ := newActor(t, Config{})

	got, err := Submit(h, func(r *Runner) ([]float32, error) {
		in, err := engine.Input[float32](r.Engine(), r.Session(), "data")
		if err != nil {
			return nil, err
		}
		if err := in.Fill(1); err != nil {
			return nil, err
		}
		if err := r.RunSession(); err != nil {
			return nil, err
		}
		out, err := engine.Output[float32](r.Engine(), r.Session(), "out")
		if err != nil {
			return nil, err
		}
		host, err := out.CreateHostTensorFromDevice(true)
		if err != nil {
			return nil, err
		}
		defer host.Close()
		return host.Host()
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1, 1}, got, 1e-6)
}

func TestWorkIsSerialized(t *testing.T) {
	h, rt := newActor(t, Config{QueueSize: 4})

	const callers, perCaller = 8, 25
	var (
		guard atomic.Bool
		mu    sync.Mutex
		log   []int
	)
	var g errgroup.Group
	for c := range callers {
		g.Go(func() error {
			for i := range perCaller {
				idx := c*perCaller + i
				err := h.Run(func(r *Runner) error {
					if !guard.CompareAndSwap(false, true) {
						return errors.New("two work items inside the engine at once")
					}
					defer guard.Store(false)
					if err := r.RunSession(); err != nil {
						return err
					}
					mu.Lock()
					log = append(log, idx)
					mu.Unlock()
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, log, callers*perCaller)
	seen := make(map[int]bool, len(log))
	for _, idx := range log {
		assert.False(t, seen[idx], "index %d logged twice", idx)
		seen[idx] = true
	}
	assert.Zero(t, rt.Stats().ConcurrentEntries)
	assert.Equal(t, int64(callers*perCaller), rt.Stats().Runs)
}

func TestFIFOFromOneCaller(t *testing.T) {
	h, _ := newActor(t, Config{})

	var order []int
	for i := range 10 {
		require.NoError(t, h.Run(func(*Runner) error {
			order = append(order, i)
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestPanicIsContained(t *testing.T) {
	h, _ := newActor(t, Config{})

	_, err := Submit(h, func(*Runner) (int, error) {
		panic("boom")
	})
	require.ErrorIs(t, err, mnnerr.ErrSync)
	var p *mnnerr.PanicError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "boom", p.Value)
	assert.Contains(t, p.Location, "actor_test.go")
	assert.NotEmpty(t, p.Stack)

	got, err := Submit(h, func(*Runner) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestErrorsPassThrough(t *testing.T) {
	h, _ := newActor(t, Config{})
	want := errors.New("work failed")
	err := h.Run(func(*Runner) error { return want })
	assert.ErrorIs(t, err, want)
	assert.True(t, h.IsLoaded())
}

func TestShutdownReleasesOnce(t *testing.T) {
	rt := reference.New()
	e, err := engine.NewFromBytes(rt, []byte(reference.Classifier))
	require.NoError(t, err)
	h := New(e, Config{})
	require.NoError(t, h.Load())

	h.Close()
	h.Close()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}

	st := rt.Stats()
	assert.Equal(t, int64(1), st.SessionsCreated)
	assert.Equal(t, int64(1), st.SessionsReleased)
	assert.Equal(t, int64(1), st.NetsReleased)
	assert.Zero(t, st.DoubleFrees)
}

func TestQueuedWorkRunsBeforeShutdown(t *testing.T) {
	h, _ := newActor(t, Config{})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = h.Run(func(*Runner) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	result := make(chan error, 1)
	go func() {
		result <- h.Run(func(*Runner) error { return nil })
	}()
	// Let the second item reach the queue before closing.
	require.Eventually(t, func() bool { return len(h.queue) == 1 }, time.Second, time.Millisecond)

	h.Close()
	close(release)
	require.NoError(t, <-result)
	h.Wait()
}

func TestSubmitAfterClose(t *testing.T) {
	h, _ := newActor(t, Config{})
	h.Close()
	h.Wait()

	_, err := Submit(h, func(*Runner) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, mnnerr.ErrSync)
	assert.False(t, h.IsLoaded())
}

func TestSubmitContextTimeout(t *testing.T) {
	h, _ := newActor(t, Config{})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = h.Run(func(*Runner) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := SubmitContext(ctx, h, func(*Runner) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, mnnerr.ErrSync)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	got, err := Submit(h, func(*Runner) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestLoadFailureSurfacesThroughSubmit(t *testing.T) {
	bad := schedule.DefaultScheduleConfig()
	bad.NumThreads = -1
	h, rt := newActor(t, Config{Schedule: []schedule.ScheduleConfig{bad}})

	_, err := Submit(h, func(*Runner) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, mnnerr.ErrParse)
	assert.ErrorIs(t, h.Load(), mnnerr.ErrParse)
	assert.False(t, h.IsLoaded())
	assert.Zero(t, rt.Stats().SessionsCreated)
}

func TestUnloadAndReload(t *testing.T) {
	h, rt := newActor(t, Config{})
	require.NoError(t, h.Load())
	assert.True(t, h.IsLoaded())

	require.NoError(t, h.Unload())
	assert.False(t, h.IsLoaded())
	assert.Equal(t, int64(1), rt.Stats().SessionsReleased)

	require.NoError(t, h.Run(func(r *Runner) error { return r.RunSession() }))
	assert.True(t, h.IsLoaded())
	assert.Equal(t, int64(2), rt.Stats().SessionsCreated)
}

func TestIDsAreUnique(t *testing.T) {
	a, _ := newActor(t, Config{})
	b, _ := newActor(t, Config{})
	assert.NotEqual(t, a.ID(), b.ID())
}
