// Package reference is an in-process implementation of the native engine.
//
// Models are TOML manifests listing inputs, a chain of operators and the
// outputs. The runtime follows the engine's handle discipline, including its
// lack of thread safety, and counts every allocation and release so tests
// can check that the safe layer frees each handle exactly once.
package reference

import (
	"os"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/native"
)

// Stats is a snapshot of the runtime's counters.
type Stats struct {
	NetsCreated       int64
	NetsReleased      int64
	SessionsCreated   int64
	SessionsReleased  int64
	TensorsCreated    int64
	TensorsDestroyed  int64
	DoubleFrees       int64
	IllegalDestroys   int64
	RunCalls          int64
	Runs              int64
	CallbacksInvoked  int64
	ConcurrentEntries int64
	CacheHits         int64
	CacheWrites       int64
}

type counters struct {
	netsCreated, netsReleased         atomic.Int64
	sessionsCreated, sessionsReleased atomic.Int64
	tensorsCreated, tensorsDestroyed  atomic.Int64
	doubleFrees, illegalDestroys      atomic.Int64
	runCalls, runs                    atomic.Int64
	callbacks, concurrent             atomic.Int64
	cacheHits, cacheWrites            atomic.Int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. The default is klog's background logger.
func WithLogger(log klog.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// WithPrivateDeviceMemory keeps device buffers in process memory even where
// a GPU allocator is available.
func WithPrivateDeviceMemory() Option {
	return func(r *Runtime) { r.device = newPrivateMemory() }
}

// Runtime implements native.Runtime and native.LLMRuntime.
type Runtime struct {
	mu       sync.Mutex
	next     uintptr
	nets     map[native.Net]*netObj
	sessions map[native.Session]*sessionObj
	tensors  map[native.Tensor]*tensorObj
	llms     map[native.LLM]*echoLLM

	device deviceMemory
	log    klog.Logger
	stats  counters
	inRun  atomic.Int32
}

var (
	_ native.Runtime    = (*Runtime)(nil)
	_ native.LLMRuntime = (*Runtime)(nil)
)

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		nets:     make(map[native.Net]*netObj),
		sessions: make(map[native.Session]*sessionObj),
		tensors:  make(map[native.Tensor]*tensorObj),
		llms:     make(map[native.LLM]*echoLLM),
		log:      klog.Background().WithName("reference"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.device == nil {
		r.device = newDeviceMemory()
	}
	return r
}

// DeviceName names the device allocator in use.
func (r *Runtime) DeviceName() string { return r.device.Name() }

// Stats returns a snapshot of the counters.
func (r *Runtime) Stats() Stats {
	c := &r.stats
	return Stats{
		NetsCreated:       c.netsCreated.Load(),
		NetsReleased:      c.netsReleased.Load(),
		SessionsCreated:   c.sessionsCreated.Load(),
		SessionsReleased:  c.sessionsReleased.Load(),
		TensorsCreated:    c.tensorsCreated.Load(),
		TensorsDestroyed:  c.tensorsDestroyed.Load(),
		DoubleFrees:       c.doubleFrees.Load(),
		IllegalDestroys:   c.illegalDestroys.Load(),
		RunCalls:          c.runCalls.Load(),
		Runs:              c.runs.Load(),
		CallbacksInvoked:  c.callbacks.Load(),
		ConcurrentEntries: c.concurrent.Load(),
		CacheHits:         c.cacheHits.Load(),
		CacheWrites:       c.cacheWrites.Load(),
	}
}

// LiveHandles returns the number of nets, sessions and standalone tensors
// not yet released.
func (r *Runtime) LiveHandles() (nets, sessions, tensors int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tensors {
		if t.session == 0 {
			tensors++
		}
	}
	return len(r.nets), len(r.sessions), tensors
}

// Close releases the device allocator.
func (r *Runtime) Close() {
	r.device.Release()
}

// handle must be called with mu held.
func (r *Runtime) handle() uintptr {
	r.next++
	return r.next
}

type netObj struct {
	model       *Model
	debug       bool
	resizeDefer bool
	cachePath   string
	keySize     int
	cacheValid  bool
	sessions    map[native.Session]struct{}
}

// CreateNetFromFile loads a manifest from disk.
func (r *Runtime) CreateNetFromFile(path string) native.Net {
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Error(err, "reading model", "path", path)
		return 0
	}
	return r.CreateNetFromBuffer(data)
}

// CreateNetFromBuffer parses a manifest.
func (r *Runtime) CreateNetFromBuffer(data []byte) native.Net {
	m, err := ParseModel(data)
	if err != nil {
		r.log.Error(err, "loading model")
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := native.Net(r.handle())
	r.nets[h] = &netObj{model: m, debug: true, sessions: make(map[native.Session]struct{})}
	r.stats.netsCreated.Add(1)
	r.log.V(4).Info("created net", "net", h, "model", m.Name)
	return h
}

// ReleaseNet releases the net and every session it still owns.
func (r *Runtime) ReleaseNet(net native.Net) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nets[net]
	if !ok {
		r.stats.doubleFrees.Add(1)
		r.log.Info("release of unknown net", "net", net)
		return
	}
	for s := range n.sessions {
		r.releaseSessionLocked(s)
	}
	delete(r.nets, net)
	r.stats.netsReleased.Add(1)
	r.log.V(4).Info("released net", "net", net)
}

// SetSessionMode applies one mode flag to sessions created afterwards.
func (r *Runtime) SetSessionMode(net native.Net, mode native.SessionMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nets[net]
	if !ok {
		return
	}
	switch mode {
	case native.SessionDebug:
		n.debug = true
	case native.SessionRelease:
		n.debug = false
	case native.SessionResizeDefer:
		n.resizeDefer = true
	case native.SessionResizeDirect:
		n.resizeDefer = false
	}
}
