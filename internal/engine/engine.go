// Package engine wraps a loaded model (the interpreter) and the sessions
// derived from it.
//
// An Engine and its sessions are not safe for concurrent use. Drive them
// from one goroutine, or hand them to an actor.
package engine

import (
	"errors"
	"io/fs"
	"os"
	"runtime"

	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log klog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine owns one native net. It is the factory for sessions.
type Engine struct {
	rt       native.Runtime
	net      native.Net
	log      klog.Logger
	sessions map[*Session]struct{}
	closed   bool
	cleanup  runtime.Cleanup
}

type netRef struct {
	rt  native.Runtime
	net native.Net
}

// NewFromFile loads a model from path.
func NewFromFile(rt native.Runtime, path string, opts ...Option) (*Engine, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mnnerr.Wrap(mnnerr.KindIO, err, "model %s not found", path)
		}
		return nil, mnnerr.Wrap(mnnerr.KindIO, err, "model %s", path)
	}
	net := rt.CreateNetFromFile(path)
	if net == 0 {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "failed to create interpreter from %s", path)
	}
	return newEngine(rt, net, opts), nil
}

// NewFromBytes loads a model held in memory.
func NewFromBytes(rt native.Runtime, data []byte, opts ...Option) (*Engine, error) {
	if len(data) == 0 {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "empty model buffer")
	}
	net := rt.CreateNetFromBuffer(data)
	if net == 0 {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "failed to create interpreter from %d bytes", len(data))
	}
	return newEngine(rt, net, opts), nil
}

func newEngine(rt native.Runtime, net native.Net, opts []Option) *Engine {
	e := &Engine{
		rt:       rt,
		net:      net,
		log:      klog.Background().WithName("engine"),
		sessions: make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	// Releasing the net also releases any session still attached to it.
	e.cleanup = runtime.AddCleanup(e, func(n netRef) { n.rt.ReleaseNet(n.net) }, netRef{rt: rt, net: net})
	e.log.V(2).Info("created interpreter", "net", net)
	return e
}

// Runtime returns the native runtime the engine was loaded with.
func (e *Engine) Runtime() native.Runtime { return e.rt }

// Handle returns the native net.
func (e *Engine) Handle() native.Net { return e.net }

func (e *Engine) checkOpen() error {
	if e.closed {
		return mnnerr.New(mnnerr.KindInterpreter, "interpreter closed")
	}
	return nil
}

// SetSessionMode applies mode to sessions created afterwards. Debug mode
// (the default) enables operator callbacks; Release disables them.
func (e *Engine) SetSessionMode(mode native.SessionMode) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.rt.SetSessionMode(e.net, mode)
	return nil
}

// SetCacheFile names the file the runtime reads and writes its compiled
// cache from. Only the first keySize bytes of the model key the cache.
func (e *Engine) SetCacheFile(path string, keySize int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := checkName(path); err != nil {
		return err
	}
	e.rt.SetCacheFile(e.net, path, keySize)
	return nil
}

// UpdateCacheFile writes the cache file for s.
func (e *Engine) UpdateCacheFile(s *Session) error {
	if err := e.checkSession(s); err != nil {
		return err
	}
	if code := e.rt.UpdateCacheFile(e.net, s.handle); code != native.NoError {
		return mnnerr.Status(code, "update cache file")
	}
	return nil
}

// CreateSession creates a single-path session. The config is cloned.
func (e *Engine) CreateSession(cfg schedule.ScheduleConfig) (*Session, error) {
	return e.CreateMultiPathSession([]schedule.ScheduleConfig{cfg})
}

// CreateMultiPathSession creates a session with one path per config. The
// first config decides where the session's memory lives.
func (e *Engine) CreateMultiPathSession(cfgs []schedule.ScheduleConfig) (*Session, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, mnnerr.New(mnnerr.KindParse, "no schedule config")
	}
	owned := make([]schedule.ScheduleConfig, len(cfgs))
	natives := make([]native.ScheduleConfig, len(cfgs))
	for i, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		owned[i] = cfg.Clone()
		natives[i] = owned[i].Native()
	}
	var h native.Session
	if len(natives) == 1 {
		h = e.rt.CreateSession(e.net, natives[0])
	} else {
		h = e.rt.CreateMultiPathSession(e.net, natives)
	}
	if h == 0 {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "failed to create session")
	}
	s := &Session{e: e, handle: h, configs: owned, state: StateCreated}
	if !e.dynamicInputs(s) {
		s.state = StateReady
	}
	e.sessions[s] = struct{}{}
	e.log.V(2).Info("created session", "session", h, "paths", len(owned), "forward", owned[0].Type)
	return s, nil
}

// ResizeSession resizes every tensor of s after input tensors changed shape.
func (e *Engine) ResizeSession(s *Session) error {
	return e.resize(s, false)
}

// ResizeSessionReallocate is ResizeSession but always allocates fresh
// buffers.
func (e *Engine) ResizeSessionReallocate(s *Session) error {
	return e.resize(s, true)
}

func (e *Engine) resize(s *Session, realloc bool) error {
	if err := e.checkSession(s); err != nil {
		return err
	}
	e.rt.ResizeSession(e.net, s.handle, realloc)
	s.state = StateResized
	e.log.V(4).Info("resized session", "session", s.handle, "realloc", realloc)
	return nil
}

// ResizeTensor changes the dimensions of a session tensor. The session must
// be resized before it runs again.
func (e *Engine) ResizeTensor(t RawTensor, dims []int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if t.IsNull() {
		return mnnerr.New(mnnerr.KindTensor, "resize of null tensor")
	}
	shape := Shape(dims)
	if err := shape.Validate(); err != nil {
		return mnnerr.Wrap(mnnerr.KindTensor, err, "resize to %s", shape)
	}
	e.rt.ResizeTensor(e.net, t.Handle(), shape.Clone())
	return nil
}

// ResizeTensorByNCHW resizes t from batch, channel, height and width,
// ordering them to match the tensor's layout.
func (e *Engine) ResizeTensorByNCHW(t RawTensor, n, c, h, w int) error {
	if !t.IsNull() && t.DimensionType() == native.TensorFlow {
		return e.ResizeTensor(t, []int{n, h, w, c})
	}
	return e.ResizeTensor(t, []int{n, c, h, w})
}

// Close releases every session still open and then the net. Later calls do
// nothing.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	for s := range e.sessions {
		s.Close()
	}
	e.closed = true
	e.cleanup.Stop()
	e.rt.ReleaseNet(e.net)
	e.log.V(2).Info("released interpreter", "net", e.net)
}

func checkName(name string) error {
	for i := 0; i < len(name); i++ {
		if name[i] == 0 || name[i] >= 0x80 {
			return mnnerr.New(mnnerr.KindASCII, "%q", name)
		}
	}
	return nil
}
