package engine

import (
	"sync"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
	"github.com/born-ml/mnn/internal/tensor"
)

// RawTensor and Shape are re-exported for callers of this package.
type (
	RawTensor = tensor.RawTensor
	Shape     = tensor.Shape
)

// OperatorInfo describes the operator a callback is invoked around.
type OperatorInfo = native.OperatorInfo

// State is a session's position in its lifecycle.
type State int

// Session states.
const (
	// StateCreated sessions may still have unresolved input shapes.
	StateCreated State = iota
	// StateResized sessions were resized after their inputs changed.
	StateResized
	// StateReady sessions have every shape resolved.
	StateReady
	// StateRunning sessions are inside a run call.
	StateRunning
	// StateDestroyed sessions have released their native context.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateResized:
		return "resized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Session is an execution context bound to its schedule configs. It
// belongs to the Engine that created it.
type Session struct {
	e       *Engine
	handle  native.Session
	configs []schedule.ScheduleConfig
	state   State
	once    sync.Once
}

// Handle returns the native session.
func (s *Session) Handle() native.Session { return s.handle }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Configs returns a copy of the configs the session was created with.
func (s *Session) Configs() []schedule.ScheduleConfig {
	out := make([]schedule.ScheduleConfig, len(s.configs))
	for i, c := range s.configs {
		out[i] = c.Clone()
	}
	return out
}

// Close releases the native session. Later calls do nothing.
func (s *Session) Close() {
	s.once.Do(func() {
		e := s.e
		delete(e.sessions, s)
		if !e.closed {
			e.rt.ReleaseSession(e.net, s.handle)
		}
		s.state = StateDestroyed
		e.log.V(2).Info("released session", "session", s.handle)
	})
}

func (e *Engine) checkSession(s *Session) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if s == nil || s.e != e {
		return mnnerr.New(mnnerr.KindInterpreter, "session belongs to another interpreter")
	}
	if s.state == StateDestroyed {
		return mnnerr.New(mnnerr.KindInterpreter, "session closed")
	}
	return nil
}

func (e *Engine) dynamicInputs(s *Session) bool {
	for _, in := range e.rt.SessionInputs(e.net, s.handle) {
		if Shape(e.rt.TensorShape(in.Tensor)).IsDynamic() {
			return true
		}
	}
	return false
}

// checkRunnable fails fast when an input still has an unresolved extent.
func (e *Engine) checkRunnable(s *Session) error {
	if err := e.checkSession(s); err != nil {
		return err
	}
	for _, in := range e.rt.SessionInputs(e.net, s.handle) {
		if shape := Shape(e.rt.TensorShape(in.Tensor)); shape.IsDynamic() {
			return mnnerr.New(mnnerr.KindDynamicTensor, "input %q has shape %s", in.Name, shape)
		}
	}
	return nil
}

// RunSession runs every operator of s.
func (e *Engine) RunSession(s *Session) error {
	if err := e.checkRunnable(s); err != nil {
		return err
	}
	s.state = StateRunning
	code := e.rt.RunSession(e.net, s.handle)
	s.state = StateReady
	e.log.V(4).Info("ran session", "session", s.handle, "status", code)
	return mnnerr.FromCode(code)
}

// Callback is invoked around each operator of a run. Before callbacks
// returning false skip the operator; after callbacks returning false stop
// the run. Callbacks fire only in debug session mode.
type Callback func(tensors []RawTensor, op OperatorInfo) bool

// RunSessionWithCallback runs s, calling before and after around each
// operator. Either callback may be nil. The callbacks are released when the
// call returns.
func (e *Engine) RunSessionWithCallback(s *Session, before, after Callback, wait bool) error {
	if err := e.checkRunnable(s); err != nil {
		return err
	}
	bp := native.SaveCallback(e.bridge(before))
	defer native.ReleaseCallback(bp)
	ap := native.SaveCallback(e.bridge(after))
	defer native.ReleaseCallback(ap)

	s.state = StateRunning
	code := e.rt.RunSessionWithCallback(e.net, s.handle, bp, ap, wait)
	s.state = StateReady
	e.log.V(4).Info("ran session with callbacks", "session", s.handle, "status", code)
	return mnnerr.FromCode(code)
}

func (e *Engine) bridge(cb Callback) native.Callback {
	if cb == nil {
		return nil
	}
	return func(handles []native.Tensor, op native.OperatorInfo) bool {
		raws := make([]RawTensor, len(handles))
		for i, h := range handles {
			raws[i] = tensor.NewRaw(e.rt, h)
		}
		return cb(raws, op)
	}
}

// Wait blocks until every output of s is ready to be read.
func (e *Engine) Wait(s *Session) error {
	if err := e.checkSession(s); err != nil {
		return err
	}
	for _, out := range e.rt.SessionOutputs(e.net, s.handle) {
		if err := tensor.NewRaw(e.rt, out.Tensor).Wait(native.MapRead, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) info(s *Session, code native.SessionInfoCode) (float32, error) {
	if err := e.checkSession(s); err != nil {
		return 0, err
	}
	v, ok := e.rt.SessionInfo(e.net, s.handle, code)
	if !ok {
		return 0, mnnerr.Status(native.NotSupport, "session info %d", code)
	}
	return v, nil
}

// Memory returns the memory used by s in MB.
func (e *Engine) Memory(s *Session) (float32, error) { return e.info(s, native.InfoMemory) }

// Flops returns the operation count of one run of s in M.
func (e *Engine) Flops(s *Session) (float32, error) { return e.info(s, native.InfoFlops) }

// Backends returns the number of backends s was scheduled on.
func (e *Engine) Backends(s *Session) (int, error) {
	v, err := e.info(s, native.InfoBackends)
	return int(v), err
}

// ResizeStatus reports whether s needs a resize before it can run.
func (e *Engine) ResizeStatus(s *Session) (native.ResizeStatus, error) {
	v, err := e.info(s, native.InfoResizeStatus)
	return native.ResizeStatus(v), err
}
