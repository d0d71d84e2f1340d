package reference

import (
	"slices"
	"strings"
	"unsafe"

	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/parallel"
	"github.com/born-ml/mnn/internal/schedule"
)

type sessionObj struct {
	net      native.Net
	configs  []native.ScheduleConfig
	device   bool
	threads  parallel.Config
	tensors  map[string]native.Tensor
	inputs   []string
	outputs  []string
	resize   bool
	resizeOK native.ErrorCode
}

// CreateSession creates a single-path session.
func (r *Runtime) CreateSession(net native.Net, config native.ScheduleConfig) native.Session {
	return r.CreateMultiPathSession(net, []native.ScheduleConfig{config})
}

// CreateMultiPathSession creates a session. The first path picks the
// memory location and thread budget.
func (r *Runtime) CreateMultiPathSession(net native.Net, configs []native.ScheduleConfig) native.Session {
	if len(configs) == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nets[net]
	if !ok {
		return 0
	}
	primary := configs[0]
	threads := int(primary.NumThread)
	if threads <= 0 {
		threads = 1
	}
	s := &sessionObj{
		net:     net,
		configs: slices.Clone(configs),
		device:  schedule.ForwardType(primary.Type).IsDevice(),
		threads: parallel.WithThreads(threads),
		tensors: make(map[string]native.Tensor),
	}
	h := native.Session(r.handle())

	m := n.model
	for _, in := range m.Inputs {
		t := &tensorObj{
			name:    in.Name,
			shape:   slices.Clone(in.Shape),
			typ:     elementTypes[strings.ToLower(in.Type)],
			dim:     layouts[strings.ToLower(in.Layout)],
			backend: true,
			session: h,
		}
		s.tensors[in.Name] = r.addSessionTensor(t)
		s.inputs = append(s.inputs, in.Name)
	}
	for _, op := range m.Ops {
		t := &tensorObj{name: op.Output, backend: true, session: h}
		s.tensors[op.Output] = r.addSessionTensor(t)
	}
	s.outputs = m.outputNames()
	for _, cfg := range configs {
		for _, name := range cfg.SaveTensors {
			if _, ok := s.tensors[name]; ok && !slices.Contains(s.outputs, name) {
				s.outputs = append(s.outputs, name)
			}
		}
	}

	r.sessions[h] = s
	n.sessions[h] = struct{}{}
	r.stats.sessionsCreated.Add(1)
	if n.resizeDefer {
		s.resize = true
	} else {
		r.resizeLocked(n, s, false)
	}
	r.log.V(4).Info("created session", "net", net, "session", h, "paths", len(configs), "device", s.device)
	return h
}

// addSessionTensor must be called with mu held.
func (r *Runtime) addSessionTensor(t *tensorObj) native.Tensor {
	h := native.Tensor(r.handle())
	r.tensors[h] = t
	return h
}

// ReleaseSession frees the session and its tensors.
func (r *Runtime) ReleaseSession(net native.Net, session native.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nets[net]; !ok {
		r.stats.doubleFrees.Add(1)
		r.log.Info("release of session on unknown net", "net", net, "session", session)
		return
	}
	r.releaseSessionLocked(session)
}

func (r *Runtime) releaseSessionLocked(session native.Session) {
	s, ok := r.sessions[session]
	if !ok {
		r.stats.doubleFrees.Add(1)
		r.log.Info("release of unknown session", "session", session)
		return
	}
	for _, h := range s.tensors {
		if t := r.tensors[h]; t != nil {
			t.release()
		}
		delete(r.tensors, h)
	}
	if n := r.nets[s.net]; n != nil {
		delete(n.sessions, session)
	}
	delete(r.sessions, session)
	r.stats.sessionsReleased.Add(1)
	r.log.V(4).Info("released session", "session", session)
}

// ResizeSession infers every tensor shape from the inputs and sizes the
// buffers. realloc forces fresh buffers.
func (r *Runtime) ResizeSession(net native.Net, session native.Session, realloc bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, s := r.nets[net], r.sessions[session]
	if n == nil || s == nil {
		return
	}
	r.resizeLocked(n, s, realloc)
}

func (r *Runtime) resizeLocked(n *netObj, s *sessionObj, realloc bool) {
	tensor := func(name string) *tensorObj { return r.tensors[s.tensors[name]] }

	s.resizeOK = native.NoError
	for _, op := range n.model.Ops {
		k := kernels[op.Type]
		shapes := make([][]int, len(op.Inputs))
		first := tensor(op.Inputs[0])
		for i, name := range op.Inputs {
			in := tensor(name)
			if k.floatOnly && in.typ != native.Float32 {
				s.resizeOK = native.NotSupport
			}
			shapes[i] = in.shape
		}
		out, code := k.shape(shapes, first.dim)
		if code != native.NoError {
			s.resizeOK = code
			out = slices.Repeat([]int{-1}, len(first.shape))
		}
		t := tensor(op.Output)
		t.shape, t.typ, t.dim = out, first.typ, first.dim
	}

	dynamic := false
	for _, name := range s.inputs {
		if native.ElementCount(tensor(name).shape) < 0 {
			dynamic = true
		}
	}
	for _, h := range s.tensors {
		if err := r.allocate(r.tensors[h], s.device, realloc); err != nil {
			r.log.Error(err, "allocating session tensor")
			s.resizeOK = native.OutOfMemory
		}
	}
	s.resize = dynamic || s.resizeOK != native.NoError
}

// RunSession executes every operator in order.
func (r *Runtime) RunSession(net native.Net, session native.Session) native.ErrorCode {
	return r.RunSessionWithCallback(net, session, nil, nil, false)
}

type step struct {
	op     OpDesc
	k      kernel
	inputs []native.Tensor
	output native.Tensor
	srcs   []*tensorObj
	dst    *tensorObj
}

// RunSessionWithCallback executes every operator, calling before and after
// around each when the net is in debug mode.
func (r *Runtime) RunSessionWithCallback(net native.Net, session native.Session, before, after unsafe.Pointer, _ bool) native.ErrorCode {
	r.stats.runCalls.Add(1)
	if r.inRun.Add(1) > 1 {
		r.stats.concurrent.Add(1)
	}
	defer r.inRun.Add(-1)

	r.mu.Lock()
	n, s := r.nets[net], r.sessions[session]
	if n == nil || s == nil {
		r.mu.Unlock()
		return native.InvalidValue
	}
	if s.resize {
		code := s.resizeOK
		r.mu.Unlock()
		if code != native.NoError {
			return code
		}
		return native.ComputeSizeError
	}
	debug := n.debug
	steps := make([]step, len(n.model.Ops))
	for i, op := range n.model.Ops {
		st := step{op: op, k: kernels[op.Type], output: s.tensors[op.Output]}
		st.dst = r.tensors[st.output]
		for _, name := range op.Inputs {
			h := s.tensors[name]
			st.inputs = append(st.inputs, h)
			st.srcs = append(st.srcs, r.tensors[h])
		}
		steps[i] = st
	}
	r.mu.Unlock()

	r.stats.runs.Add(1)
	for _, st := range steps {
		info := native.OperatorInfo{Name: st.op.Name, Type: st.op.Type, Flops: float32(st.srcs[0].bytes()/st.srcs[0].typ.Size()) / 1e6}
		if debug && before != nil {
			r.stats.callbacks.Add(1)
			if !native.InvokeCallback(before, st.inputs, info) {
				continue
			}
		}
		if code := r.execute(st, s.threads); code != native.NoError {
			return code
		}
		if debug && after != nil {
			r.stats.callbacks.Add(1)
			if !native.InvokeCallback(after, []native.Tensor{st.output}, info) {
				return native.CallBackStop
			}
		}
	}
	return native.NoError
}

func (r *Runtime) execute(st step, cfg parallel.Config) native.ErrorCode {
	srcs := make([][]byte, len(st.srcs))
	shapes := make([][]int, len(st.srcs))
	for i, t := range st.srcs {
		data, ok := t.contents()
		if !ok {
			return native.InputDataError
		}
		srcs[i], shapes[i] = data, t.shape
	}
	dst := st.dst.host
	if dst == nil {
		dst = make([]byte, st.dst.bytes())
	}
	st.k.run(dst, srcs, shapes, st.srcs[0].dim, st.op, cfg)
	if st.dst.host == nil && !st.dst.store(dst) {
		return native.InvalidValue
	}
	return native.NoError
}

func (r *Runtime) namedLocked(s *sessionObj, names []string) []native.NamedTensor {
	out := make([]native.NamedTensor, len(names))
	for i, name := range names {
		out[i] = native.NamedTensor{Name: name, Tensor: s.tensors[name]}
	}
	return out
}

func (r *Runtime) find(net native.Net, session native.Session, names []string, name string) native.Tensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[session]
	if s == nil || s.net != net || len(names) == 0 {
		return 0
	}
	if name == "" {
		return s.tensors[names[0]]
	}
	if !slices.Contains(names, name) {
		return 0
	}
	return s.tensors[name]
}

func (r *Runtime) sessionNames(session native.Session, outputs bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[session]
	if s == nil {
		return nil
	}
	if outputs {
		return s.outputs
	}
	return s.inputs
}

// SessionInput returns the named input, or the first one for "".
func (r *Runtime) SessionInput(net native.Net, session native.Session, name string) native.Tensor {
	return r.find(net, session, r.sessionNames(session, false), name)
}

// SessionOutput returns the named output or saved tensor, or the first
// output for "".
func (r *Runtime) SessionOutput(net native.Net, session native.Session, name string) native.Tensor {
	return r.find(net, session, r.sessionNames(session, true), name)
}

// SessionInputs lists the inputs in declaration order.
func (r *Runtime) SessionInputs(net native.Net, session native.Session) []native.NamedTensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[session]
	if s == nil || s.net != net {
		return nil
	}
	return r.namedLocked(s, s.inputs)
}

// SessionOutputs lists the outputs followed by saved tensors.
func (r *Runtime) SessionOutputs(net native.Net, session native.Session) []native.NamedTensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[session]
	if s == nil || s.net != net {
		return nil
	}
	return r.namedLocked(s, s.outputs)
}

// ResizeTensor changes a tensor's dimensions. For session tensors the new
// shape takes effect at the next ResizeSession.
func (r *Runtime) ResizeTensor(_ native.Net, tensor native.Tensor, dims []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tensors[tensor]
	if t == nil || t.borrowed {
		return
	}
	t.shape = slices.Clone(dims)
	if t.session != 0 {
		if s := r.sessions[t.session]; s != nil {
			s.resize = true
		}
		return
	}
	if err := r.allocate(t, t.dev != nil, false); err != nil {
		r.log.Error(err, "resizing tensor")
	}
}

// SessionInfo reports memory in MB, flops in M, the backend count or the
// resize status.
func (r *Runtime) SessionInfo(net native.Net, session native.Session, code native.SessionInfoCode) (float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, s := r.nets[net], r.sessions[session]
	if n == nil || s == nil {
		return 0, false
	}
	switch code {
	case native.InfoMemory:
		total := 0
		for _, h := range s.tensors {
			total += r.tensors[h].bytes()
		}
		return float32(total) / (1 << 20), true
	case native.InfoFlops:
		var flops float32
		for _, op := range n.model.Ops {
			in := r.tensors[s.tensors[op.Inputs[0]]]
			if c := native.ElementCount(in.shape); c > 0 {
				flops += float32(c) * float32(len(op.Inputs))
			}
		}
		return flops / 1e6, true
	case native.InfoBackends:
		return float32(len(s.configs)), true
	case native.InfoResizeStatus:
		if s.resize {
			return float32(native.ResizeNeedResize), true
		}
		return float32(native.ResizeNone), true
	default:
		return 0, false
	}
}
