package reference

import (
	"slices"

	"github.com/born-ml/mnn/internal/native"
)

type tensorObj struct {
	name  string
	shape []int
	typ   native.HalideType
	dim   native.DimensionType
	host  []byte
	dev   deviceBuffer
	// backend tensors accept host copies; standalone host tensors do not.
	backend  bool
	borrowed bool
	session  native.Session
}

func (t *tensorObj) bytes() int {
	n := native.ElementCount(t.shape)
	if n < 0 {
		return 0
	}
	return n * t.typ.Size()
}

// contents returns the tensor bytes, reading device memory into a copy.
func (t *tensorObj) contents() ([]byte, bool) {
	if t.host != nil {
		return t.host, true
	}
	if t.dev == nil {
		return nil, false
	}
	buf := make([]byte, t.dev.Size())
	if err := t.dev.Read(buf); err != nil {
		return nil, false
	}
	return buf, true
}

// store writes src into the tensor memory.
func (t *tensorObj) store(src []byte) bool {
	if len(src) != t.bytes() {
		return false
	}
	if t.host != nil {
		copy(t.host, src)
		return true
	}
	if t.dev == nil {
		return false
	}
	return t.dev.Write(src) == nil
}

func (t *tensorObj) release() {
	if t.dev != nil {
		t.dev.Release()
		t.dev = nil
	}
	t.host = nil
}

// allocate sizes the buffer for the current shape. Unresolved shapes hold
// no memory.
func (r *Runtime) allocate(t *tensorObj, device, force bool) error {
	size := t.bytes()
	if native.ElementCount(t.shape) < 0 {
		t.release()
		return nil
	}
	if !force {
		if t.host != nil && len(t.host) == size {
			return nil
		}
		if t.dev != nil && t.dev.Size() == size {
			return nil
		}
	}
	t.release()
	if device {
		d, err := r.device.Alloc(size)
		if err != nil {
			return err
		}
		t.dev = d
		return nil
	}
	t.host = make([]byte, size)
	return nil
}

func validExtents(shape []int) bool {
	for _, d := range shape {
		if d <= 0 {
			return false
		}
	}
	return true
}

// TensorCreate allocates a standalone tensor.
func (r *Runtime) TensorCreate(shape []int, typ native.HalideType, dim native.DimensionType, device bool) native.Tensor {
	if !validExtents(shape) {
		return 0
	}
	t := &tensorObj{shape: slices.Clone(shape), typ: typ, dim: dim, backend: device}
	if err := r.allocate(t, device, true); err != nil {
		r.log.Error(err, "allocating tensor", "shape", shape)
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := native.Tensor(r.handle())
	r.tensors[h] = t
	r.stats.tensorsCreated.Add(1)
	return h
}

// TensorCreateWith wraps caller memory without copying it.
func (r *Runtime) TensorCreateWith(shape []int, typ native.HalideType, dim native.DimensionType, data []byte) native.Tensor {
	if !validExtents(shape) {
		return 0
	}
	t := &tensorObj{shape: slices.Clone(shape), typ: typ, dim: dim, borrowed: true}
	if len(data) != t.bytes() {
		return 0
	}
	t.host = data
	r.mu.Lock()
	defer r.mu.Unlock()
	h := native.Tensor(r.handle())
	r.tensors[h] = t
	r.stats.tensorsCreated.Add(1)
	return h
}

// TensorDestroy releases a standalone tensor. Session tensors belong to
// their session and are left alone.
func (r *Runtime) TensorDestroy(tensor native.Tensor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tensors[tensor]
	if !ok {
		r.stats.doubleFrees.Add(1)
		r.log.Info("destroy of unknown tensor", "tensor", tensor)
		return
	}
	if t.session != 0 {
		r.stats.illegalDestroys.Add(1)
		r.log.Info("destroy of session tensor ignored", "tensor", tensor, "name", t.name)
		return
	}
	if !t.borrowed {
		t.release()
	}
	delete(r.tensors, tensor)
	r.stats.tensorsDestroyed.Add(1)
}

func (r *Runtime) lookup(tensor native.Tensor) *tensorObj {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tensors[tensor]
}

// TensorShape returns the dimensions, or nil for an unknown handle.
func (r *Runtime) TensorShape(tensor native.Tensor) []int {
	if t := r.lookup(tensor); t != nil {
		return slices.Clone(t.shape)
	}
	return nil
}

// TensorType returns the element tag.
func (r *Runtime) TensorType(tensor native.Tensor) native.HalideType {
	if t := r.lookup(tensor); t != nil {
		return t.typ
	}
	return native.HalideType{}
}

// TensorDimensionType returns the layout.
func (r *Runtime) TensorDimensionType(tensor native.Tensor) native.DimensionType {
	if t := r.lookup(tensor); t != nil {
		return t.dim
	}
	return native.Caffe
}

// TensorHost returns host memory, or nil for device and unresolved tensors.
func (r *Runtime) TensorHost(tensor native.Tensor) []byte {
	if t := r.lookup(tensor); t != nil {
		return t.host
	}
	return nil
}

// TensorDeviceID returns the device buffer id, or 0 for host memory.
func (r *Runtime) TensorDeviceID(tensor native.Tensor) uint64 {
	if t := r.lookup(tensor); t != nil && t.dev != nil {
		return t.dev.ID()
	}
	return 0
}

// TensorWait returns immediately; every operation completes synchronously.
func (r *Runtime) TensorWait(tensor native.Tensor, _ native.MapType, _ bool) bool {
	return r.lookup(tensor) != nil
}

// TensorCopyFromHost copies a host tensor into a backend tensor.
func (r *Runtime) TensorCopyFromHost(dst, src native.Tensor) bool {
	d, s := r.lookup(dst), r.lookup(src)
	if d == nil || s == nil || !d.backend || s.host == nil || d.typ != s.typ {
		return false
	}
	return d.store(s.host)
}

// TensorCopyToHost copies a backend tensor into a host tensor.
func (r *Runtime) TensorCopyToHost(src, dst native.Tensor) bool {
	s, d := r.lookup(src), r.lookup(dst)
	if s == nil || d == nil || !s.backend || d.host == nil || d.typ != s.typ || len(d.host) != s.bytes() {
		return false
	}
	data, ok := s.contents()
	if !ok {
		return false
	}
	copy(d.host, data)
	return true
}

// TensorCreateHostFromDevice allocates a host tensor shaped like tensor.
func (r *Runtime) TensorCreateHostFromDevice(tensor native.Tensor, copyData bool) native.Tensor {
	t := r.lookup(tensor)
	if t == nil || !validExtents(t.shape) {
		return 0
	}
	h := r.TensorCreate(t.shape, t.typ, t.dim, false)
	if h == 0 || !copyData {
		return h
	}
	if data, ok := t.contents(); ok {
		copy(r.lookup(h).host, data)
	}
	return h
}
