package tensor

import (
	"runtime"
	"sync"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// RawTensor is a non-owning reference to a native tensor. It makes no
// promise about where the memory lives or what it holds, and it cannot
// destroy the tensor.
type RawTensor struct {
	rt     native.Runtime
	handle native.Tensor
}

// NewRaw wraps handle. It does not take ownership.
func NewRaw(rt native.Runtime, handle native.Tensor) RawTensor {
	return RawTensor{rt: rt, handle: handle}
}

// Handle returns the native handle.
func (r RawTensor) Handle() native.Tensor { return r.handle }

// Runtime returns the engine the tensor belongs to.
func (r RawTensor) Runtime() native.Runtime { return r.rt }

// IsNull reports whether r refers to no tensor.
func (r RawTensor) IsNull() bool { return r.rt == nil || r.handle == 0 }

// Shape returns a copy of the current dimensions.
func (r RawTensor) Shape() Shape {
	return Shape(r.rt.TensorShape(r.handle)).Clone()
}

// Dimensions returns the rank.
func (r RawTensor) Dimensions() int { return len(r.rt.TensorShape(r.handle)) }

// DimensionType returns the memory layout.
func (r RawTensor) DimensionType() DimensionType { return r.rt.TensorDimensionType(r.handle) }

// DataType returns the runtime element tag.
func (r RawTensor) DataType() DataType { return r.rt.TensorType(r.handle) }

// ElementCount returns the number of elements, or -1 while unresolved.
func (r RawTensor) ElementCount() int { return r.Shape().NumElements() }

// Size returns the buffer size in bytes, or 0 while unresolved.
func (r RawTensor) Size() int {
	n := r.ElementCount()
	if n < 0 {
		return 0
	}
	return n * r.DataType().Size()
}

// IsDynamic reports whether any extent is still -1.
func (r RawTensor) IsDynamic() bool { return r.Shape().IsDynamic() }

// IsHost reports whether the memory is host addressable.
func (r RawTensor) IsHost() bool { return r.rt.TensorHost(r.handle) != nil }

// DeviceID returns the backend's identifier of the device buffer.
func (r RawTensor) DeviceID() uint64 { return r.rt.TensorDeviceID(r.handle) }

// Batch returns the N extent of a 4-d tensor.
func (r RawTensor) Batch() int {
	n, _, _, _ := axes(r.DimensionType())
	return r.Shape().at(n)
}

// Channel returns the C extent of a 4-d tensor.
func (r RawTensor) Channel() int {
	_, c, _, _ := axes(r.DimensionType())
	return r.Shape().at(c)
}

// Height returns the H extent of a 4-d tensor.
func (r RawTensor) Height() int {
	_, _, h, _ := axes(r.DimensionType())
	return r.Shape().at(h)
}

// Width returns the W extent of a 4-d tensor.
func (r RawTensor) Width() int {
	_, _, _, w := axes(r.DimensionType())
	return r.Shape().at(w)
}

// Wait blocks, when finish is set, until pending work on the tensor is done.
func (r RawTensor) Wait(mode MapType, finish bool) error {
	if !r.rt.TensorWait(r.handle, mode, finish) {
		return mnnerr.New(mnnerr.KindTensor, "wait for %s failed", mode)
	}
	return nil
}

// CopyFromHostTensor copies src into r.
func (r RawTensor) CopyFromHostTensor(src RawTensor) error {
	if !r.rt.TensorCopyFromHost(r.handle, src.handle) {
		return mnnerr.CopyFailed(native.InvalidValue, "copy from host tensor")
	}
	return nil
}

// CopyToHostTensor copies r into dst.
func (r RawTensor) CopyToHostTensor(dst RawTensor) error {
	if !r.rt.TensorCopyToHost(r.handle, dst.handle) {
		return mnnerr.CopyFailed(native.InvalidValue, "copy to host tensor")
	}
	return nil
}

// CreateHostTensorFromDevice allocates a host tensor shaped like r and, if
// copyData is set, fills it from r.
func (r RawTensor) CreateHostTensorFromDevice(copyData bool) (*OwnedRaw, error) {
	h := r.rt.TensorCreateHostFromDevice(r.handle, copyData)
	if h == 0 {
		return nil, mnnerr.CopyFailed(native.OutOfMemory, "create host tensor from device")
	}
	return newOwnedRaw(r.rt, h), nil
}

// UncheckedHost returns the host bytes without any type, shape or location
// check. It is nil for device memory.
func (r RawTensor) UncheckedHost() []byte { return r.rt.TensorHost(r.handle) }

// OwnedRaw is the owning form of a raw tensor. Close destroys it once.
type OwnedRaw struct {
	RawTensor
	once sync.Once
}

// NewOwnedRaw allocates a tensor in host memory, or in device memory when
// device is set.
func NewOwnedRaw(rt native.Runtime, shape Shape, typ DataType, dim DimensionType, device bool) (*OwnedRaw, error) {
	if err := shape.Validate(); err != nil {
		return nil, mnnerr.Wrap(mnnerr.KindTensor, err, "new tensor %s", shape)
	}
	h := rt.TensorCreate(shape.Clone(), typ, dim, device)
	if h == 0 {
		return nil, &mnnerr.Error{Kind: mnnerr.KindInternal, Code: native.OutOfMemory, Details: []string{"allocate tensor " + shape.String()}}
	}
	return newOwnedRaw(rt, h), nil
}

func newOwnedRaw(rt native.Runtime, h native.Tensor) *OwnedRaw {
	o := &OwnedRaw{RawTensor: NewRaw(rt, h)}
	// Safety net for owners that never call Close.
	runtime.SetFinalizer(o, func(o *OwnedRaw) {
		o.Close()
	})
	return o
}

// Close destroys the native tensor. Later calls do nothing.
func (o *OwnedRaw) Close() {
	o.once.Do(func() {
		runtime.SetFinalizer(o, nil)
		o.rt.TensorDestroy(o.handle)
		o.handle = 0
	})
}
