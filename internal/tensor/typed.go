package tensor

import (
	"unsafe"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// meta carries the read-only queries every typed tensor answers.
type meta[T Element] struct {
	r *RawTensor
}

func metaOf[T Element](r RawTensor) meta[T] {
	return meta[T]{r: &r}
}

// Raw returns the non-owning handle.
func (m meta[T]) Raw() RawTensor { return *m.r }

// Shape returns a copy of the dimensions.
func (m meta[T]) Shape() Shape { return m.r.Shape() }

// Dimensions returns the rank.
func (m meta[T]) Dimensions() int { return m.r.Dimensions() }

// DimensionType returns the memory layout.
func (m meta[T]) DimensionType() DimensionType { return m.r.DimensionType() }

// DataType returns the element tag, which matches T.
func (m meta[T]) DataType() DataType { return m.r.DataType() }

// ElementCount returns the number of elements, or -1 while unresolved.
func (m meta[T]) ElementCount() int { return m.r.ElementCount() }

// Size returns the buffer size in bytes.
func (m meta[T]) Size() int { return m.r.Size() }

// IsDynamic reports whether any extent is still -1.
func (m meta[T]) IsDynamic() bool { return m.r.IsDynamic() }

// Batch returns the N extent.
func (m meta[T]) Batch() int { return m.r.Batch() }

// Channel returns the C extent.
func (m meta[T]) Channel() int { return m.r.Channel() }

// Height returns the H extent.
func (m meta[T]) Height() int { return m.r.Height() }

// Width returns the W extent.
func (m meta[T]) Width() int { return m.r.Width() }

func checkType[T Element](r RawTensor) error {
	if r.IsNull() {
		return mnnerr.New(mnnerr.KindTensor, "null tensor")
	}
	want := DataTypeOf[T]()
	if got := r.DataType(); got != want {
		return mnnerr.New(mnnerr.KindTypeMismatch, "expected %s, got %s", want, got)
	}
	return nil
}

// hostSlice aliases the host memory of r as []T after checking the tag,
// the shape and the location.
func hostSlice[T Element](r RawTensor) ([]T, error) {
	if err := checkType[T](r); err != nil {
		return nil, err
	}
	shape := r.Shape()
	if shape.IsDynamic() {
		return nil, mnnerr.New(mnnerr.KindDynamicTensor, "shape %s", shape)
	}
	b := r.rt.TensorHost(r.handle)
	if b == nil {
		return nil, mnnerr.New(mnnerr.KindTensor, "tensor memory is not host resident")
	}
	n := shape.NumElements()
	var zero T
	if need := n * int(unsafe.Sizeof(zero)); len(b) < need {
		return nil, mnnerr.SizeMismatch(need, len(b)).WithDetail("host buffer bytes")
	}
	if n == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n), nil //nolint:gosec // G103: length checked above
}

func hostCopy[T Element](r RawTensor) ([]T, error) {
	s, err := hostSlice[T](r)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(s))
	copy(out, s)
	return out, nil
}

func fillHost[T Element](r RawTensor, v T) error {
	s, err := hostSlice[T](r)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = v
	}
	return nil
}

// fillDevice fills a host staging tensor and copies it across.
func fillDevice[T Element](r RawTensor, v T) error {
	if err := checkType[T](r); err != nil {
		return err
	}
	shape := r.Shape()
	if shape.IsDynamic() {
		return mnnerr.New(mnnerr.KindDynamicTensor, "shape %s", shape)
	}
	staging, err := NewOwnedRaw(r.rt, shape, r.DataType(), r.DimensionType(), false)
	if err != nil {
		return err
	}
	defer staging.Close()
	if err := fillHost(staging.RawTensor, v); err != nil {
		return err
	}
	return r.CopyFromHostTensor(staging.RawTensor)
}

func hostFromDevice[T Element](r RawTensor, copyData bool) (*HostTensor[T], error) {
	if err := checkType[T](r); err != nil {
		return nil, err
	}
	if r.IsDynamic() {
		return nil, mnnerr.New(mnnerr.KindDynamicTensor, "shape %s", r.Shape())
	}
	o, err := r.CreateHostTensorFromDevice(copyData)
	if err != nil {
		return nil, err
	}
	return &HostTensor[T]{meta: meta[T]{r: &o.RawTensor}, owner: o}, nil
}

func newOwned[T Element](rt native.Runtime, shape Shape, dim DimensionType, device bool) (*OwnedRaw, error) {
	return NewOwnedRaw(rt, shape, DataTypeOf[T](), dim, device)
}
