package tensor

import (
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// HostTensor is an owned, mutable tensor in host memory.
type HostTensor[T Element] struct {
	meta[T]
	owner *OwnedRaw
}

// NewHost allocates a host tensor.
func NewHost[T Element](rt native.Runtime, shape Shape, dim DimensionType) (*HostTensor[T], error) {
	o, err := newOwned[T](rt, shape, dim, false)
	if err != nil {
		return nil, err
	}
	return &HostTensor[T]{meta: meta[T]{r: &o.RawTensor}, owner: o}, nil
}

// Host returns a copy of the elements.
func (t *HostTensor[T]) Host() ([]T, error) { return hostCopy[T](*t.r) }

// HostMut returns the elements, aliasing the tensor memory.
func (t *HostTensor[T]) HostMut() ([]T, error) { return hostSlice[T](*t.r) }

// Fill writes v into every element.
func (t *HostTensor[T]) Fill(v T) error { return fillHost(*t.r, v) }

// View borrows t read-only.
func (t *HostTensor[T]) View() HostView[T] { return HostView[T]{meta: t.meta} }

// ViewMut borrows t mutably.
func (t *HostTensor[T]) ViewMut() HostViewMut[T] { return HostViewMut[T]{meta: t.meta} }

// Close destroys the tensor. Later calls do nothing.
func (t *HostTensor[T]) Close() { t.owner.Close() }

// HostView is a borrowed, read-only tensor in host memory.
type HostView[T Element] struct {
	meta[T]
}

// HostViewOf checks raw and wraps it as a read-only host view.
func HostViewOf[T Element](raw RawTensor) (HostView[T], error) {
	if err := checkHost[T](raw); err != nil {
		return HostView[T]{}, err
	}
	return HostView[T]{meta: metaOf[T](raw)}, nil
}

// Host returns a copy of the elements.
func (v HostView[T]) Host() ([]T, error) { return hostCopy[T](*v.r) }

// HostViewMut is a borrowed, mutable tensor in host memory.
type HostViewMut[T Element] struct {
	meta[T]
}

// HostViewMutOf checks raw and wraps it as a mutable host view.
func HostViewMutOf[T Element](raw RawTensor) (HostViewMut[T], error) {
	if err := checkHost[T](raw); err != nil {
		return HostViewMut[T]{}, err
	}
	return HostViewMut[T]{meta: metaOf[T](raw)}, nil
}

// Host returns a copy of the elements.
func (v HostViewMut[T]) Host() ([]T, error) { return hostCopy[T](*v.r) }

// HostMut returns the elements, aliasing the tensor memory.
func (v HostViewMut[T]) HostMut() ([]T, error) { return hostSlice[T](*v.r) }

// Fill writes x into every element.
func (v HostViewMut[T]) Fill(x T) error { return fillHost(*v.r, x) }

// View narrows v to a read-only view.
func (v HostViewMut[T]) View() HostView[T] { return HostView[T]{meta: v.meta} }

func checkHost[T Element](raw RawTensor) error {
	if err := checkType[T](raw); err != nil {
		return err
	}
	if !raw.IsHost() {
		return mnnerr.New(mnnerr.KindTensor, "tensor memory is not host resident")
	}
	return nil
}
