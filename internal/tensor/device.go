package tensor

import "github.com/born-ml/mnn/internal/native"

// DeviceTensor is an owned, mutable tensor whose memory belongs to the
// backend. Its bytes are reached only through copies.
type DeviceTensor[T Element] struct {
	meta[T]
	owner *OwnedRaw
}

// NewDevice allocates a device tensor.
func NewDevice[T Element](rt native.Runtime, shape Shape, dim DimensionType) (*DeviceTensor[T], error) {
	o, err := newOwned[T](rt, shape, dim, true)
	if err != nil {
		return nil, err
	}
	return &DeviceTensor[T]{meta: meta[T]{r: &o.RawTensor}, owner: o}, nil
}

// Fill sets every element to v through a host staging tensor.
func (t *DeviceTensor[T]) Fill(v T) error { return fillDevice(*t.r, v) }

// CopyFromHostTensor uploads src.
func (t *DeviceTensor[T]) CopyFromHostTensor(src HostView[T]) error {
	return t.r.CopyFromHostTensor(*src.r)
}

// CopyToHostTensor downloads into dst.
func (t *DeviceTensor[T]) CopyToHostTensor(dst HostViewMut[T]) error {
	return t.r.CopyToHostTensor(*dst.r)
}

// Wait blocks, when finish is set, until pending work is done.
func (t *DeviceTensor[T]) Wait(mode MapType, finish bool) error { return t.r.Wait(mode, finish) }

// CreateHostTensorFromDevice allocates a matching host tensor, filled from
// t when copyData is set.
func (t *DeviceTensor[T]) CreateHostTensorFromDevice(copyData bool) (*HostTensor[T], error) {
	return hostFromDevice[T](*t.r, copyData)
}

// View borrows t read-only.
func (t *DeviceTensor[T]) View() DeviceView[T] { return DeviceView[T]{meta: t.meta} }

// ViewMut borrows t mutably.
func (t *DeviceTensor[T]) ViewMut() DeviceViewMut[T] { return DeviceViewMut[T]{meta: t.meta} }

// Close destroys the tensor. Later calls do nothing.
func (t *DeviceTensor[T]) Close() { t.owner.Close() }

// DeviceView is a borrowed, read-only device tensor.
type DeviceView[T Element] struct {
	meta[T]
}

// DeviceViewOf checks raw and wraps it as a read-only device view.
func DeviceViewOf[T Element](raw RawTensor) (DeviceView[T], error) {
	if err := checkType[T](raw); err != nil {
		return DeviceView[T]{}, err
	}
	return DeviceView[T]{meta: metaOf[T](raw)}, nil
}

// CopyToHostTensor downloads into dst.
func (v DeviceView[T]) CopyToHostTensor(dst HostViewMut[T]) error {
	return v.r.CopyToHostTensor(*dst.r)
}

// Wait blocks, when finish is set, until pending work is done.
func (v DeviceView[T]) Wait(mode MapType, finish bool) error { return v.r.Wait(mode, finish) }

// CreateHostTensorFromDevice allocates a matching host tensor, filled from
// v when copyData is set.
func (v DeviceView[T]) CreateHostTensorFromDevice(copyData bool) (*HostTensor[T], error) {
	return hostFromDevice[T](*v.r, copyData)
}

// DeviceViewMut is a borrowed, mutable device tensor.
type DeviceViewMut[T Element] struct {
	meta[T]
}

// DeviceViewMutOf checks raw and wraps it as a mutable device view.
func DeviceViewMutOf[T Element](raw RawTensor) (DeviceViewMut[T], error) {
	if err := checkType[T](raw); err != nil {
		return DeviceViewMut[T]{}, err
	}
	return DeviceViewMut[T]{meta: metaOf[T](raw)}, nil
}

// Fill sets every element to x through a host staging tensor.
func (v DeviceViewMut[T]) Fill(x T) error { return fillDevice(*v.r, x) }

// CopyFromHostTensor uploads src.
func (v DeviceViewMut[T]) CopyFromHostTensor(src HostView[T]) error {
	return v.r.CopyFromHostTensor(*src.r)
}

// CopyToHostTensor downloads into dst.
func (v DeviceViewMut[T]) CopyToHostTensor(dst HostViewMut[T]) error {
	return v.r.CopyToHostTensor(*dst.r)
}

// Wait blocks, when finish is set, until pending work is done.
func (v DeviceViewMut[T]) Wait(mode MapType, finish bool) error { return v.r.Wait(mode, finish) }

// CreateHostTensorFromDevice allocates a matching host tensor, filled from
// v when copyData is set.
func (v DeviceViewMut[T]) CreateHostTensorFromDevice(copyData bool) (*HostTensor[T], error) {
	return hostFromDevice[T](*v.r, copyData)
}

// View narrows v to a read-only view.
func (v DeviceViewMut[T]) View() DeviceView[T] { return DeviceView[T]{meta: v.meta} }
