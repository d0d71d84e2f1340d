package tensor

import (
	"runtime"
	"unsafe"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// Borrow wraps data as a read-only host tensor for the duration of fn. The
// native header is released when fn returns; data is never freed.
func Borrow[T Element](rt native.Runtime, shape Shape, dim DimensionType, data []T, fn func(HostView[T]) error) error {
	raw, release, err := borrow(rt, shape, dim, data)
	if err != nil {
		return err
	}
	defer release()
	return fn(HostView[T]{meta: metaOf[T](raw)})
}

// BorrowMut wraps data as a mutable host tensor for the duration of fn.
// Writes through the view land in data.
func BorrowMut[T Element](rt native.Runtime, shape Shape, dim DimensionType, data []T, fn func(HostViewMut[T]) error) error {
	raw, release, err := borrow(rt, shape, dim, data)
	if err != nil {
		return err
	}
	defer release()
	return fn(HostViewMut[T]{meta: metaOf[T](raw)})
}

func borrow[T Element](rt native.Runtime, shape Shape, dim DimensionType, data []T) (RawTensor, func(), error) {
	if err := shape.Validate(); err != nil {
		return RawTensor{}, nil, mnnerr.Wrap(mnnerr.KindTensor, err, "borrow %s", shape)
	}
	n := shape.NumElements()
	if len(data) != n {
		return RawTensor{}, nil, mnnerr.SizeMismatch(n, len(data)).WithDetail("borrowed data for shape %s", shape)
	}
	var zero T
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), n*int(unsafe.Sizeof(zero))) //nolint:gosec // G103: sized from data
	h := rt.TensorCreateWith(shape.Clone(), DataTypeOf[T](), dim, bytes)
	if h == 0 {
		return RawTensor{}, nil, &mnnerr.Error{Kind: mnnerr.KindInternal, Code: native.OutOfMemory, Details: []string{"wrap borrowed data"}}
	}
	release := func() {
		rt.TensorDestroy(h)
		runtime.KeepAlive(data)
	}
	return NewRaw(rt, h), release, nil
}
