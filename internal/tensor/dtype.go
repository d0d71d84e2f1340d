// Package tensor provides the typed tensor handles for the inference engine.
//
// A native tensor is identified by a RawTensor. The generic types in this
// package wrap a RawTensor and encode where its memory lives, whether the
// holder owns it, and whether it may be mutated, by the set of methods each
// type has. A DeviceView has no Host method, a HostView has no Fill, and no
// view type has Close.
package tensor

import "github.com/born-ml/mnn/internal/native"

// Element is the set of element types a typed tensor can hold.
type Element interface {
	float32 | float64 | int8 | int16 | int32 | int64 | uint8 | uint16
}

// DataType is the runtime element tag of a native tensor.
type DataType = native.HalideType

// DataTypeOf returns the tag the engine records for T.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return native.Float32
	case float64:
		return native.Float64
	case int8:
		return native.Int8
	case int16:
		return native.Int16
	case int32:
		return native.Int32
	case int64:
		return native.Int64
	case uint8:
		return native.Uint8
	case uint16:
		return native.Uint16
	default:
		panic("unsupported element type")
	}
}

// DimensionType is the memory layout of a tensor.
type DimensionType = native.DimensionType

// Layouts.
const (
	TensorFlow = native.TensorFlow
	Caffe      = native.Caffe
	CaffeC4    = native.CaffeC4
	NHWC       = native.NHWC
	NCHW       = native.NCHW
	NC4HW4     = native.NC4HW4
)

// MapType selects the direction of Wait.
type MapType = native.MapType

// Map directions.
const (
	MapWrite = native.MapWrite
	MapRead  = native.MapRead
)
