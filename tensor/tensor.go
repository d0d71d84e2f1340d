// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/tensor"
)

// Runtime is the native inference runtime tensors are created in.
type Runtime = native.Runtime

// Element constrains the Go types a tensor can hold.
type Element = tensor.Element

// DataType describes a tensor element (code, bits, lanes).
type DataType = tensor.DataType

// Data type constants.
var (
	Float32 = native.Float32
	Float64 = native.Float64
	Int8    = native.Int8
	Int16   = native.Int16
	Int32   = native.Int32
	Int64   = native.Int64
	Uint8   = native.Uint8
	Uint16  = native.Uint16
)

// DimensionType is the memory layout of a tensor.
type DimensionType = tensor.DimensionType

// Layouts.
const (
	TensorFlow = tensor.TensorFlow
	Caffe      = tensor.Caffe
	CaffeC4    = tensor.CaffeC4
	NHWC       = tensor.NHWC
	NCHW       = tensor.NCHW
	NC4HW4     = tensor.NC4HW4
)

// MapType selects the direction of a device wait.
type MapType = tensor.MapType

// Map directions.
const (
	MapWrite = tensor.MapWrite
	MapRead  = tensor.MapRead
)

// Shape is a list of extents. Dynamic marks an unknown extent.
type Shape = tensor.Shape

// Dynamic is the extent of a not yet resized dimension.
const Dynamic = tensor.Dynamic

// RawTensor is an untyped, non-owning tensor handle.
type RawTensor = tensor.RawTensor

// OwnedRaw is an untyped tensor that frees its handle on Close.
type OwnedRaw = tensor.OwnedRaw

// Typed tensors.
type (
	HostTensor[T Element]    = tensor.HostTensor[T]
	HostView[T Element]      = tensor.HostView[T]
	HostViewMut[T Element]   = tensor.HostViewMut[T]
	DeviceTensor[T Element]  = tensor.DeviceTensor[T]
	DeviceView[T Element]    = tensor.DeviceView[T]
	DeviceViewMut[T Element] = tensor.DeviceViewMut[T]
)

// NewHost creates a tensor in host memory.
func NewHost[T Element](rt Runtime, shape Shape, dim DimensionType) (*HostTensor[T], error) {
	return tensor.NewHost[T](rt, shape, dim)
}

// NewDevice creates a tensor in device memory.
func NewDevice[T Element](rt Runtime, shape Shape, dim DimensionType) (*DeviceTensor[T], error) {
	return tensor.NewDevice[T](rt, shape, dim)
}

// DataTypeOf returns the data type of T.
func DataTypeOf[T Element]() DataType {
	return tensor.DataTypeOf[T]()
}

// HostViewOf checks raw and returns a read-only host view of it.
func HostViewOf[T Element](raw RawTensor) (HostView[T], error) {
	return tensor.HostViewOf[T](raw)
}

// HostViewMutOf checks raw and returns a writable host view of it.
func HostViewMutOf[T Element](raw RawTensor) (HostViewMut[T], error) {
	return tensor.HostViewMutOf[T](raw)
}

// DeviceViewOf checks raw and returns a read-only device view of it.
func DeviceViewOf[T Element](raw RawTensor) (DeviceView[T], error) {
	return tensor.DeviceViewOf[T](raw)
}

// DeviceViewMutOf checks raw and returns a writable device view of it.
func DeviceViewMutOf[T Element](raw RawTensor) (DeviceViewMut[T], error) {
	return tensor.DeviceViewMutOf[T](raw)
}

// Borrow exposes data as a read-only host tensor while fn runs.
func Borrow[T Element](rt Runtime, shape Shape, dim DimensionType, data []T, fn func(HostView[T]) error) error {
	return tensor.Borrow(rt, shape, dim, data, fn)
}

// BorrowMut exposes data as a writable host tensor while fn runs.
func BorrowMut[T Element](rt Runtime, shape Shape, dim DimensionType, data []T, fn func(HostViewMut[T]) error) error {
	return tensor.BorrowMut(rt, shape, dim, data, fn)
}
