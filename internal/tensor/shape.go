package tensor

import (
	"fmt"
	"strings"
)

// Dynamic marks an extent the engine has not resolved yet.
const Dynamic = -1

// Shape represents the dimensions of a tensor. An extent of -1 is
// unresolved.
type Shape []int

// NumElements returns the total number of elements, or -1 if any extent is
// unresolved.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		if dim < 0 {
			return -1
		}
		n *= dim
	}
	return n
}

// IsDynamic reports whether any extent is unresolved.
func (s Shape) IsDynamic() bool {
	for _, dim := range s {
		if dim == Dynamic {
			return true
		}
	}
	return false
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// String formats the shape as 1x3x224x224, with ? for unresolved extents.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(d)
		}
	}
	return strings.Join(parts, "x")
}

// axes returns the batch, channel, height and width positions for a 4-d
// shape in the given layout.
func axes(dim DimensionType) (n, c, h, w int) {
	if dim == TensorFlow {
		return 0, 3, 1, 2
	}
	return 0, 1, 2, 3
}

func (s Shape) at(i int) int {
	if i < len(s) {
		return s[i]
	}
	return 1
}
