package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape is the extent of each axis of a row-major array. A zero-length
// Shape describes a scalar.
type Shape []int

// Size returns the number of elements addressed by the shape.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether both shapes have the same rank and extents.
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

// Append returns a new shape with extra trailing axes.
func (s Shape) Append(axes ...int) Shape {
	out := make(Shape, 0, len(s)+len(axes))
	out = append(out, s...)
	return append(out, axes...)
}

// String renders the shape as a tuple, e.g. "(3, 4)" or "()".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Array is a dense row-major float64 array of arbitrary rank.
type Array struct {
	Shape Shape
	Data  []float64
}

// NewArray wraps data with the given shape. The data slice is not copied.
func NewArray(shape Shape, data []float64) (Array, error) {
	if len(data) != shape.Size() {
		return Array{}, fmt.Errorf("array of shape %s needs %d elements, got %d", shape, shape.Size(), len(data))
	}
	return Array{Shape: append(Shape(nil), shape...), Data: data}, nil
}

// Scalar returns a rank-0 array holding v.
func Scalar(v float64) Array {
	return Array{Shape: Shape{}, Data: []float64{v}}
}

// Full returns an array of the given shape with every element set to v.
func Full(shape Shape, v float64) Array {
	data := make([]float64, shape.Size())
	for i := range data {
		data[i] = v
	}
	return Array{Shape: append(Shape(nil), shape...), Data: data}
}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.Data) }
