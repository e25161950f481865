// Copyright 2026 Ragged ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense tensors the
// masked batch engine is built on.
//
// The package exposes:
//   - RawTensor: a dense n-dimensional array over float32, float64,
//     int32 or int64 elements
//   - Shape: dimension sizes with NumPy-style broadcasting
//   - Sel: per-dimension selectors for multi-dimensional slicing
//
// Example:
//
//	x, _ := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32)
//	y, _ := tensor.Ones(tensor.Shape{2, 3}, tensor.Float32)
//	z, _ := tensor.Add(x, y)
package tensor

import (
	"github.com/ragged-ml/ragged/internal/tensor"
)

// DType is the constraint for tensor element types.
// Supported types: float32, float64, int32, int64.
type DType = tensor.DType

// DataType identifies the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is a dense n-dimensional array with a contiguous buffer.
type RawTensor = tensor.RawTensor

// Sel addresses a single dimension in a multi-dimensional slice.
type Sel = tensor.Sel

// BroadcastShapes computes the NumPy-style broadcast of two shapes.
func BroadcastShapes(a, b Shape) (Shape, error) { return tensor.BroadcastShapes(a, b) }

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) { return tensor.Zeros(shape, dtype) }

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) { return tensor.Ones(shape, dtype) }

// Full creates a tensor filled with a constant value.
func Full(shape Shape, dtype DataType, value float64) (*RawTensor, error) {
	return tensor.Full(shape, dtype, value)
}

// Rand creates a float tensor of uniform random values in [0, 1).
func Rand(shape Shape, dtype DataType) (*RawTensor, error) { return tensor.Rand(shape, dtype) }

// FromSlice creates a tensor from a flat slice in row-major order.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// TriangularOnes creates a [rows, cols] matrix of ones on and to one
// side of the diagonal: the upper triangle when upper is true, the
// lower otherwise.
func TriangularOnes(rows, cols int, dtype DataType, upper bool) (*RawTensor, error) {
	return tensor.TriangularOnes(rows, cols, dtype, upper)
}

// Selector constructors.

// All selects the full range of a dimension.
func All() Sel { return tensor.All() }

// Pick selects a single index, collapsing the dimension.
func Pick(i int) Sel { return tensor.Pick(i) }

// Span selects the half-open range [start, stop).
func Span(start, stop int) Sel { return tensor.Span(start, stop) }

// SpanFrom selects the range [start, end-of-dim).
func SpanFrom(start int) Sel { return tensor.SpanFrom(start) }

// SpanTo selects the range [0, stop).
func SpanTo(stop int) Sel { return tensor.SpanTo(stop) }

// Strided selects the range [start, stop) with the given step.
func Strided(start, stop, step int) Sel { return tensor.Strided(start, stop, step) }
