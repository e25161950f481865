package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor of the given dtype filled with zeros.
func Zeros(shape Shape, dtype DataType) (*RawTensor, error) {
	return NewRaw(shape, dtype)
}

// Ones creates a tensor of the given dtype filled with ones.
func Ones(shape Shape, dtype DataType) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumElements(); i++ {
		t.SetFloat(i, 1)
	}
	return t, nil
}

// Full creates a tensor of the given dtype filled with value.
func Full(shape Shape, dtype DataType, value float64) (*RawTensor, error) {
	t, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumElements(); i++ {
		t.SetFloat(i, value)
	}
	return t, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy))
	if err != nil {
		return nil, err
	}

	switch dst := any(data).(type) {
	case []float32:
		copy(raw.AsFloat32(), dst)
	case []float64:
		copy(raw.AsFloat64(), dst)
	case []int32:
		copy(raw.AsInt32(), dst)
	case []int64:
		copy(raw.AsInt64(), dst)
	default:
		panic("unsupported type")
	}
	return raw, nil
}

// ZerosLike creates a zero tensor with the same shape and dtype as t.
func ZerosLike(t *RawTensor) *RawTensor {
	raw, err := NewRaw(t.Shape(), t.DType())
	if err != nil {
		panic(err) // t's shape is already validated
	}
	return raw
}

// OnesLike creates an all-ones tensor with the same shape and dtype as t.
func OnesLike(t *RawTensor) *RawTensor {
	raw := ZerosLike(t)
	for i := 0; i < raw.NumElements(); i++ {
		raw.SetFloat(i, 1)
	}
	return raw
}

// Rand creates a float tensor with values uniformly distributed in [0, 1).
func Rand(shape Shape, dtype DataType) (*RawTensor, error) {
	if !dtype.IsFloat() {
		return nil, fmt.Errorf("Rand: unsupported dtype %s", dtype)
	}
	t, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	for i := 0; i < t.NumElements(); i++ {
		t.SetFloat(i, rand.Float64()) //nolint:gosec // math/rand is intentional for reproducibility
	}
	return t, nil
}

// TriangularOnes creates a [rows, cols] tensor with ones on and beyond
// one side of the main diagonal and zeros elsewhere. With upper=true the
// upper triangle (j >= i) is kept, otherwise the lower triangle (j <= i).
func TriangularOnes(rows, cols int, dtype DataType, upper bool) (*RawTensor, error) {
	t, err := NewRaw(Shape{rows, cols}, dtype)
	if err != nil {
		return nil, fmt.Errorf("TriangularOnes: %w", err)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if (upper && j >= i) || (!upper && j <= i) {
				t.SetFloat(i*cols+j, 1)
			}
		}
	}
	return t, nil
}
