package tensor

import (
	"fmt"
	"math"
)

// axisSpans computes the outer/axis/inner extents used by axis-wise
// kernels: every element index decomposes as
// outer*axisSize*innerSize + a*innerSize + inner.
func axisSpans(shape Shape, dim int) (outerSize, axisSize, innerSize int) {
	outerSize = 1
	for i := 0; i < dim; i++ {
		outerSize *= shape[i]
	}
	axisSize = shape[dim]
	innerSize = 1
	for i := dim + 1; i < len(shape); i++ {
		innerSize *= shape[i]
	}
	return outerSize, axisSize, innerSize
}

// reducedShape drops or collapses the reduced dimension.
func reducedShape(shape Shape, dim int, keepDim bool) Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(Shape, 0, len(shape)-1)
	for i, s := range shape {
		if i != dim {
			out = append(out, s)
		}
	}
	return out
}

// SumDim sums along one dimension.
func SumDim(x *RawTensor, dim int, keepDim bool) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("SumDim: input tensor is nil")
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("SumDim: %w", err)
	}
	result, err := NewRaw(reducedShape(x.Shape(), dim, keepDim), x.DType())
	if err != nil {
		return nil, fmt.Errorf("SumDim: %w", err)
	}

	outerSize, axisSize, innerSize := axisSpans(x.Shape(), dim)
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			sum := 0.0
			for a := 0; a < axisSize; a++ {
				sum += x.Float(outer*axisSize*innerSize + a*innerSize + inner)
			}
			result.SetFloat(outer*innerSize+inner, sum)
		}
	}
	return result, nil
}

// MeanDim averages along one dimension. Float dtypes only.
func MeanDim(x *RawTensor, dim int, keepDim bool) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("MeanDim: input tensor is nil")
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("MeanDim: unsupported dtype %s", x.DType())
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("MeanDim: %w", err)
	}
	sum, err := SumDim(x, dim, keepDim)
	if err != nil {
		return nil, fmt.Errorf("MeanDim: %w", err)
	}
	return DivScalar(sum, float64(x.Shape()[dim]))
}

// StdDim computes the sample standard deviation (n-1 denominator) along
// one dimension. Float dtypes only.
func StdDim(x *RawTensor, dim int, keepDim bool) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("StdDim: input tensor is nil")
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("StdDim: unsupported dtype %s", x.DType())
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("StdDim: %w", err)
	}
	result, err := NewRaw(reducedShape(x.Shape(), dim, keepDim), x.DType())
	if err != nil {
		return nil, fmt.Errorf("StdDim: %w", err)
	}

	outerSize, axisSize, innerSize := axisSpans(x.Shape(), dim)
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			sum := 0.0
			for a := 0; a < axisSize; a++ {
				sum += x.Float(outer*axisSize*innerSize + a*innerSize + inner)
			}
			mean := sum / float64(axisSize)
			sq := 0.0
			for a := 0; a < axisSize; a++ {
				d := x.Float(outer*axisSize*innerSize+a*innerSize+inner) - mean
				sq += d * d
			}
			result.SetFloat(outer*innerSize+inner, math.Sqrt(sq/float64(axisSize-1)))
		}
	}
	return result, nil
}

// SumPerExample sums every non-batch axis, producing a [B] tensor.
func SumPerExample(x *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("SumPerExample: input tensor is nil")
	}
	if x.Rank() < 1 {
		return nil, fmt.Errorf("SumPerExample: input must have a batch dimension")
	}
	b := x.Shape()[0]
	result, err := NewRaw(Shape{b}, x.DType())
	if err != nil {
		return nil, fmt.Errorf("SumPerExample: %w", err)
	}
	per := x.NumElements() / b
	for i := 0; i < b; i++ {
		sum := 0.0
		for j := 0; j < per; j++ {
			sum += x.Float(i*per + j)
		}
		result.SetFloat(i, sum)
	}
	return result, nil
}

// MeanPerExample averages every non-batch axis, producing a [B] tensor.
func MeanPerExample(x *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("MeanPerExample: input tensor is nil")
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("MeanPerExample: unsupported dtype %s", x.DType())
	}
	sum, err := SumPerExample(x)
	if err != nil {
		return nil, fmt.Errorf("MeanPerExample: %w", err)
	}
	return DivScalar(sum, float64(x.NumElements()/x.Shape()[0]))
}

// StdPerExample computes the sample standard deviation over every
// non-batch axis, producing a [B] tensor.
func StdPerExample(x *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("StdPerExample: input tensor is nil")
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("StdPerExample: unsupported dtype %s", x.DType())
	}
	b := x.Shape()[0]
	per := x.NumElements() / b
	result, err := NewRaw(Shape{b}, x.DType())
	if err != nil {
		return nil, fmt.Errorf("StdPerExample: %w", err)
	}
	for i := 0; i < b; i++ {
		sum := 0.0
		for j := 0; j < per; j++ {
			sum += x.Float(i*per + j)
		}
		mean := sum / float64(per)
		sq := 0.0
		for j := 0; j < per; j++ {
			d := x.Float(i*per+j) - mean
			sq += d * d
		}
		result.SetFloat(i, math.Sqrt(sq/float64(per-1)))
	}
	return result, nil
}

// AnyNonzero reports whether any element is nonzero.
func AnyNonzero(x *RawTensor) bool {
	for i := 0; i < x.NumElements(); i++ {
		if x.Float(i) != 0 {
			return true
		}
	}
	return false
}

// Softmax applies softmax along the specified axis with the usual
// max-subtraction for numerical stability.
func Softmax(x *RawTensor, dim int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Softmax: input tensor is nil")
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("Softmax: unsupported dtype %s", x.DType())
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	result := ZerosLike(x)

	outerSize, axisSize, innerSize := axisSpans(x.Shape(), dim)
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			maxVal := math.Inf(-1)
			for a := 0; a < axisSize; a++ {
				if v := x.Float(outer*axisSize*innerSize + a*innerSize + inner); v > maxVal {
					maxVal = v
				}
			}
			sum := 0.0
			for a := 0; a < axisSize; a++ {
				idx := outer*axisSize*innerSize + a*innerSize + inner
				e := math.Exp(x.Float(idx) - maxVal)
				result.SetFloat(idx, e)
				sum += e
			}
			for a := 0; a < axisSize; a++ {
				idx := outer*axisSize*innerSize + a*innerSize + inner
				result.SetFloat(idx, result.Float(idx)/sum)
			}
		}
	}
	return result, nil
}

// LogSoftmax computes log(softmax(x)) along the specified axis.
func LogSoftmax(x *RawTensor, dim int) (*RawTensor, error) {
	s, err := Softmax(x, dim)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.NumElements(); i++ {
		s.SetFloat(i, math.Log(s.Float(i)))
	}
	return s, nil
}
