// Copyright 2026 Ragged ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package batch

import (
	"github.com/ragged-ml/ragged/internal/batch"
	"github.com/ragged-ml/ragged/tensor"
)

// Elementwise operations. Unary ops leave mask and dim flags untouched;
// binary ops combine masks by product and dim flags by OR when both
// operands are masked, and inherit them from the masked operand
// otherwise.

// Neg negates every element.
func Neg(x Value) (Value, error) { return batch.Neg(x) }

// Exp applies the exponential function elementwise.
func Exp(x Value) (Value, error) { return batch.Exp(x) }

// Log applies the natural logarithm elementwise.
func Log(x Value) (Value, error) { return batch.Log(x) }

// Sqrt applies the square root elementwise.
func Sqrt(x Value) (Value, error) { return batch.Sqrt(x) }

// Sin applies the sine function elementwise.
func Sin(x Value) (Value, error) { return batch.Sin(x) }

// Cos applies the cosine function elementwise.
func Cos(x Value) (Value, error) { return batch.Cos(x) }

// Tan applies the tangent function elementwise.
func Tan(x Value) (Value, error) { return batch.Tan(x) }

// Floor rounds every element down.
func Floor(x Value) (Value, error) { return batch.Floor(x) }

// Ceil rounds every element up.
func Ceil(x Value) (Value, error) { return batch.Ceil(x) }

// ReLU applies the rectified-linear activation.
func ReLU(x Value) (Value, error) { return batch.ReLU(x) }

// Tanh applies the hyperbolic-tangent activation.
func Tanh(x Value) (Value, error) { return batch.Tanh(x) }

// Sigmoid applies the logistic-sigmoid activation.
func Sigmoid(x Value) (Value, error) { return batch.Sigmoid(x) }

// Clamp clips every element to [minVal, maxVal].
func Clamp(x Value, minVal, maxVal float64) (Value, error) {
	return batch.Clamp(x, minVal, maxVal)
}

// Cast converts to a different dtype; the mask is recast alongside.
func Cast(x Value, dtype tensor.DataType) (Value, error) { return batch.Cast(x, dtype) }

// Dropout stochastically zeroes data elements; mask and flags are
// untouched.
func Dropout(x Value, p float64, training bool) (Value, error) {
	return batch.Dropout(x, p, training)
}

// Add performs elementwise addition.
func Add(x, y Value) (Value, error) { return batch.Add(x, y) }

// Sub performs elementwise subtraction.
func Sub(x, y Value) (Value, error) { return batch.Sub(x, y) }

// Mul performs elementwise multiplication.
func Mul(x, y Value) (Value, error) { return batch.Mul(x, y) }

// Div performs elementwise division.
func Div(x, y Value) (Value, error) { return batch.Div(x, y) }

// Greater compares x > y elementwise under the combined mask.
func Greater(x, y Value) (Value, error) { return batch.Greater(x, y) }

// Less compares x < y elementwise under the combined mask.
func Less(x, y Value) (Value, error) { return batch.Less(x, y) }

// GreaterEqual compares x >= y elementwise under the combined mask.
func GreaterEqual(x, y Value) (Value, error) { return batch.GreaterEqual(x, y) }

// LessEqual compares x <= y elementwise under the combined mask.
func LessEqual(x, y Value) (Value, error) { return batch.LessEqual(x, y) }

// Equal compares x == y elementwise under the combined mask.
func Equal(x, y Value) (Value, error) { return batch.Equal(x, y) }

// NotEqual compares x != y elementwise under the combined mask.
func NotEqual(x, y Value) (Value, error) { return batch.NotEqual(x, y) }

// AddScalar adds a plain scalar.
func AddScalar(x Value, v float64) (Value, error) { return batch.AddScalar(x, v) }

// SubScalar subtracts a plain scalar.
func SubScalar(x Value, v float64) (Value, error) { return batch.SubScalar(x, v) }

// MulScalar multiplies by a plain scalar.
func MulScalar(x Value, v float64) (Value, error) { return batch.MulScalar(x, v) }

// DivScalar divides by a plain scalar.
func DivScalar(x Value, v float64) (Value, error) { return batch.DivScalar(x, v) }

// Reductions. Padding is zeroed before aggregating; non-zero-preserving
// kernels are rejected over dynamic axes.

// Sum aggregates along dim.
func Sum(x Value, dim int, keepDim bool) (Value, error) { return batch.Sum(x, dim, keepDim) }

// SumAll sums every non-batch axis into a per-example scalar.
func SumAll(x Value) (Value, error) { return batch.SumAll(x) }

// Mean averages along dim; rejected on dynamic axes.
func Mean(x Value, dim int, keepDim bool) (Value, error) { return batch.Mean(x, dim, keepDim) }

// MeanAll averages every non-batch axis; rejected while any axis is
// dynamic.
func MeanAll(x Value) (Value, error) { return batch.MeanAll(x) }

// Std computes the sample standard deviation along dim; rejected on
// dynamic axes.
func Std(x Value, dim int, keepDim bool) (Value, error) { return batch.Std(x, dim, keepDim) }

// StdAll computes the per-example standard deviation; rejected while
// any axis is dynamic.
func StdAll(x Value) (Value, error) { return batch.StdAll(x) }

// Any reports whether any valid position is nonzero.
func Any(x Value) (bool, error) { return batch.Any(x) }

// All reports whether every valid position is nonzero; padding is
// excluded from the conjunction.
func All(x Value) (bool, error) { return batch.All(x) }

// Contractions.

// Linear applies a [out, in] weight (plus optional bias) to the
// trailing axis, which must be static.
func Linear(x Value, weight, bias *tensor.RawTensor) (Value, error) {
	return batch.Linear(x, weight, bias)
}

// Embedding gathers rows of weight [vocab, dim] by integer indices,
// appending one new static axis.
func Embedding(x Value, weight *tensor.RawTensor) (Value, error) {
	return batch.Embedding(x, weight)
}

// MatMul multiplies two masked batches of vectors or matrices, nulling
// padding contributions before the contraction.
func MatMul(x, y Value) (Value, error) { return batch.MatMul(x, y) }

// Structural operations.

// Index extracts a sub-batch addressed by one selector per axis.
func Index(x Value, sels []tensor.Sel) (Value, error) { return batch.Index(x, sels) }

// Split divides the batch along a non-batch axis into chunks of at most
// splitSize positions.
func Split(x Value, splitSize, dim int) ([]Value, error) { return batch.Split(x, splitSize, dim) }

// Chunk divides the batch along dim into the given number of chunks.
func Chunk(x Value, chunks, dim int) ([]Value, error) { return batch.Chunk(x, chunks, dim) }

// Cat concatenates batches along one axis.
func Cat(xs []Value, dim int) (Value, error) { return batch.Cat(xs, dim) }

// Stack joins batches along a fresh non-batch axis, auto-detecting its
// dynamic flag from the input masks.
func Stack(xs []Value, dim int) (Value, error) { return batch.Stack(xs, dim) }

// StackAs is Stack with the new axis's dynamic flag set explicitly.
func StackAs(xs []Value, dim int, dynamic bool) (Value, error) {
	return batch.StackAs(xs, dim, dynamic)
}

// Unbind removes one non-batch axis, returning a value per position.
func Unbind(x Value, dim int) ([]Value, error) { return batch.Unbind(x, dim) }

// View reshapes to the target extents; -1 entries keep the current
// extent and stay dynamic.
func View(x Value, shape tensor.Shape) (Value, error) { return batch.View(x, shape) }

// Transpose swaps two non-batch axes.
func Transpose(x Value, dim1, dim2 int) (Value, error) { return batch.Transpose(x, dim1, dim2) }

// Permute reorders the axes; the batch axis must stay first.
func Permute(x Value, axes []int) (Value, error) { return batch.Permute(x, axes) }

// SplitDim factors one static axis of extent outer*inner into two
// adjacent static axes [outer, inner].
func SplitDim(x Value, dim, inner int) (Value, error) { return batch.SplitDim(x, dim, inner) }

// JoinDims merges two axes, permuting them adjacent first if needed.
func JoinDims(x Value, dim1, dim2 int) (Value, error) { return batch.JoinDims(x, dim1, dim2) }

// Specialized kernels.

// Softmax normalizes along dim over valid positions only.
func Softmax(x Value, dim int) (Value, error) { return batch.Softmax(x, dim) }

// CrossEntropy computes the masked negative log-likelihood of integer
// targets under logits.
func CrossEntropy(input, target Value, ignoreIndex int, reduce bool) (Value, error) {
	return batch.CrossEntropy(input, target, ignoreIndex, reduce)
}

// CausalMask restricts square batches so the inDim position never
// exceeds the outDim position.
func CausalMask(x Value, inDim, outDim int) (Value, error) {
	return batch.CausalMask(x, inDim, outDim)
}

// Lengths recovers each example's true extent along the one dynamic
// axis.
func Lengths(x Value, dim int) (Value, error) { return batch.Lengths(x, dim) }

// Synchronize asserts no axis is dynamic and forces the mask to all
// ones.
func Synchronize(x Value) (Value, error) { return batch.Synchronize(x) }

// Update advances an accumulator one recurrence step, taking the new
// value where the update mask is set and keeping the old elsewhere.
func Update(acc, next Value, updateMask Value) (Value, error) {
	return batch.Update(acc, next, updateMask)
}
