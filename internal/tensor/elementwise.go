package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// binKind identifies an elementwise binary kernel.
type binKind int

const (
	opAdd binKind = iota
	opSub
	opMul
	opDiv
	opGreater
	opLess
	opGreaterEqual
	opLessEqual
	opEqual
	opNotEqual
)

// applyBin evaluates one elementwise binary kernel on scalars.
// Comparison kernels return {0,1} in the operand type.
func applyBin[T DType](kind binKind, x, y T) T {
	switch kind {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	case opGreater:
		if x > y {
			return 1
		}
		return 0
	case opLess:
		if x < y {
			return 1
		}
		return 0
	case opGreaterEqual:
		if x >= y {
			return 1
		}
		return 0
	case opLessEqual:
		if x <= y {
			return 1
		}
		return 0
	case opEqual:
		if x == y {
			return 1
		}
		return 0
	case opNotEqual:
		if x != y {
			return 1
		}
		return 0
	default:
		panic("unknown binary kernel")
	}
}

// binKernel runs a binary kernel over same-shape operands.
func binKernel[T DType](kind binKind, out, a, b []T) {
	for i := range out {
		out[i] = applyBin(kind, a[i], b[i])
	}
}

// binKernelBroadcast runs a binary kernel with NumPy-style broadcasting.
func binKernelBroadcast[T DType](kind binKind, out, a, b []T, aShape, bShape, outShape Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	for i := range out {
		out[i] = applyBin(kind, a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}

// flatIndex maps an output flat index to a source flat index using
// broadcast-adjusted strides.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flat += coord * inStrides[i]
	}
	return flat
}

// binary dispatches a binary kernel by dtype, with broadcasting.
func binary(name string, kind binKind, a, b *RawTensor) (*RawTensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%s: input tensor is nil", name)
	}
	if a.DType() != b.DType() {
		return nil, fmt.Errorf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType())
	}

	outShape, err := BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	result, err := NewRaw(outShape, a.DType())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sameShape := a.Shape().Equal(b.Shape())
	switch a.DType() {
	case Float32:
		if sameShape {
			binKernel(kind, result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
		} else {
			binKernelBroadcast(kind, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
		}
	case Float64:
		if sameShape {
			binKernel(kind, result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
		} else {
			binKernelBroadcast(kind, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
		}
	case Int32:
		if sameShape {
			binKernel(kind, result.AsInt32(), a.AsInt32(), b.AsInt32())
		} else {
			binKernelBroadcast(kind, result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
		}
	case Int64:
		if sameShape {
			binKernel(kind, result.AsInt64(), a.AsInt64(), b.AsInt64())
		} else {
			binKernelBroadcast(kind, result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %s", name, a.DType())
	}
	return result, nil
}

// Add performs elementwise addition with broadcasting.
func Add(a, b *RawTensor) (*RawTensor, error) { return binary("Add", opAdd, a, b) }

// Sub performs elementwise subtraction with broadcasting.
func Sub(a, b *RawTensor) (*RawTensor, error) { return binary("Sub", opSub, a, b) }

// Mul performs elementwise multiplication with broadcasting.
func Mul(a, b *RawTensor) (*RawTensor, error) { return binary("Mul", opMul, a, b) }

// Div performs elementwise division with broadcasting.
func Div(a, b *RawTensor) (*RawTensor, error) { return binary("Div", opDiv, a, b) }

// Greater computes a > b elementwise, returning {0,1} in the operand dtype.
func Greater(a, b *RawTensor) (*RawTensor, error) { return binary("Greater", opGreater, a, b) }

// Less computes a < b elementwise, returning {0,1} in the operand dtype.
func Less(a, b *RawTensor) (*RawTensor, error) { return binary("Less", opLess, a, b) }

// GreaterEqual computes a >= b elementwise, returning {0,1} in the operand dtype.
func GreaterEqual(a, b *RawTensor) (*RawTensor, error) {
	return binary("GreaterEqual", opGreaterEqual, a, b)
}

// LessEqual computes a <= b elementwise, returning {0,1} in the operand dtype.
func LessEqual(a, b *RawTensor) (*RawTensor, error) {
	return binary("LessEqual", opLessEqual, a, b)
}

// Equal computes a == b elementwise, returning {0,1} in the operand dtype.
func Equal(a, b *RawTensor) (*RawTensor, error) { return binary("Equal", opEqual, a, b) }

// NotEqual computes a != b elementwise, returning {0,1} in the operand dtype.
func NotEqual(a, b *RawTensor) (*RawTensor, error) { return binary("NotEqual", opNotEqual, a, b) }

// scalar dispatches a binary kernel against a scalar right operand.
func scalar(name string, kind binKind, a *RawTensor, v float64) (*RawTensor, error) {
	if a == nil {
		return nil, fmt.Errorf("%s: input tensor is nil", name)
	}
	result := ZerosLike(a)
	for i := 0; i < a.NumElements(); i++ {
		result.SetFloat(i, applyBin(kind, a.Float(i), v))
	}
	return result, nil
}

// AddScalar adds a scalar to every element.
func AddScalar(a *RawTensor, v float64) (*RawTensor, error) { return scalar("AddScalar", opAdd, a, v) }

// SubScalar subtracts a scalar from every element.
func SubScalar(a *RawTensor, v float64) (*RawTensor, error) { return scalar("SubScalar", opSub, a, v) }

// MulScalar multiplies every element by a scalar.
func MulScalar(a *RawTensor, v float64) (*RawTensor, error) { return scalar("MulScalar", opMul, a, v) }

// DivScalar divides every element by a scalar.
func DivScalar(a *RawTensor, v float64) (*RawTensor, error) { return scalar("DivScalar", opDiv, a, v) }

// unaryFloat applies f to every element of a float tensor.
func unaryFloat(name string, x *RawTensor, f func(float64) float64) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("%s: input tensor is nil", name)
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("%s: unsupported dtype %s", name, x.DType())
	}
	result := ZerosLike(x)
	for i := 0; i < x.NumElements(); i++ {
		result.SetFloat(i, f(x.Float(i)))
	}
	return result, nil
}

// Neg negates every element. Works for all dtypes.
func Neg(x *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Neg: input tensor is nil")
	}
	result := ZerosLike(x)
	for i := 0; i < x.NumElements(); i++ {
		result.SetFloat(i, -x.Float(i))
	}
	return result, nil
}

// Exp applies the exponential function elementwise.
func Exp(x *RawTensor) (*RawTensor, error) { return unaryFloat("Exp", x, math.Exp) }

// Log applies the natural logarithm elementwise.
func Log(x *RawTensor) (*RawTensor, error) { return unaryFloat("Log", x, math.Log) }

// Sqrt applies the square root elementwise.
func Sqrt(x *RawTensor) (*RawTensor, error) { return unaryFloat("Sqrt", x, math.Sqrt) }

// Sin applies the sine function elementwise.
func Sin(x *RawTensor) (*RawTensor, error) { return unaryFloat("Sin", x, math.Sin) }

// Cos applies the cosine function elementwise.
func Cos(x *RawTensor) (*RawTensor, error) { return unaryFloat("Cos", x, math.Cos) }

// Tan applies the tangent function elementwise.
func Tan(x *RawTensor) (*RawTensor, error) { return unaryFloat("Tan", x, math.Tan) }

// Floor rounds every element down to the nearest integer.
func Floor(x *RawTensor) (*RawTensor, error) { return unaryFloat("Floor", x, math.Floor) }

// Ceil rounds every element up to the nearest integer.
func Ceil(x *RawTensor) (*RawTensor, error) { return unaryFloat("Ceil", x, math.Ceil) }

// Tanh applies the hyperbolic tangent activation elementwise.
func Tanh(x *RawTensor) (*RawTensor, error) { return unaryFloat("Tanh", x, math.Tanh) }

// Sigmoid applies the logistic sigmoid activation elementwise.
func Sigmoid(x *RawTensor) (*RawTensor, error) {
	return unaryFloat("Sigmoid", x, func(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) })
}

// ReLU applies max(x, 0) elementwise.
func ReLU(x *RawTensor) (*RawTensor, error) {
	return unaryFloat("ReLU", x, func(v float64) float64 { return math.Max(v, 0) })
}

// Clamp clips every element to the range [minVal, maxVal].
func Clamp(x *RawTensor, minVal, maxVal float64) (*RawTensor, error) {
	return unaryFloat("Clamp", x, func(v float64) float64 {
		return math.Min(math.Max(v, minVal), maxVal)
	})
}

// Cast converts the tensor to a different dtype, truncating floats when
// converting to integer types.
func Cast(x *RawTensor, dtype DataType) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Cast: input tensor is nil")
	}
	if x.DType() == dtype {
		return x.Clone(), nil
	}
	result, err := NewRaw(x.Shape(), dtype)
	if err != nil {
		return nil, fmt.Errorf("Cast: %w", err)
	}
	for i := 0; i < x.NumElements(); i++ {
		result.SetFloat(i, x.Float(i))
	}
	return result, nil
}

// Dropout randomly zeroes elements with probability p and scales the
// survivors by 1/(1-p). With training=false the input is returned
// unchanged (cloned).
func Dropout(x *RawTensor, p float64, training bool) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Dropout: input tensor is nil")
	}
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("Dropout: probability %v out of range [0, 1)", p)
	}
	if !training || p == 0 {
		return x.Clone(), nil
	}
	if !x.DType().IsFloat() {
		return nil, fmt.Errorf("Dropout: unsupported dtype %s", x.DType())
	}
	scale := 1.0 / (1.0 - p)
	result := ZerosLike(x)
	for i := 0; i < x.NumElements(); i++ {
		if rand.Float64() >= p { //nolint:gosec // math/rand is intentional for reproducibility
			result.SetFloat(i, x.Float(i)*scale)
		}
	}
	return result, nil
}

// Where selects elements from x where cond is nonzero and from y
// elsewhere. cond must broadcast to the common shape of x and y and may
// be of any dtype; x and y must share a dtype.
func Where(cond, x, y *RawTensor) (*RawTensor, error) {
	if cond == nil || x == nil || y == nil {
		return nil, fmt.Errorf("Where: input tensor is nil")
	}
	if x.DType() != y.DType() {
		return nil, fmt.Errorf("Where: dtype mismatch: %s vs %s", x.DType(), y.DType())
	}
	outShape, err := BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		return nil, fmt.Errorf("Where: %w", err)
	}
	outShape, err = BroadcastShapes(outShape, cond.Shape())
	if err != nil {
		return nil, fmt.Errorf("Where: %w", err)
	}
	result, err := NewRaw(outShape, x.DType())
	if err != nil {
		return nil, fmt.Errorf("Where: %w", err)
	}

	outStrides := outShape.ComputeStrides()
	condStrides := broadcastStrides(cond.Shape(), outShape)
	xStrides := broadcastStrides(x.Shape(), outShape)
	yStrides := broadcastStrides(y.Shape(), outShape)

	for i := 0; i < result.NumElements(); i++ {
		if cond.Float(flatIndex(i, outStrides, condStrides)) != 0 {
			result.SetFloat(i, x.Float(flatIndex(i, outStrides, xStrides)))
		} else {
			result.SetFloat(i, y.Float(flatIndex(i, outStrides, yStrides)))
		}
	}
	return result, nil
}
