package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// unaryOp applies a dense unary kernel: the mask and dim flags pass
// through unchanged (the mask is recast when the kernel changes dtype).
func unaryOp(name string, x Value, fn func(*tensor.RawTensor) (*tensor.RawTensor, error)) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := fn(x.valueTensor())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return Plain{Tensor: out}, nil
	}
	data, err := fn(b.data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	mask := b.mask
	if mask.DType() != data.DType() {
		if mask, err = tensor.Cast(mask, data.DType()); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return newUnchecked(data, mask, b.dims.Clone()), nil
}

// binaryOp applies a dense binary kernel under the mask-combination
// rules: both masked combines masks by product and dim flags by OR; one
// masked operand passes its mask and flags through.
func binaryOp(name string, x, y Value, fn func(a, b *tensor.RawTensor) (*tensor.RawTensor, error)) (Value, error) {
	bx, xMasked := asMasked(x)
	by, yMasked := asMasked(y)

	data, err := fn(x.valueTensor(), y.valueTensor())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	switch {
	case xMasked && yMasked:
		if len(bx.dims) != len(by.dims) {
			return nil, fmt.Errorf("%s: %w: operand ranks %d and %d",
				name, ErrUnsupportedShape, bx.Rank(), by.Rank())
		}
		mask, err := tensor.Mul(bx.mask, by.mask)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		dims := make(Dims, len(bx.dims))
		for i := range dims {
			dims[i] = bx.dims[i] || by.dims[i]
		}
		return newUnchecked(data, mask, dims), nil
	case xMasked:
		return inheritMask(name, data, bx)
	case yMasked:
		return inheritMask(name, data, by)
	default:
		return Plain{Tensor: data}, nil
	}
}

// inheritMask builds a result carrying src's mask and dim flags,
// recasting the mask to the result dtype when needed.
func inheritMask(name string, data *tensor.RawTensor, src *MaskedBatch) (Value, error) {
	mask := src.mask
	if mask.DType() != data.DType() {
		var err error
		if mask, err = tensor.Cast(mask, data.DType()); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return newUnchecked(data, mask, src.dims.Clone()), nil
}

// scalarOp applies a dense tensor-scalar kernel; masking metadata is
// untouched.
func scalarOp(name string, x Value, v float64, fn func(*tensor.RawTensor, float64) (*tensor.RawTensor, error)) (Value, error) {
	return unaryOp(name, x, func(t *tensor.RawTensor) (*tensor.RawTensor, error) {
		return fn(t, v)
	})
}

// Neg negates every element.
func Neg(x Value) (Value, error) { return unaryOp("Neg", x, tensor.Neg) }

// Exp applies the exponential function elementwise.
func Exp(x Value) (Value, error) { return unaryOp("Exp", x, tensor.Exp) }

// Log applies the natural logarithm elementwise.
func Log(x Value) (Value, error) { return unaryOp("Log", x, tensor.Log) }

// Sqrt applies the square root elementwise.
func Sqrt(x Value) (Value, error) { return unaryOp("Sqrt", x, tensor.Sqrt) }

// Sin applies the sine function elementwise.
func Sin(x Value) (Value, error) { return unaryOp("Sin", x, tensor.Sin) }

// Cos applies the cosine function elementwise.
func Cos(x Value) (Value, error) { return unaryOp("Cos", x, tensor.Cos) }

// Tan applies the tangent function elementwise.
func Tan(x Value) (Value, error) { return unaryOp("Tan", x, tensor.Tan) }

// Floor rounds every element down.
func Floor(x Value) (Value, error) { return unaryOp("Floor", x, tensor.Floor) }

// Ceil rounds every element up.
func Ceil(x Value) (Value, error) { return unaryOp("Ceil", x, tensor.Ceil) }

// ReLU applies the rectified-linear activation.
func ReLU(x Value) (Value, error) { return unaryOp("ReLU", x, tensor.ReLU) }

// Tanh applies the hyperbolic-tangent activation.
func Tanh(x Value) (Value, error) { return unaryOp("Tanh", x, tensor.Tanh) }

// Sigmoid applies the logistic-sigmoid activation.
func Sigmoid(x Value) (Value, error) { return unaryOp("Sigmoid", x, tensor.Sigmoid) }

// Clamp clips every element to [minVal, maxVal].
func Clamp(x Value, minVal, maxVal float64) (Value, error) {
	return unaryOp("Clamp", x, func(t *tensor.RawTensor) (*tensor.RawTensor, error) {
		return tensor.Clamp(t, minVal, maxVal)
	})
}

// Cast converts the value to a different dtype; the mask is recast
// alongside the data.
func Cast(x Value, dtype tensor.DataType) (Value, error) {
	return unaryOp("Cast", x, func(t *tensor.RawTensor) (*tensor.RawTensor, error) {
		return tensor.Cast(t, dtype)
	})
}

// Dropout stochastically zeroes data elements; only data is touched,
// never the mask or dim flags.
func Dropout(x Value, p float64, training bool) (Value, error) {
	return unaryOp("Dropout", x, func(t *tensor.RawTensor) (*tensor.RawTensor, error) {
		return tensor.Dropout(t, p, training)
	})
}

// Add performs elementwise addition.
func Add(x, y Value) (Value, error) { return binaryOp("Add", x, y, tensor.Add) }

// Sub performs elementwise subtraction.
func Sub(x, y Value) (Value, error) { return binaryOp("Sub", x, y, tensor.Sub) }

// Mul performs elementwise multiplication.
func Mul(x, y Value) (Value, error) { return binaryOp("Mul", x, y, tensor.Mul) }

// Div performs elementwise division.
func Div(x, y Value) (Value, error) { return binaryOp("Div", x, y, tensor.Div) }

// Greater compares x > y elementwise; the result carries the combined mask.
func Greater(x, y Value) (Value, error) { return binaryOp("Greater", x, y, tensor.Greater) }

// Less compares x < y elementwise; the result carries the combined mask.
func Less(x, y Value) (Value, error) { return binaryOp("Less", x, y, tensor.Less) }

// GreaterEqual compares x >= y elementwise; the result carries the combined mask.
func GreaterEqual(x, y Value) (Value, error) {
	return binaryOp("GreaterEqual", x, y, tensor.GreaterEqual)
}

// LessEqual compares x <= y elementwise; the result carries the combined mask.
func LessEqual(x, y Value) (Value, error) { return binaryOp("LessEqual", x, y, tensor.LessEqual) }

// Equal compares x == y elementwise; the result carries the combined mask.
func Equal(x, y Value) (Value, error) { return binaryOp("Equal", x, y, tensor.Equal) }

// NotEqual compares x != y elementwise; the result carries the combined mask.
func NotEqual(x, y Value) (Value, error) { return binaryOp("NotEqual", x, y, tensor.NotEqual) }

// AddScalar adds a plain scalar; mask and dim flags are unchanged.
func AddScalar(x Value, v float64) (Value, error) {
	return scalarOp("AddScalar", x, v, tensor.AddScalar)
}

// SubScalar subtracts a plain scalar; mask and dim flags are unchanged.
func SubScalar(x Value, v float64) (Value, error) {
	return scalarOp("SubScalar", x, v, tensor.SubScalar)
}

// MulScalar multiplies by a plain scalar; mask and dim flags are unchanged.
func MulScalar(x Value, v float64) (Value, error) {
	return scalarOp("MulScalar", x, v, tensor.MulScalar)
}

// DivScalar divides by a plain scalar; mask and dim flags are unchanged.
func DivScalar(x Value, v float64) (Value, error) {
	return scalarOp("DivScalar", x, v, tensor.DivScalar)
}
