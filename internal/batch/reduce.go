package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// reduceKernel describes one aggregation. Zero-preserving kernels (sum)
// are unaffected by masked-out zeros; non-zero-preserving kernels (mean,
// std) would silently average padding into the result, so they are
// rejected whenever a dynamic axis participates.
type reduceKernel struct {
	name           string
	zeroPreserving bool
	overDim        func(x *tensor.RawTensor, dim int, keepDim bool) (*tensor.RawTensor, error)
	perExample     func(x *tensor.RawTensor) (*tensor.RawTensor, error)
}

var (
	sumKernel = reduceKernel{
		name: "Sum", zeroPreserving: true,
		overDim: tensor.SumDim, perExample: tensor.SumPerExample,
	}
	meanKernel = reduceKernel{
		name: "Mean",
		overDim: tensor.MeanDim, perExample: tensor.MeanPerExample,
	}
	stdKernel = reduceKernel{
		name: "Std",
		overDim: tensor.StdDim, perExample: tensor.StdPerExample,
	}
)

// reduceDim aggregates along one axis. Padding is unconditionally zeroed
// before aggregation so garbage never contributes.
func reduceDim(k reduceKernel, x Value, dim int, keepDim bool) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := k.overDim(x.valueTensor(), dim, keepDim)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.name, err)
		}
		return Plain{Tensor: out}, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim <= 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("%s: %w: cannot reduce over dimension %d of rank %d",
			k.name, ErrUnsupportedShape, dim, b.Rank())
	}
	if !k.zeroPreserving && b.dims[dim-1] {
		return nil, fmt.Errorf("%s: %w: cannot reduce over dynamic dim with non-zero-preserving kernel",
			k.name, ErrUnsupportedShape)
	}

	zeroed, err := b.maskedData()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}
	data, err := k.overDim(zeroed, dim, keepDim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}

	// The mask cannot vary along the eliminated axis; take the
	// representative index-0 slice (size-1 placeholder under keepDim).
	var mask *tensor.RawTensor
	var dims Dims
	if keepDim {
		mask, err = tensor.Narrow(b.mask, dim, 0, 1)
		dims = b.dims.Clone()
		dims[dim-1] = false
	} else {
		mask, err = tensor.Select(b.mask, dim, 0)
		dims = make(Dims, 0, len(b.dims)-1)
		dims = append(dims, b.dims[:dim-1]...)
		dims = append(dims, b.dims[dim:]...)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}
	return newUnchecked(data, mask, dims), nil
}

// reduceAll aggregates every non-batch axis into a per-example scalar
// [B]. Only legal for zero-preserving kernels when dynamic axes remain.
func reduceAll(k reduceKernel, x Value) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := k.perExample(x.valueTensor())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.name, err)
		}
		return Plain{Tensor: out}, nil
	}

	if !k.zeroPreserving && b.dims.Any() {
		return nil, fmt.Errorf("%s: %w: cannot reduce to scalar with non-zero-preserving kernel if dynamic dims present",
			k.name, ErrUnsupportedShape)
	}

	zeroed, err := b.maskedData()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}
	data, err := k.perExample(zeroed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.name, err)
	}

	// Collapse every non-batch mask axis at its representative index.
	mask := b.mask
	for mask.Rank() > 1 {
		if mask, err = tensor.Select(mask, 1, 0); err != nil {
			return nil, fmt.Errorf("%s: %w", k.name, err)
		}
	}
	return newUnchecked(data, mask, Dims{}), nil
}

// Sum aggregates along dim; padding never contributes regardless of its
// contents.
func Sum(x Value, dim int, keepDim bool) (Value, error) {
	return reduceDim(sumKernel, x, dim, keepDim)
}

// SumAll sums every non-batch axis into a per-example scalar.
func SumAll(x Value) (Value, error) {
	return reduceAll(sumKernel, x)
}

// Mean averages along dim. Rejected on dynamic axes: dividing by the
// padded extent instead of the true per-example length would be silently
// wrong.
func Mean(x Value, dim int, keepDim bool) (Value, error) {
	return reduceDim(meanKernel, x, dim, keepDim)
}

// MeanAll averages every non-batch axis into a per-example scalar;
// rejected while any axis is dynamic.
func MeanAll(x Value) (Value, error) {
	return reduceAll(meanKernel, x)
}

// Std computes the sample standard deviation along dim; rejected on
// dynamic axes.
func Std(x Value, dim int, keepDim bool) (Value, error) {
	return reduceDim(stdKernel, x, dim, keepDim)
}

// StdAll computes the per-example standard deviation over all non-batch
// axes; rejected while any axis is dynamic.
func StdAll(x Value) (Value, error) {
	return reduceAll(stdKernel, x)
}

// Any reports whether any valid position is nonzero. Padding, being
// zeroed by the mask, can never spuriously satisfy the test.
func Any(x Value) (bool, error) {
	b, ok := asMasked(x)
	if !ok {
		return tensor.AnyNonzero(x.valueTensor()), nil
	}
	zeroed, err := b.maskedData()
	if err != nil {
		return false, fmt.Errorf("Any: %w", err)
	}
	return tensor.AnyNonzero(zeroed), nil
}

// All reports whether every valid position is nonzero. Padding is
// excluded from the conjunction outright: zero-filling it would falsify
// the result.
func All(x Value) (bool, error) {
	b, ok := asMasked(x)
	if !ok {
		t := x.valueTensor()
		for i := 0; i < t.NumElements(); i++ {
			if t.Float(i) == 0 {
				return false, nil
			}
		}
		return true, nil
	}
	full, err := tensor.Expand(b.mask, b.data.Shape())
	if err != nil {
		return false, fmt.Errorf("All: %w", err)
	}
	for i := 0; i < b.data.NumElements(); i++ {
		if full.Float(i) != 0 && b.data.Float(i) == 0 {
			return false, nil
		}
	}
	return true, nil
}
