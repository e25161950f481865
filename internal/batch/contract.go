package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// Linear applies a weight matrix [out, in] (plus optional bias [out]) to
// the trailing axis. A masked input needs a real non-batch trailing
// axis, and it must be static: contracting a ragged axis against a
// fixed-width weight has no consistent meaning, and a rank-1 batch has
// only the batch axis to offer. Mask and dim flags pass through
// unchanged.
func Linear(x Value, weight, bias *tensor.RawTensor) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.MatVec(x.valueTensor(), weight, bias)
		if err != nil {
			return nil, fmt.Errorf("Linear: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if len(b.dims) == 0 {
		return nil, fmt.Errorf("Linear: %w: cannot contract the batch axis", ErrUnsupportedShape)
	}
	if b.dims[len(b.dims)-1] {
		return nil, fmt.Errorf("Linear: %w: cannot contract static and dynamic dimensions", ErrInvalidContraction)
	}
	data, err := tensor.MatVec(b.data, weight, bias)
	if err != nil {
		return nil, fmt.Errorf("Linear: %w", err)
	}
	return newUnchecked(data, b.mask.Clone(), b.dims.Clone()), nil
}

// Embedding gathers rows of weight [vocab, dim] by the integer indices
// in x, appending one new static axis of the embedding width. The mask
// is unsqueezed into the new axis and recast to the embedding dtype.
func Embedding(x Value, weight *tensor.RawTensor) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.EmbeddingLookup(weight, x.valueTensor())
		if err != nil {
			return nil, fmt.Errorf("Embedding: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	data, err := tensor.EmbeddingLookup(weight, b.data)
	if err != nil {
		return nil, fmt.Errorf("Embedding: %w", err)
	}
	mask, err := tensor.Unsqueeze(b.mask, -1)
	if err != nil {
		return nil, fmt.Errorf("Embedding: %w", err)
	}
	if mask, err = tensor.Cast(mask, data.DType()); err != nil {
		return nil, fmt.Errorf("Embedding: %w", err)
	}
	dims := append(b.dims.Clone(), false)
	return newUnchecked(data, mask, dims), nil
}

// MatMul multiplies two masked batches whose non-batch shapes are
// vectors or matrices. Each operand's data is pre-multiplied by its own
// mask so padding contributes nothing to any dot product.
//
// The result mask is built from single-column/row slices of the input
// masks rather than an exact AND over every contracted position. Callers
// relying on exact per-position validity through a contraction must
// track it themselves.
func MatMul(x, y Value) (Value, error) {
	bx, xMasked := asMasked(x)
	by, yMasked := asMasked(y)

	if !xMasked && !yMasked {
		out, err := tensor.BatchMatMul(x.valueTensor(), y.valueTensor())
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if xMasked != yMasked {
		return nil, fmt.Errorf("MatMul: %w: not implemented between masked batch and plain tensor",
			ErrUnsupportedShape)
	}

	rank1, rank2 := len(bx.dims), len(by.dims)
	if rank1 < 1 || rank1 > 2 || rank2 < 1 || rank2 > 2 {
		return nil, fmt.Errorf("MatMul: %w: not implemented for batches of 3+D tensors", ErrUnsupportedShape)
	}

	d1, err := bx.maskedData()
	if err != nil {
		return nil, fmt.Errorf("MatMul: %w", err)
	}
	d2, err := by.maskedData()
	if err != nil {
		return nil, fmt.Errorf("MatMul: %w", err)
	}

	// Promote vectors to matrices for the batched kernel: a left vector
	// becomes a [B, 1, K] row, a right vector a [B, K, 1] column.
	if rank1 == 1 {
		if d1, err = tensor.Unsqueeze(d1, 1); err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
	}
	if rank2 == 1 {
		if d2, err = tensor.Unsqueeze(d2, -1); err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
	}

	data, err := tensor.BatchMatMul(d1, d2)
	if err != nil {
		return nil, fmt.Errorf("MatMul: %w", err)
	}

	switch {
	case rank1 == 1 && rank2 == 1:
		// [B,1,K] @ [B,K,1] -> [B,1,1] -> [B]
		data, err = tensor.Reshape(data, tensor.Shape{data.Shape()[0]})
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		mask, err := tensor.Select(bx.mask, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		return newUnchecked(data, mask, Dims{}), nil

	case rank1 == 2 && rank2 == 1:
		// [B,M,K] @ [B,K,1] -> [B,M,1] -> [B,M]
		data, err = tensor.Squeeze(data, -1)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		colMask, err := tensor.Select(bx.mask, 2, 0) // [B, M|1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		vecMask, err := tensor.Narrow(by.mask, 1, 0, 1) // [B, 1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		mask, err := tensor.Mul(colMask, vecMask)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		return newUnchecked(data, mask, Dims{bx.dims[0]}), nil

	case rank1 == 1 && rank2 == 2:
		// [B,1,K] @ [B,K,N] -> [B,1,N] -> [B,N]
		data, err = tensor.Squeeze(data, 1)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		vecMask, err := tensor.Narrow(bx.mask, 1, 0, 1) // [B, 1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		rowMask, err := tensor.Select(by.mask, 1, 0) // [B, N|1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		mask, err := tensor.Mul(vecMask, rowMask)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		return newUnchecked(data, mask, Dims{by.dims[1]}), nil

	default:
		// [B,M,K] @ [B,K,N] -> [B,M,N]; the mask is the outer product of
		// the left column mask and the right row mask.
		colMask, err := tensor.Narrow(bx.mask, 2, 0, 1) // [B, M|1, 1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		rowMask, err := tensor.Narrow(by.mask, 1, 0, 1) // [B, 1, N|1]
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		mask, err := tensor.Mul(colMask, rowMask)
		if err != nil {
			return nil, fmt.Errorf("MatMul: %w", err)
		}
		return newUnchecked(data, mask, Dims{bx.dims[0], by.dims[1]}), nil
	}
}
