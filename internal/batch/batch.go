// Package batch implements the masked batch engine: a padded dense
// tensor, a {0,1} validity mask, and per-axis dynamic flags, plus the
// algebra that keeps all three consistent through elementwise,
// reduction, contraction, and structural operations.
//
// Every operation is a pure function: inputs are never mutated and each
// call returns a freshly allocated value. Operations on valid positions
// produce exactly the result the same operation would produce on each
// example's unpadded data in isolation.
package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// Dims flags, for each non-batch axis, whether that axis's true extent
// varies per example ("dynamic") or is uniform across the batch
// ("static"). The batch axis itself is never tracked.
type Dims []bool

// Any reports whether any axis is dynamic.
func (d Dims) Any() bool {
	for _, b := range d {
		if b {
			return true
		}
	}
	return false
}

// Count returns the number of dynamic axes.
func (d Dims) Count() int {
	n := 0
	for _, b := range d {
		if b {
			n++
		}
	}
	return n
}

// Equal checks if two dim flag sequences are identical.
func (d Dims) Equal(other Dims) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the flags.
func (d Dims) Clone() Dims {
	clone := make(Dims, len(d))
	copy(clone, d)
	return clone
}

// MaskedBatch is a batch of variable-extent examples padded to a common
// dense shape.
//
//   - data: rank R >= 1, axis 0 is the batch axis. Padded positions hold
//     unconstrained values (garbage is legal).
//   - mask: same rank and dtype as data, values exactly 0 or 1. Extent B
//     on axis 0, the data extent on dynamic axes, and 1 (broadcast) on
//     static axes.
//   - dims: R-1 flags, one per non-batch axis.
type MaskedBatch struct {
	data *tensor.RawTensor
	mask *tensor.RawTensor
	dims Dims
}

// maskShapeFor computes the mask shape the invariants require for a
// given data shape and dim flags.
func maskShapeFor(dataShape tensor.Shape, dims Dims) tensor.Shape {
	shape := make(tensor.Shape, len(dataShape))
	shape[0] = dataShape[0]
	for i := 1; i < len(dataShape); i++ {
		if dims[i-1] {
			shape[i] = dataShape[i]
		} else {
			shape[i] = 1
		}
	}
	return shape
}

// New constructs a MaskedBatch, validating every core invariant.
func New(data, mask *tensor.RawTensor, dims Dims) (*MaskedBatch, error) {
	if data == nil || mask == nil {
		return nil, fmt.Errorf("%w: data and mask must be non-nil", ErrInvalidBatch)
	}
	if data.Rank() < 1 {
		return nil, fmt.Errorf("%w: data must have a batch dimension", ErrInvalidBatch)
	}
	if len(dims) != data.Rank()-1 {
		return nil, fmt.Errorf("%w: got %d dim flags for rank %d", ErrInvalidBatch, len(dims), data.Rank())
	}
	if mask.DType() != data.DType() {
		return nil, fmt.Errorf("%w: mask dtype %s does not match data dtype %s",
			ErrInvalidBatch, mask.DType(), data.DType())
	}
	want := maskShapeFor(data.Shape(), dims)
	if !mask.Shape().Equal(want) {
		return nil, fmt.Errorf("%w: mask shape %v, want %v for data %v and dims %v",
			ErrInvalidBatch, mask.Shape(), want, data.Shape(), dims)
	}
	for i := 0; i < mask.NumElements(); i++ {
		if v := mask.Float(i); v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: mask value %v at %d is not 0 or 1", ErrInvalidBatch, v, i)
		}
	}
	return &MaskedBatch{data: data, mask: mask, dims: dims.Clone()}, nil
}

// newUnchecked wraps already-consistent parts without re-validating.
// Every operation in this package maintains the invariants, so internal
// results skip the O(n) mask scan.
func newUnchecked(data, mask *tensor.RawTensor, dims Dims) *MaskedBatch {
	return &MaskedBatch{data: data, mask: mask, dims: dims}
}

// FromTensor wraps a fully valid tensor: every non-batch axis static,
// all-ones broadcast mask.
func FromTensor(t *tensor.RawTensor) (*MaskedBatch, error) {
	if t == nil || t.Rank() < 1 {
		return nil, fmt.Errorf("%w: input must have a batch dimension", ErrInvalidBatch)
	}
	dims := make(Dims, t.Rank()-1)
	mask, err := tensor.Ones(maskShapeFor(t.Shape(), dims), t.DType())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return newUnchecked(t.Clone(), mask, dims), nil
}

// PadSequences builds a MaskedBatch from ragged rows: data is padded
// with zeros to [B, maxLen], the mask marks the true prefix of each row,
// and the sequence axis is flagged dynamic.
func PadSequences[T tensor.DType](rows [][]T) (*MaskedBatch, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: need at least one sequence", ErrInvalidBatch)
	}
	maxLen := 0
	for _, row := range rows {
		if len(row) > maxLen {
			maxLen = len(row)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("%w: all sequences are empty", ErrInvalidBatch)
	}

	flat := make([]T, len(rows)*maxLen)
	maskFlat := make([]T, len(rows)*maxLen)
	for i, row := range rows {
		copy(flat[i*maxLen:], row)
		for j := range row {
			maskFlat[i*maxLen+j] = 1
		}
	}

	data, err := tensor.FromSlice(flat, tensor.Shape{len(rows), maxLen})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	mask, err := tensor.FromSlice(maskFlat, tensor.Shape{len(rows), maxLen})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return newUnchecked(data, mask, Dims{true}), nil
}

// Data returns the underlying padded data tensor. Callers must not
// mutate it.
func (b *MaskedBatch) Data() *tensor.RawTensor {
	return b.data
}

// Mask returns the validity mask. Callers must not mutate it.
func (b *MaskedBatch) Mask() *tensor.RawTensor {
	return b.mask
}

// DimFlags returns the per-axis dynamic flags (a copy).
func (b *MaskedBatch) DimFlags() Dims {
	return b.dims.Clone()
}

// Rank returns the number of data dimensions, including the batch axis.
func (b *MaskedBatch) Rank() int {
	return b.data.Rank()
}

// BatchSize returns the number of examples.
func (b *MaskedBatch) BatchSize() int {
	return b.data.Shape()[0]
}

// MaxSize returns the allocated (padded) extent along dim.
func (b *MaskedBatch) MaxSize(dim int) int {
	if dim < 0 {
		dim += b.Rank()
	}
	return b.data.Shape()[dim]
}

// String returns a human-readable summary.
func (b *MaskedBatch) String() string {
	return fmt.Sprintf("MaskedBatch[%s]%v dims=%v", b.data.DType(), b.data.Shape(), b.dims)
}

// maskedData returns data with padded positions zeroed
// (data * mask, broadcast).
func (b *MaskedBatch) maskedData() (*tensor.RawTensor, error) {
	return tensor.Mul(b.data, b.mask)
}
