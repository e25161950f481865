package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// Softmax normalizes along dim. On a dynamic axis only valid positions
// participate: padding is zeroed before and after the exponentials and
// the result is renormalized by the valid-position sum. An example with
// zero valid positions produces NaN under that division; those are
// scrubbed to zero. After renormalization every position along the axis
// holds a well-defined value, so the axis comes out static with the
// mask collapsed to its leading slice.
func Softmax(x Value, dim int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.Softmax(x.valueTensor(), dim)
		if err != nil {
			return nil, fmt.Errorf("Softmax: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim <= 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("Softmax: %w: cannot softmax over dimension %d of rank %d",
			ErrUnsupportedShape, dim, b.Rank())
	}

	if !b.dims[dim-1] {
		data, err := tensor.Softmax(b.data, dim)
		if err != nil {
			return nil, fmt.Errorf("Softmax: %w", err)
		}
		return newUnchecked(data, b.mask.Clone(), b.dims.Clone()), nil
	}

	zeroed, err := b.maskedData()
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	data, err := tensor.Softmax(zeroed, dim)
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	if data, err = tensor.Mul(data, b.mask); err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	sums, err := tensor.SumDim(data, dim, true)
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	if data, err = tensor.Div(data, sums); err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	for i := 0; i < data.NumElements(); i++ {
		if v := data.Float(i); v != v {
			data.SetFloat(i, 0)
		}
	}

	mask, err := tensor.Narrow(b.mask, dim, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("Softmax: %w", err)
	}
	dims := b.dims.Clone()
	dims[dim-1] = false
	return newUnchecked(data, mask, dims), nil
}

// CrossEntropy computes the negative log-likelihood of integer targets
// under logits. Masked inputs take logits [B, T, V] and targets [B, T]:
// padded targets are shifted to the ignored class by adding mask-1, so
// they contribute zero loss. Supplying ignoreIndex alongside masked
// targets double-encodes validity and is rejected. With reduce the mean
// over contributing positions is returned as a plain scalar; otherwise
// the per-position loss carries the product of the logits' and targets'
// masks.
func CrossEntropy(input, target Value, ignoreIndex int, reduce bool) (Value, error) {
	bi, inMasked := asMasked(input)
	bt, tgtMasked := asMasked(target)

	if !inMasked && !tgtMasked {
		logits, targets := input.valueTensor(), target.valueTensor()
		if logits.Rank() < 2 {
			return nil, fmt.Errorf("CrossEntropy: %w: logits rank %d", ErrUnsupportedShape, logits.Rank())
		}
		loss, err := nllLoss(logits, targets, ignoreIndex)
		if err != nil {
			return nil, fmt.Errorf("CrossEntropy: %w", err)
		}
		if reduce {
			out, err := meanIgnoring(loss, targets, ignoreIndex)
			if err != nil {
				return nil, fmt.Errorf("CrossEntropy: %w", err)
			}
			return Plain{Tensor: out}, nil
		}
		return Plain{Tensor: loss}, nil
	}

	if !inMasked || !tgtMasked {
		return nil, fmt.Errorf("CrossEntropy: %w: logits and targets must both carry masks",
			ErrConflictingMaskUsage)
	}
	if ignoreIndex != -1 {
		return nil, fmt.Errorf("CrossEntropy: %w: cannot set an ignore index on masked targets",
			ErrConflictingMaskUsage)
	}
	if bi.Rank() != 3 || bt.Rank() != 2 {
		return nil, fmt.Errorf("CrossEntropy: %w: want logits [batch, steps, classes] and targets [batch, steps], got ranks %d and %d",
			ErrUnsupportedShape, bi.Rank(), bt.Rank())
	}

	// Shift padded targets to -1 (target + mask - 1) so they contribute
	// zero loss.
	shifted, err := tensor.Add(bt.data, bt.mask)
	if err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}
	if shifted, err = tensor.AddScalar(shifted, -1); err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}

	loss, err := nllLoss(bi.data, shifted, -1)
	if err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}

	if reduce {
		out, err := meanIgnoring(loss, shifted, -1)
		if err != nil {
			return nil, fmt.Errorf("CrossEntropy: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	logitsMask, err := tensor.Squeeze(bi.mask, -1)
	if err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}
	targetMask, err := tensor.Cast(bt.mask, loss.DType())
	if err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}
	mask, err := tensor.Mul(logitsMask, targetMask)
	if err != nil {
		return nil, fmt.Errorf("CrossEntropy: %w", err)
	}
	return newUnchecked(loss, mask, bt.dims.Clone()), nil
}

// CausalMask restricts attention-style squares so the inDim position
// never exceeds the outDim position. Both participating axes become
// dynamic: a triangular mask varies by position even when the extents
// were uniform before. Only the [batch, in, out] and [batch, out, in]
// layouts (inDim/outDim 1 and 2) are supported.
func CausalMask(x Value, inDim, outDim int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		return plainCausalMask(x.valueTensor(), inDim, outDim)
	}
	if b.Rank() != 3 {
		return nil, fmt.Errorf("CausalMask: %w: want rank 3, got %d", ErrUnsupportedShape, b.Rank())
	}

	rows, cols := b.data.Shape()[1], b.data.Shape()[2]
	var tri *tensor.RawTensor
	var err error
	switch {
	case inDim == 1 && outDim == 2:
		tri, err = tensor.TriangularOnes(rows, cols, b.mask.DType(), true)
	case inDim == 2 && outDim == 1:
		tri, err = tensor.TriangularOnes(rows, cols, b.mask.DType(), false)
	default:
		return nil, fmt.Errorf("CausalMask: %w: unsupported axis pair (%d, %d)",
			ErrUnsupportedShape, inDim, outDim)
	}
	if err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	if tri, err = tensor.Unsqueeze(tri, 0); err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	mask, err := tensor.Mul(b.mask, tri)
	if err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	return newUnchecked(b.data.Clone(), mask, Dims{true, true}), nil
}

// plainCausalMask applies the additive form on a bare tensor: excluded
// positions get a large value subtracted so a following softmax drives
// them to zero.
func plainCausalMask(t *tensor.RawTensor, inDim, outDim int) (Value, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("CausalMask: %w: want rank 3, got %d", ErrUnsupportedShape, t.Rank())
	}
	rows, cols := t.Shape()[1], t.Shape()[2]
	var keep *tensor.RawTensor
	var err error
	switch {
	case inDim == 1 && outDim == 2:
		keep, err = tensor.TriangularOnes(rows, cols, t.DType(), true)
	case inDim == 2 && outDim == 1:
		keep, err = tensor.TriangularOnes(rows, cols, t.DType(), false)
	default:
		return nil, fmt.Errorf("CausalMask: %w: unsupported axis pair (%d, %d)",
			ErrUnsupportedShape, inDim, outDim)
	}
	if err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	// 1 - keep marks the excluded triangle.
	excluded, err := tensor.MulScalar(keep, -1)
	if err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	if excluded, err = tensor.AddScalar(excluded, 1); err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	if excluded, err = tensor.MulScalar(excluded, 1e10); err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	if excluded, err = tensor.Unsqueeze(excluded, 0); err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	out, err := tensor.Sub(t, excluded)
	if err != nil {
		return nil, fmt.Errorf("CausalMask: %w", err)
	}
	return Plain{Tensor: out}, nil
}

// Lengths recovers each example's true extent along dim by summing the
// mask there. A static axis (or the batch axis) has a single known
// extent, returned as a one-element plain tensor. More than one dynamic
// axis makes the count ambiguous and is rejected.
func Lengths(x Value, dim int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		t := x.valueTensor()
		d, err := normalizedDim(dim, t.Rank())
		if err != nil {
			return nil, fmt.Errorf("Lengths: %w", err)
		}
		out, err := tensor.FromSlice([]int64{int64(t.Shape()[d])}, tensor.Shape{1})
		if err != nil {
			return nil, fmt.Errorf("Lengths: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim < 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("Lengths: %w: dimension %d out of range for rank %d",
			ErrUnsupportedShape, dim, b.Rank())
	}
	if dim == 0 || !b.dims[dim-1] {
		out, err := tensor.FromSlice([]int64{int64(b.data.Shape()[dim])}, tensor.Shape{1})
		if err != nil {
			return nil, fmt.Errorf("Lengths: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	for i, dynamic := range b.dims {
		if dynamic && i != dim-1 {
			return nil, fmt.Errorf("Lengths: %w: cannot recover lengths with two or more dynamic dims",
				ErrConflictingMaskUsage)
		}
	}

	summed, err := tensor.SumDim(b.mask, dim, false)
	if err != nil {
		return nil, fmt.Errorf("Lengths: %w", err)
	}
	if summed, err = tensor.Reshape(summed, tensor.Shape{b.BatchSize()}); err != nil {
		return nil, fmt.Errorf("Lengths: %w", err)
	}
	data, err := tensor.Cast(summed, tensor.Int64)
	if err != nil {
		return nil, fmt.Errorf("Lengths: %w", err)
	}
	mask, err := tensor.Ones(tensor.Shape{b.BatchSize()}, tensor.Int64)
	if err != nil {
		return nil, fmt.Errorf("Lengths: %w", err)
	}
	return newUnchecked(data, mask, Dims{}), nil
}

// Synchronize seals a batch once every example is known fully valid:
// it asserts no axis is dynamic and forces the mask to all ones. The
// data is untouched, so synchronizing an already-valid batch is a
// no-op and the operation is idempotent.
func Synchronize(x Value) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		return x, nil
	}
	if b.dims.Any() {
		return nil, fmt.Errorf("Synchronize: %w: cannot synchronize batch with dynamic dims %v",
			ErrConflictingMaskUsage, b.dims)
	}
	mask, err := tensor.Ones(b.mask.Shape(), b.mask.DType())
	if err != nil {
		return nil, fmt.Errorf("Synchronize: %w", err)
	}
	return newUnchecked(b.data.Clone(), mask, b.dims.Clone()), nil
}

// Update advances an accumulator one recurrence step: positions where
// the update mask is set take the new value, all others keep the old
// one. When updateMask is nil the new value's own validity mask drives
// the selection, which is the common "finished examples stop changing"
// stepping pattern. The result adopts the new value's dim flags and the
// update mask as its validity mask.
func Update(acc, next Value, updateMask Value) (Value, error) {
	_, accMasked := asMasked(acc)
	bn, nextMasked := asMasked(next)
	if !accMasked && !nextMasked {
		return next, nil
	}
	if !nextMasked {
		return nil, fmt.Errorf("Update: %w: new value must carry a mask", ErrConflictingMaskUsage)
	}

	var um *tensor.RawTensor
	if updateMask == nil {
		um = bn.mask.Clone()
	} else {
		bu, ok := asMasked(updateMask)
		if !ok {
			um = updateMask.valueTensor().Clone()
		} else {
			masked, err := bu.maskedData()
			if err != nil {
				return nil, fmt.Errorf("Update: %w", err)
			}
			um = masked
		}
	}
	for um.Rank() < bn.Rank() {
		var err error
		if um, err = tensor.Unsqueeze(um, -1); err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
	}

	data, err := tensor.Where(um, bn.data, acc.valueTensor())
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	mask, err := tensor.Cast(um, data.DType())
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return newUnchecked(data, mask, bn.dims.Clone()), nil
}

// nllLoss computes the per-position negative log-likelihood of integer
// targets under logits whose trailing axis indexes classes. Targets
// equal to ignoreIndex contribute exactly zero.
func nllLoss(logits, targets *tensor.RawTensor, ignoreIndex int) (*tensor.RawTensor, error) {
	classes := logits.Shape()[logits.Rank()-1]
	if logits.NumElements()/classes != targets.NumElements() {
		return nil, fmt.Errorf("logits %v do not cover targets %v", logits.Shape(), targets.Shape())
	}
	lsm, err := tensor.LogSoftmax(logits, -1)
	if err != nil {
		return nil, err
	}
	loss, err := tensor.NewRaw(targets.Shape(), logits.DType())
	if err != nil {
		return nil, err
	}
	for i := 0; i < targets.NumElements(); i++ {
		t := int(targets.Float(i))
		if t == ignoreIndex {
			continue
		}
		if t < 0 || t >= classes {
			return nil, fmt.Errorf("target class %d out of range [0, %d)", t, classes)
		}
		loss.SetFloat(i, -lsm.Float(i*classes+t))
	}
	return loss, nil
}

// meanIgnoring averages loss over the positions whose target is not the
// ignore index, returning a one-element tensor.
func meanIgnoring(loss, targets *tensor.RawTensor, ignoreIndex int) (*tensor.RawTensor, error) {
	total, count := 0.0, 0
	for i := 0; i < targets.NumElements(); i++ {
		if int(targets.Float(i)) == ignoreIndex {
			continue
		}
		total += loss.Float(i)
		count++
	}
	if count > 0 {
		total /= float64(count)
	}
	out, err := tensor.NewRaw(tensor.Shape{1}, loss.DType())
	if err != nil {
		return nil, err
	}
	out.SetFloat(0, total)
	return out, nil
}
