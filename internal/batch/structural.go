package batch

import (
	"fmt"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// Index extracts a sub-batch addressed by one selector per data axis.
//
// The batch axis only accepts a full-range selector. On a dynamic axis
// an integer index must be non-negative and a slice must be simple
// (step 1, non-negative start): negative positions are relative to each
// example's true end, which differs per example. The one unambiguous
// negative form, a simple negative-stop slice, is handled by shifting
// the mask window instead: dropping the last k positions of an example
// of length L leaves positions 0..L-k-1 valid, which is exactly the
// input mask advanced by k.
func Index(x Value, sels []tensor.Sel) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.Slice(x.valueTensor(), sels)
		if err != nil {
			return nil, fmt.Errorf("Index: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if len(sels) != b.Rank() {
		return nil, fmt.Errorf("Index: %w: got %d selectors for rank %d",
			ErrAmbiguousIndex, len(sels), b.Rank())
	}
	if sels[0].Kind != tensor.SelAll {
		return nil, fmt.Errorf("Index: %w: batch axis must be selected in full", ErrAmbiguousIndex)
	}

	dataSels := make([]tensor.Sel, b.Rank())
	maskSels := make([]tensor.Sel, b.Rank())
	dataSels[0], maskSels[0] = tensor.All(), tensor.All()
	dims := make(Dims, 0, len(b.dims))

	for i := 1; i < b.Rank(); i++ {
		sel := sels[i]
		dynamic := b.dims[i-1]
		dataSels[i] = sel

		switch {
		case !dynamic:
			// Static mask axes stay at their single broadcast position.
			if sel.Kind == tensor.SelIndex {
				maskSels[i] = tensor.Pick(0)
			} else {
				maskSels[i] = tensor.All()
				dims = append(dims, false)
			}

		case sel.Kind == tensor.SelAll:
			maskSels[i] = tensor.All()
			dims = append(dims, true)

		case sel.Kind == tensor.SelIndex:
			if sel.Index < 0 {
				return nil, fmt.Errorf("Index: %w: negative index %d on dynamic dim %d",
					ErrAmbiguousIndex, sel.Index, i)
			}
			maskSels[i] = sel

		default: // SelRange
			if sel.Step > 1 || sel.Start < 0 {
				return nil, fmt.Errorf("Index: %w: only simple slices are supported on dynamic dim %d",
					ErrAmbiguousIndex, i)
			}
			if sel.HasStop && sel.Stop < 0 {
				if sel.Start != 0 {
					return nil, fmt.Errorf("Index: %w: negative stop with offset start on dynamic dim %d",
						ErrAmbiguousIndex, i)
				}
				maskSels[i] = tensor.SpanFrom(-sel.Stop)
			} else {
				maskSels[i] = sel
			}
			dims = append(dims, true)
		}
	}

	data, err := tensor.Slice(b.data, dataSels)
	if err != nil {
		return nil, fmt.Errorf("Index: %w", err)
	}
	mask, err := tensor.Slice(b.mask, maskSels)
	if err != nil {
		return nil, fmt.Errorf("Index: %w", err)
	}
	return newUnchecked(data, mask, dims), nil
}

// Split divides the batch along a non-batch axis into chunks of at most
// splitSize positions. A dynamic axis splits data and mask in lockstep;
// a static axis splits only data, with every chunk sharing the mask.
func Split(x Value, splitSize, dim int) ([]Value, error) {
	b, ok := asMasked(x)
	if !ok {
		parts, err := tensor.Split(x.valueTensor(), splitSize, dim)
		if err != nil {
			return nil, fmt.Errorf("Split: %w", err)
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Plain{Tensor: p}
		}
		return out, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim <= 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("Split: %w: cannot split dimension %d of rank %d",
			ErrUnsupportedShape, dim, b.Rank())
	}

	dataParts, err := tensor.Split(b.data, splitSize, dim)
	if err != nil {
		return nil, fmt.Errorf("Split: %w", err)
	}
	out := make([]Value, len(dataParts))
	if b.dims[dim-1] {
		maskParts, err := tensor.Split(b.mask, splitSize, dim)
		if err != nil {
			return nil, fmt.Errorf("Split: %w", err)
		}
		for i := range dataParts {
			out[i] = newUnchecked(dataParts[i], maskParts[i], b.dims.Clone())
		}
	} else {
		for i := range dataParts {
			out[i] = newUnchecked(dataParts[i], b.mask.Clone(), b.dims.Clone())
		}
	}
	return out, nil
}

// Chunk divides the batch along dim into the given number of chunks,
// the last possibly smaller.
func Chunk(x Value, chunks, dim int) ([]Value, error) {
	if chunks <= 0 {
		return nil, fmt.Errorf("Chunk: %w: chunk count must be positive, got %d",
			ErrUnsupportedShape, chunks)
	}
	size := TensorOf(x).Shape()
	d := dim
	if d < 0 {
		d += len(size)
	}
	if d < 0 || d >= len(size) {
		return nil, fmt.Errorf("Chunk: %w: dimension %d out of range for rank %d",
			ErrUnsupportedShape, dim, len(size))
	}
	return Split(x, (size[d]+chunks-1)/chunks, dim)
}

// Cat concatenates batches along one axis. All inputs must agree on dim
// flags. Along a dynamic axis the masks are concatenated too; along a
// static axis (or the batch axis) the mask rule follows the axis kind.
func Cat(xs []Value, dim int) (Value, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("Cat: %w: at least one input required", ErrUnsupportedShape)
	}

	anyMasked := false
	for _, x := range xs {
		if _, ok := asMasked(x); ok {
			anyMasked = true
			break
		}
	}
	if !anyMasked {
		tensors := make([]*tensor.RawTensor, len(xs))
		for i, x := range xs {
			tensors[i] = x.valueTensor()
		}
		out, err := tensor.Cat(tensors, dim)
		if err != nil {
			return nil, fmt.Errorf("Cat: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	batches := make([]*MaskedBatch, len(xs))
	for i, x := range xs {
		b, ok := asMasked(x)
		if !ok {
			return nil, fmt.Errorf("Cat: %w: cannot mix masked and plain inputs", ErrUnsupportedShape)
		}
		if i > 0 && !b.dims.Equal(batches[0].dims) {
			return nil, fmt.Errorf("Cat: %w: inputs disagree on dynamic dims %v vs %v",
				ErrInvalidContraction, batches[0].dims, b.dims)
		}
		batches[i] = b
	}
	first := batches[0]

	if dim < 0 {
		dim += first.Rank()
	}
	if dim < 0 || dim >= first.Rank() {
		return nil, fmt.Errorf("Cat: %w: dimension %d out of range for rank %d",
			ErrUnsupportedShape, dim, first.Rank())
	}

	dataParts := make([]*tensor.RawTensor, len(batches))
	for i, b := range batches {
		dataParts[i] = b.data
	}
	data, err := tensor.Cat(dataParts, dim)
	if err != nil {
		return nil, fmt.Errorf("Cat: %w", err)
	}

	// Batch-axis and dynamic-axis concatenation both extend the mask;
	// static axes keep the first input's broadcast mask.
	if dim == 0 || first.dims[dim-1] {
		maskParts := make([]*tensor.RawTensor, len(batches))
		for i, b := range batches {
			maskParts[i] = b.mask
		}
		mask, err := tensor.Cat(maskParts, dim)
		if err != nil {
			return nil, fmt.Errorf("Cat: %w", err)
		}
		return newUnchecked(data, mask, first.dims.Clone()), nil
	}
	return newUnchecked(data, first.mask.Clone(), first.dims.Clone()), nil
}

// sameMask reports whether two masks hold identical shapes and values.
func sameMask(a, b *tensor.RawTensor) bool {
	if !a.Shape().Equal(b.Shape()) {
		return false
	}
	for i := 0; i < a.NumElements(); i++ {
		if a.Float(i) != b.Float(i) {
			return false
		}
	}
	return true
}

// Stack joins batches along a fresh non-batch axis. The new axis is
// flagged dynamic when the first and last input masks differ; use
// StackAs to force the flag.
func Stack(xs []Value, dim int) (Value, error) {
	return stack(xs, dim, nil)
}

// StackAs is Stack with the new axis's dynamic flag set explicitly
// instead of auto-detected.
func StackAs(xs []Value, dim int, dynamic bool) (Value, error) {
	return stack(xs, dim, &dynamic)
}

func stack(xs []Value, dim int, dynamic *bool) (Value, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("Stack: %w: at least one input required", ErrUnsupportedShape)
	}

	anyMasked := false
	for _, x := range xs {
		if _, ok := asMasked(x); ok {
			anyMasked = true
			break
		}
	}
	if !anyMasked {
		tensors := make([]*tensor.RawTensor, len(xs))
		for i, x := range xs {
			t, err := tensor.Unsqueeze(x.valueTensor(), dim)
			if err != nil {
				return nil, fmt.Errorf("Stack: %w", err)
			}
			tensors[i] = t
		}
		out, err := tensor.Cat(tensors, dim)
		if err != nil {
			return nil, fmt.Errorf("Stack: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	batches := make([]*MaskedBatch, len(xs))
	for i, x := range xs {
		b, ok := asMasked(x)
		if !ok {
			return nil, fmt.Errorf("Stack: %w: cannot mix masked and plain inputs", ErrUnsupportedShape)
		}
		if i > 0 && !b.dims.Equal(batches[0].dims) {
			return nil, fmt.Errorf("Stack: %w: inputs disagree on dynamic dims %v vs %v",
				ErrInvalidContraction, batches[0].dims, b.dims)
		}
		batches[i] = b
	}
	first := batches[0]

	if dim < 0 {
		dim += first.Rank() + 1
	}
	if dim <= 0 || dim > first.Rank() {
		return nil, fmt.Errorf("Stack: %w: cannot introduce dimension %d for rank %d",
			ErrUnsupportedShape, dim, first.Rank())
	}

	newDynamic := !sameMask(first.mask, batches[len(batches)-1].mask)
	if dynamic != nil {
		newDynamic = *dynamic
	}

	dataParts := make([]*tensor.RawTensor, len(batches))
	for i, b := range batches {
		t, err := tensor.Unsqueeze(b.data, dim)
		if err != nil {
			return nil, fmt.Errorf("Stack: %w", err)
		}
		dataParts[i] = t
	}
	data, err := tensor.Cat(dataParts, dim)
	if err != nil {
		return nil, fmt.Errorf("Stack: %w", err)
	}

	var mask *tensor.RawTensor
	if newDynamic {
		maskParts := make([]*tensor.RawTensor, len(batches))
		for i, b := range batches {
			t, err := tensor.Unsqueeze(b.mask, dim)
			if err != nil {
				return nil, fmt.Errorf("Stack: %w", err)
			}
			maskParts[i] = t
		}
		if mask, err = tensor.Cat(maskParts, dim); err != nil {
			return nil, fmt.Errorf("Stack: %w", err)
		}
	} else {
		if mask, err = tensor.Unsqueeze(first.mask, dim); err != nil {
			return nil, fmt.Errorf("Stack: %w", err)
		}
	}

	dims := make(Dims, 0, len(first.dims)+1)
	dims = append(dims, first.dims[:dim-1]...)
	dims = append(dims, newDynamic)
	dims = append(dims, first.dims[dim-1:]...)
	return newUnchecked(data, mask, dims), nil
}

// Unbind removes one non-batch axis, returning a value per position
// along it. On a dynamic axis each output gets its own mask slice; on a
// static axis the size-1 mask axis is squeezed away and shared.
func Unbind(x Value, dim int) ([]Value, error) {
	b, ok := asMasked(x)
	if !ok {
		t := x.valueTensor()
		d, err := normalizedDim(dim, t.Rank())
		if err != nil {
			return nil, fmt.Errorf("Unbind: %w", err)
		}
		out := make([]Value, t.Shape()[d])
		for i := range out {
			s, err := tensor.Select(t, d, i)
			if err != nil {
				return nil, fmt.Errorf("Unbind: %w", err)
			}
			out[i] = Plain{Tensor: s}
		}
		return out, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim <= 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("Unbind: %w: cannot unbind dimension %d of rank %d",
			ErrUnsupportedShape, dim, b.Rank())
	}

	dynamic := b.dims[dim-1]
	dims := make(Dims, 0, len(b.dims)-1)
	dims = append(dims, b.dims[:dim-1]...)
	dims = append(dims, b.dims[dim:]...)

	var sharedMask *tensor.RawTensor
	if !dynamic {
		var err error
		if sharedMask, err = tensor.Squeeze(b.mask, dim); err != nil {
			return nil, fmt.Errorf("Unbind: %w", err)
		}
	}

	out := make([]Value, b.data.Shape()[dim])
	for i := range out {
		data, err := tensor.Select(b.data, dim, i)
		if err != nil {
			return nil, fmt.Errorf("Unbind: %w", err)
		}
		mask := sharedMask
		if dynamic {
			if mask, err = tensor.Select(b.mask, dim, i); err != nil {
				return nil, fmt.Errorf("Unbind: %w", err)
			}
		} else if i > 0 {
			mask = sharedMask.Clone()
		}
		out[i] = newUnchecked(data, mask, dims.Clone())
	}
	return out, nil
}

// View reshapes to the target extents. The leading entry must be 1, -1,
// or the batch size and always resolves to the batch size. A -1 on a
// non-batch position keeps that position's current data extent and
// flags the output axis dynamic; every explicit extent yields a static
// axis. Raggedness that cannot survive the mask reshape (a dynamic
// input axis folded into an explicit extent) is rejected.
func View(x Value, shape tensor.Shape) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		resolved, err := inferViewShape(x.valueTensor(), shape)
		if err != nil {
			return nil, fmt.Errorf("View: %w", err)
		}
		out, err := tensor.Reshape(x.valueTensor(), resolved)
		if err != nil {
			return nil, fmt.Errorf("View: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if len(shape) < 1 {
		return nil, fmt.Errorf("View: %w: empty target shape", ErrUnsupportedShape)
	}
	if shape[0] != 1 && shape[0] != -1 && shape[0] != b.BatchSize() {
		return nil, fmt.Errorf("View: %w: leading extent must be 1, -1, or the batch size, got %d",
			ErrUnsupportedShape, shape[0])
	}

	dataShape := make(tensor.Shape, len(shape))
	maskShape := make(tensor.Shape, len(shape))
	dims := make(Dims, len(shape)-1)
	dataShape[0], maskShape[0] = b.BatchSize(), b.BatchSize()
	for i := 1; i < len(shape); i++ {
		if shape[i] == -1 {
			if i >= b.Rank() {
				return nil, fmt.Errorf("View: %w: -1 at position %d exceeds input rank %d",
					ErrUnsupportedShape, i, b.Rank())
			}
			dataShape[i] = b.data.Shape()[i]
			maskShape[i] = b.data.Shape()[i]
			dims[i-1] = true
		} else {
			dataShape[i] = shape[i]
			maskShape[i] = 1
		}
	}

	data, err := tensor.Reshape(b.data, dataShape)
	if err != nil {
		return nil, fmt.Errorf("View: %w", err)
	}
	mask, err := tensor.Reshape(b.mask, maskShape)
	if err != nil {
		return nil, fmt.Errorf("View: %w: raggedness does not survive the reshape: %v",
			ErrInvalidContraction, err)
	}
	return newUnchecked(data, mask, dims), nil
}

// inferViewShape resolves at most one -1 extent against the element
// count for the plain-tensor path.
func inferViewShape(t *tensor.RawTensor, shape tensor.Shape) (tensor.Shape, error) {
	resolved := shape.Clone()
	wild, known := -1, 1
	for i, s := range resolved {
		if s == -1 {
			if wild >= 0 {
				return nil, fmt.Errorf("more than one -1 in shape %v", shape)
			}
			wild = i
			continue
		}
		known *= s
	}
	if wild >= 0 {
		if known == 0 || t.NumElements()%known != 0 {
			return nil, fmt.Errorf("cannot infer -1 in shape %v for %d elements", shape, t.NumElements())
		}
		resolved[wild] = t.NumElements() / known
	}
	return resolved, nil
}

// Transpose swaps two non-batch axes of data and mask alike; the dim
// flags swap with them.
func Transpose(x Value, dim1, dim2 int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.Transpose(x.valueTensor(), dim1, dim2)
		if err != nil {
			return nil, fmt.Errorf("Transpose: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if dim1 < 0 {
		dim1 += b.Rank()
	}
	if dim2 < 0 {
		dim2 += b.Rank()
	}
	if dim1 <= 0 || dim1 >= b.Rank() || dim2 <= 0 || dim2 >= b.Rank() {
		return nil, fmt.Errorf("Transpose: %w: cannot transpose dims %d and %d of rank %d",
			ErrUnsupportedShape, dim1, dim2, b.Rank())
	}
	data, err := tensor.Transpose(b.data, dim1, dim2)
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	mask, err := tensor.Transpose(b.mask, dim1, dim2)
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	dims := b.dims.Clone()
	dims[dim1-1], dims[dim2-1] = dims[dim2-1], dims[dim1-1]
	return newUnchecked(data, mask, dims), nil
}

// Permute reorders the axes; the batch axis must stay in place. The
// mask and dim flags are permuted alongside the data.
func Permute(x Value, axes []int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		out, err := tensor.Permute(x.valueTensor(), axes)
		if err != nil {
			return nil, fmt.Errorf("Permute: %w", err)
		}
		return Plain{Tensor: out}, nil
	}
	if len(axes) != b.Rank() || axes[0] != 0 {
		return nil, fmt.Errorf("Permute: %w: permutation %v must keep the batch axis first",
			ErrAmbiguousIndex, axes)
	}
	data, err := tensor.Permute(b.data, axes)
	if err != nil {
		return nil, fmt.Errorf("Permute: %w", err)
	}
	mask, err := tensor.Permute(b.mask, axes)
	if err != nil {
		return nil, fmt.Errorf("Permute: %w", err)
	}
	dims := make(Dims, len(b.dims))
	for i := 1; i < len(axes); i++ {
		dims[i-1] = b.dims[axes[i]-1]
	}
	return newUnchecked(data, mask, dims), nil
}

// SplitDim factors one static non-batch axis of extent outer*inner into
// two adjacent static axes [outer, inner]. Splitting a dynamic axis is
// rejected: there is no way to decide which sub-axis carries the
// raggedness.
func SplitDim(x Value, dim, inner int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		t := x.valueTensor()
		d, err := normalizedDim(dim, t.Rank())
		if err != nil {
			return nil, fmt.Errorf("SplitDim: %w", err)
		}
		shape, err := splitAxisShape(t.Shape(), d, inner)
		if err != nil {
			return nil, fmt.Errorf("SplitDim: %w", err)
		}
		out, err := tensor.Reshape(t, shape)
		if err != nil {
			return nil, fmt.Errorf("SplitDim: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim <= 0 || dim >= b.Rank() {
		return nil, fmt.Errorf("SplitDim: %w: cannot split dimension %d of rank %d",
			ErrUnsupportedShape, dim, b.Rank())
	}
	if b.dims[dim-1] {
		return nil, fmt.Errorf("SplitDim: %w: cannot split dynamic dim %d", ErrInvalidContraction, dim)
	}

	dataShape, err := splitAxisShape(b.data.Shape(), dim, inner)
	if err != nil {
		return nil, fmt.Errorf("SplitDim: %w", err)
	}
	data, err := tensor.Reshape(b.data, dataShape)
	if err != nil {
		return nil, fmt.Errorf("SplitDim: %w", err)
	}
	// A static axis carries a size-1 mask axis; splitting it just adds
	// another size-1 axis.
	mask, err := tensor.Unsqueeze(b.mask, dim)
	if err != nil {
		return nil, fmt.Errorf("SplitDim: %w", err)
	}
	dims := make(Dims, 0, len(b.dims)+1)
	dims = append(dims, b.dims[:dim-1]...)
	dims = append(dims, false, false)
	dims = append(dims, b.dims[dim:]...)
	return newUnchecked(data, mask, dims), nil
}

// splitAxisShape factors shape[dim] into [extent/inner, inner].
func splitAxisShape(shape tensor.Shape, dim, inner int) (tensor.Shape, error) {
	if inner <= 0 || shape[dim]%inner != 0 {
		return nil, fmt.Errorf("extent %d does not factor by %d", shape[dim], inner)
	}
	out := make(tensor.Shape, 0, len(shape)+1)
	out = append(out, shape[:dim]...)
	out = append(out, shape[dim]/inner, inner)
	out = append(out, shape[dim+1:]...)
	return out, nil
}

// JoinDims merges axis dim1 with axis dim2, permuting dim2 next to dim1
// first when they are not adjacent. Two static axes merge into one
// static axis with the shared size-1 mask axis squeezed away. When
// either axis is dynamic, or when dim1 is the batch axis, the mask is
// first expanded to the full extent of both axes so its values survive
// the merge; the merged axis is then dynamic (a merged batch axis stays
// untracked as always).
func JoinDims(x Value, dim1, dim2 int) (Value, error) {
	rank := TensorOf(x).Rank()
	if dim1 < 0 {
		dim1 += rank
	}
	if dim2 < 0 {
		dim2 += rank
	}
	if dim1 == dim2 || dim1 < 0 || dim2 < 0 || dim1 >= rank || dim2 >= rank {
		return nil, fmt.Errorf("JoinDims: %w: cannot join dims %d and %d of rank %d",
			ErrUnsupportedShape, dim1, dim2, rank)
	}
	if dim2 != dim1+1 {
		order := make([]int, 0, rank)
		for n := 0; n < rank; n++ {
			if n != dim2 {
				order = append(order, n)
			}
		}
		at := dim1 + 1
		if dim2 < dim1 {
			at = dim1
		}
		order = append(order[:at], append([]int{dim2}, order[at:]...)...)
		permuted, err := Permute(x, order)
		if err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
		x = permuted
		if dim2 < dim1 {
			dim1--
		}
	}
	return joinAdjacent(x, dim1)
}

// joinAdjacent merges axis dim with axis dim+1.
func joinAdjacent(x Value, dim int) (Value, error) {
	b, ok := asMasked(x)
	if !ok {
		t := x.valueTensor()
		d, err := normalizedDim(dim, t.Rank())
		if err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
		if d+1 >= t.Rank() {
			return nil, fmt.Errorf("JoinDims: dimension %d has no right neighbor in rank %d", d, t.Rank())
		}
		out, err := tensor.Reshape(t, joinAxisShape(t.Shape(), d))
		if err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
		return Plain{Tensor: out}, nil
	}

	if dim < 0 {
		dim += b.Rank()
	}
	if dim < 0 || dim+1 >= b.Rank() {
		return nil, fmt.Errorf("JoinDims: %w: cannot join dims %d and %d of rank %d",
			ErrUnsupportedShape, dim, dim+1, b.Rank())
	}

	dataShape := b.data.Shape()
	data, err := tensor.Reshape(b.data, joinAxisShape(dataShape, dim))
	if err != nil {
		return nil, fmt.Errorf("JoinDims: %w", err)
	}

	batchJoin := dim == 0
	rightDynamic := b.dims[dim]
	leftDynamic := !batchJoin && b.dims[dim-1]

	var mask *tensor.RawTensor
	if batchJoin || leftDynamic || rightDynamic {
		// The size-1 broadcast on either joined axis cannot survive a
		// reshape against a full-size data axis; materialize both first.
		fullShape := b.mask.Shape().Clone()
		fullShape[dim] = dataShape[dim]
		fullShape[dim+1] = dataShape[dim+1]
		if mask, err = tensor.Expand(b.mask, fullShape); err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
		if mask, err = tensor.Reshape(mask, joinAxisShape(fullShape, dim)); err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
	} else {
		if mask, err = tensor.Squeeze(b.mask, dim); err != nil {
			return nil, fmt.Errorf("JoinDims: %w", err)
		}
	}

	var dims Dims
	if batchJoin {
		dims = b.dims[1:].Clone()
	} else {
		dims = make(Dims, 0, len(b.dims)-1)
		dims = append(dims, b.dims[:dim-1]...)
		dims = append(dims, leftDynamic || rightDynamic)
		dims = append(dims, b.dims[dim+1:]...)
	}
	return newUnchecked(data, mask, dims), nil
}

// joinAxisShape merges shape[dim] and shape[dim+1].
func joinAxisShape(shape tensor.Shape, dim int) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	out = append(out, shape[dim]*shape[dim+1])
	out = append(out, shape[dim+2:]...)
	return out
}

// normalizedDim resolves a possibly negative axis for plain tensors.
func normalizedDim(dim, rank int) (int, error) {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return 0, fmt.Errorf("dimension %d out of range for rank %d", dim, rank)
	}
	return dim, nil
}
