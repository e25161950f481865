package tensor

import "fmt"

// SelKind discriminates the ways one dimension can be addressed.
type SelKind int

// Dimension selector kinds.
const (
	SelAll   SelKind = iota // full range
	SelIndex                // single integer index (collapses the dim)
	SelRange                // [start:stop:step] range (keeps the dim)
)

// Sel addresses a single dimension in a multi-dimensional slice.
// Negative Index/Start/Stop values count from the end of the dimension.
type Sel struct {
	Kind    SelKind
	Index   int
	Start   int
	Stop    int
	HasStop bool
	Step    int // 0 means 1
}

// All selects the full range of a dimension.
func All() Sel { return Sel{Kind: SelAll} }

// Pick selects a single index, collapsing the dimension.
func Pick(i int) Sel { return Sel{Kind: SelIndex, Index: i} }

// Span selects the half-open range [start, stop).
func Span(start, stop int) Sel {
	return Sel{Kind: SelRange, Start: start, Stop: stop, HasStop: true}
}

// SpanFrom selects the range [start, end-of-dim).
func SpanFrom(start int) Sel { return Sel{Kind: SelRange, Start: start} }

// SpanTo selects the range [0, stop).
func SpanTo(stop int) Sel { return Sel{Kind: SelRange, Stop: stop, HasStop: true} }

// Strided selects the range [start, stop) with the given step.
func Strided(start, stop, step int) Sel {
	return Sel{Kind: SelRange, Start: start, Stop: stop, HasStop: true, Step: step}
}

// IsSimple reports whether the selector is a plain [..:stop] slice with
// no start offset and no explicit step.
func (s Sel) IsSimple() bool {
	return s.Kind == SelRange && s.Start == 0 && (s.Step == 0 || s.Step == 1)
}

// bounds resolves the selector against a dimension of the given size,
// returning the normalized start, step, and element count.
func (s Sel) bounds(size int) (start, step, count int, err error) {
	switch s.Kind {
	case SelAll:
		return 0, 1, size, nil
	case SelIndex:
		idx := s.Index
		if idx < 0 {
			idx += size
		}
		if idx < 0 || idx >= size {
			return 0, 0, 0, fmt.Errorf("index %d out of bounds for size %d", s.Index, size)
		}
		return idx, 1, 1, nil
	case SelRange:
		step = s.Step
		if step == 0 {
			step = 1
		}
		if step < 0 {
			return 0, 0, 0, fmt.Errorf("negative step %d not supported", step)
		}
		start = s.Start
		if start < 0 {
			start += size
		}
		stop := size
		if s.HasStop {
			stop = s.Stop
			if stop < 0 {
				stop += size
			}
		}
		if start < 0 || start > size || stop < start || stop > size {
			return 0, 0, 0, fmt.Errorf("range [%d:%d] out of bounds for size %d", s.Start, s.Stop, size)
		}
		return start, step, (stop - start + step - 1) / step, nil
	default:
		return 0, 0, 0, fmt.Errorf("unknown selector kind %d", s.Kind)
	}
}

// Slice extracts a sub-tensor addressed by one selector per dimension.
// Integer selectors collapse their dimension.
func Slice(x *RawTensor, sels []Sel) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Slice: input tensor is nil")
	}
	if len(sels) != x.Rank() {
		return nil, fmt.Errorf("Slice: got %d selectors for rank %d", len(sels), x.Rank())
	}

	starts := make([]int, x.Rank())
	steps := make([]int, x.Rank())
	counts := make([]int, x.Rank())
	outShape := make(Shape, 0, x.Rank())
	for i, sel := range sels {
		start, step, count, err := sel.bounds(x.Shape()[i])
		if err != nil {
			return nil, fmt.Errorf("Slice: dimension %d: %w", i, err)
		}
		starts[i], steps[i], counts[i] = start, step, count
		if sel.Kind != SelIndex {
			outShape = append(outShape, count)
		}
	}

	result, err := NewRaw(outShape, x.DType())
	if err != nil {
		return nil, fmt.Errorf("Slice: %w", err)
	}

	inStrides := x.Strides()
	coords := make([]int, x.Rank())
	for out := 0; out < result.NumElements(); out++ {
		// Decompose out into per-dimension counters (integer selectors
		// contribute a single fixed position).
		rem := out
		for i := x.Rank() - 1; i >= 0; i-- {
			coords[i] = rem % counts[i]
			rem /= counts[i]
		}
		in := 0
		for i := 0; i < x.Rank(); i++ {
			in += (starts[i] + coords[i]*steps[i]) * inStrides[i]
		}
		result.SetFloat(out, x.Float(in))
	}
	return result, nil
}

// Narrow extracts the range [start, start+length) along one dimension.
func Narrow(x *RawTensor, dim, start, length int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Narrow: input tensor is nil")
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Narrow: %w", err)
	}
	sels := make([]Sel, x.Rank())
	for i := range sels {
		sels[i] = All()
	}
	sels[dim] = Span(start, start+length)
	out, err := Slice(x, sels)
	if err != nil {
		return nil, fmt.Errorf("Narrow: %w", err)
	}
	return out, nil
}

// Select extracts the sub-tensor at index along dim, collapsing dim.
func Select(x *RawTensor, dim, index int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Select: input tensor is nil")
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Select: %w", err)
	}
	sels := make([]Sel, x.Rank())
	for i := range sels {
		sels[i] = All()
	}
	sels[dim] = Pick(index)
	out, err := Slice(x, sels)
	if err != nil {
		return nil, fmt.Errorf("Select: %w", err)
	}
	return out, nil
}

// Cat concatenates tensors along one dimension. All inputs must agree on
// dtype and on every dimension except the concatenated one.
func Cat(tensors []*RawTensor, dim int) (*RawTensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Cat: at least one tensor required")
	}
	first := tensors[0]
	dim, err := normalizeDim(dim, first.Rank())
	if err != nil {
		return nil, fmt.Errorf("Cat: %w", err)
	}

	total := 0
	for _, t := range tensors {
		if t.DType() != first.DType() {
			return nil, fmt.Errorf("Cat: dtype mismatch: %s vs %s", first.DType(), t.DType())
		}
		if t.Rank() != first.Rank() {
			return nil, fmt.Errorf("Cat: rank mismatch: %d vs %d", first.Rank(), t.Rank())
		}
		for i := range t.Shape() {
			if i != dim && t.Shape()[i] != first.Shape()[i] {
				return nil, fmt.Errorf("Cat: shape mismatch at dim %d: %v vs %v", i, first.Shape(), t.Shape())
			}
		}
		total += t.Shape()[dim]
	}

	outShape := first.Shape().Clone()
	outShape[dim] = total
	result, err := NewRaw(outShape, first.DType())
	if err != nil {
		return nil, fmt.Errorf("Cat: %w", err)
	}

	outerSize, _, innerSize := axisSpans(outShape, dim)
	offset := 0
	for _, t := range tensors {
		axisSize := t.Shape()[dim]
		for outer := 0; outer < outerSize; outer++ {
			for a := 0; a < axisSize; a++ {
				for inner := 0; inner < innerSize; inner++ {
					src := outer*axisSize*innerSize + a*innerSize + inner
					dst := outer*total*innerSize + (offset+a)*innerSize + inner
					result.SetFloat(dst, t.Float(src))
				}
			}
		}
		offset += axisSize
	}
	return result, nil
}

// Split divides the tensor along one dimension into chunks of splitSize
// elements; the final chunk may be smaller.
func Split(x *RawTensor, splitSize, dim int) ([]*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Split: input tensor is nil")
	}
	if splitSize <= 0 {
		return nil, fmt.Errorf("Split: split size must be positive, got %d", splitSize)
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Split: %w", err)
	}

	size := x.Shape()[dim]
	parts := make([]*RawTensor, 0, (size+splitSize-1)/splitSize)
	for start := 0; start < size; start += splitSize {
		length := min(splitSize, size-start)
		part, err := Narrow(x, dim, start, length)
		if err != nil {
			return nil, fmt.Errorf("Split: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// Permute reorders the dimensions according to axes, which must be a
// permutation of [0, rank).
func Permute(x *RawTensor, axes []int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Permute: input tensor is nil")
	}
	if len(axes) != x.Rank() {
		return nil, fmt.Errorf("Permute: got %d axes for rank %d", len(axes), x.Rank())
	}
	seen := make([]bool, x.Rank())
	outShape := make(Shape, x.Rank())
	for i, a := range axes {
		if a < 0 || a >= x.Rank() || seen[a] {
			return nil, fmt.Errorf("Permute: invalid permutation %v", axes)
		}
		seen[a] = true
		outShape[i] = x.Shape()[a]
	}

	result, err := NewRaw(outShape, x.DType())
	if err != nil {
		return nil, fmt.Errorf("Permute: %w", err)
	}

	outStrides := outShape.ComputeStrides()
	inStrides := x.Strides()
	for out := 0; out < result.NumElements(); out++ {
		rem := out
		in := 0
		for i := 0; i < x.Rank(); i++ {
			coord := rem / outStrides[i]
			rem %= outStrides[i]
			in += coord * inStrides[axes[i]]
		}
		result.SetFloat(out, x.Float(in))
	}
	return result, nil
}

// Transpose swaps two dimensions.
func Transpose(x *RawTensor, dim1, dim2 int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Transpose: input tensor is nil")
	}
	d1, err := normalizeDim(dim1, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	d2, err := normalizeDim(dim2, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	axes := make([]int, x.Rank())
	for i := range axes {
		axes[i] = i
	}
	axes[d1], axes[d2] = d2, d1
	return Permute(x, axes)
}

// Reshape returns a tensor with the same elements under a new shape.
// The element count must be preserved.
func Reshape(x *RawTensor, newShape Shape) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Reshape: input tensor is nil")
	}
	if err := newShape.Validate(); err != nil {
		return nil, fmt.Errorf("Reshape: %w", err)
	}
	if newShape.NumElements() != x.NumElements() {
		return nil, fmt.Errorf("Reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			x.Shape(), x.NumElements(), newShape, newShape.NumElements())
	}
	return x.Clone().withShape(newShape), nil
}

// Expand materializes a broadcast of x to the given shape. Dimensions of
// size 1 are repeated; missing leading dimensions are added.
func Expand(x *RawTensor, shape Shape) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Expand: input tensor is nil")
	}
	broadcast, err := BroadcastShapes(x.Shape(), shape)
	if err != nil || !broadcast.Equal(shape) {
		return nil, fmt.Errorf("Expand: cannot expand %v to %v", x.Shape(), shape)
	}
	result, err := NewRaw(shape, x.DType())
	if err != nil {
		return nil, fmt.Errorf("Expand: %w", err)
	}
	outStrides := shape.ComputeStrides()
	inStrides := broadcastStrides(x.Shape(), shape)
	for i := 0; i < result.NumElements(); i++ {
		result.SetFloat(i, x.Float(flatIndex(i, outStrides, inStrides)))
	}
	return result, nil
}

// Unsqueeze inserts a dimension of size 1 at the given position.
func Unsqueeze(x *RawTensor, dim int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Unsqueeze: input tensor is nil")
	}
	if dim < 0 {
		dim += x.Rank() + 1
	}
	if dim < 0 || dim > x.Rank() {
		return nil, fmt.Errorf("Unsqueeze: dimension %d out of range for rank %d", dim, x.Rank())
	}
	newShape := make(Shape, 0, x.Rank()+1)
	newShape = append(newShape, x.Shape()[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, x.Shape()[dim:]...)
	return x.Clone().withShape(newShape), nil
}

// Squeeze removes a dimension of size 1 at the given position.
func Squeeze(x *RawTensor, dim int) (*RawTensor, error) {
	if x == nil {
		return nil, fmt.Errorf("Squeeze: input tensor is nil")
	}
	dim, err := normalizeDim(dim, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Squeeze: %w", err)
	}
	if x.Shape()[dim] != 1 {
		return nil, fmt.Errorf("Squeeze: dimension %d has size %d, not 1", dim, x.Shape()[dim])
	}
	newShape := make(Shape, 0, x.Rank()-1)
	newShape = append(newShape, x.Shape()[:dim]...)
	newShape = append(newShape, x.Shape()[dim+1:]...)
	return x.Clone().withShape(newShape), nil
}
