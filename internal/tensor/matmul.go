package tensor

import "fmt"

// BatchMatMul performs batched matrix multiplication:
// [B, M, K] @ [B, K, N] -> [B, M, N]. Higher ranks multiply the leading
// dimensions into the batch, which must match between operands.
func BatchMatMul(a, b *RawTensor) (*RawTensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("BatchMatMul: input tensor is nil")
	}
	if a.DType() != b.DType() {
		return nil, fmt.Errorf("BatchMatMul: dtype mismatch: %s vs %s", a.DType(), b.DType())
	}
	if !a.DType().IsFloat() {
		return nil, fmt.Errorf("BatchMatMul: unsupported dtype %s", a.DType())
	}

	aShape, bShape := a.Shape(), b.Shape()
	ndim := len(aShape)
	if ndim < 3 {
		return nil, fmt.Errorf("BatchMatMul: inputs must be at least 3D, got %dD", ndim)
	}
	if len(bShape) != ndim {
		return nil, fmt.Errorf("BatchMatMul: dimension mismatch, got %dD and %dD", ndim, len(bShape))
	}
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			return nil, fmt.Errorf("BatchMatMul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i])
		}
	}

	m := aShape[ndim-2]
	k := aShape[ndim-1]
	n := bShape[ndim-1]
	if k != bShape[ndim-2] {
		return nil, fmt.Errorf("BatchMatMul: inner dimension mismatch: %d vs %d", k, bShape[ndim-2])
	}

	batchSize := 1
	for i := 0; i < ndim-2; i++ {
		batchSize *= aShape[i]
	}

	outShape := make(Shape, ndim)
	copy(outShape, aShape[:ndim-2])
	outShape[ndim-2] = m
	outShape[ndim-1] = n
	result, err := NewRaw(outShape, a.DType())
	if err != nil {
		return nil, fmt.Errorf("BatchMatMul: %w", err)
	}

	switch a.DType() {
	case Float32:
		batchMatmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), batchSize, m, k, n)
	case Float64:
		batchMatmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), batchSize, m, k, n)
	}
	return result, nil
}

// batchMatmul multiplies batchSize independent [M,K] x [K,N] matrix pairs.
func batchMatmul[T float32 | float64](c, a, b []T, batchSize, m, k, n int) {
	for batch := 0; batch < batchSize; batch++ {
		aOffset := batch * m * k
		bOffset := batch * k * n
		cOffset := batch * m * n

		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum T
				for kIdx := 0; kIdx < k; kIdx++ {
					sum += a[aOffset+i*k+kIdx] * b[bOffset+kIdx*n+j]
				}
				c[cOffset+i*n+j] = sum
			}
		}
	}
}

// MatVec applies a weight matrix to the trailing axis: for input
// [..., In] and weight [Out, In] the result is [..., Out]. An optional
// bias of shape [Out] is added. This is the dense kernel behind linear
// layers.
func MatVec(x, weight, bias *RawTensor) (*RawTensor, error) {
	if x == nil || weight == nil {
		return nil, fmt.Errorf("MatVec: input tensor is nil")
	}
	if x.DType() != weight.DType() || !x.DType().IsFloat() {
		return nil, fmt.Errorf("MatVec: unsupported dtypes %s and %s", x.DType(), weight.DType())
	}
	if weight.Rank() != 2 {
		return nil, fmt.Errorf("MatVec: weight must be 2D [out, in], got %v", weight.Shape())
	}
	out, in := weight.Shape()[0], weight.Shape()[1]
	if x.Rank() < 1 || x.Shape()[x.Rank()-1] != in {
		return nil, fmt.Errorf("MatVec: trailing dimension %v does not match weight input size %d", x.Shape(), in)
	}
	if bias != nil && !(bias.Rank() == 1 && bias.Shape()[0] == out) {
		return nil, fmt.Errorf("MatVec: bias must be 1D [out], got %v", bias.Shape())
	}

	outShape := x.Shape().Clone()
	outShape[len(outShape)-1] = out
	result, err := NewRaw(outShape, x.DType())
	if err != nil {
		return nil, fmt.Errorf("MatVec: %w", err)
	}

	rows := x.NumElements() / in
	for r := 0; r < rows; r++ {
		for o := 0; o < out; o++ {
			sum := 0.0
			for i := 0; i < in; i++ {
				sum += x.Float(r*in+i) * weight.Float(o*in+i)
			}
			if bias != nil {
				sum += bias.Float(o)
			}
			result.SetFloat(r*out+o, sum)
		}
	}
	return result, nil
}

// EmbeddingLookup gathers rows of weight [V, D] by integer indices,
// producing a tensor of shape indices.Shape() + [D].
func EmbeddingLookup(weight, indices *RawTensor) (*RawTensor, error) {
	if weight == nil || indices == nil {
		return nil, fmt.Errorf("EmbeddingLookup: input tensor is nil")
	}
	if weight.Rank() != 2 {
		return nil, fmt.Errorf("EmbeddingLookup: weight must be 2D [vocab, dim], got %v", weight.Shape())
	}
	if indices.DType() != Int32 && indices.DType() != Int64 {
		return nil, fmt.Errorf("EmbeddingLookup: indices must be integer, got %s", indices.DType())
	}
	vocab, dim := weight.Shape()[0], weight.Shape()[1]

	outShape := append(indices.Shape().Clone(), dim)
	result, err := NewRaw(outShape, weight.DType())
	if err != nil {
		return nil, fmt.Errorf("EmbeddingLookup: %w", err)
	}

	for i := 0; i < indices.NumElements(); i++ {
		idx := int(indices.Float(i))
		if idx < 0 || idx >= vocab {
			return nil, fmt.Errorf("EmbeddingLookup: index %d out of range [0, %d)", idx, vocab)
		}
		for d := 0; d < dim; d++ {
			result.SetFloat(i*dim+d, weight.Float(idx*dim+d))
		}
	}
	return result, nil
}
