package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragged-ml/ragged/internal/tensor"
)

func TestLinearStaticTrailingAxis(t *testing.T) {
	data := f64(t, []float64{
		1, 2, 3, 0, 0, 0,
		4, 5, 6, 7, 8, 9,
	}, tensor.Shape{2, 2, 3})
	mask := f64(t, []float64{1, 0, 1, 1}, tensor.Shape{2, 2, 1})
	b, err := New(data, mask, Dims{true, false})
	require.NoError(t, err)

	weight := f64(t, []float64{1, 1, 1}, tensor.Shape{1, 3})
	out, err := Linear(b, weight, nil)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 2, 1}, ob.Data().Shape())
	assert.Equal(t, []float64{6, 0, 15, 24}, values(ob.Data()))
	assert.Equal(t, values(b.Mask()), values(ob.Mask()))
	assert.Equal(t, Dims{true, false}, ob.DimFlags())
}

func TestLinearRejectsDynamicTrailingAxis(t *testing.T) {
	b := lengths35(t, 0)
	weight := f64(t, []float64{1, 1, 1, 1, 1}, tensor.Shape{1, 5})

	_, err := Linear(b, weight, nil)
	assert.ErrorIs(t, err, ErrInvalidContraction)
}

// A rank-1 batch has only the batch axis; letting it reach the dense
// kernel would contract across examples and orphan the mask.
func TestLinearRejectsRank1Batch(t *testing.T) {
	data := f64(t, []float64{1, 2, 3}, tensor.Shape{3})
	mask := f64(t, []float64{1, 1, 0}, tensor.Shape{3})
	b, err := New(data, mask, Dims{})
	require.NoError(t, err)

	weight := f64(t, []float64{1, 1, 1, 2, 2, 2}, tensor.Shape{2, 3})
	_, err = Linear(b, weight, nil)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestEmbeddingAddsStaticAxis(t *testing.T) {
	b, err := PadSequences([][]int64{{0, 1}, {2}})
	require.NoError(t, err)
	weight := f64(t, []float64{0, 0, 1, 1, 2, 2}, tensor.Shape{3, 2})

	out, err := Embedding(b, weight)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 2, 2}, ob.Data().Shape())
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2, 0, 0}, values(ob.Data()))
	assert.Equal(t, Dims{true, false}, ob.DimFlags())
	assert.Equal(t, tensor.Shape{2, 2, 1}, ob.Mask().Shape())
	assert.Equal(t, tensor.Float64, ob.Mask().DType())
	assert.Equal(t, []float64{1, 1, 1, 0}, values(ob.Mask()))
}

func TestMatMulVectors(t *testing.T) {
	data := f64(t, []float64{
		1, 1, 9,
		1, 1, 1,
	}, tensor.Shape{2, 3})
	mask := f64(t, []float64{
		1, 1, 0,
		1, 1, 1,
	}, tensor.Shape{2, 3})
	x, err := New(data, mask, Dims{true})
	require.NoError(t, err)
	y, err := New(data.Clone(), mask.Clone(), Dims{true})
	require.NoError(t, err)

	out, err := MatMul(x, y)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	// The garbage 9 in the padding must not reach the dot product.
	assert.Equal(t, tensor.Shape{2}, ob.Data().Shape())
	assert.Equal(t, []float64{2, 3}, values(ob.Data()))
	assert.Equal(t, Dims{}, ob.DimFlags())
	assert.Equal(t, []float64{1, 1}, values(ob.Mask()))
}

func TestMatMulMatrices(t *testing.T) {
	xData := f64(t, []float64{1, 2, 9, 9}, tensor.Shape{1, 2, 2})
	xMask := f64(t, []float64{1, 0}, tensor.Shape{1, 2, 1})
	x, err := New(xData, xMask, Dims{true, false})
	require.NoError(t, err)

	eye := f64(t, []float64{1, 0, 0, 1}, tensor.Shape{1, 2, 2})
	eyeMask := f64(t, []float64{1}, tensor.Shape{1, 1, 1})
	y, err := New(eye, eyeMask, Dims{false, false})
	require.NoError(t, err)

	out, err := MatMul(x, y)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{1, 2, 2}, ob.Data().Shape())
	assert.Equal(t, []float64{1, 2, 0, 0}, values(ob.Data()))
	assert.Equal(t, Dims{true, false}, ob.DimFlags())
	assert.Equal(t, tensor.Shape{1, 2, 1}, ob.Mask().Shape())
	assert.Equal(t, []float64{1, 0}, values(ob.Mask()))
}

func TestMatMulMixedOperandsRejected(t *testing.T) {
	b := lengths35(t, 0)
	plain := Wrap(f64(t, []float64{1, 2, 3, 4, 5}, tensor.Shape{5}))

	_, err := MatMul(b, plain)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestMatMulHighRankRejected(t *testing.T) {
	data := f64(t, make([]float64, 16), tensor.Shape{2, 2, 2, 2})
	mask := f64(t, []float64{1, 1}, tensor.Shape{2, 1, 1, 1})
	x, err := New(data, mask, Dims{false, false, false})
	require.NoError(t, err)

	_, err = MatMul(x, x)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}
