package batch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragged-ml/ragged/internal/tensor"
)

func TestSoftmaxDynamicAxis(t *testing.T) {
	// Lengths [2, 3] padded to 3, garbage in the padding.
	data := f64(t, []float64{
		0, 0, 99,
		0, 0, 0,
	}, tensor.Shape{2, 3})
	mask := f64(t, []float64{
		1, 1, 0,
		1, 1, 1,
	}, tensor.Shape{2, 3})
	b, err := New(data, mask, Dims{true})
	require.NoError(t, err)

	out, err := Softmax(b, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	third := 1.0 / 3.0
	want := []float64{0.5, 0.5, 0, third, third, third}
	for i, w := range want {
		assert.InDelta(t, w, ob.Data().Float(i), 1e-12, "position %d", i)
	}

	// The renormalized axis is fully defined afterwards: flag static,
	// mask collapsed to its leading slice.
	assert.Equal(t, Dims{false}, ob.DimFlags())
	assert.Equal(t, tensor.Shape{2, 1}, ob.Mask().Shape())
}

func TestSoftmaxScrubsEmptyExample(t *testing.T) {
	data := f64(t, []float64{5, 5, 1, 2}, tensor.Shape{2, 2})
	mask := f64(t, []float64{0, 0, 1, 1}, tensor.Shape{2, 2})
	b, err := New(data, mask, Dims{true})
	require.NoError(t, err)

	out, err := Softmax(b, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	// Example 0 has no valid positions; its row must be zeros, not NaN.
	assert.Equal(t, 0.0, ob.Data().Float(0))
	assert.Equal(t, 0.0, ob.Data().Float(1))
	assert.InDelta(t, 1.0, ob.Data().Float(2)+ob.Data().Float(3), 1e-12)
}

func TestSoftmaxBatchAxisRejected(t *testing.T) {
	b := lengths35(t, 0)

	_, err := Softmax(b, 0)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestSoftmaxStaticAxis(t *testing.T) {
	b, err := FromTensor(f64(t, []float64{1, 1, 1, 1, 1, 1}, tensor.Shape{2, 3}))
	require.NoError(t, err)

	out, err := Softmax(b, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.InDelta(t, 1.0/3.0, ob.Data().Float(0), 1e-12)
	assert.Equal(t, Dims{false}, ob.DimFlags())
}

func TestCrossEntropyMasked(t *testing.T) {
	// Uniform logits over 2 classes: every contributing position costs
	// exactly log 2.
	logits := f64(t, []float64{0, 0, 0, 0}, tensor.Shape{1, 2, 2})
	logitsMask := f64(t, []float64{1, 1}, tensor.Shape{1, 2, 1})
	input, err := New(logits, logitsMask, Dims{true, false})
	require.NoError(t, err)

	targetData, err := tensor.FromSlice([]int64{1, 0}, tensor.Shape{1, 2})
	require.NoError(t, err)
	targetMask, err := tensor.FromSlice([]int64{1, 0}, tensor.Shape{1, 2})
	require.NoError(t, err)
	target, err := New(targetData, targetMask, Dims{true})
	require.NoError(t, err)

	out, err := CrossEntropy(input, target, -1, false)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{1, 2}, ob.Data().Shape())
	assert.InDelta(t, math.Log(2), ob.Data().Float(0), 1e-12)
	assert.Equal(t, 0.0, ob.Data().Float(1)) // padded target, zero loss
	assert.Equal(t, []float64{1, 0}, values(ob.Mask()))
	assert.Equal(t, Dims{true}, ob.DimFlags())

	reduced, err := CrossEntropy(input, target, -1, true)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), TensorOf(reduced).Float(0), 1e-12)
}

func TestCrossEntropyRejectsIgnoreIndexWithMask(t *testing.T) {
	logits := f64(t, []float64{0, 0, 0, 0}, tensor.Shape{1, 2, 2})
	logitsMask := f64(t, []float64{1, 1}, tensor.Shape{1, 2, 1})
	input, err := New(logits, logitsMask, Dims{true, false})
	require.NoError(t, err)

	targetData, err := tensor.FromSlice([]int64{1, 0}, tensor.Shape{1, 2})
	require.NoError(t, err)
	targetMask, err := tensor.FromSlice([]int64{1, 1}, tensor.Shape{1, 2})
	require.NoError(t, err)
	target, err := New(targetData, targetMask, Dims{true})
	require.NoError(t, err)

	_, err = CrossEntropy(input, target, 0, false)
	assert.ErrorIs(t, err, ErrConflictingMaskUsage)
}

func TestCausalMaskUpperTriangle(t *testing.T) {
	b, err := FromTensor(f64(t, onesSlice(16), tensor.Shape{1, 4, 4}))
	require.NoError(t, err)

	out, err := CausalMask(b, 1, 2)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, Dims{true, true}, ob.DimFlags())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i <= j {
				want = 1.0
			}
			assert.Equal(t, want, ob.Mask().Float(i*4+j), "mask[%d][%d]", i, j)
		}
	}
	// Data passes through untouched.
	assert.Equal(t, onesSlice(16), values(ob.Data()))
}

func TestCausalMaskUnsupportedAxes(t *testing.T) {
	b, err := FromTensor(f64(t, onesSlice(16), tensor.Shape{1, 4, 4}))
	require.NoError(t, err)

	_, err = CausalMask(b, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestLengthsRecovery(t *testing.T) {
	b := lengths35(t, 0)

	out, err := Lengths(b, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2}, ob.Data().Shape())
	assert.Equal(t, tensor.Int64, ob.Data().DType())
	assert.Equal(t, []float64{3, 5}, values(ob.Data()))
	assert.Equal(t, Dims{}, ob.DimFlags())
}

func TestLengthsStaticAxis(t *testing.T) {
	b, err := FromTensor(f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, err)

	out, err := Lengths(b, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, values(TensorOf(out)))
}

func TestLengthsAmbiguousWithTwoDynamicAxes(t *testing.T) {
	data := f64(t, onesSlice(8), tensor.Shape{2, 2, 2})
	mask := f64(t, onesSlice(8), tensor.Shape{2, 2, 2})
	b, err := New(data, mask, Dims{true, true})
	require.NoError(t, err)

	_, err = Lengths(b, 1)
	assert.ErrorIs(t, err, ErrConflictingMaskUsage)
}

func TestSynchronizeIdempotent(t *testing.T) {
	data := f64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	mask := f64(t, []float64{1, 0}, tensor.Shape{2, 1})
	b, err := New(data, mask, Dims{false})
	require.NoError(t, err)

	once, err := Synchronize(b)
	require.NoError(t, err)
	ob := once.(*MaskedBatch)
	assert.Equal(t, []float64{1, 1}, values(ob.Mask()))
	assert.Equal(t, values(b.Data()), values(ob.Data()))

	twice, err := Synchronize(once)
	require.NoError(t, err)
	assert.Equal(t, values(ob.Mask()), values(twice.(*MaskedBatch).Mask()))
}

func TestSynchronizeRejectsDynamicAxes(t *testing.T) {
	b := lengths35(t, 0)

	_, err := Synchronize(b)
	assert.ErrorIs(t, err, ErrConflictingMaskUsage)
}

// One recurrence step: finished examples keep their accumulator while
// running ones take the new value.
func TestUpdateStepsRecurrence(t *testing.T) {
	acc := Wrap(f64(t, []float64{1, 1, 2, 2}, tensor.Shape{2, 2}))

	nextMask := f64(t, []float64{1, 0}, tensor.Shape{2, 1})
	next, err := New(f64(t, []float64{9, 9, 9, 9}, tensor.Shape{2, 2}), nextMask, Dims{false})
	require.NoError(t, err)

	out, err := Update(acc, next, nil)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, []float64{9, 9, 2, 2}, values(ob.Data()))
	assert.Equal(t, []float64{1, 0}, values(ob.Mask()))
	assert.Equal(t, Dims{false}, ob.DimFlags())
}

func TestUpdateWithExplicitMask(t *testing.T) {
	accMask := f64(t, []float64{1, 1}, tensor.Shape{2, 1})
	acc, err := New(f64(t, []float64{1, 1, 2, 2}, tensor.Shape{2, 2}), accMask, Dims{false})
	require.NoError(t, err)

	nextMask := f64(t, []float64{1, 1}, tensor.Shape{2, 1})
	next, err := New(f64(t, []float64{9, 9, 9, 9}, tensor.Shape{2, 2}), nextMask, Dims{false})
	require.NoError(t, err)

	// Update only the second example.
	cond, err := New(f64(t, []float64{0, 1}, tensor.Shape{2}), f64(t, []float64{1, 1}, tensor.Shape{2}), Dims{})
	require.NoError(t, err)

	out, err := Update(acc, next, cond)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, []float64{1, 1, 9, 9}, values(ob.Data()))
}

func onesSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
