package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragged-ml/ragged/internal/tensor"
)

func TestIndexBatchAxisMustBeFull(t *testing.T) {
	b := lengths35(t, 0)

	_, err := Index(b, []tensor.Sel{tensor.Pick(0), tensor.All()})
	assert.ErrorIs(t, err, ErrAmbiguousIndex)
}

func TestIndexNegativeOnDynamicAxis(t *testing.T) {
	b := lengths35(t, 0)

	_, err := Index(b, []tensor.Sel{tensor.All(), tensor.Pick(-1)})
	assert.ErrorIs(t, err, ErrAmbiguousIndex)

	_, err = Index(b, []tensor.Sel{tensor.All(), tensor.Strided(0, 4, 2)})
	assert.ErrorIs(t, err, ErrAmbiguousIndex)
}

// Dropping the last position of each example: the data loses its final
// column, and the mask shifts so each example keeps one fewer valid
// position.
func TestIndexNegativeStopShiftsMask(t *testing.T) {
	b := lengths35(t, 0)

	out, err := Index(b, []tensor.Sel{tensor.All(), tensor.SpanTo(-1)})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 4}, ob.Data().Shape())
	assert.Equal(t, []float64{1, 2, 3, 0, 4, 5, 6, 7}, values(ob.Data()))
	assert.Equal(t, []float64{1, 1, 0, 0, 1, 1, 1, 1}, values(ob.Mask()))
	assert.Equal(t, Dims{true}, ob.DimFlags())
}

func TestIndexIntoDynamicAxis(t *testing.T) {
	b := lengths35(t, 0)

	out, err := Index(b, []tensor.Sel{tensor.All(), tensor.Pick(3)})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2}, ob.Data().Shape())
	assert.Equal(t, []float64{0, 7}, values(ob.Data()))
	assert.Equal(t, []float64{0, 1}, values(ob.Mask()))
	assert.Equal(t, Dims{}, ob.DimFlags())
}

func TestIndexStaticAxisKeepsBroadcastMask(t *testing.T) {
	b, err := FromTensor(f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, err)

	out, err := Index(b, []tensor.Sel{tensor.All(), tensor.Pick(2)})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, []float64{3, 6}, values(ob.Data()))
	assert.Equal(t, tensor.Shape{2}, ob.Mask().Shape())
	assert.Equal(t, Dims{}, ob.DimFlags())
}

func TestSplitDynamicAxis(t *testing.T) {
	b := lengths35(t, 0)

	parts, err := Split(b, 3, 1)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	first := parts[0].(*MaskedBatch)
	second := parts[1].(*MaskedBatch)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, values(first.Data()))
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, values(first.Mask()))
	assert.Equal(t, []float64{0, 0, 7, 8}, values(second.Data()))
	assert.Equal(t, []float64{0, 0, 1, 1}, values(second.Mask()))
}

func TestSplitStaticAxisSharesMask(t *testing.T) {
	b, err := FromTensor(f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, err)

	parts, err := Split(b, 2, 1)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	for _, p := range parts {
		pb := p.(*MaskedBatch)
		assert.Equal(t, tensor.Shape{2, 1}, pb.Mask().Shape())
		assert.Equal(t, Dims{false}, pb.DimFlags())
	}
}

func TestSplitBatchAxisRejected(t *testing.T) {
	b := lengths35(t, 0)

	_, err := Split(b, 1, 0)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestChunk(t *testing.T) {
	b := lengths35(t, 0)

	parts, err := Chunk(b, 2, 1)
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestCatDynamicAxis(t *testing.T) {
	a := lengths35(t, 0)
	b := lengths35(t, 0)

	out, err := Cat([]Value{a, b}, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 10}, ob.Data().Shape())
	assert.Equal(t, tensor.Shape{2, 10}, ob.Mask().Shape())
	assert.Equal(t, Dims{true}, ob.DimFlags())
	// Per-example validity is the concatenation of both inputs'.
	assert.Equal(t,
		[]float64{1, 1, 1, 0, 0, 1, 1, 1, 0, 0},
		values(ob.Mask())[:10])
}

func TestCatDimsMismatchRejected(t *testing.T) {
	a := lengths35(t, 0)
	st, err := FromTensor(f64(t, make([]float64, 10), tensor.Shape{2, 5}))
	require.NoError(t, err)

	_, err = Cat([]Value{a, st}, 1)
	assert.ErrorIs(t, err, ErrInvalidContraction)
}

func TestStackAutoDetectsDynamicAxis(t *testing.T) {
	a := lengths35(t, 0)

	// Same masks: the new axis is static.
	same, err := Stack([]Value{a, lengths35(t, 9)}, 1)
	require.NoError(t, err)
	sb := same.(*MaskedBatch)
	assert.Equal(t, Dims{false, true}, sb.DimFlags())
	assert.Equal(t, tensor.Shape{2, 1, 5}, sb.Mask().Shape())

	// Different masks: the new axis is dynamic and masks concatenate.
	shorter, err := New(
		f64(t, []float64{1, 2, 0, 0, 0, 4, 5, 0, 0, 0}, tensor.Shape{2, 5}),
		f64(t, []float64{1, 1, 0, 0, 0, 1, 1, 0, 0, 0}, tensor.Shape{2, 5}),
		Dims{true})
	require.NoError(t, err)

	diff, err := Stack([]Value{a, shorter}, 1)
	require.NoError(t, err)
	db := diff.(*MaskedBatch)
	assert.Equal(t, Dims{true, true}, db.DimFlags())
	assert.Equal(t, tensor.Shape{2, 2, 5}, db.Mask().Shape())
}

func TestStackExplicitFlag(t *testing.T) {
	a := lengths35(t, 0)
	b := lengths35(t, 0)

	out, err := StackAs([]Value{a, b}, 1, true)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)
	assert.Equal(t, Dims{true, true}, ob.DimFlags())
}

func TestUnbindInvertsStack(t *testing.T) {
	a := lengths35(t, 0)
	b := lengths35(t, 0)

	stacked, err := Stack([]Value{a, b}, 1)
	require.NoError(t, err)

	parts, err := Unbind(stacked, 1)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	pb := parts[0].(*MaskedBatch)
	assert.Equal(t, values(a.Data()), values(pb.Data()))
	assert.Equal(t, values(a.Mask()), values(pb.Mask()))
	assert.Equal(t, Dims{true}, pb.DimFlags())
}

// Joining two adjacent static axes and splitting them back must
// reproduce data, mask, and flags exactly.
func TestJoinSplitRoundTrip(t *testing.T) {
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i)
	}
	b, err := FromTensor(f64(t, data, tensor.Shape{2, 2, 3}))
	require.NoError(t, err)

	joined, err := JoinDims(b, 1, 2)
	require.NoError(t, err)
	jb := joined.(*MaskedBatch)
	assert.Equal(t, tensor.Shape{2, 6}, jb.Data().Shape())
	assert.Equal(t, tensor.Shape{2, 1}, jb.Mask().Shape())
	assert.Equal(t, Dims{false}, jb.DimFlags())

	split, err := SplitDim(joined, 1, 3)
	require.NoError(t, err)
	sb := split.(*MaskedBatch)

	if diff := cmp.Diff(values(b.Data()), values(sb.Data())); diff != "" {
		t.Errorf("data round-trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(values(b.Mask()), values(sb.Mask())); diff != "" {
		t.Errorf("mask round-trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, b.DimFlags(), sb.DimFlags())
}

func TestSplitDimRejectsDynamicAxis(t *testing.T) {
	b := lengths35(t, 0)

	_, err := SplitDim(b, 1, 5)
	assert.ErrorIs(t, err, ErrInvalidContraction)
}

func TestJoinDimsExpandsDynamicMask(t *testing.T) {
	// [2, 2, 2] with a dynamic middle axis and static trailing axis.
	data := f64(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	mask := f64(t, []float64{1, 0, 1, 1}, tensor.Shape{2, 2, 1})
	b, err := New(data, mask, Dims{true, false})
	require.NoError(t, err)

	out, err := JoinDims(b, 1, 2)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 4}, ob.Data().Shape())
	assert.Equal(t, tensor.Shape{2, 4}, ob.Mask().Shape())
	assert.Equal(t, []float64{1, 1, 0, 0, 1, 1, 1, 1}, values(ob.Mask()))
	assert.Equal(t, Dims{true}, ob.DimFlags())
}

// Joining non-adjacent axes permutes the second next to the first.
func TestJoinDimsNonAdjacent(t *testing.T) {
	data := make([]float64, 24)
	for i := range data {
		data[i] = float64(i)
	}
	b, err := FromTensor(f64(t, data, tensor.Shape{2, 2, 3, 2}))
	require.NoError(t, err)

	out, err := JoinDims(b, 1, 3)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 4, 3}, ob.Data().Shape())
	assert.Equal(t, Dims{false, false}, ob.DimFlags())
	// Row-major merge of axes 1 and 3: element [b,i,k,j] lands at
	// [b, i*2+k, j].
	assert.Equal(t, b.Data().At(0, 1, 2, 1), ob.Data().At(0, 3, 2))

	_, err = JoinDims(b, 1, 1)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestJoinDimsWithBatchAxis(t *testing.T) {
	b, err := FromTensor(f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, err)

	out, err := JoinDims(b, 0, 1)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{6}, ob.Data().Shape())
	assert.Equal(t, tensor.Shape{6}, ob.Mask().Shape())
	assert.Equal(t, Dims{}, ob.DimFlags())
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, values(ob.Mask()))
}

func TestViewFoldingDynamicAxisRejected(t *testing.T) {
	b := lengths35(t, 0)
	_, err := View(b, tensor.Shape{2, 5, 1})
	assert.ErrorIs(t, err, ErrInvalidContraction)

	st, err := FromTensor(f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}))
	require.NoError(t, err)
	out, err := View(st, tensor.Shape{2, 3, 1})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)
	assert.Equal(t, tensor.Shape{2, 3, 1}, ob.Data().Shape())
	assert.Equal(t, Dims{false, false}, ob.DimFlags())
}

// A -1 entry keeps the axis's extent and its raggedness.
func TestViewKeepsDynamicAxisThroughWildcard(t *testing.T) {
	b := lengths35(t, 0)

	out, err := View(b, tensor.Shape{-1, -1, 1})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, tensor.Shape{2, 5, 1}, ob.Data().Shape())
	assert.Equal(t, tensor.Shape{2, 5, 1}, ob.Mask().Shape())
	assert.Equal(t, Dims{true, false}, ob.DimFlags())
	assert.Equal(t, values(b.Mask()), values(ob.Mask()))

	_, err = View(b, tensor.Shape{3, 5})
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestTransposeSwapsFlags(t *testing.T) {
	data := f64(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	mask := f64(t, []float64{1, 0, 1, 1}, tensor.Shape{2, 2, 1})
	b, err := New(data, mask, Dims{true, false})
	require.NoError(t, err)

	out, err := Transpose(b, 1, 2)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, Dims{false, true}, ob.DimFlags())
	assert.Equal(t, tensor.Shape{2, 1, 2}, ob.Mask().Shape())
	assert.Equal(t, []float64{1, 3, 2, 4, 5, 7, 6, 8}, values(ob.Data()))

	_, err = Transpose(b, 0, 1)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestPermuteKeepsBatchFirst(t *testing.T) {
	data := f64(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	mask := f64(t, []float64{1, 0, 1, 1}, tensor.Shape{2, 2, 1})
	b, err := New(data, mask, Dims{true, false})
	require.NoError(t, err)

	out, err := Permute(b, []int{0, 2, 1})
	require.NoError(t, err)
	ob := out.(*MaskedBatch)
	assert.Equal(t, Dims{false, true}, ob.DimFlags())

	_, err = Permute(b, []int{1, 0, 2})
	assert.ErrorIs(t, err, ErrAmbiguousIndex)
}
