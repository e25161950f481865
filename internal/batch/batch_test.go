package batch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragged-ml/ragged/internal/tensor"
)

// Test helpers

func f64(t *testing.T, data []float64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return x
}

func values(x *tensor.RawTensor) []float64 {
	out := make([]float64, x.NumElements())
	for i := range out {
		out[i] = x.Float(i)
	}
	return out
}

// lengths35 builds the canonical two-sequence batch of lengths 3 and 5
// padded to 5, with the padding holding the given garbage value.
func lengths35(t *testing.T, garbage float64) *MaskedBatch {
	t.Helper()
	data := f64(t, []float64{
		1, 2, 3, garbage, garbage,
		4, 5, 6, 7, 8,
	}, tensor.Shape{2, 5})
	mask := f64(t, []float64{
		1, 1, 1, 0, 0,
		1, 1, 1, 1, 1,
	}, tensor.Shape{2, 5})
	b, err := New(data, mask, Dims{true})
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	data := f64(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	mask := f64(t, []float64{1, 1, 1, 0}, tensor.Shape{2, 2})

	_, err := New(data, mask, Dims{true})
	require.NoError(t, err)

	// Wrong number of dim flags.
	_, err = New(data, mask, Dims{true, false})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	// Static axis must keep a size-1 mask.
	_, err = New(data, mask, Dims{false})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	// Mask values must be exactly 0 or 1.
	badMask := f64(t, []float64{1, 0.5, 1, 0}, tensor.Shape{2, 2})
	_, err = New(data, badMask, Dims{true})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	// Mask dtype must match data dtype.
	intMask, err := tensor.FromSlice([]int64{1, 1, 1, 0}, tensor.Shape{2, 2})
	require.NoError(t, err)
	_, err = New(data, intMask, Dims{true})
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestPadSequences(t *testing.T) {
	b, err := PadSequences([][]float64{{1, 2, 3}, {4, 5, 6, 7, 8}})
	require.NoError(t, err)

	assert.Equal(t, 2, b.BatchSize())
	assert.Equal(t, 5, b.MaxSize(1))
	assert.Equal(t, Dims{true}, b.DimFlags())
	assert.Equal(t, []float64{1, 2, 3, 0, 0, 4, 5, 6, 7, 8}, values(b.Data()))
	assert.Equal(t, []float64{1, 1, 1, 0, 0, 1, 1, 1, 1, 1}, values(b.Mask()))

	_, err = PadSequences([][]float64{})
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestFromTensor(t *testing.T) {
	x := f64(t, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b, err := FromTensor(x)
	require.NoError(t, err)

	assert.Equal(t, Dims{false}, b.DimFlags())
	assert.Equal(t, tensor.Shape{2, 1}, b.Mask().Shape())
	assert.Equal(t, []float64{1, 1}, values(b.Mask()))
}

// Unary ops must transform only the data; the padding stays garbage and
// the metadata is untouched.
func TestUnaryKeepsMask(t *testing.T) {
	b := lengths35(t, -7)

	out, err := Neg(b)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, Dims{true}, ob.DimFlags())
	assert.Equal(t, values(b.Mask()), values(ob.Mask()))
	assert.Equal(t, -1.0, ob.Data().Float(0))
	assert.Equal(t, 7.0, ob.Data().Float(3)) // garbage negated, still padding
}

// Each valid position of a batched op must match the same op applied to
// the example's unpadded data in isolation.
func TestMaskingEquivalenceElementwise(t *testing.T) {
	b := lengths35(t, 99)
	rows := [][]float64{{1, 2, 3}, {4, 5, 6, 7, 8}}

	out, err := Exp(b)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	for i, row := range rows {
		for j, v := range row {
			got := ob.Data().Float(i*5 + j)
			assert.InDelta(t, math.Exp(v), got, 1e-12, "example %d position %d", i, j)
		}
	}
}

func TestBinaryBothMasked(t *testing.T) {
	x := lengths35(t, 0)
	yMask := f64(t, []float64{
		1, 1, 1, 1, 0,
		1, 1, 0, 0, 0,
	}, tensor.Shape{2, 5})
	y, err := New(f64(t, []float64{
		10, 10, 10, 10, 10,
		10, 10, 10, 10, 10,
	}, tensor.Shape{2, 5}), yMask, Dims{true})
	require.NoError(t, err)

	out, err := Add(x, y)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	// Masks combine by product, flags by OR.
	assert.Equal(t, []float64{1, 1, 1, 0, 0, 1, 1, 0, 0, 0}, values(ob.Mask()))
	assert.Equal(t, Dims{true}, ob.DimFlags())
	assert.Equal(t, 11.0, ob.Data().Float(0))
}

func TestBinaryMaskedWithStatic(t *testing.T) {
	x := lengths35(t, 0)
	y, err := FromTensor(f64(t, []float64{
		10, 10, 10, 10, 10,
		20, 20, 20, 20, 20,
	}, tensor.Shape{2, 5}))
	require.NoError(t, err)

	out, err := Mul(x, y)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	// Static y contributes an all-ones broadcast mask; x's raggedness
	// survives the OR.
	assert.Equal(t, Dims{true}, ob.DimFlags())
	assert.Equal(t, values(x.Mask()), values(ob.Mask()))
	assert.Equal(t, 10.0, ob.Data().Float(0))
	assert.Equal(t, 160.0, ob.Data().Float(9))
}

func TestBinaryRankMismatch(t *testing.T) {
	x := lengths35(t, 0)
	y, err := FromTensor(f64(t, []float64{1, 2}, tensor.Shape{2, 1, 1}))
	require.NoError(t, err)

	_, err = Add(x, y)
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestDropout(t *testing.T) {
	tests := []struct {
		name     string
		p        float64
		training bool
		wantErr  bool
	}{
		{name: "inference is identity", p: 0.5, training: false},
		{name: "zero rate is identity", p: 0, training: true},
		{name: "training scales survivors", p: 0.5, training: true},
		{name: "negative rate rejected", p: -0.1, training: true, wantErr: true},
		{name: "rate of one rejected", p: 1, training: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := lengths35(t, 0)

			out, err := Dropout(b, tt.p, tt.training)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			ob := out.(*MaskedBatch)

			// Mask and flags are never touched; only data changes.
			assert.Equal(t, values(b.Mask()), values(ob.Mask()))
			assert.Equal(t, b.DimFlags(), ob.DimFlags())

			if !tt.training || tt.p == 0 {
				assert.Equal(t, values(b.Data()), values(ob.Data()))
				return
			}
			// Every element is dropped to zero or scaled by 1/(1-p).
			scale := 1.0 / (1.0 - tt.p)
			for i, v := range values(ob.Data()) {
				orig := b.Data().Float(i)
				if v != 0 {
					assert.InDelta(t, orig*scale, v, 1e-12, "position %d", i)
				}
			}
		})
	}
}

// Adding a plain scalar transforms data only.
func TestScalarPreservesMetadata(t *testing.T) {
	b := lengths35(t, 0)

	out, err := AddScalar(b, 100)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, values(b.Mask()), values(ob.Mask()))
	assert.Equal(t, b.DimFlags(), ob.DimFlags())
	assert.Equal(t, 101.0, ob.Data().Float(0))
}

func TestComparisonsCarryMask(t *testing.T) {
	x := lengths35(t, 0)
	y := lengths35(t, 0)

	out, err := GreaterEqual(x, y)
	require.NoError(t, err)
	ob := out.(*MaskedBatch)

	assert.Equal(t, values(x.Mask()), values(ob.Mask()))
	assert.Equal(t, 1.0, ob.Data().Float(0))
}

func TestPlainFallthrough(t *testing.T) {
	x := Wrap(f64(t, []float64{1, 2}, tensor.Shape{2}))
	y := Wrap(f64(t, []float64{3, 4}, tensor.Shape{2}))

	out, err := Add(x, y)
	require.NoError(t, err)

	_, masked := out.(*MaskedBatch)
	assert.False(t, masked)
	assert.Equal(t, []float64{4, 6}, values(TensorOf(out)))
}
