package batch

import "github.com/ragged-ml/ragged/internal/tensor"

// Value is the capability abstraction over the two kinds of operands the
// engine accepts: a MaskedBatch, or a plain dense tensor with no masking
// metadata. Every engine operation dispatches on the variant and falls
// back to ordinary unmasked numeric behavior when no operand is masked,
// so masked and plain code composes freely.
//
// The interface is sealed: only MaskedBatch and Plain implement it.
type Value interface {
	valueTensor() *tensor.RawTensor
}

func (b *MaskedBatch) valueTensor() *tensor.RawTensor { return b.data }

// Plain wraps a dense tensor that carries no masking metadata.
type Plain struct {
	Tensor *tensor.RawTensor
}

func (p Plain) valueTensor() *tensor.RawTensor { return p.Tensor }

// Wrap lifts a dense tensor into a Value.
func Wrap(t *tensor.RawTensor) Value {
	return Plain{Tensor: t}
}

// asMasked returns the MaskedBatch variant of v, if it is one.
func asMasked(v Value) (*MaskedBatch, bool) {
	b, ok := v.(*MaskedBatch)
	return b, ok
}

// TensorOf returns the dense data tensor behind either variant.
func TensorOf(v Value) *tensor.RawTensor {
	return v.valueTensor()
}
