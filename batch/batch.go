// Copyright 2026 Ragged ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package batch provides the public API of the masked batch engine:
// batched numeric computation over examples of varying extent.
//
// A MaskedBatch carries padded dense data, a {0,1} validity mask, and a
// per-axis flag marking which axes are ragged across the batch. Every
// operation propagates all three so that, at valid positions, results
// are identical to running the operation on each example's unpadded
// data in isolation.
//
// Example:
//
//	b, _ := batch.PadSequences([][]float32{{1, 2, 3}, {4, 5, 6, 7, 8}})
//	sums, _ := batch.Sum(b, 1, false) // true per-example sums
package batch

import (
	"github.com/ragged-ml/ragged/internal/batch"
	"github.com/ragged-ml/ragged/tensor"
)

// MaskedBatch is a batch of variable-extent examples padded to a common
// dense shape, together with its validity mask and dynamic-axis flags.
type MaskedBatch = batch.MaskedBatch

// Dims flags, per non-batch axis, whether the axis's true extent varies
// per example.
type Dims = batch.Dims

// Value is the operand abstraction accepted by every engine operation:
// either a *MaskedBatch or a Plain dense tensor. Operations fall back
// to ordinary unmasked numeric behavior when no operand is masked.
type Value = batch.Value

// Plain wraps a dense tensor that carries no masking metadata.
type Plain = batch.Plain

// Engine errors; match with errors.Is.
var (
	ErrInvalidBatch         = batch.ErrInvalidBatch
	ErrInvalidContraction   = batch.ErrInvalidContraction
	ErrUnsupportedShape     = batch.ErrUnsupportedShape
	ErrAmbiguousIndex       = batch.ErrAmbiguousIndex
	ErrConflictingMaskUsage = batch.ErrConflictingMaskUsage
)

// New constructs a MaskedBatch from its three parts, validating every
// engine invariant.
func New(data, mask *tensor.RawTensor, dims Dims) (*MaskedBatch, error) {
	return batch.New(data, mask, dims)
}

// FromTensor wraps a fully valid tensor as a MaskedBatch with every
// non-batch axis static.
func FromTensor(t *tensor.RawTensor) (*MaskedBatch, error) {
	return batch.FromTensor(t)
}

// PadSequences pads ragged rows to a rectangular batch, building the
// prefix mask and flagging the sequence axis dynamic.
func PadSequences[T tensor.DType](rows [][]T) (*MaskedBatch, error) {
	return batch.PadSequences(rows)
}

// Wrap lifts a dense tensor into a Value.
func Wrap(t *tensor.RawTensor) Value { return batch.Wrap(t) }

// TensorOf returns the dense data tensor behind either Value variant.
func TensorOf(v Value) *tensor.RawTensor { return batch.TensorOf(v) }
