package batch

import "errors"

// Engine error taxonomy. All violations are immediate, local, and
// non-retryable: the failing call produces no partial result. Match with
// errors.Is.
var (
	// ErrInvalidBatch reports a MaskedBatch that violates the core
	// invariants (rank/dims mismatch, non-binary mask, materialized
	// static mask axis).
	ErrInvalidBatch = errors.New("invalid masked batch")

	// ErrInvalidContraction reports contracting or joining a dynamic
	// axis against a static one, or an axis split/join that makes mask
	// reconstruction ambiguous.
	ErrInvalidContraction = errors.New("invalid contraction")

	// ErrUnsupportedShape reports contraction or concatenation patterns
	// beyond the supported 1-/2-D non-batch shapes, or reducing to a
	// scalar with a non-zero-preserving kernel while dynamic axes remain.
	ErrUnsupportedShape = errors.New("unsupported rank or shape")

	// ErrAmbiguousIndex reports negative or complex slicing on a dynamic
	// axis, or indexing the batch axis with anything but a full-range
	// selector.
	ErrAmbiguousIndex = errors.New("ambiguous index")

	// ErrConflictingMaskUsage reports combining an explicit ignore index
	// with a masked target, or operations that require exactly one
	// dynamic axis when several (or none) qualify.
	ErrConflictingMaskUsage = errors.New("conflicting mask usage")
)
