package suvr

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrShapeMismatch is returned when a volume and a mask have different
	// dimensions. It fails only the affected subject.
	ErrShapeMismatch = errors.New("suvr: volume and mask shapes differ")

	// ErrEmptyMask is returned when a mask selects no voxels. Masks are shared
	// by every subject, so this is a configuration error for the whole run.
	ErrEmptyMask = errors.New("suvr: mask selects no voxels")

	// ErrInvalidMask is returned for masks containing NaN voxels.
	ErrInvalidMask = errors.New("suvr: mask contains NaN voxels")

	// ErrDivisionByZero is returned when the reference-region mean of a
	// subject is zero.
	ErrDivisionByZero = errors.New("suvr: reference region mean is zero")

	// ErrNoVolume is returned for a nil volume, or for a subject with
	// neither a volume nor a source to load one from.
	ErrNoVolume = errors.New("suvr: subject has no volume")
)

// SubjectError tags a per-subject failure with the subject identifier and
// its position in the batch input.
type SubjectError struct {
	SubjectID string
	Index     int
	Err       error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("subject %s (#%d): %v", e.SubjectID, e.Index, e.Err)
}

func (e *SubjectError) Unwrap() error {
	return e.Err
}
