package suvr

import (
	"fmt"

	"centiloid/internal/models"
)

// Options configures a Calculator.
type Options struct {
	// NaNPolicy controls how NaN voxels inside a mask are aggregated.
	NaNPolicy NaNPolicy
}

// Calculator computes SUVR records from a fixed pair of masks. The masks are
// validated once and shared read-only by every Compute call, so a single
// Calculator can be used from many goroutines.
type Calculator struct {
	roi    *Mask
	ref    *Mask
	policy NaNPolicy
}

// NewCalculator builds a calculator from the target-region and reference
// masks. Both masks must be non-empty and share a shape.
func NewCalculator(roi, ref *models.Volume, opts Options) (*Calculator, error) {
	roiMask, err := NewMask(roi)
	if err != nil {
		return nil, fmt.Errorf("roi mask: %w", err)
	}
	refMask, err := NewMask(ref)
	if err != nil {
		return nil, fmt.Errorf("reference mask: %w", err)
	}
	if !roi.SameShape(ref) {
		return nil, fmt.Errorf("%w: roi mask %s, reference mask %s", ErrShapeMismatch, roi.Shape(), ref.Shape())
	}

	return &Calculator{
		roi:    roiMask,
		ref:    refMask,
		policy: opts.NaNPolicy,
	}, nil
}

// ROI returns the target-region mask.
func (c *Calculator) ROI() *Mask { return c.roi }

// Reference returns the reference-region mask.
func (c *Calculator) Reference() *Mask { return c.ref }

// Compute returns the SUVR record of one subject volume. A zero reference
// mean fails with ErrDivisionByZero instead of producing Inf or NaN.
func (c *Calculator) Compute(subjectID string, vol *models.Volume) (models.SUVRRecord, error) {
	if vol == nil {
		return models.SUVRRecord{}, ErrNoVolume
	}
	roiMean, err := MaskedMean(vol, c.roi, c.policy)
	if err != nil {
		return models.SUVRRecord{}, fmt.Errorf("roi: %w", err)
	}
	refMean, err := MaskedMean(vol, c.ref, c.policy)
	if err != nil {
		return models.SUVRRecord{}, fmt.Errorf("reference: %w", err)
	}
	if refMean == 0 {
		return models.SUVRRecord{}, ErrDivisionByZero
	}

	return models.SUVRRecord{
		SubjectID: subjectID,
		ROIMean:   roiMean,
		RefMean:   refMean,
		SUVR:      roiMean / refMean,
	}, nil
}
