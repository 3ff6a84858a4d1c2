// Package suvr computes Standardized Uptake Value Ratios from PET volumes
// using a target-region mask and a reference-region mask.
package suvr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"centiloid/internal/models"
)

// NaNPolicy selects how NaN voxels inside a mask are aggregated.
type NaNPolicy int

const (
	// NaNAsZero replaces NaN voxels with 0 and keeps them in the denominator.
	// NaN voxels therefore depress the mean. This matches the published
	// pipeline output and is the default.
	NaNAsZero NaNPolicy = iota

	// NaNExclude drops NaN voxels from both the sum and the voxel count.
	NaNExclude
)

func (p NaNPolicy) String() string {
	switch p {
	case NaNAsZero:
		return "zero"
	case NaNExclude:
		return "exclude"
	default:
		return "unknown"
	}
}

// ParseNaNPolicy converts a configuration value into a NaNPolicy.
func ParseNaNPolicy(s string) (NaNPolicy, error) {
	switch s {
	case "", "zero":
		return NaNAsZero, nil
	case "exclude":
		return NaNExclude, nil
	default:
		return NaNAsZero, fmt.Errorf("unknown NaN policy %q (must be zero or exclude)", s)
	}
}

// Mask is a region selection on the volume grid. Non-zero voxels are
// selected; the number of selected voxels is counted once when the mask is
// built and reused for every subject.
type Mask struct {
	vol   *models.Volume
	count int
}

// NewMask wraps vol as a mask. It fails with ErrEmptyMask when no voxel is
// selected and with ErrInvalidMask when a voxel is NaN.
func NewMask(vol *models.Volume) (*Mask, error) {
	if floats.HasNaN(vol.Data) {
		return nil, ErrInvalidMask
	}

	count := floats.Count(func(v float64) bool { return v != 0 }, vol.Data)
	if count == 0 {
		return nil, ErrEmptyMask
	}

	return &Mask{vol: vol, count: count}, nil
}

// Count returns the number of selected voxels.
func (m *Mask) Count() int {
	return m.count
}

// Volume returns the underlying mask volume.
func (m *Mask) Volume() *models.Volume {
	return m.vol
}

// MaskedMean returns the mask-weighted mean intensity of vol:
//
//	sum(vol * mask) / count(mask != 0)
//
// Under NaNAsZero the denominator is the precomputed mask count, so NaN
// voxels count as zero intensity samples. Under NaNExclude they are left out
// of the sum and the count.
func MaskedMean(vol *models.Volume, mask *Mask, policy NaNPolicy) (float64, error) {
	if mask == nil || mask.count == 0 {
		return 0, ErrEmptyMask
	}
	if vol == nil {
		return 0, ErrNoVolume
	}
	if !vol.SameShape(mask.vol) {
		return 0, fmt.Errorf("%w: volume %s, mask %s", ErrShapeMismatch, vol.Shape(), mask.vol.Shape())
	}

	var sum float64
	count := mask.count
	for i, w := range mask.vol.Data {
		if w == 0 {
			continue
		}
		v := vol.Data[i]
		if math.IsNaN(v) {
			if policy == NaNExclude {
				count--
			}
			continue
		}
		sum += v * w
	}

	if count == 0 {
		return 0, fmt.Errorf("%w: every selected voxel is NaN", ErrEmptyMask)
	}

	return sum / float64(count), nil
}
