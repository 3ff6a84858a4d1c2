// Package centiloid maps SUVR values onto the Centiloid scale.
//
// The scale is anchored by two cohorts: the mean SUVR of a young-control
// cohort maps to 0 and the mean SUVR of an Alzheimer's disease cohort maps
// to 100. A Model is derived once per calibration run and then applied to
// every subject of that run, anchors included.
package centiloid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"centiloid/internal/models"
)

var (
	// ErrEmptyCohort is returned when an anchor cohort has no values.
	ErrEmptyCohort = errors.New("centiloid: anchor cohort is empty")

	// ErrDegenerateCalibration is returned when both anchors have the same
	// mean SUVR, which leaves the scale undefined.
	ErrDegenerateCalibration = errors.New("centiloid: anchor means are equal")

	// ErrCohortRole is returned when a cohort is passed as the wrong anchor.
	ErrCohortRole = errors.New("centiloid: cohort has the wrong role")
)

// Model is an immutable SUVR to Centiloid transform.
type Model struct {
	// MeanLow is the mean SUVR of the young-control anchor cohort.
	MeanLow float64

	// MeanHigh is the mean SUVR of the Alzheimer's disease anchor cohort.
	MeanHigh float64
}

// Fit derives a Model from the SUVR values of the two anchor cohorts.
func Fit(low, high []float64) (Model, error) {
	if len(low) == 0 {
		return Model{}, fmt.Errorf("%w: low anchor", ErrEmptyCohort)
	}
	if len(high) == 0 {
		return Model{}, fmt.Errorf("%w: high anchor", ErrEmptyCohort)
	}

	m := Model{
		MeanLow:  stat.Mean(low, nil),
		MeanHigh: stat.Mean(high, nil),
	}
	if m.MeanHigh == m.MeanLow {
		return Model{}, fmt.Errorf("%w: both %g", ErrDegenerateCalibration, m.MeanLow)
	}
	return m, nil
}

// FitCohorts derives a Model from an anchor_low and an anchor_high cohort.
func FitCohorts(low, high models.Cohort) (Model, error) {
	if low.Role != models.RoleAnchorLow {
		return Model{}, fmt.Errorf("%w: %s is %s, want %s", ErrCohortRole, low.Name, low.Role, models.RoleAnchorLow)
	}
	if high.Role != models.RoleAnchorHigh {
		return Model{}, fmt.Errorf("%w: %s is %s, want %s", ErrCohortRole, high.Name, high.Role, models.RoleAnchorHigh)
	}
	return Fit(low.SUVRs(), high.SUVRs())
}

// Slope returns the Centiloid units per SUVR unit.
func (m Model) Slope() float64 {
	return 100 / (m.MeanHigh - m.MeanLow)
}

// Apply converts one SUVR into Centiloid units.
func (m Model) Apply(suvr float64) float64 {
	return (suvr - m.MeanLow) / (m.MeanHigh - m.MeanLow) * 100
}

// Calibrate applies m to every record of every cohort, preserving cohort
// order and record order within each cohort.
func Calibrate(m Model, cohorts ...models.Cohort) []models.CentiloidRecord {
	n := 0
	for _, c := range cohorts {
		n += len(c.Records)
	}

	out := make([]models.CentiloidRecord, 0, n)
	for _, c := range cohorts {
		for _, rec := range c.Records {
			out = append(out, models.CentiloidRecord{
				SubjectID: rec.SubjectID,
				Cohort:    c.Name,
				Role:      c.Role,
				SUVR:      rec.SUVR,
				Centiloid: m.Apply(rec.SUVR),
			})
		}
	}
	return out
}
