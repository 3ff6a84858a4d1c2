package models

// Role tags a cohort with its part in the calibration.
type Role string

const (
	// RoleAnchorLow is the young-control cohort whose mean SUVR maps to 0 CL.
	RoleAnchorLow Role = "anchor_low"

	// RoleAnchorHigh is the Alzheimer's disease cohort whose mean SUVR maps to 100 CL.
	RoleAnchorHigh Role = "anchor_high"

	// RoleUnlabeled marks subjects that are calibrated but do not define the scale.
	RoleUnlabeled Role = "unlabeled"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAnchorLow, RoleAnchorHigh, RoleUnlabeled:
		return true
	}
	return false
}

// SUVRRecord holds the masked means of one subject volume and their ratio.
type SUVRRecord struct {
	SubjectID string
	ROIMean   float64
	RefMean   float64
	SUVR      float64
}

// Cohort is an ordered sequence of SUVR records sharing a role. Order is
// the discovery order of the underlying files and must be preserved, since
// reference tables are aligned by position.
type Cohort struct {
	Name    string
	Role    Role
	Records []SUVRRecord
}

// SUVRs returns the SUVR column of the cohort in order.
func (c Cohort) SUVRs() []float64 {
	out := make([]float64, len(c.Records))
	for i, rec := range c.Records {
		out[i] = rec.SUVR
	}
	return out
}

// CentiloidRecord is a subject's SUVR mapped onto the Centiloid scale.
type CentiloidRecord struct {
	SubjectID string  `csv:"subject_id"`
	Cohort    string  `csv:"cohort"`
	Role      Role    `csv:"role"`
	SUVR      float64 `csv:"suvr"`
	Centiloid float64 `csv:"centiloid"`
}

// ValidationResult is one linear fit of computed values against reference values.
type ValidationResult struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}
