package centiloid

import (
	"errors"
	"math"
	"testing"

	"centiloid/internal/models"
)

const tolerance = 1e-9

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func cohort(name string, role models.Role, suvrs ...float64) models.Cohort {
	c := models.Cohort{Name: name, Role: role}
	for i, s := range suvrs {
		c.Records = append(c.Records, models.SUVRRecord{
			SubjectID: name + string(rune('A'+i)),
			SUVR:      s,
		})
	}
	return c
}

func TestFitScenario(t *testing.T) {
	m, err := Fit([]float64{1.0, 1.1, 0.9}, []float64{2.0, 2.2, 1.8})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if math.Abs(m.MeanLow-1.0) > tolerance || math.Abs(m.MeanHigh-2.0) > tolerance {
		t.Errorf("Expected means 1.0/2.0, got %f/%f", m.MeanLow, m.MeanHigh)
	}
	if got := m.Apply(1.5); math.Abs(got-50) > tolerance {
		t.Errorf("Expected 50 CL for SUVR 1.5, got %f", got)
	}
	if got := m.Slope(); math.Abs(got-100) > tolerance {
		t.Errorf("Expected slope 100, got %f", got)
	}
}

// TestAnchorsMapToEndpoints checks that the anchor means land on 0 and 100
func TestAnchorsMapToEndpoints(t *testing.T) {
	pairs := [][2]float64{{1, 2}, {1.17, 2.08}, {0.5, 0.51}, {3, 1}, {-1, 4}}

	for _, p := range pairs {
		a, b := p[0], p[1]
		m, err := Fit(repeat(a, 4), repeat(b, 7))
		if err != nil {
			t.Fatalf("Fit(%g, %g) failed: %v", a, b, err)
		}
		if got := m.Apply(a); math.Abs(got) > tolerance {
			t.Errorf("Fit(%g, %g): low anchor maps to %g, want 0", a, b, got)
		}
		if got := m.Apply(b); math.Abs(got-100) > tolerance {
			t.Errorf("Fit(%g, %g): high anchor maps to %g, want 100", a, b, got)
		}
	}
}

func TestFitErrors(t *testing.T) {
	if _, err := Fit(nil, []float64{2}); !errors.Is(err, ErrEmptyCohort) {
		t.Errorf("Expected ErrEmptyCohort for empty low anchor, got %v", err)
	}
	if _, err := Fit([]float64{1}, []float64{}); !errors.Is(err, ErrEmptyCohort) {
		t.Errorf("Expected ErrEmptyCohort for empty high anchor, got %v", err)
	}

	same := []float64{1.2, 1.4, 1.3}
	if _, err := Fit(same, same); !errors.Is(err, ErrDegenerateCalibration) {
		t.Errorf("Expected ErrDegenerateCalibration, got %v", err)
	}
}

func TestApplyIdempotent(t *testing.T) {
	m := Model{MeanLow: 1.009, MeanHigh: 2.076}
	first := m.Apply(1.734)
	second := m.Apply(1.734)
	if first != second {
		t.Errorf("Expected identical results, got %v and %v", first, second)
	}
}

func TestFitCohortsChecksRoles(t *testing.T) {
	low := cohort("yc", models.RoleAnchorLow, 1.0, 1.1, 0.9)
	high := cohort("ad", models.RoleAnchorHigh, 2.0, 2.2, 1.8)

	if _, err := FitCohorts(high, low); !errors.Is(err, ErrCohortRole) {
		t.Errorf("Expected ErrCohortRole for swapped cohorts, got %v", err)
	}

	m, err := FitCohorts(low, high)
	if err != nil {
		t.Fatalf("FitCohorts failed: %v", err)
	}
	if math.Abs(m.MeanLow-1) > tolerance || math.Abs(m.MeanHigh-2) > tolerance {
		t.Errorf("Expected means 1/2, got %f/%f", m.MeanLow, m.MeanHigh)
	}
}

// TestCalibrateIncludesAnchors verifies that anchors receive their own values
// and that output order follows the input cohorts
func TestCalibrateIncludesAnchors(t *testing.T) {
	low := cohort("yc", models.RoleAnchorLow, 1.0, 1.1, 0.9)
	high := cohort("ad", models.RoleAnchorHigh, 2.0, 2.2, 1.8)
	other := cohort("sub", models.RoleUnlabeled, 1.5)

	m, err := FitCohorts(low, high)
	if err != nil {
		t.Fatalf("FitCohorts failed: %v", err)
	}

	records := Calibrate(m, high, low, other)
	if len(records) != 7 {
		t.Fatalf("Expected 7 records, got %d", len(records))
	}

	want := []struct {
		id   string
		role models.Role
		cl   float64
	}{
		{"adA", models.RoleAnchorHigh, 100},
		{"adB", models.RoleAnchorHigh, 120},
		{"adC", models.RoleAnchorHigh, 80},
		{"ycA", models.RoleAnchorLow, 0},
		{"ycB", models.RoleAnchorLow, 10},
		{"ycC", models.RoleAnchorLow, -10},
		{"subA", models.RoleUnlabeled, 50},
	}
	for i, w := range want {
		got := records[i]
		if got.SubjectID != w.id || got.Role != w.role {
			t.Errorf("Record %d: expected %s/%s, got %s/%s", i, w.id, w.role, got.SubjectID, got.Role)
		}
		if math.Abs(got.Centiloid-w.cl) > 1e-6 {
			t.Errorf("Record %d: expected %g CL, got %g", i, w.cl, got.Centiloid)
		}
	}
}
